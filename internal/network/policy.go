// Grounded on _examples/original_source/src/games/chess/policy.rs's
// SubNet/PolicyNetwork pair: a per-square sparse feature transformer
// feeding 128 tiny from/to subnets (64 "from" + 64 "to", doubled by the
// threat bit), dot-producted together and summed with a hand-crafted
// promotion/SEE branch to produce one logit per legal move.
package network

import "github.com/arborchess/arbor/internal/chess"

const (
	policySubnetHidden = 16
	policySubnets      = 128 // 64 from-squares + 64 to-squares
)

// subNet is a sparse 768->16 feature transformer followed by a dense
// 16->16 ReLU layer, matching SubNet in policy.rs.
type subNet struct {
	ftWeights [NumSquarePieces][policySubnetHidden]float32
	ftBias    [policySubnetHidden]float32
	l2Weights [policySubnetHidden][policySubnetHidden]float32
	l2Bias    [policySubnetHidden]float32
}

func relu(x float32) float32 {
	if x < 0 {
		return 0
	}
	return x
}

func (s *subNet) forward(feats []int32) [policySubnetHidden]float32 {
	var h [policySubnetHidden]float32
	copy(h[:], s.ftBias[:])
	for _, f := range feats {
		row := &s.ftWeights[f]
		for i := range h {
			h[i] += row[i]
		}
	}
	for i := range h {
		h[i] = relu(h[i])
	}

	var out [policySubnetHidden]float32
	copy(out[:], s.l2Bias[:])
	for i, x := range h {
		row := &s.l2Weights[i]
		for j := range out {
			out[j] += x * row[j]
		}
	}
	for i := range out {
		out[i] = relu(out[i])
	}
	return out
}

// PolicyNetwork produces a prior logit per legal move via a from-square
// subnet dot a to-square subnet, plus a hand-crafted-eval term covering
// promotions and a coarse capture-safety signal from SEE.
type PolicyNetwork struct {
	Subnets [2][policySubnets]subNet // [threatened-bit][from square, or 64+to square]
	HCE     [5]float32
	HCEBias float32
}

// Features implements arena.PolicyEvaluator. The policy network's sparse
// feature layout mirrors the value network's piece-square block without
// the threatened/defended overlay, since that distinction is folded
// separately into which of the two subnet tables (Subnets[0]/[1]) a move
// from a threatened square uses.
func (p *PolicyNetwork) Features(pos *chess.Position) []int32 {
	feats := make([]int32, 0, 32)
	us := pos.SideToMove
	for c := chess.White; c <= chess.Black; c++ {
		for pt := chess.Pawn; pt <= chess.King; pt++ {
			bb := pos.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				feats = append(feats, int32(squareFeature(us, pt, c, sq)))
			}
		}
	}
	return feats
}

// Logit implements arena.PolicyEvaluator, returning a raw (pre-softmax)
// prior logit for mov, combining the from/to subnet dot product with the
// hand-crafted promotion/SEE branch.
func (p *PolicyNetwork) Logit(pos *chess.Position, mov chess.Move, feats []int32) float32 {
	mask := flipMask(pos)
	from := uint8(mov.From()) ^ mask
	to := uint8(mov.To()) ^ mask

	threatened, _ := threatenedDefended(pos)
	fromBit := 0
	if threatened&chess.SquareBB(mov.From()) != 0 {
		fromBit = 1
	}

	fromVec := p.Subnets[fromBit][from].forward(feats)
	toVec := p.Subnets[fromBit][64+to].forward(feats)

	var dot float32
	for i := range fromVec {
		dot += fromVec[i] * toVec[i]
	}

	return dot + p.hceLogit(pos, mov)
}

// hceLogit is the hand-crafted-eval branch: a one-hot promotion-piece
// slot plus a binary "this capture looks safe by SEE" slot.
func (p *PolicyNetwork) hceLogit(pos *chess.Position, mov chess.Move) float32 {
	var feats [5]float32
	if mov.IsPromotion() {
		promo := mov.Promotion()
		if idx := int(promo) - int(chess.Knight); idx >= 0 && idx < 4 {
			feats[idx] = 1
		}
	}
	if mov.IsCapture() && SEE(pos, mov, -108) {
		feats[4] = 1
	}

	var out float32
	for i, f := range feats {
		out += f * p.HCE[i]
	}
	return out + p.HCEBias
}
