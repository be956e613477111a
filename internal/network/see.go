// Static exchange evaluation feeds the policy network's hand-crafted
// "is this capture safe" bit (policy.rs's get_hce_feats slot 4). Piece
// values here are the SEE-specific table spec.md §4.2 calls out
// (P=100,N=450,B=450,R=650,Q=1250,K=0), distinct from the general
// material-eval table internal/chess uses for its own purposes.
package network

import "github.com/arborchess/arbor/internal/chess"

var seeValue = [7]int{
	chess.Pawn:      100,
	chess.Knight:    450,
	chess.Bishop:    450,
	chess.Rook:      650,
	chess.Queen:     1250,
	chess.King:      0,
	chess.NoPieceType: 0,
}

// SEE runs the standard swap-off static exchange evaluation on the
// capture (or promotion) mov and reports whether the resulting material
// balance for the side to move is at least `threshold`.
func SEE(pos *chess.Position, mov chess.Move, threshold int) bool {
	from, to := mov.From(), mov.To()

	var gain [32]int
	depth := 0

	target := pos.PieceAt(to)
	var captured int
	if mov.IsEnPassant() {
		captured = seeValue[chess.Pawn]
	} else if target != chess.NoPiece {
		captured = seeValue[target.Type()]
	}
	gain[0] = captured

	attacker := pos.PieceAt(from)
	attackerValue := seeValue[attacker.Type()]
	if mov.IsPromotion() {
		attackerValue = seeValue[mov.Promotion()]
		gain[0] += seeValue[mov.Promotion()] - seeValue[chess.Pawn]
	}

	occ := pos.AllOccupied &^ chess.SquareBB(from)
	if mov.IsEnPassant() {
		var epCaptureSq chess.Square
		if pos.SideToMove == chess.White {
			epCaptureSq = chess.NewSquare(int(to.File()), int(to.Rank())-1)
		} else {
			epCaptureSq = chess.NewSquare(int(to.File()), int(to.Rank())+1)
		}
		occ &^= chess.SquareBB(epCaptureSq)
	}

	stm := pos.SideToMove.Other()
	sideValue := attackerValue

	for depth = 1; depth < len(gain); depth++ {
		gain[depth] = sideValue - gain[depth-1]
		if max(-gain[depth-1], gain[depth]) < 0 {
			break
		}

		attackers := pos.AttackersByColor(to, stm, occ) & occ
		if attackers == 0 {
			break
		}

		leastSq, leastValue, ok := leastValuableAttacker(pos, attackers, stm)
		if !ok {
			break
		}
		occ &^= chess.SquareBB(leastSq)
		sideValue = leastValue
		stm = stm.Other()
	}

	for depth--; depth > 0; depth-- {
		if -gain[depth] < gain[depth-1] {
			gain[depth-1] = -gain[depth]
		}
	}

	return gain[0] >= threshold
}

func leastValuableAttacker(pos *chess.Position, attackers chess.Bitboard, c chess.Color) (chess.Square, int, bool) {
	for pt := chess.Pawn; pt <= chess.King; pt++ {
		bb := attackers & pos.Pieces[c][pt]
		if bb != 0 {
			return bb.LSB(), seeValue[pt], true
		}
	}
	return 0, 0, false
}
