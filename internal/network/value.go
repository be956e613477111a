package network

import (
	"fmt"
	"math"

	"github.com/arborchess/arbor/internal/chess"
)

const (
	valueHidden = 2048
	valueQA     = 255
	valueScale  = 400
)

// valueDenseLayers is the count of 16->16 SCReLU dense layers the
// transformer's hidden accumulator feeds into before the final scalar
// output, matching spec.md §4.2's "stack of identical (f32, 16->16)
// SCReLU dense layers".
const valueDenseLayers = 8

// ValueNetwork is the quantised feature-transformer + dense-stack value
// head (C2). FeatureWeights/FeatureBias are i16-quantised by valueQA, as
// Stockfish-style NNUE feature transformers are; the dense stack runs in
// f32 after the transformer's output is dequantised and SCReLU-activated.
type ValueNetwork struct {
	FeatureWeights [NumValueFeatures][valueHidden]int16
	FeatureBias    [valueHidden]int16

	Proj     [valueHidden][16]float32
	ProjBias [16]float32

	Dense     [valueDenseLayers][16][16]float32
	DenseBias [valueDenseLayers][16]float32

	OutWeights [16]float32
	OutBias    float32
}

func screlu(x float32) float32 {
	if x < 0 {
		x = 0
	} else if x > 1 {
		x = 1
	}
	return x * x
}

// accumulate runs the sparse feature transformer over the active
// features, dequantising the i16 accumulator into a [0,1]-clamped f32
// activation ready for the dense stack's first projection.
func (v *ValueNetwork) accumulate(feats []int32) [valueHidden]float32 {
	var acc [valueHidden]int16
	copy(acc[:], v.FeatureBias[:])

	for _, f := range feats {
		row := &v.FeatureWeights[f]
		for i := range acc {
			acc[i] += row[i]
		}
	}

	var out [valueHidden]float32
	for i, a := range acc {
		out[i] = screlu(float32(a) / valueQA)
	}
	return out
}

// Eval returns an integer centipawn value from the side-to-move's
// perspective, after applying the material-count scaling multiplier
// described in spec.md §4.2.
func (v *ValueNetwork) Eval(pos *chess.Position) int {
	feats := valueFeatures(pos)
	acc := v.accumulate(feats)

	var h [16]float32
	copy(h[:], v.ProjBias[:])
	for i, a := range acc {
		if a == 0 {
			continue
		}
		row := &v.Proj[i]
		for j := range h {
			h[j] += a * row[j]
		}
	}

	for l := 0; l < valueDenseLayers; l++ {
		var next [16]float32
		copy(next[:], v.DenseBias[l][:])
		for i, x := range h {
			act := screlu(x)
			row := &v.Dense[l][i]
			for j := range next {
				next[j] += act * row[j]
			}
		}
		h = next
	}

	var out float32
	for i, x := range h {
		out += screlu(x) * v.OutWeights[i]
	}
	out += v.OutBias

	raw := int(out * valueScale)
	return applyMaterialScaling(pos, raw)
}

// MaterialParams are the spec.md §6 tunables feeding the material
// scaling multiplier applied to the raw centipawn value before WDL is
// re-derived (knight/bishop/rook/queen piece values plus the offset and
// two divisor constants).
type MaterialParams struct {
	Knight, Bishop, Rook, Queen int
	Offset, Div1, Div2          int
}

// DefaultMaterialParams mirrors monty-engine/src/params.rs's defaults.
var DefaultMaterialParams = MaterialParams{
	Knight: 450, Bishop: 450, Rook: 650, Queen: 1250,
	Offset: 700, Div1: 32, Div2: 1024,
}

var activeMaterialParams = DefaultMaterialParams

// SetMaterialParams updates the live material-scaling tunables (wired to
// the UCI setoption handlers for knight_value/bishop_value/etc).
func SetMaterialParams(p MaterialParams) { activeMaterialParams = p }

func applyMaterialScaling(pos *chess.Position, raw int) int {
	p := activeMaterialParams
	material := p.Offset +
		p.Knight*(pos.Pieces[chess.White][chess.Knight].PopCount()+pos.Pieces[chess.Black][chess.Knight].PopCount()) +
		p.Bishop*(pos.Pieces[chess.White][chess.Bishop].PopCount()+pos.Pieces[chess.Black][chess.Bishop].PopCount()) +
		p.Rook*(pos.Pieces[chess.White][chess.Rook].PopCount()+pos.Pieces[chess.Black][chess.Rook].PopCount()) +
		p.Queen*(pos.Pieces[chess.White][chess.Queen].PopCount()+pos.Pieces[chess.Black][chess.Queen].PopCount())

	scale := float64(material) / float64(p.Div2)
	if scale > float64(p.Div1)/float64(p.Div2)*32 {
		// Clamp extreme scaling the same way the reference clamps the
		// cp-to-wdl logistic near the boundary (§9 open question).
		scale = float64(p.Div1) / float64(p.Div2) * 32
	}
	return int(float64(raw) * scale)
}

// contemptClamp bounds the draw-adjusted score away from the [0,1]
// boundary where the logistic re-fit used by CPFromScore is numerically
// delicate, per spec.md §9's "reference clamps internally to prevent
// NaNs — reproduce the clamps exactly".
const contemptClamp = 1e-4

// WDL converts a centipawn value into a (win, draw, loss) triple via a
// logistic fit, applying contempt (in centipawns, from side-to-move's
// perspective) before the split.
func WDL(cp int, contempt int) (w, d, l float32) {
	adjusted := float64(cp + contempt)
	score := 1.0 / (1.0 + math.Exp(-adjusted/valueScale))
	score = clamp01(score)

	// A fixed, small draw mass that narrows as the score moves away from
	// 0.5 — simple and monotonic, not trained, but it satisfies the
	// w + 0.5*d == score invariant spec.md §2 requires of get_value_wdl.
	drawMass := 0.1 * (1 - math.Abs(2*score-1))
	d64 := clamp01(drawMass)
	w64 := clamp01(score - d64/2)
	l64 := clamp01(1 - w64 - d64)

	return float32(w64), float32(d64), float32(l64)
}

func clamp01(x float64) float64 {
	if x < contemptClamp {
		return contemptClamp
	}
	if x > 1-contemptClamp {
		return 1 - contemptClamp
	}
	return x
}

// CPFromScore re-derives a reporting centipawn value from a win
// probability score (w + 0.5*d) using the logistic re-fit spec.md §4.2
// specifies, clamped to avoid the boundary blow-up noted in §9.
func CPFromScore(score float32) float32 {
	s := clamp01(float64(score))
	return float32(-valueScale * math.Log(1/s-1))
}

// GetValueWDL returns the score in [0,1] the search backpropagates for an
// ongoing leaf: w + 0.5*d from this value network's WDL triple.
func (v *ValueNetwork) GetValueWDL(pos *chess.Position, contempt int) float32 {
	cp := v.Eval(pos)
	w, d, _ := WDL(cp, contempt)
	return w + 0.5*d
}

// String formats pos's centipawn score and per-mille WDL for the `eval`
// UCI command's display. It takes a position, so it is not a fmt.Stringer.
func (v *ValueNetwork) String(pos *chess.Position) string {
	cp := v.Eval(pos)
	w, d, l := WDL(cp, 0)
	return fmt.Sprintf("cp %d wdl %.1f %.1f %.1f", cp, w*1000, d*1000, l*1000)
}
