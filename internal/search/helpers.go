// Grounded on _examples/original_source/src/mcts/helpers.rs's
// SearchHelpers: the CPUCT/explore-scaling/FPU heuristics PUCT selection
// consults at every node.
package search

import (
	"math"

	"github.com/arborchess/arbor/internal/arena"
)

// pstAdapter exposes Params as an arena.PSTProvider without name-colliding
// with the Param-typed RootPST/Depth2PST struct fields.
type pstAdapter struct{ p *Params }

func (a pstAdapter) RootPST() float32            { return a.p.RootPSTVal() }
func (a pstAdapter) Depth2PST() float32          { return a.p.Depth2PSTVal() }
func (a pstAdapter) PST(depth int, q float32) float32 { return a.p.PST(depth, q) }

var _ arena.PSTProvider = pstAdapter{}

// GetCPUCT implements SearchHelpers::get_cpuct: a base exploration
// constant scaled up with visit count and, once the node has enough
// visits to estimate variance, nudged by how uncertain its value
// estimate still looks.
func GetCPUCT(ps *Params, node *arena.Node, isRoot bool) float32 {
	base := ps.CPUCT.Val
	if isRoot {
		base = ps.RootCPUCT.Val
	}

	scale := ps.CPUCTVisitsScale.Val * 128.0
	visits := float64(node.Visits())
	cpuct := base * (1 + math.Log((visits+scale)/scale))

	if visits > 1 {
		variance := math.Sqrt(float64(node.Var())) / ps.CPUCTVarScale.Val
		frac := variance + (1-variance)/(1+ps.CPUCTVarWarmup.Val*visits)
		cpuct *= 1 + ps.CPUCTVarWeight.Val*(frac-1)
	}

	return float32(cpuct)
}

// baseExploreScaling implements SearchHelpers::base_explore_scaling.
func baseExploreScaling(ps *Params, visits int32) float32 {
	v := float64(visits)
	if v < 1 {
		v = 1
	}
	return float32(math.Exp(ps.ExplTau.Val * math.Log(v)))
}

// GetExploreScaling implements SearchHelpers::get_explore_scaling: the
// base visit-count scaling, damped by how concentrated (low Gini
// impurity) the parent's policy distribution already is.
func GetExploreScaling(ps *Params, node *arena.Node) float32 {
	base := baseExploreScaling(ps, node.Visits())
	gini := float64(node.GiniImpurity())
	giniTerm := math.Min(ps.GiniMin.Val, ps.GiniBase.Val-ps.GiniLnMultiplier.Val*math.Log(gini+0.001))
	return base * float32(giniTerm)
}

// GetFPU implements SearchHelpers::get_fpu: first-play urgency for an
// unvisited child defaults to "as good as the opponent is bad" at the
// parent.
func GetFPU(parent *arena.Node) float32 {
	return 1 - parent.Q()
}

// GetActionValue implements SearchHelpers::get_action_value.
func GetActionValue(child *arena.Node, fpu float32) float32 {
	if child.Visits() == 0 {
		return fpu
	}
	return child.Q()
}
