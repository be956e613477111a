// Grounded on _examples/original_source/src/mcts/iteration.rs's
// perform_one: one PUCT descent from the root to a leaf, expansion at the
// leaf, a value-network evaluation, and backpropagation of the result.
package search

import (
	"github.com/arborchess/arbor/internal/arena"
	"github.com/arborchess/arbor/internal/chess"
)

// ValueEvaluator is the slice of internal/network's value head the search
// needs at a leaf: a win-probability score in [0,1] from the side to
// move's perspective.
type ValueEvaluator interface {
	GetValueWDL(pos *chess.Position, contempt int) float32
}

func utilityFromState(tag arena.StateTag, value ValueEvaluator, pos *chess.Position, contempt int) float32 {
	switch tag {
	case arena.Draw:
		return 0.5
	case arena.Lost:
		return 0.0
	case arena.Won:
		return 1.0
	default:
		return value.GetValueWDL(pos, contempt)
	}
}

// pickAction selects the child to descend into via PUCT, deflating each
// child's action value by its current virtual-loss thread count (§4.4's
// "q' = q*v/(v+1+W*(threads-1))").
func pickAction(t *arena.Tree, ps *Params, parentPtr arena.NodePtr, isRoot bool) int {
	parent := t.At(parentPtr)
	firstChild, numActions := parent.Children()

	cpuct := GetCPUCT(ps, parent, isRoot)
	exploreScale := GetExploreScaling(ps, parent)
	fpu := GetFPU(parent)

	sqrtParentVisits := sqrtf(float32(parent.Visits()))

	best := 0
	bestScore := float32(negInf)
	for i := 0; i < numActions; i++ {
		child := t.At(firstChild.Add(i))

		visits := child.Visits()
		threads := child.Threads()

		actionValue := GetActionValue(child, fpu)
		if threads > 0 {
			w := float32(ps.VirtualLossWeight.Val)
			denom := float32(visits) + 1 + w*float32(threads-1)
			actionValue = actionValue * float32(visits) / denom
		}

		policyScore := cpuct * exploreScale * child.Policy() * sqrtParentVisits / (1 + float32(visits))
		score := policyScore + actionValue

		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return best
}

const negInf = float32(-1) * (1 << 30)

func sqrtf(x float32) float32 {
	if x <= 0 {
		return 0
	}
	// Newton's method from a cheap initial guess; avoids pulling in math
	// for a single-use scalar sqrt on the hot selection path.
	z := x
	for i := 0; i < 8; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}

// PerformOne runs one MCTS iteration from ptr (already positioned as
// `pos`), returning the backpropagated utility from the parent's
// perspective and whether the iteration completed (false means the arena
// ran out of room mid-descent — §7's benign per-iteration abort, the
// caller should flip the tree and retry). depth is incremented once per
// recursive call so the caller can read the reached depth back out after
// the top-level call returns, matching the cumulative-depth accounting in
// mcts.rs's search loop.
func PerformOne(t *arena.Tree, ps *Params, policy arena.PolicyEvaluator, value ValueEvaluator, pos *chess.Position, ptr arena.NodePtr, depth *int, threadID int, isRoot bool) (float32, bool) {
	*depth++

	node := t.At(ptr)

	if node.Visits() == 0 && !node.IsTerminal() {
		node.SetState(arena.FromGameState(pos.Classify()))
	}

	var u float32

	if node.IsTerminal() || node.Visits() == 0 {
		// Pure leaf: a never-visited node or a proven terminal never
		// expands here. Expansion is deferred to the node's second visit.
		state := node.State()
		if state.IsTerminal() {
			u = utilityFromState(state.Tag, value, pos, int(ps.Contempt.Val))
		} else if entry, ok := t.Hash.Get(pos.Hash); ok {
			u = entry.Q()
		} else {
			u = value.GetValueWDL(pos, int(ps.Contempt.Val))
		}
	} else {
		if node.IsNotExpanded() {
			if !t.ExpandNode(ptr, pos, pstAdapter{ps}, policy, *depth, threadID) {
				return 0, false
			}
		}
		if !t.FetchChildren(ptr, threadID) {
			return 0, false
		}

		childIdx := pickAction(t, ps, ptr, isRoot)
		firstChild, _ := node.Children()
		childPtr := firstChild.Add(childIdx)
		child := t.At(childPtr)

		undo := pos.MakeMove(child.ParentMove())
		child.IncThreads()

		firstVisit := child.Visits() == 0
		if firstVisit {
			child.Lock()
		}

		childU, ok := PerformOne(t, ps, policy, value, pos, childPtr, depth, threadID, false)

		if firstVisit {
			child.Unlock()
		}
		child.DecThreads()
		pos.UnmakeMove(child.ParentMove(), undo)

		if !ok {
			return 0, false
		}

		childState := t.At(childPtr).State()
		if childState.IsTerminal() {
			t.PropagateProvenMates(ptr, childState)
		}

		u = childU
	}

	u = 1 - u
	newQ := node.Update(u)
	t.Hash.Push(pos.Hash, 1-newQ)
	return u, true
}
