// Grounded on _examples/original_source/src/mcts.rs's outer search loop
// (iteration counting, periodic stop-flag polling, PV extraction) and on
// internal/engine/worker.go (teacher) for the Go worker-pool shape,
// generalised from a raw sync.WaitGroup to golang.org/x/sync/errgroup.
package search

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arborchess/arbor/internal/arena"
	"github.com/arborchess/arbor/internal/chess"
	"github.com/arborchess/arbor/internal/timeman"
)

// pollInterval is how many iterations a worker performs between checks of
// the shared stop flag and node/time limits, keeping the atomic load off
// the hottest part of the loop.
const pollInterval = 128

// Limits mirrors the UCI `go` command's fields.
type Limits struct {
	WTime, BTime   time.Duration
	WInc, BInc     time.Duration
	MovesToGo      int
	MoveTime       time.Duration
	Depth          int
	Nodes          int64
	Infinite       bool
}

// Info is one `info` line's worth of search telemetry.
type Info struct {
	Depth, SelDepth int
	ScoreCP         int
	Mate            int // non-zero overrides ScoreCP with a mate-in-N report
	Nodes           int64
	Time            time.Duration
	NPS             int64
	HashFull        int
	PV              []chess.Move
}

// Searcher drives parallel MCTS iterations over a shared arena.Tree.
type Searcher struct {
	Tree   *arena.Tree
	Params *Params
	Policy arena.PolicyEvaluator
	Value  ValueEvaluator
	Threads int

	stop     atomic.Bool
	prevRoot *chess.Position
}

// NewSearcher builds a Searcher over an already-sized tree.
func NewSearcher(tree *arena.Tree, params *Params, policy arena.PolicyEvaluator, value ValueEvaluator, threads int) *Searcher {
	if threads < 1 {
		threads = 1
	}
	return &Searcher{Tree: tree, Params: params, Policy: policy, Value: value, Threads: threads}
}

// Stop requests an early stop; safe to call concurrently with Search.
func (s *Searcher) Stop() { s.stop.Store(true) }

// Search runs iterations from pos until a limit is hit or Stop is called,
// reporting progress through report (may be nil) and returning the best
// move found.
func (s *Searcher) Search(ctx context.Context, pos *chess.Position, limits Limits, report func(Info)) chess.Move {
	s.stop.Store(false)

	reused := s.Tree.TryUseSubtree(pos, s.prevRoot)
	if !reused {
		s.Tree.Clear()
		root := s.Tree.ReserveRoot()
		s.Tree.At(root).Reset()
	}
	rootPtr := s.Tree.RootNode()
	s.Tree.At(rootPtr).SetState(arena.FromGameState(pos.Classify()))
	if reused {
		s.Tree.RelabelPolicy(rootPtr, pos, pstAdapter{s.Params}, s.Policy, 1)
	}

	var ourTime, ourInc time.Duration
	if pos.SideToMove == chess.White {
		ourTime, ourInc = limits.WTime, limits.WInc
	} else {
		ourTime, ourInc = limits.BTime, limits.BInc
	}

	tmParams := timeman.Default()
	tmParams.MoveOverheadMs = s.Params.MoveOverheadMs.Val
	budget := timeman.GetTime(timeman.Limits{
		Time: ourTime, Increment: ourInc, MovesToGo: limits.MovesToGo, Ply: pos.FullMoveNumber * 2,
	}, tmParams)
	if limits.MoveTime > 0 {
		budget = timeman.Budget{Soft: limits.MoveTime, Hard: limits.MoveTime}
	}

	var totalNodes atomic.Int64
	var cumulativeDepth atomic.Int64
	var maxDepth atomic.Int64
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.Threads; i++ {
		thread := i
		g.Go(func() error {
			return s.workerLoop(gctx, pos.Copy(), rootPtr, thread, &totalNodes, &cumulativeDepth, &maxDepth)
		})
	}

	if !limits.Infinite {
		stopTimer := time.AfterFunc(budget.Hard, func() { s.stop.Store(true) })
		defer stopTimer.Stop()
	}

	// avgDepth is the rounded cumulative-depth/iterations figure spec §4.7
	// calls for; it also drives `go depth N`'s stop condition.
	prevScore := s.Tree.At(rootPtr).Q()
	bestMoveChanges := 0
	prevBest := -1
	lastReport := time.Now()
	for !s.stop.Load() {
		time.Sleep(5 * time.Millisecond)
		nodes := totalNodes.Load()
		if limits.Nodes > 0 && nodes >= limits.Nodes {
			s.stop.Store(true)
			break
		}
		avgDepth := 0
		if nodes > 0 {
			avgDepth = int((cumulativeDepth.Load() + nodes/2) / nodes)
		}
		if limits.Depth > 0 && avgDepth >= limits.Depth {
			s.stop.Store(true)
			break
		}
		bestIdx := s.Tree.GetBestChild(rootPtr)
		if bestIdx >= 0 && bestIdx != prevBest {
			if prevBest >= 0 {
				bestMoveChanges++
			}
			prevBest = bestIdx
		}
		var bestChildVisits int32
		if bestIdx >= 0 {
			firstChild, _ := s.Tree.At(rootPtr).Children()
			bestChildVisits = s.Tree.At(firstChild.Add(bestIdx)).Visits()
		}
		score := s.Tree.At(rootPtr).Q()
		if !limits.Infinite && limits.MoveTime == 0 {
			if timeman.ShouldStop(time.Since(start), budget, score, timeman.SoftCutoffState{
				TotalNodes:      nodes,
				PreviousScore:   prevScore,
				BestMoveChanges: bestMoveChanges,
				BestChildVisits: bestChildVisits,
			}, tmParams) {
				s.stop.Store(true)
				break
			}
		}
		prevScore = score
		if report != nil && time.Since(lastReport) > 200*time.Millisecond {
			report(s.buildInfo(rootPtr, pos, nodes, time.Since(start), avgDepth, int(maxDepth.Load())))
			lastReport = time.Now()
		}
	}

	_ = g.Wait()

	finalNodes := totalNodes.Load()
	finalDepth := 0
	if finalNodes > 0 {
		finalDepth = int((cumulativeDepth.Load() + finalNodes/2) / finalNodes)
	}
	if report != nil {
		report(s.buildInfo(rootPtr, pos, finalNodes, time.Since(start), finalDepth, int(maxDepth.Load())))
	}

	s.prevRoot = pos.Copy()

	bestIdx := s.Tree.GetBestChild(rootPtr)
	if bestIdx < 0 {
		return chess.Move(0)
	}
	firstChild, _ := s.Tree.At(rootPtr).Children()
	return s.Tree.At(firstChild.Add(bestIdx)).ParentMove()
}

func (s *Searcher) workerLoop(ctx context.Context, pos *chess.Position, rootPtr arena.NodePtr, thread int, totalNodes, cumulativeDepth, maxDepth *atomic.Int64) error {
	count := 0
	for {
		if s.stop.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		work := pos.Copy()
		depth := 0
		_, ok := PerformOne(s.Tree, s.Params, s.Policy, s.Value, work, rootPtr, &depth, thread, true)
		if !ok {
			// Arena exhaustion: flip halves and retry this iteration.
			s.Tree.Flip(true)
			continue
		}
		totalNodes.Add(1)
		cumulativeDepth.Add(int64(depth - 1))
		for {
			cur := maxDepth.Load()
			if int64(depth) <= cur || maxDepth.CompareAndSwap(cur, int64(depth)) {
				break
			}
		}

		count++
		if count%pollInterval == 0 && s.Tree.IsFull() {
			s.Tree.Flip(true)
		}
	}
}

// PV extracts the principal variation by repeatedly following
// GetBestChild from ptr, matching src/mcts.rs's get_pv.
func (s *Searcher) PV(pos *chess.Position, maxLen int) []chess.Move {
	moves := make([]chess.Move, 0, maxLen)
	ptr := s.Tree.RootNode()
	work := pos.Copy()

	for i := 0; i < maxLen; i++ {
		idx := s.Tree.GetBestChild(ptr)
		if idx < 0 {
			break
		}
		firstChild, _ := s.Tree.At(ptr).Children()
		childPtr := firstChild.Add(idx)
		mov := s.Tree.At(childPtr).ParentMove()
		moves = append(moves, mov)
		work.MakeMove(mov)

		if !s.Tree.At(childPtr).HasChildren() {
			break
		}
		ptr = childPtr
	}
	return moves
}

// cpFromScore converts a [0,1] win-probability score into a reporting
// centipawn value, matching src/mcts.rs's mate-score/cp conversion.
func cpFromScore(score float32) int {
	s := float64(score)
	if s <= 0.0001 {
		s = 0.0001
	}
	if s >= 0.9999 {
		s = 0.9999
	}
	return int(-400 * math.Log(1/s-1))
}

func (s *Searcher) buildInfo(rootPtr arena.NodePtr, pos *chess.Position, nodes int64, elapsed time.Duration, depth, selDepth int) Info {
	root := s.Tree.At(rootPtr)
	nps := int64(0)
	if elapsed > 0 {
		nps = int64(float64(nodes) / elapsed.Seconds())
	}
	if depth < 1 {
		depth = 1
	}
	return Info{
		Depth:    depth,
		SelDepth: selDepth,
		ScoreCP:  cpFromScore(root.Q()),
		Nodes:    nodes,
		Time:     elapsed,
		NPS:      nps,
		HashFull: s.Tree.Hashfull(),
		PV:       s.PV(pos, 16),
	}
}
