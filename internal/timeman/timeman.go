// Package timeman computes the soft and hard time budgets a search
// allots to one move, and the mid-search signals (falling evaluation,
// best-move instability, best-move visit share) that let the search stop
// early once its soft budget is comfortably enough.
//
// Grounded on _examples/original_source/src/mcts/helpers.rs's get_time
// and soft_time_cutoff.
package timeman

import (
	"math"
	"time"
)

// Params are the tunables the reference engine calls tm_* (spec.md §6).
// Values are reasoned defaults shaped to match the qualitative curve
// described by the reference's formula, since the excerpted source this
// module is grounded on did not expose its trained constants.
type Params struct {
	MovesToGo int

	OptValue1, OptValue2, OptValue3     float64
	OptScale1, OptScale2, OptScale3, OptScale4 float64
	MaxValue1, MaxValue2, MaxValue3     float64
	MaxScale1, MaxScale2                float64
	BonusPly, BonusValue1               float64
	MaxTimeMs                           float64

	FallingEval1, FallingEval2, FallingEval3 float64
	BMI1, BMI2, BMI3                         float64
	BMV1, BMV2, BMV3, BMV4, BMV5, BMV6       float64

	MoveOverheadMs float64
}

// Default mirrors search.NewDefaultParams' tm_* fields so a caller that
// has not wired a custom Params still gets a sane time manager.
func Default() Params {
	return Params{
		MovesToGo:      30,
		OptValue1:      1.0, OptValue2: 0.03, OptValue3: 2.0,
		OptScale1: 0.2, OptScale2: 0.4, OptScale3: 0.0032, OptScale4: 1.5,
		MaxValue1: 3.3, MaxValue2: 0.05, MaxValue3: 1.5,
		MaxScale1: 4.0, MaxScale2: 0.25,
		BonusPly: 40, BonusValue1: 120,
		MaxTimeMs: 0,
		FallingEval1: 1.0, FallingEval2: 0.05, FallingEval3: 0.1,
		BMI1: 1.0, BMI2: 0.05, BMI3: 0.5,
		BMV1: 1.0, BMV2: 0.2, BMV3: 2.0, BMV4: 0.5, BMV5: 0.2, BMV6: 2.0,
		MoveOverheadMs: 5,
	}
}

// Limits are the UCI `go` command's clock fields relevant to the side to
// move.
type Limits struct {
	Time       time.Duration
	Increment  time.Duration
	MovesToGo  int
	Ply        int
}

// Budget is the (soft, hard) pair a search loop checks against: the soft
// deadline is advisory (soft_time_cutoff may end the search earlier), the
// hard deadline is never exceeded.
type Budget struct {
	Soft, Hard time.Duration
}

// GetTime implements SearchHelpers::get_time: a fixed-fraction budget
// when movestogo is known, otherwise a smoothed "fraction of remaining
// time plus a slice of the increment" curve, raised by an early-game bonus
// that shrinks linearly with ply and is gone from BonusPly on.
func GetTime(limits Limits, p Params) Budget {
	overhead := time.Duration(p.MoveOverheadMs) * time.Millisecond
	timeLeft := limits.Time - overhead
	if timeLeft < 0 {
		timeLeft = 0
	}

	if limits.MovesToGo > 0 {
		mtg := limits.MovesToGo
		if mtg < 1 {
			mtg = 1
		}
		if mtg > 30 {
			mtg = 30
		}
		budget := timeLeft / time.Duration(mtg)
		return Budget{Soft: budget, Hard: budget}
	}

	seconds := math.Max(float64(timeLeft)/float64(time.Second), 0.001)
	logTime := math.Log10(seconds)

	optScale := math.Min(p.OptScale1, p.OptScale2+p.OptScale3*logTime) * p.OptScale4
	bonus := 1.0
	if float64(limits.Ply) < p.BonusPly {
		bonus = 1 + p.BonusValue1/1000.0*(p.BonusPly-float64(limits.Ply))/p.BonusPly
	}
	opt := (float64(timeLeft)*optScale + float64(limits.Increment)*p.OptValue2) * bonus

	maxScale := math.Min(p.MaxScale1, p.MaxScale2*(1+logTime))
	maxT := float64(timeLeft) * maxScale / p.MaxValue1

	if p.MaxTimeMs > 0 && maxT > p.MaxTimeMs*float64(time.Millisecond) {
		maxT = p.MaxTimeMs * float64(time.Millisecond)
	}
	if opt > maxT {
		opt = maxT
	}

	return Budget{Soft: time.Duration(opt), Hard: time.Duration(maxT)}
}

// SoftCutoffState is the running mid-search telemetry
// soft_time_cutoff folds into its "should we stop early" decision.
type SoftCutoffState struct {
	PreviousScore   float32
	BestMoveChanges int
	BestChildVisits int32
	TotalNodes      int64
}

// ShouldStop implements SearchHelpers::soft_time_cutoff: scales the soft
// budget down when the evaluation is stable, the best move hasn't
// changed, and one child dominates the visit distribution, so an easy
// position returns its move well before the soft deadline.
func ShouldStop(elapsed time.Duration, budget Budget, score float32, st SoftCutoffState, p Params) bool {
	if elapsed >= budget.Hard {
		return true
	}

	fallingEval := clampf(p.FallingEval1+p.FallingEval2*float64(st.PreviousScore-score), p.FallingEval3, p.FallingEval1)

	bmi := clampf(p.BMI1+p.BMI2*math.Log1p(float64(st.BestMoveChanges)), p.BMI3, p.BMI1)

	var nodesEffort float64
	if st.TotalNodes > 0 {
		nodesEffort = float64(st.BestChildVisits) / float64(st.TotalNodes)
	}
	bmv := clampf(p.BMV1-p.BMV2*math.Max(0, nodesEffort-p.BMV3/10), p.BMV4, p.BMV5*p.BMV6)

	totalTime := float64(budget.Soft) * fallingEval * bmi * bmv
	return float64(elapsed) >= totalTime
}

func clampf(x, lo, hi float64) float64 {
	if lo > hi {
		lo, hi = hi, lo
	}
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
