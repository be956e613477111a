package timeman

import (
	"testing"
	"time"
)

func TestGetTimeMovesToGoSplitsEvenly(t *testing.T) {
	p := Default()
	limits := Limits{Time: 30 * time.Second, MovesToGo: 10}

	budget := GetTime(limits, p)
	if budget.Soft != budget.Hard {
		t.Fatalf("movestogo budget should set soft == hard, got %v / %v", budget.Soft, budget.Hard)
	}

	wantApprox := (30*time.Second - 5*time.Millisecond) / 10
	if diff := budget.Soft - wantApprox; diff > time.Millisecond || diff < -time.Millisecond {
		t.Fatalf("soft budget = %v, want ~%v", budget.Soft, wantApprox)
	}
}

func TestGetTimeMovesToGoClampedToRange(t *testing.T) {
	p := Default()
	// movestogo=1 and movestogo=100 should clamp to [1,30] internally,
	// never dividing by more than 30 or less than 1.
	small := GetTime(Limits{Time: 60 * time.Second, MovesToGo: 1}, p)
	huge := GetTime(Limits{Time: 60 * time.Second, MovesToGo: 100}, p)

	if small.Soft <= huge.Soft {
		t.Fatalf("movestogo=1 should allot more time per move than movestogo=100: got %v vs %v", small.Soft, huge.Soft)
	}
}

func TestGetTimeSoftNeverExceedsHard(t *testing.T) {
	p := Default()
	for _, secs := range []int{1, 10, 60, 300, 1800} {
		budget := GetTime(Limits{Time: time.Duration(secs) * time.Second, Ply: 10}, p)
		if budget.Soft > budget.Hard {
			t.Errorf("at %ds: soft %v > hard %v", secs, budget.Soft, budget.Hard)
		}
		if budget.Soft < 0 || budget.Hard < 0 {
			t.Errorf("at %ds: negative budget soft=%v hard=%v", secs, budget.Soft, budget.Hard)
		}
	}
}

func TestShouldStopAlwaysStopsAtHardDeadline(t *testing.T) {
	p := Default()
	budget := Budget{Soft: 100 * time.Millisecond, Hard: 200 * time.Millisecond}

	if !ShouldStop(250*time.Millisecond, budget, 0, SoftCutoffState{}, p) {
		t.Fatalf("elapsed beyond hard deadline must stop")
	}
}

func TestShouldStopEarlierWithDominantBestChild(t *testing.T) {
	p := Default()
	budget := Budget{Soft: 1 * time.Second, Hard: 10 * time.Second}

	diffuse := SoftCutoffState{TotalNodes: 1000, BestChildVisits: 150}
	dominant := SoftCutoffState{TotalNodes: 1000, BestChildVisits: 950}

	elapsed := 700 * time.Millisecond
	stopDiffuse := ShouldStop(elapsed, budget, 0, diffuse, p)
	stopDominant := ShouldStop(elapsed, budget, 0, dominant, p)

	if stopDiffuse && !stopDominant {
		t.Fatalf("a dominant best child should never stop later than a diffuse one")
	}
}

func TestShouldStopNeverBeforeElapsedIsPositive(t *testing.T) {
	p := Default()
	budget := Budget{Soft: 1 * time.Second, Hard: 2 * time.Second}
	if ShouldStop(0, budget, 0, SoftCutoffState{}, p) {
		t.Fatalf("should not stop at zero elapsed time")
	}
}
