package search

import (
	"testing"

	"github.com/arborchess/arbor/internal/arena"
)

func TestGetCPUCTDistinguishesRoot(t *testing.T) {
	ps := NewDefaultParams()
	var node arena.Node
	node.Reset()

	root := GetCPUCT(ps, &node, true)
	interior := GetCPUCT(ps, &node, false)

	if root == interior {
		t.Fatalf("root and interior CPUCT should differ when RootCPUCT != CPUCT")
	}
}

func TestGetCPUCTIncreasesWithVisits(t *testing.T) {
	// Isolate the visit-count log term from the variance-warmup term (a
	// node whose backprop values never vary has zero variance, which
	// *reduces* cpuct as visits grow).
	ps := NewDefaultParams()
	ps.CPUCTVarWeight.Val = 0
	var low, high arena.Node
	low.Reset()
	high.Reset()
	for i := 0; i < 100; i++ {
		high.Update(0.5)
	}

	if GetCPUCT(ps, &high, false) <= GetCPUCT(ps, &low, false) {
		t.Fatalf("CPUCT should grow with visit count")
	}
}

func TestGetFPUMirrorsParentLoss(t *testing.T) {
	var parent arena.Node
	parent.Reset()
	parent.Update(0.3)

	fpu := GetFPU(&parent)
	want := float32(0.7)
	if diff := fpu - want; diff > 1e-3 || diff < -1e-3 {
		t.Fatalf("FPU = %v, want ~%v", fpu, want)
	}
}

func TestGetActionValueUsesFPUForUnvisitedChild(t *testing.T) {
	var child arena.Node
	child.Reset()

	if got := GetActionValue(&child, 0.42); got != 0.42 {
		t.Fatalf("unvisited child action value = %v, want FPU 0.42", got)
	}

	child.Update(0.9)
	if got := GetActionValue(&child, 0.42); got == 0.42 {
		t.Fatalf("visited child should report its own Q, not FPU")
	}
}

func TestPUCTMonotonicInPolicy(t *testing.T) {
	// Testable property from spec.md §8: holding everything else fixed,
	// increasing a child's prior must strictly-weakly increase its
	// selection key (Q + cpuct*P*sqrt(N_parent)/(1+N_child)).
	ps := NewDefaultParams()
	var parent arena.Node
	parent.Reset()
	for i := 0; i < 50; i++ {
		parent.Update(0.5)
	}

	key := func(prior float32) float32 {
		var child arena.Node
		child.Reset()
		child.SetPolicy(prior)
		cpuct := GetCPUCT(ps, &parent, false)
		explore := GetExploreScaling(ps, &parent)
		fpu := GetFPU(&parent)
		av := GetActionValue(&child, fpu)
		return av + cpuct*explore*child.Policy()*sqrtf(float32(parent.Visits()))/(1+float32(child.Visits()))
	}

	lo := key(0.01)
	hi := key(0.5)
	if hi < lo {
		t.Fatalf("increasing prior decreased selection key: %v -> %v", lo, hi)
	}
}

func TestSqrtfMatchesMathSqrtApprox(t *testing.T) {
	cases := []float32{0, 1, 4, 9, 100, 1234.5}
	for _, c := range cases {
		got := sqrtf(c)
		want := float32(isqrt(c))
		if diff := got - want; diff > 1e-2 || diff < -1e-2 {
			t.Errorf("sqrtf(%v) = %v, want ~%v", c, got, want)
		}
	}
}

func isqrt(x float32) float64 {
	if x <= 0 {
		return 0
	}
	f := float64(x)
	z := f
	for i := 0; i < 20; i++ {
		z -= (z*z - f) / (2 * z)
	}
	return z
}
