package arena

import (
	"testing"

	"github.com/arborchess/arbor/internal/chess"
)

// fakePolicy hands out a uniform prior for every move, enough to exercise
// expansion and migration without pulling in a real network weight file.
type fakePolicy struct{}

func (fakePolicy) Features(pos *chess.Position) []int32 { return nil }
func (fakePolicy) Logit(pos *chess.Position, mov chess.Move, feats []int32) float32 {
	return 0
}

// fakePST is a flat policy-softmax-temperature schedule.
type fakePST struct{}

func (fakePST) RootPST() float32            { return 1.0 }
func (fakePST) Depth2PST() float32          { return 1.0 }
func (fakePST) PST(depth int, q float32) float32 { return 1.0 }

func TestNodePtrPacking(t *testing.T) {
	p := NewNodePtr(true, 1234)
	if !p.Half() {
		t.Fatalf("expected high half")
	}
	if p.Idx() != 1234 {
		t.Fatalf("got idx %d, want 1234", p.Idx())
	}
	q := NewNodePtr(false, 5)
	if q.Half() {
		t.Fatalf("expected low half")
	}
	if q.Add(3).Idx() != 8 {
		t.Fatalf("Add did not offset within half")
	}
}

func TestNodeUpdateAccumulatesMean(t *testing.T) {
	var n Node
	n.Reset()

	n.Update(1.0)
	n.Update(0.0)
	n.Update(1.0)

	if n.Visits() != 3 {
		t.Fatalf("visits = %d, want 3", n.Visits())
	}
	got := n.Q()
	want := float32(2.0 / 3.0)
	if diff := got - want; diff > 1e-3 || diff < -1e-3 {
		t.Fatalf("Q = %v, want ~%v", got, want)
	}
}

func TestExpandNodePopulatesChildren(t *testing.T) {
	tree := New(4096, 256, 1)
	root := tree.ReserveRoot()
	pos := chess.NewPosition()

	ok := tree.ExpandNode(root, pos, fakePST{}, fakePolicy{}, 1, 0)
	if !ok {
		t.Fatalf("ExpandNode reported failure")
	}

	legal := pos.GenerateLegalMoves().Len()
	rootNode := tree.At(root)
	if rootNode.NumActions() != legal {
		t.Fatalf("num actions = %d, want %d", rootNode.NumActions(), legal)
	}
	if rootNode.IsNotExpanded() {
		t.Fatalf("node still reports not-expanded after ExpandNode")
	}

	firstChild, n := rootNode.Children()
	var sum float32
	for i := 0; i < n; i++ {
		sum += tree.At(firstChild.Add(i)).Policy()
	}
	if diff := sum - 1.0; diff > 1e-2 || diff < -1e-2 {
		t.Fatalf("child priors sum to %v, want ~1.0", sum)
	}

	// A second concurrent expansion call must be a safe no-op.
	if ok := tree.ExpandNode(root, pos, fakePST{}, fakePolicy{}, 1, 0); !ok {
		t.Fatalf("re-expansion reported failure")
	}
	if rootNode.NumActions() != legal {
		t.Fatalf("double expansion changed child count to %d", rootNode.NumActions())
	}
}

func TestFlipMigratesRootAcrossHalves(t *testing.T) {
	tree := New(4096, 256, 1)
	root := tree.ReserveRoot()
	pos := chess.NewPosition()
	tree.ExpandNode(root, pos, fakePST{}, fakePolicy{}, 1, 0)
	tree.At(root).Update(0.75)

	oldActive := tree.ActiveHalf()
	newRoot := tree.Flip(true)
	if newRoot.IsNull() {
		t.Fatalf("flip with copyAcross returned null root")
	}
	if newRoot.Half() == oldActive {
		t.Fatalf("new root still targets the old half")
	}
	if tree.ActiveHalf() == oldActive {
		t.Fatalf("active half did not toggle")
	}

	migrated := tree.At(newRoot)
	if migrated.Visits() != 1 {
		t.Fatalf("migrated root visits = %d, want 1", migrated.Visits())
	}
}

func TestFetchChildrenMigratesStaleBlock(t *testing.T) {
	tree := New(4096, 256, 1)
	root := tree.ReserveRoot()
	pos := chess.NewPosition()
	tree.ExpandNode(root, pos, fakePST{}, fakePolicy{}, 1, 0)

	newRoot := tree.Flip(true)
	if newRoot.IsNull() {
		t.Fatalf("flip failed")
	}

	// The migrated root's children pointer still targets the half that was
	// just cleared; FetchChildren must detect and repair that before any
	// selection reads through it.
	firstChildBefore, _ := tree.At(newRoot).Children()
	if firstChildBefore.Half() == tree.ActiveHalf() {
		t.Fatalf("test setup invalid: children already in active half")
	}

	if !tree.FetchChildren(newRoot, 0) {
		t.Fatalf("FetchChildren reported failure")
	}

	firstChildAfter, n := tree.At(newRoot).Children()
	if firstChildAfter.Half() != tree.ActiveHalf() {
		t.Fatalf("children still reference stale half after FetchChildren")
	}
	if n != pos.GenerateLegalMoves().Len() {
		t.Fatalf("child count changed across migration: got %d", n)
	}
}

func TestPropagateProvenMates(t *testing.T) {
	tree := New(64, 16, 1)
	parent := tree.ReserveRoot()

	tree.PropagateProvenMates(parent, NodeState{Tag: Lost, Plies: 3})
	if st := tree.At(parent).State(); st.Tag != Won || st.Plies != 4 {
		t.Fatalf("parent state = %+v, want Won(4)", st)
	}
}

func TestHashfullWithinBounds(t *testing.T) {
	tree := New(1024, 64, 1)
	tree.ReserveRoot()
	if hf := tree.Hashfull(); hf < 0 || hf > 1000 {
		t.Fatalf("hashfull out of range: %d", hf)
	}
}
