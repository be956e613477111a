package arena

import (
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/arborchess/arbor/internal/chess"
	"github.com/arborchess/arbor/internal/hashtable"
)

var negInf32 = float32(math.Inf(-1))

// PolicyEvaluator is the slice of internal/network's policy head that the
// arena needs to expand a node: a shared hidden-layer precomputation
// (Features) and a per-move logit read off it (Logit). Kept as an
// interface over a plain []int32 feature-index slice so this package
// never imports internal/network.
type PolicyEvaluator interface {
	Features(pos *chess.Position) []int32
	Logit(pos *chess.Position, mov chess.Move, feats []int32) float32
}

// PSTProvider supplies the policy-softmax-temperature schedule used when
// writing child priors at expansion time (§4.6). internal/search passes
// its Params through a small adapter type (pstAdapter) that implements it.
type PSTProvider interface {
	RootPST() float32
	Depth2PST() float32
	PST(depth int, q float32) float32
}

// Tree owns the two arena halves and the hash table of search statistics,
// and implements the node lifecycle operations described in spec.md §3-4:
// expansion, cross-half migration, half flips, proven-mate propagation,
// and subtree reuse between searches.
type Tree struct {
	halves  [2]*half
	active  atomic.Bool // false selects halves[0], true selects halves[1]
	Hash    *hashtable.Table
	threads int

	flips atomic.Uint64 // count of half flips, surfaced as a metric
}

// NodeByteSize is the in-memory footprint of one arena slot, used to turn
// a megabyte budget into a slot count the way spec.md §3's "Arena half"
// lifecycle describes.
var NodeByteSize = int(unsafe.Sizeof(Node{}))

// NewMB creates a tree sized from a UCI `Hash <MB>` style budget, split
// evenly between the two halves, with the hash table sized at a fixed
// fraction of the tree's node count (matching Tree::new_mb's 1/16 ratio).
func NewMB(mb, threads int) *Tree {
	bytes := mb * 1024 * 1024
	nodeCap := bytes / NodeByteSize
	if nodeCap < 64 {
		nodeCap = 64
	}
	hashCap := nodeCap / 16
	return New(nodeCap, hashCap, threads)
}

// New creates a tree with an explicit node and hash-table capacity.
func New(nodeCap, hashCap, threads int) *Tree {
	if threads < 1 {
		threads = 1
	}
	return &Tree{
		halves:  [2]*half{newHalf(nodeCap/2, false, threads), newHalf(nodeCap/2, true, threads)},
		Hash:    hashtable.New(hashCap),
		threads: threads,
	}
}

// ActiveHalf reports which half (false/true) is currently accepting
// allocations.
func (t *Tree) ActiveHalf() bool { return t.active.Load() }

func (t *Tree) half(b bool) *half {
	if b {
		return t.halves[1]
	}
	return t.halves[0]
}

// At dereferences a NodePtr to its Node.
func (t *Tree) At(ptr NodePtr) *Node {
	return t.half(ptr.Half()).at(ptr.Idx())
}

// RootNode returns the pointer to the root, always slot 0 of the active
// half.
func (t *Tree) RootNode() NodePtr {
	return NewNodePtr(t.active.Load(), 0)
}

// IsEmpty reports whether both halves are unused.
func (t *Tree) IsEmpty() bool {
	return t.halves[0].isEmpty() && t.halves[1].isEmpty()
}

// IsFull reports whether the active half is at capacity.
func (t *Tree) IsFull() bool {
	return t.half(t.active.Load()).isFull()
}

// Hashfull returns the per-mille occupancy of the active half, for the
// UCI `hashfull` report field (the tree itself, not internal/hashtable's
// table — spec.md's `d`/reporting surfaces both).
func (t *Tree) Hashfull() int {
	h := t.half(t.active.Load())
	cap := len(h.nodes)
	if cap == 0 {
		return 0
	}
	used := int(h.usedCount())
	if used > cap {
		used = cap
	}
	return used * 1000 / cap
}

// Flips returns how many half-flips have occurred, an arena-exhaustion
// health signal fed into a Prometheus counter by internal/uci.
func (t *Tree) Flips() uint64 { return t.flips.Load() }

// ReserveRoot bump-allocates the root slot from the active half's cursor
// the first time a tree is used, so later allocations never collide with
// slot 0 (the arena's node storage is pre-allocated, but the bump cursor
// itself starts at zero and must account for the root occupying a slot).
func (t *Tree) ReserveRoot() NodePtr {
	ptr, ok := t.half(t.active.Load()).reserve(1, 0)
	if !ok {
		// A freshly cleared half can always satisfy a 1-node reservation.
		panic("arena: root reservation failed on empty half")
	}
	t.At(ptr).Reset()
	return ptr
}

// Clear wipes both halves and the hash table, used by `ucinewgame`.
func (t *Tree) Clear() {
	t.halves[0].clear()
	t.halves[1].clear()
	t.Hash.Clear()
}

// copyNodeAcross copies one node's full state (and its children pointer)
// from `from` to `to`. Both nodes' write locks are held for the duration,
// matching Tree::copy_node_across's "no other thread can modify `from`
// while these locks are held" invariant.
func (t *Tree) copyNodeAcross(from, to NodePtr) {
	if from == to {
		return
	}
	fn := t.At(from)
	tn := t.At(to)

	fn.Lock()
	tn.Lock()
	tn.CopyFrom(fn)
	tn.numActions.Store(fn.numActions.Load())
	tn.childrenPtr = fn.childrenPtr
	tn.Unlock()
	fn.Unlock()

	// The destination now cross-references the source half's children
	// block until something re-fetches it; record that so a subsequent
	// clear of that half can null the link out.
	t.half(to.Half()).registerCrossLink(to.Idx(), tn.childrenPtr)
}

// Flip performs a half-flip (§4.3 "Half flip protocol"): the inactive
// half becomes active and is cleared, the previously active half's
// per-thread cursors are reset, and (if copyAcross) the root node is
// copied into a freshly reserved slot of the new active half so the next
// iteration has somewhere to start.
func (t *Tree) Flip(copyAcross bool) NodePtr {
	oldRootPtr := t.RootNode()
	oldActive := t.active.Load()

	t.active.Store(!oldActive)
	t.flips.Add(1)

	newActive := !oldActive
	// The half that was active until now no longer accepts allocations;
	// its cursors can be reset once no thread is still bump-allocating
	// from it (callers flip only between iterations, never mid-descent).
	// First null every link from the old half into the half about to be
	// wiped, while the old half's cross-link list still exists.
	t.half(oldActive).clearCrossLinks(newActive)
	t.half(oldActive).clear()
	t.half(newActive).clear()

	if !copyAcross {
		return NullPtr
	}

	newRootPtr, ok := t.half(newActive).reserve(1, 0)
	if !ok {
		return NullPtr
	}
	t.At(newRootPtr).Reset()
	t.copyNodeAcross(oldRootPtr, newRootPtr)
	return newRootPtr
}

// FetchChildren migrates a node's child block into the active half if it
// currently references the stale half, per §4.3's cross-half migration
// protocol. Returns false (a benign per-iteration abort, §7) if the
// active half has no room for the copy.
func (t *Tree) FetchChildren(parentPtr NodePtr, thread int) bool {
	node := t.At(parentPtr)

	firstChild, _ := node.Children()
	if firstChild.IsNull() || firstChild.Half() == t.active.Load() {
		return true
	}

	node.Lock()
	defer node.Unlock()

	// Re-check under the write lock: another thread may have already
	// migrated this block while we were waiting.
	if node.childrenPtr.IsNull() || node.childrenPtr.Half() == t.active.Load() {
		return true
	}

	numChildren := node.NumActions()
	newPtr, ok := t.half(t.active.Load()).reserve(numChildren, thread)
	if !ok {
		return false
	}

	for i := 0; i < numChildren; i++ {
		src := t.At(node.childrenPtr.Add(i))
		dst := t.At(newPtr.Add(i))
		dst.Lock()
		dst.CopyFrom(src)
		dst.Unlock()
	}

	node.childrenPtr = newPtr
	t.half(parentPtr.Half()).registerCrossLink(parentPtr.Idx(), newPtr)
	return true
}

// softmaxPriors applies the policy-softmax-temperature at the given
// expansion depth to raw logits in place, returning the gini impurity of
// the resulting distribution (§4.6).
func softmaxPriors(depth int, parentQ float32, pst PSTProvider, logits []float32) float32 {
	var temperature float32
	switch {
	case depth <= 1:
		temperature = pst.RootPST()
	case depth == 2:
		temperature = pst.Depth2PST()
	default:
		temperature = pst.PST(depth, parentQ)
	}

	max := negInf32
	for _, l := range logits {
		if l > max {
			max = l
		}
	}

	var total float32
	for i, l := range logits {
		v := expf((l - max) / temperature)
		logits[i] = v
		total += v
	}

	var sumSq float32
	for i := range logits {
		p := logits[i] / total
		logits[i] = p
		sumSq += p * p
	}

	gini := 1 - sumSq
	if gini < 0 {
		gini = 0
	} else if gini > 1 {
		gini = 1
	}
	return gini
}

// ExpandNode reserves and initialises the children of an ongoing,
// not-yet-expanded node: one child per legal move, with priors computed
// from the policy network and softmaxed at the expansion-depth PST.
// Returns false on arena exhaustion (§7's benign per-iteration abort).
func (t *Tree) ExpandNode(ptr NodePtr, pos *chess.Position, params PSTProvider, policy PolicyEvaluator, depth, thread int) bool {
	node := t.At(ptr)

	node.Lock()
	defer node.Unlock()

	// Running with >1 threads, this may be called twice for the same
	// node; the second caller is a safe no-op.
	if !node.IsNotExpanded() {
		return true
	}

	moves := pos.GenerateLegalMoves()
	n := moves.Len()
	if n == 0 {
		return true
	}

	feats := policy.Features(pos)
	logits := make([]float32, n)
	for i := 0; i < n; i++ {
		logits[i] = policy.Logit(pos, moves.Get(i), feats)
	}

	newPtr, ok := t.half(t.active.Load()).reserve(n, thread)
	if !ok {
		return false
	}

	gini := softmaxPriors(depth, node.Q(), params, logits)

	for i := 0; i < n; i++ {
		t.At(newPtr.Add(i)).SetNew(moves.Get(i), logits[i])
	}

	node.SetGiniImpurity(gini)
	node.childrenPtr = newPtr
	node.numActions.Store(int32(n))
	return true
}

// RelabelPolicy recomputes a node's children's priors with the root PST
// without re-running ExpandNode — used when a reused subtree is promoted
// to root (§4.6, "Relabelling of root policies happens on tree reuse
// without re-expansion").
func (t *Tree) RelabelPolicy(ptr NodePtr, pos *chess.Position, params PSTProvider, policy PolicyEvaluator, depth int) {
	node := t.At(ptr)

	node.Lock()
	defer node.Unlock()

	n := node.NumActions()
	if n == 0 {
		return
	}

	feats := policy.Features(pos)
	logits := make([]float32, n)
	for i := 0; i < n; i++ {
		mov := t.At(node.childrenPtr.Add(i)).ParentMove()
		logits[i] = policy.Logit(pos, mov, feats)
	}

	gini := softmaxPriors(depth, node.Q(), params, logits)

	for i := 0; i < n; i++ {
		t.At(node.childrenPtr.Add(i)).SetPolicy(logits[i])
	}
	node.SetGiniImpurity(gini)
}

// PropagateProvenMates implements §4.5 step 4e: if a child became Lost,
// its parent becomes Won one ply further out; if a child became Won and
// every sibling is also Won, the parent becomes Lost one ply beyond the
// longest of them.
func (t *Tree) PropagateProvenMates(ptr NodePtr, childState NodeState) {
	switch childState.Tag {
	case Lost:
		t.At(ptr).SetState(NodeState{Tag: Won, Plies: childState.Plies + 1})
	case Won:
		node := t.At(ptr)
		firstChild, numActions := node.Children()
		if numActions == 0 {
			return
		}
		provenLoss := true
		maxWin := childState.Plies
		for i := 0; i < numActions; i++ {
			st := t.At(firstChild.Add(i)).State()
			if st.Tag != Won {
				provenLoss = false
				break
			}
			if st.Plies > maxWin {
				maxWin = st.Plies
			}
		}
		if provenLoss {
			node.SetState(NodeState{Tag: Lost, Plies: maxWin + 1})
		}
	}
}

// GetBestChildByKey scores every child of ptr with key and returns the
// index of the highest-scoring one, or -1 if the node has no children.
func (t *Tree) GetBestChildByKey(ptr NodePtr, key func(child *Node) float32) int {
	firstChild, numActions := t.At(ptr).Children()
	best := -1
	bestScore := negInf32
	for i := 0; i < numActions; i++ {
		score := key(t.At(firstChild.Add(i)))
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return best
}

// GetBestChild picks the child to report as the principal move: proven
// losses for the opponent (our wins) rank highest by shortest mate,
// proven wins for the opponent (our losses) rank lowest by longest mate,
// otherwise plain Q, matching Tree::get_best_child.
func (t *Tree) GetBestChild(ptr NodePtr) int {
	return t.GetBestChildByKey(ptr, func(c *Node) float32 {
		if c.Visits() == 0 {
			return negInf32
		}
		switch st := c.State(); st.Tag {
		case Lost:
			return 1.0 + 1.0/(1.0+float32(st.Plies))
		case Won:
			return float32(st.Plies) - 256.0
		case Draw:
			return 0.5
		default:
			return c.Q()
		}
	})
}

// TryUseSubtree attempts to promote a subtree of the existing tree to be
// the new root when the driver advances to a new position, reusing
// accumulated statistics across moves (§3 "Lifecycle"). If prevRoot is
// nil, or no matching node is found within depth 2, both halves are
// cleared instead.
func (t *Tree) TryUseSubtree(root, prevRoot *chess.Position) bool {
	if t.IsEmpty() {
		return false
	}
	if prevRoot == nil {
		t.halves[0].clear()
		t.halves[1].clear()
		return false
	}

	found := t.recurseFind(t.RootNode(), prevRoot, root, 2)
	if found.IsNull() || !t.At(found).HasChildren() {
		t.halves[0].clear()
		t.halves[1].clear()
		return false
	}

	if found != t.RootNode() {
		t.At(t.RootNode()).Reset()
		t.copyNodeAcross(found, t.RootNode())
	}
	return true
}

func (t *Tree) recurseFind(start NodePtr, thisPos, target *chess.Position, depth int) NodePtr {
	if samePosition(thisPos, target) {
		return start
	}
	if start.IsNull() || depth == 0 {
		return NullPtr
	}

	firstChild, numActions := t.At(start).Children()
	if firstChild.IsNull() {
		return NullPtr
	}

	for i := 0; i < numActions; i++ {
		childPtr := firstChild.Add(i)
		childPos := thisPos.Copy()
		childPos.MakeMove(t.At(childPtr).ParentMove())

		if found := t.recurseFind(childPtr, childPos, target, depth-1); !found.IsNull() {
			return found
		}
	}
	return NullPtr
}

func samePosition(a, b *chess.Position) bool {
	return a.Hash == b.Hash
}

func expf(x float32) float32 {
	return float32(math.Exp(float64(x)))
}
