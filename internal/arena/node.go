// Package arena implements the two-half node store the search descends
// (C3): a fixed-capacity pool of nodes with atomic statistics, bump
// allocation in per-thread cache-line-friendly blocks, and a cross-half
// migration protocol that lets the tree keep running while its backing
// memory flips between two halves.
//
// Grounded on _examples/original_source/src/tree/{node,half,hash}.rs and
// src/tree.rs (Node, NodePtr, TreeHalf, Tree), with Rust's atomic-union
// tricks (std::mem::transmute between a packed struct and an AtomicU64)
// replaced by explicit bit-packing, since Go has no safe equivalent.
package arena

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/arborchess/arbor/internal/chess"
)

// NodePtr is a 32-bit tagged pointer into one of the two arena halves:
// the top bit selects the half, the low 31 bits are the slot index.
type NodePtr uint32

// NullPtr is the reserved "no pointer" sentinel.
const NullPtr NodePtr = math.MaxUint32

const halfBit = uint32(1) << 31

// NewNodePtr packs a half flag and slot index into a NodePtr.
func NewNodePtr(half bool, idx uint32) NodePtr {
	var h uint32
	if half {
		h = halfBit
	}
	return NodePtr(h | (idx & (halfBit - 1)))
}

// IsNull reports whether ptr is the null sentinel.
func (p NodePtr) IsNull() bool { return p == NullPtr }

// Half reports which arena half this pointer targets.
func (p NodePtr) Half() bool { return uint32(p)&halfBit != 0 }

// Idx returns the slot index within that half.
func (p NodePtr) Idx() uint32 { return uint32(p) &^ halfBit }

// Add returns a pointer offset by n slots within the same half, used to
// index into a contiguous child block.
func (p NodePtr) Add(n int) NodePtr {
	return NewNodePtr(p.Half(), p.Idx()+uint32(n))
}

// StateTag is the coarse game-state classification stored on a node,
// matching spec.md's {Ongoing, Draw, Won(plies), Lost(plies)}.
type StateTag uint8

const (
	Ongoing StateTag = iota
	Draw
	Won
	Lost
)

// NodeState packs a StateTag with a mate-distance ply count.
type NodeState struct {
	Tag   StateTag
	Plies uint16
}

// IsTerminal reports whether the state is anything other than Ongoing.
func (s NodeState) IsTerminal() bool { return s.Tag != Ongoing }

func encodeState(s NodeState) uint32 {
	return uint32(s.Tag) | uint32(s.Plies)<<2
}

func decodeState(w uint32) NodeState {
	return NodeState{Tag: StateTag(w & 0x3), Plies: uint16(w >> 2)}
}

// FromGameState converts a leaf's raw chess.GameState classification
// (no mate-distance information yet — this is ply zero of the proven-mate
// chain that perform_one's recursion builds up) into a NodeState.
func FromGameState(gs chess.GameState) NodeState {
	switch gs {
	case chess.Draw:
		return NodeState{Tag: Draw}
	case chess.Won:
		return NodeState{Tag: Won, Plies: 0}
	case chess.Lost:
		return NodeState{Tag: Lost, Plies: 0}
	default:
		return NodeState{Tag: Ongoing}
	}
}

// Node is one slot in an arena half. Every statistics field is atomic so
// multiple search threads can read/update it without a lock; only the
// children pointer + action count publication is guarded (by childLock),
// per spec.md §5's ordering guarantees.
type Node struct {
	parentMove atomic.Uint32 // chess.Move, 16 bits used
	policy     atomic.Uint32 // prior scaled to uint16
	state      atomic.Uint32 // packed NodeState
	threads    atomic.Int32  // virtual-loss thread count
	visits     atomic.Int32
	q          atomic.Uint32 // mean value, scaled to uint32 fixed point
	sqQ        atomic.Uint32 // mean squared value, same scaling
	gini       atomic.Uint32 // float32 bits

	childLock   sync.RWMutex
	numActions  atomic.Int32 // published with release semantics by the write lock
	childrenPtr NodePtr
}

const fixedScale = float64(math.MaxUint32)

// Reset clears a node back to its just-allocated state, matching Rust's
// Node::clear (used both at arena-half construction and at set_new).
func (n *Node) Reset() {
	n.childLock.Lock()
	n.childrenPtr = NullPtr
	n.childLock.Unlock()
	n.numActions.Store(0)
	n.state.Store(encodeState(NodeState{Tag: Ongoing}))
	n.gini.Store(0)
	n.visits.Store(0)
	n.q.Store(0)
	n.sqQ.Store(0)
}

// SetNew clears the node and records the move that reaches it from its
// parent along with its prior, matching Node::set_new.
func (n *Node) SetNew(move chess.Move, policy float32) {
	n.Reset()
	n.parentMove.Store(uint32(move))
	n.SetPolicy(policy)
}

func (n *Node) ParentMove() chess.Move { return chess.Move(n.parentMove.Load()) }

func (n *Node) Policy() float32 {
	return float32(n.policy.Load()) / float32(math.MaxUint16)
}

func (n *Node) SetPolicy(p float32) {
	n.policy.Store(uint32(p * float32(math.MaxUint16)))
}

func (n *Node) State() NodeState { return decodeState(n.state.Load()) }
func (n *Node) SetState(s NodeState) { n.state.Store(encodeState(s)) }
func (n *Node) IsTerminal() bool     { return n.State().IsTerminal() }

func (n *Node) Visits() int32 { return n.visits.Load() }

func (n *Node) q64() float64 { return float64(n.q.Load()) / fixedScale }

func (n *Node) Q() float32 { return float32(n.q64()) }

func (n *Node) sqQ64() float64 { return float64(n.sqQ.Load()) / fixedScale }

// Var returns the variance of Q, clamped to be non-negative against
// floating-point rounding in the fixed-point accumulators.
func (n *Node) Var() float32 {
	v := n.sqQ64() - n.q64()*n.q64()
	if v < 0 {
		v = 0
	}
	return float32(v)
}

func (n *Node) IncThreads() { n.threads.Add(1) }
func (n *Node) DecThreads() { n.threads.Add(-1) }
func (n *Node) Threads() int32 { return n.threads.Load() }

func (n *Node) NumActions() int { return int(n.numActions.Load()) }

func (n *Node) HasChildren() bool { return n.NumActions() != 0 }

// IsNotExpanded reports whether this is an ongoing node that has not yet
// had its children array published.
func (n *Node) IsNotExpanded() bool {
	return n.State().Tag == Ongoing && n.NumActions() == 0
}

func (n *Node) GiniImpurity() float32 {
	return math.Float32frombits(n.gini.Load())
}

func (n *Node) SetGiniImpurity(g float32) {
	n.gini.Store(math.Float32bits(g))
}

// Children returns the current children pointer and count under a read
// lock, so a concurrent expansion/migration cannot be observed mid-write.
func (n *Node) Children() (NodePtr, int) {
	n.childLock.RLock()
	defer n.childLock.RUnlock()
	return n.childrenPtr, n.NumActions()
}

// PublishChildren stores the children pointer and count under the write
// lock; the count store happens last (in this caller's lock scope) and
// any reader that observes NumActions()>0 via the matching RLock is
// guaranteed to see the fully written children block, since all writes
// to those slots happened-before this call while the writer held the
// only handle to the pointer.
func (n *Node) PublishChildren(ptr NodePtr, count int) {
	n.childLock.Lock()
	n.childrenPtr = ptr
	n.numActions.Store(int32(count))
	n.childLock.Unlock()
}

// ClearActions removes the children pointer, used when a cross-half link
// is invalidated by a half clear.
func (n *Node) ClearActions() {
	n.childLock.Lock()
	n.childrenPtr = NullPtr
	n.numActions.Store(0)
	n.childLock.Unlock()
}

// Lock/Unlock expose the write lock directly for perform_one's
// first-visit serialisation (§4.5 step 4d: "optionally hold the child's
// action-write-lock when the child has zero visits").
func (n *Node) Lock()   { n.childLock.Lock() }
func (n *Node) Unlock() { n.childLock.Unlock() }

// CopyFrom copies another node's statistics and metadata into n, used by
// cross-half migration and by the root copy-across on half flip. The
// children pointer itself is copied by the caller (Tree.copyNodeAcross)
// after this, under both nodes' write locks.
func (n *Node) CopyFrom(o *Node) {
	n.threads.Store(o.threads.Load())
	n.parentMove.Store(o.parentMove.Load())
	n.policy.Store(o.policy.Load())
	n.state.Store(o.state.Load())
	n.gini.Store(o.gini.Load())
	n.visits.Store(o.visits.Load())
	n.q.Store(o.q.Load())
	n.sqQ.Store(o.sqQ.Load())
}

// Update folds a backpropagated result into this node's running mean and
// mean-of-squares, returning the new Q — the fixed-point analogue of
// Node::update in tree/node.rs.
func (n *Node) Update(result float32) float32 {
	r := float64(result)
	v := float64(n.visits.Add(1) - 1)

	q := (n.q64()*v + r) / (v + 1.0)
	sq := (n.sqQ64()*v + r*r) / (v + 1.0)

	n.q.Store(uint32(q * fixedScale))
	n.sqQ.Store(uint32(sq * fixedScale))

	return float32(q)
}
