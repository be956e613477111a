// Package hashtable implements the lock-free fixed-size table of search
// statistics keyed by Zobrist hash (C4). Every slot is a single 64-bit
// atomic word packing a truncated key, an advisory visit count, and a
// scaled mean value, so a load or store never tears.
//
// Grounded on _examples/original_source/src/tree/hash.rs (HashEntry /
// HashTable), translated from Rust's atomic-transmute trick into Go's
// explicit bit-packing since Go forbids reinterpreting a struct as an
// atomic word.
package hashtable

import "sync/atomic"

// entry packs (key uint16, visits int32, q uint16) into a uint64:
//
//	bits 0-15:  key   (top 16 bits of the full Zobrist hash)
//	bits 16-47: visits (advisory, not consulted during selection)
//	bits 48-63: q      (mean value scaled to uint16)
func pack(key uint16, visits int32, q uint16) uint64 {
	return uint64(key) | uint64(uint32(visits))<<16 | uint64(q)<<48
}

func unpackKey(w uint64) uint16   { return uint16(w) }
func unpackVisits(w uint64) int32 { return int32(uint32(w >> 16)) }
func unpackQ(w uint64) uint16     { return uint16(w >> 48) }

// Entry is the decoded view of a hash table slot returned by Get.
type Entry struct {
	Visits int32
	q      uint16
}

// Q returns the stored mean value in [0, 1].
func (e Entry) Q() float32 {
	return float32(e.q) / float32(0xFFFF)
}

func keyOf(hash uint64) uint16 {
	return uint16(hash >> 48)
}

// Table is the fixed-size, power-of-two-sliced atomic hash table.
type Table struct {
	slots []atomic.Uint64
}

// New creates a table with at most `size` slots: size rounded down to a
// power of two (minimum 1). Capacity is typically derived as a fraction
// of the configured memory budget (see internal/arena.Tree).
func New(size int) *Table {
	if size < 1 {
		size = 1
	}
	n := 1
	for n*2 <= size {
		n *= 2
	}
	return &Table{slots: make([]atomic.Uint64, n)}
}

// Len returns the slot count.
func (t *Table) Len() int { return len(t.slots) }

// Clear resets every slot to empty. Not safe to call concurrently with
// probes/pushes from search threads; callers (ucinewgame, resize) must
// ensure the search is stopped first.
func (t *Table) Clear() {
	for i := range t.slots {
		t.slots[i].Store(0)
	}
}

func (t *Table) index(hash uint64) uint64 {
	return hash & uint64(len(t.slots)-1)
}

// Get probes the table for hash, returning the entry and true on a key
// match. A key mismatch (including an empty slot, whose key is 0 and
// almost never matches) is reported as a miss, never an error — stale or
// colliding entries are simply treated as absent.
func (t *Table) Get(hash uint64) (Entry, bool) {
	w := t.slots[t.index(hash)].Load()
	if unpackKey(w) != keyOf(hash) {
		return Entry{}, false
	}
	return Entry{Visits: unpackVisits(w), q: unpackQ(w)}, true
}

// Push stores (hash, q) unconditionally — always-replace, no generation
// counter. The stored visit count is always 1; this slot's own prior
// visit count is not tracked separately from the node's.
func (t *Table) Push(hash uint64, q float32) {
	if q < 0 {
		q = 0
	} else if q > 1 {
		q = 1
	}
	w := pack(keyOf(hash), 1, uint16(q*float32(0xFFFF)))
	t.slots[t.index(hash)].Store(w)
}

// Hashfull reports per-mille occupancy for the `info ... hashfull`
// report, sampling the first 1000 slots like a standard UCI engine
// rather than scanning the whole table on every report.
func (t *Table) Hashfull() int {
	n := len(t.slots)
	sample := n
	if sample > 1000 {
		sample = 1000
	}
	used := 0
	for i := 0; i < sample; i++ {
		if t.slots[i].Load() != 0 {
			used++
		}
	}
	return used * 1000 / sample
}
