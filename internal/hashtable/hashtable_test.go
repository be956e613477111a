package hashtable

import "testing"

func TestNewRoundsCapacityToPowerOfTwo(t *testing.T) {
	cases := map[int]int{0: 1, 1: 1, 2: 2, 3: 2, 5: 4, 1000: 512, 1024: 1024}
	for in, want := range cases {
		if got := New(in).Len(); got != want {
			t.Errorf("New(%d).Len() = %d, want %d", in, got, want)
		}
	}
}

func TestPushThenGetRoundTrips(t *testing.T) {
	tbl := New(256)
	hash := uint64(0xABCD_1234_5678_9999)

	tbl.Push(hash, 0.75)

	entry, ok := tbl.Get(hash)
	if !ok {
		t.Fatalf("expected a hit after push")
	}
	if diff := entry.Q() - 0.75; diff > 1e-3 || diff < -1e-3 {
		t.Fatalf("Q() = %v, want ~0.75", entry.Q())
	}
}

func TestGetMissesOnKeyCollisionAcrossSlots(t *testing.T) {
	tbl := New(4) // tiny table, collisions guaranteed on distinct keys
	// Two different hashes that map to the same slot but carry distinct
	// truncated keys: only the most recently pushed one should hit.
	var a, b uint64 = 0x0001_0000_0000_0000, 0x0002_0000_0000_0000

	tbl.Push(a, 0.1)
	if _, ok := tbl.Get(b); ok {
		t.Fatalf("expected a miss for a hash never pushed")
	}

	tbl.Push(b, 0.9)
	if _, ok := tbl.Get(a); ok {
		t.Fatalf("always-replace table should no longer report a for the same slot")
	}
	entry, ok := tbl.Get(b)
	if !ok || entry.Q() < 0.89 {
		t.Fatalf("expected the most recent push to be visible, got %+v ok=%v", entry, ok)
	}
}

func TestPushClampsOutOfRangeQ(t *testing.T) {
	tbl := New(16)
	hash := uint64(0x1111_2222_3333_4444)

	tbl.Push(hash, 5.0)
	if e, _ := tbl.Get(hash); e.Q() > 1.0 {
		t.Fatalf("Q() = %v, want clamped to 1.0", e.Q())
	}

	tbl.Push(hash, -5.0)
	if e, _ := tbl.Get(hash); e.Q() < 0.0 {
		t.Fatalf("Q() = %v, want clamped to 0.0", e.Q())
	}
}

func TestClearRemovesAllEntries(t *testing.T) {
	tbl := New(64)
	hash := uint64(0xDEAD_BEEF_0000_0001)
	tbl.Push(hash, 0.5)

	tbl.Clear()

	if _, ok := tbl.Get(hash); ok {
		t.Fatalf("expected a miss after Clear")
	}
	if hf := tbl.Hashfull(); hf != 0 {
		t.Fatalf("Hashfull() = %d after Clear, want 0", hf)
	}
}

func TestHashfullTracksOccupancy(t *testing.T) {
	// 1024 is already a power of two, so the table really has ~1000 slots
	// (New(1000) would round down to 512).
	tbl := New(1024)
	for i := 0; i < 250; i++ {
		tbl.Push(uint64(i)<<48|uint64(i), 0.5)
	}
	hf := tbl.Hashfull()
	if hf < 100 || hf > 400 {
		t.Fatalf("Hashfull() = %d, expected roughly 250/1000 scale", hf)
	}
}
