package dedup

import (
	"fmt"
	"testing"
)

func TestRecentSet_SeenInserts(t *testing.T) {
	r := NewRecentSet(10)
	if r.Seen("a") {
		t.Error("first sighting reported as seen")
	}
	if !r.Seen("a") {
		t.Error("second sighting not reported as seen")
	}
	if r.Len() != 1 {
		t.Errorf("len = %d, want 1", r.Len())
	}
}

func TestRecentSet_EvictsOldestHalf(t *testing.T) {
	r := NewRecentSet(10)
	for i := 0; i < 11; i++ {
		r.Seen(fmt.Sprintf("k%02d", i))
	}

	// Crossing the cap drops the oldest half in one sweep.
	if r.Len() != 6 {
		t.Fatalf("len after eviction = %d, want 6", r.Len())
	}
	if r.Seen("k00") {
		t.Error("evicted key still reported as seen")
	}
	if !r.Seen("k10") {
		t.Error("youngest key lost during eviction")
	}
}

func TestRecentSet_DefaultCapacity(t *testing.T) {
	r := NewRecentSet(0)
	if r.capacity != DefaultRecentCapacity {
		t.Errorf("capacity = %d, want %d", r.capacity, DefaultRecentCapacity)
	}
}
