package dedup

// DefaultRecentCapacity bounds the in-process recent set.
const DefaultRecentCapacity = 1000

// RecentSet is a bounded set of recently seen signatures kept in insertion
// order. It absorbs bursts of identical text arriving within the same
// polling tick across capture channels, without a store round-trip.
//
// Eviction is approximate, not LRU: when the cap is exceeded the oldest half
// is discarded in one sweep.
//
// Not safe for concurrent use; the pipeline guards it together with the
// pending-command slot.
type RecentSet struct {
	capacity int
	seen     map[string]struct{}
	order    []string
}

// NewRecentSet creates a set holding at most capacity entries; a
// non-positive capacity selects the default.
func NewRecentSet(capacity int) *RecentSet {
	if capacity <= 0 {
		capacity = DefaultRecentCapacity
	}
	return &RecentSet{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
	}
}

// Seen reports whether key is already present, inserting it when it is not.
func (r *RecentSet) Seen(key string) bool {
	if _, ok := r.seen[key]; ok {
		return true
	}
	r.seen[key] = struct{}{}
	r.order = append(r.order, key)

	if len(r.order) > r.capacity {
		drop := len(r.order) / 2
		for _, old := range r.order[:drop] {
			delete(r.seen, old)
		}
		r.order = append(r.order[:0:0], r.order[drop:]...)
	}
	return false
}

// Len returns the current number of entries.
func (r *RecentSet) Len() int {
	return len(r.order)
}
