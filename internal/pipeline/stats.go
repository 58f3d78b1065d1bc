package pipeline

import "sync/atomic"

// Stats counts pipeline activity. All fields are safe for concurrent update.
type Stats struct {
	payloads      atomic.Int64
	candidates    atomic.Int64
	commands      atomic.Int64
	committed     atomic.Int64
	dupMemory     atomic.Int64
	dupDurable    atomic.Int64
	storeDropped  atomic.Int64
	sinkErrors    atomic.Int64
	pendingMerges atomic.Int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Payloads      int64 `json:"payloads"`
	Candidates    int64 `json:"candidates"`
	Commands      int64 `json:"commands"`
	Committed     int64 `json:"committed"`
	DupMemory     int64 `json:"duplicates_memory"`
	DupDurable    int64 `json:"duplicates_durable"`
	StoreDropped  int64 `json:"store_dropped"`
	SinkErrors    int64 `json:"sink_errors"`
	PendingMerges int64 `json:"pending_merges"`
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Payloads:      s.payloads.Load(),
		Candidates:    s.candidates.Load(),
		Commands:      s.commands.Load(),
		Committed:     s.committed.Load(),
		DupMemory:     s.dupMemory.Load(),
		DupDurable:    s.dupDurable.Load(),
		StoreDropped:  s.storeDropped.Load(),
		SinkErrors:    s.sinkErrors.Load(),
		PendingMerges: s.pendingMerges.Load(),
	}
}
