package dasm

// debug.go gives embedders something to expose behind a
// /debug/dasm-cache/snapshot HTTP handler, consumed by
// cmd/dasm-cache-inspect. It walks the stripes the same way
// evictor.go's sweep does, but read-only and without side effects.

// Snapshot is a point-in-time summary of the table's occupancy, in-flight
// work, and cumulative counters.
type Snapshot struct {
	Stripes      int    `json:"stripes"`
	Slots        int    `json:"slots"`
	Occupied     int    `json:"occupied"`
	Working      int    `json:"working"`
	ChangeGen    uint64 `json:"change_gen"`
	UserClockIdx uint64 `json:"user_clock_idx"`

	LookupHits   uint64 `json:"lookup_hits_total"`
	LookupMisses uint64 `json:"lookup_misses_total"`
	NodesCreated uint64 `json:"nodes_created_total"`
	NodesEvicted uint64 `json:"nodes_evicted_total"`
	NodesRequeued uint64 `json:"nodes_requeued_total"`
	WorkerCommits uint64 `json:"worker_commits_total"`
	EnqueueTimeouts uint64 `json:"ring_enqueue_timeouts_total"`
}

// Snapshot walks every stripe under its read lock and reports aggregate
// occupancy. It never blocks on the evictor or worker goroutines beyond
// the usual per-stripe RWMutex contention.
func (s *Shared) Snapshot() Snapshot {
	snap := Snapshot{
		Stripes:      len(s.stripes),
		Slots:        Slots,
		ChangeGen:    s.cfg.fileWatch.ChangeGen(),
		UserClockIdx: s.UserClockIdx(),

		LookupHits:      s.hits.Load(),
		LookupMisses:    s.misses.Load(),
		NodesCreated:    s.created.Load(),
		NodesEvicted:    s.evicted.Load(),
		NodesRequeued:   s.requeued.Load(),
		WorkerCommits:   s.commits.Load(),
		EnqueueTimeouts: s.timeouts.Load(),
	}
	for _, st := range s.stripes {
		st.mu.RLock()
		for i := range st.slots {
			for n := st.slots[i].first; n != nil; n = n.next {
				snap.Occupied++
				if n.isWorking.Load() != 0 {
					snap.Working++
				}
			}
		}
		st.mu.RUnlock()
	}
	return snap
}
