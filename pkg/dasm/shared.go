package dasm

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Voskan/dasm-cache/internal/arena"
	"github.com/Voskan/dasm-cache/internal/u128"
	"go.uber.org/zap"
)

// Slots is the fixed table width (spec.md §3).
const Slots = 1024

// stripe owns a slice of slots' synchronization and memory: a single
// rw-lock, the arena nodes are allocated from, and a free-node stack for
// recycling evicted nodes.
type stripe struct {
	mu sync.RWMutex

	arena *arena.Arena
	free  *node // singly-linked free stack, through node.free

	slots []slot // this stripe's share of the 1024 slots
}

// allocNode pops from the free stack or allocates fresh from the stripe
// arena. Caller must hold mu for write.
func (st *stripe) allocNode(hash u128.U128, params Params) *node {
	if st.free != nil {
		n := st.free
		st.free = n.free
		n.free = nil
		n.reset(st.arena, hash, params)
		return n
	}
	n := arena.NewValue[node](st.arena)
	n.reset(st.arena, hash, params)
	return n
}

// release pushes n onto the free stack. Caller must hold mu for write.
func (st *stripe) release(n *node) {
	n.next, n.prev = nil, nil
	n.free = st.free
	st.free = n
}

// Shared is the process-wide cache table (spec.md §9's "global state",
// modeled here as an explicit object rather than a package-level
// singleton, per the Open Question resolution in DESIGN.md).
type Shared struct {
	stripes []*stripe

	userClock userClock

	ring *requestRing

	cfg config

	// Plain atomic counters mirroring the Prometheus sink, for embedders
	// that want a cheap in-process snapshot without scraping /metrics
	// (consumed by Snapshot, in turn by cmd/dasm-cache-inspect).
	hits, misses, created, evicted, requeued, commits, timeouts atomic.Uint64

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// stripeCount returns min(Slots, logical core count), per spec.md §3.
func stripeCount() int {
	n := runtime.NumCPU()
	if n > Slots {
		n = Slots
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Init constructs the shared table and starts its parse workers and
// evictor/detector goroutine. Callers must eventually call Close.
func Init(opts ...Option) *Shared {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	nStripes := stripeCount()
	s := &Shared{
		stripes: make([]*stripe, nStripes),
		ring:    newRequestRing(cfg.ringSizeBytes),
		cfg:     cfg,
		stopCh:  make(chan struct{}),
	}

	for i := range s.stripes {
		s.stripes[i] = &stripe{
			arena: arena.New(),
			slots: make([]slot, 0), // sized below; addressed by local index slotIdx/nStripes
		}
	}
	// Every stripe actually owns every slot index s such that
	// slotIdx % nStripes == stripeIdx, but slot storage itself is kept
	// in one flat per-stripe slice indexed by slotIdx/nStripes for
	// locality, matching the teacher's shard-owns-its-keyspace layout.
	slotsPer := (Slots + nStripes - 1) / nStripes
	for i := range s.stripes {
		s.stripes[i].slots = make([]slot, slotsPer)
	}

	for i := 0; i < cfg.parseWorkers; i++ {
		s.wg.Add(1)
		go s.parseWorkerLoop(i)
	}

	s.wg.Add(1)
	go s.evictorLoop()

	s.cfg.logger.Info("dasm cache initialized",
		zap.Int("stripes", nStripes),
		zap.Int("parse_workers", cfg.parseWorkers),
		zap.Uint64("ring_size_bytes", cfg.ringSizeBytes),
	)
	return s
}

// Close stops all background goroutines. Idempotent is not guaranteed;
// call once.
func (s *Shared) Close() {
	close(s.stopCh)
	s.ring.closeForShutdown()
	s.wg.Wait()
}

func slotIndex(hash u128.U128) int {
	return int(hash.High % Slots)
}

func (s *Shared) stripeFor(slotIdx int) (st *stripe, localSlot, stripeIdx int) {
	n := len(s.stripes)
	stripeIdx = slotIdx % n
	localSlot = slotIdx / n
	return s.stripes[stripeIdx], localSlot, stripeIdx
}

func nowMicros() int64 {
	return time.Now().UnixMicro()
}
