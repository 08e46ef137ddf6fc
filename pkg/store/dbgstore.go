package store

import (
	"context"
	"encoding/binary"
	"hash/maphash"
	"strconv"
	"sync"
	"time"
	"unsafe"

	"github.com/Voskan/dasm-cache/internal/clockpro"
	"github.com/Voskan/dasm-cache/pkg/dasm"
	"golang.org/x/sync/singleflight"
)

// Parser produces a dasm.RDI for a debug-info key. The real PDB/DWARF/ODB
// parser is explicitly out of scope — callers supply their own via
// NewDebugInfoStore, or pass nil to fall back to NopParser.
type Parser interface {
	Parse(ctx context.Context, key dasm.DbgiKey) (dasm.RDI, bool)
}

// NopParser never finds debug info.
type NopParser struct{}

func (NopParser) Parse(context.Context, dasm.DbgiKey) (dasm.RDI, bool) { return dasm.NilRDI, false }

// entry mirrors internal/clockpro's private entry[K,V] field prefix so
// Clock.Insert/Remove can reinterpret *entry via unsafe.Pointer — the same
// layout trick pkg/cache.go's shard uses for the generic core cache.
type entry struct {
	h      uint64
	vptr   unsafe.Pointer // *dasm.RDI
	key    dasm.DbgiKey
	weight uint32
	genID  uint32
	state  uint8
}

// DebugInfoStore is a capacity-bound cache of parsed debug info: the
// reference implementation of dasm.DebugInfoStore. Concurrent parses of the
// same key are deduplicated via singleflight so a slow parse of a large
// binary only happens once no matter how many worker goroutines ask for it
// at once; eviction under capacity pressure uses CLOCK-Pro.
type DebugInfoStore struct {
	mu     sync.Mutex
	seed   maphash.Seed
	index  map[uint64]*entry
	clock  *clockpro.Clock[dasm.DbgiKey, dasm.RDI]
	parser Parser
	group  singleflight.Group
}

// NewDebugInfoStore constructs a store holding up to maxEntries parsed
// debug-info objects. Weight is a flat 1 per entry — parsed debug info size
// is opaque behind the RDI interface, so capacity here counts objects, not
// bytes.
func NewDebugInfoStore(maxEntries int64, parser Parser) *DebugInfoStore {
	if parser == nil {
		parser = NopParser{}
	}
	s := &DebugInfoStore{
		seed:   maphash.MakeSeed(),
		index:  make(map[uint64]*entry),
		parser: parser,
	}
	s.clock = clockpro.NewClock[dasm.DbgiKey, dasm.RDI](maxEntries, func(dasm.RDI) int { return 1 }, s.onEvict)
	return s
}

// RDIFromKey implements dasm.DebugInfoStore. On a cache hit it returns
// immediately; on a miss it parses (deduplicated across concurrent callers),
// falling back to dasm.NilRDI on timeout or parse failure — matching
// spec.md §7's "debug info absent" degrade path. A zero-value deadline means
// "block forever" (the original's max_U64 convention); any other deadline
// bounds the parse with context.WithTimeout.
func (s *DebugInfoStore) RDIFromKey(ctx context.Context, key dasm.DbgiKey, deadline time.Time) dasm.RDI {
	h := s.hash(key)

	s.mu.Lock()
	if ent, ok := s.index[h]; ok && ent.key.Equal(key) {
		rdi := *(*dasm.RDI)(ent.vptr)
		clockpro.SetReferenced(&ent.state)
		s.mu.Unlock()
		return rdi
	}
	s.mu.Unlock()

	parseCtx := ctx
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		parseCtx, cancel = context.WithTimeout(ctx, time.Until(deadline))
		defer cancel()
	}

	k := strconv.FormatUint(h, 16)
	v, err, _ := s.group.Do(k, func() (any, error) {
		rdi, ok := s.parser.Parse(parseCtx, key)
		if !ok {
			return dasm.NilRDI, nil
		}
		s.store(h, key, rdi)
		return rdi, nil
	})
	if err != nil || v == nil {
		return dasm.NilRDI
	}
	return v.(dasm.RDI)
}

func (s *DebugInfoStore) store(h uint64, key dasm.DbgiKey, rdi dasm.RDI) {
	box := new(dasm.RDI)
	*box = rdi

	ent := &entry{
		h:      h,
		vptr:   unsafe.Pointer(box),
		key:    key,
		weight: 1,
	}

	s.mu.Lock()
	s.index[h] = ent
	s.mu.Unlock()

	s.clock.Insert(unsafe.Pointer(ent))
}

func (s *DebugInfoStore) onEvict(key dasm.DbgiKey, _ dasm.RDI, _ clockpro.EvictionReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.index, s.hash(key))
}

func (s *DebugInfoStore) hash(key dasm.DbgiKey) uint64 {
	var h maphash.Hash
	h.SetSeed(s.seed)
	h.WriteString(key.Path)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key.MinTimestamp)
	h.Write(buf[:])
	return h.Sum64()
}
