package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Voskan/dasm-cache/pkg/dasm"
)

type stubRDI struct{ id uint64 }

func (r stubRDI) Identity() uint64 { return r.id }
func (stubRDI) LineForVoff(uint64) (dasm.SourceFile, dasm.Line, bool) {
	return dasm.SourceFile{}, dasm.Line{}, false
}
func (stubRDI) ProcedureForVoff(uint64) (string, bool) { return "", false }

// countingParser counts how many times Parse actually ran, so tests can
// assert singleflight deduplication collapsed concurrent callers into one
// real parse.
type countingParser struct {
	calls atomic.Int64
	delay time.Duration
}

func (p *countingParser) Parse(ctx context.Context, key dasm.DbgiKey) (dasm.RDI, bool) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return dasm.NilRDI, false
		}
	}
	return stubRDI{id: 7}, true
}

func TestRDIFromKeyCacheHit(t *testing.T) {
	parser := &countingParser{}
	s := NewDebugInfoStore(16, parser)
	key := dasm.DbgiKey{Path: "a.pdb", MinTimestamp: 1}

	rdi1 := s.RDIFromKey(context.Background(), key, time.Now().Add(time.Second))
	if rdi1 == dasm.NilRDI {
		t.Fatal("expected a parsed RDI on first call")
	}
	rdi2 := s.RDIFromKey(context.Background(), key, time.Now().Add(time.Second))
	if rdi2 == dasm.NilRDI {
		t.Fatal("expected a cache hit on second call")
	}
	if parser.calls.Load() != 1 {
		t.Fatalf("expected exactly one real parse, got %d", parser.calls.Load())
	}
}

func TestRDIFromKeyMissReturnsNilRDI(t *testing.T) {
	s := NewDebugInfoStore(16, nil) // nil parser falls back to NopParser
	key := dasm.DbgiKey{Path: "missing.pdb"}
	rdi := s.RDIFromKey(context.Background(), key, time.Now().Add(time.Second))
	if rdi != dasm.NilRDI {
		t.Fatal("expected NilRDI when the parser reports absence")
	}
}

// TestRDIFromKeyDeduplicatesConcurrentParses covers the singleflight
// guarantee: many goroutines racing to parse the same key only trigger one
// real Parse call.
func TestRDIFromKeyDeduplicatesConcurrentParses(t *testing.T) {
	parser := &countingParser{delay: 20 * time.Millisecond}
	s := NewDebugInfoStore(16, parser)
	key := dasm.DbgiKey{Path: "shared.pdb", MinTimestamp: 5}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			rdi := s.RDIFromKey(context.Background(), key, time.Now().Add(time.Second))
			if rdi == dasm.NilRDI {
				t.Error("expected every concurrent caller to see the parsed RDI")
			}
		}()
	}
	wg.Wait()

	if parser.calls.Load() != 1 {
		t.Fatalf("expected singleflight to collapse to one parse, got %d", parser.calls.Load())
	}
}

// TestRDIFromKeyZeroDeadlineBlocksForeverInsteadOfExpiring covers the
// max_U64/"block forever" sentinel: a zero-value deadline must not be
// treated as "already expired". A parser slower than any real timeout would
// tolerate must still be allowed to finish and return its result.
func TestRDIFromKeyZeroDeadlineBlocksForeverInsteadOfExpiring(t *testing.T) {
	parser := &countingParser{delay: 50 * time.Millisecond}
	s := NewDebugInfoStore(16, parser)
	key := dasm.DbgiKey{Path: "slow.pdb", MinTimestamp: 1}

	rdi := s.RDIFromKey(context.Background(), key, time.Time{})
	if rdi == dasm.NilRDI {
		t.Fatal("expected a zero-value deadline to mean \"no timeout\", not an instantly-expired context")
	}
	if parser.calls.Load() != 1 {
		t.Fatalf("expected exactly one parse to run to completion, got %d", parser.calls.Load())
	}
}

// TestRDIFromKeyDistinctKeysDoNotCollide ensures the hash index distinguishes
// debug-info keys by both path and timestamp.
func TestRDIFromKeyDistinctKeysDoNotCollide(t *testing.T) {
	parser := &countingParser{}
	s := NewDebugInfoStore(16, parser)

	k1 := dasm.DbgiKey{Path: "a.pdb", MinTimestamp: 1}
	k2 := dasm.DbgiKey{Path: "a.pdb", MinTimestamp: 2}

	s.RDIFromKey(context.Background(), k1, time.Now().Add(time.Second))
	s.RDIFromKey(context.Background(), k2, time.Now().Add(time.Second))

	if parser.calls.Load() != 2 {
		t.Fatalf("expected two distinct parses for differing timestamps, got %d", parser.calls.Load())
	}
}
