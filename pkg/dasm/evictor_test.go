package dasm_test

import (
	"context"
	"testing"
	"time"

	"github.com/Voskan/dasm-cache/internal/u128"
	"github.com/Voskan/dasm-cache/pkg/dasm"
)

// TestIdleNodeIsEvicted covers spec.md §4.6's eviction rule: once a node's
// scope ref count is zero and both idle thresholds have elapsed, the sweep
// removes it, bumping the nodes-evicted counter.
func TestIdleNodeIsEvicted(t *testing.T) {
	s, blobs := newShared(t, dasm.WithEvictThresholds(0, 0), dasm.WithSweepInterval(5*time.Millisecond))
	code := []byte{0x00, 0x05, 0, 0, 0xFF, 0, 0, 0}
	hash := blobs.SubmitData(u128.U128{Low: 5}, code)
	params := dasm.Params{Arch: dasm.ArchX64}

	sc := dasm.ScopeOpen()
	waitForInfo(t, s, sc, hash, params)
	s.ScopeClose(sc) // drop the pin so the node becomes idle

	time.Sleep(50 * time.Millisecond) // let the evictor sweep it away

	snap := s.Snapshot()
	if snap.NodesEvicted == 0 {
		t.Fatal("expected at least one eviction to have been counted")
	}
}

// fakeRDI is a minimal non-nil dasm.RDI: the worker only needs it to be
// distinguishable from dasm.NilRDI to mark a node's changeGen on commit.
type fakeRDI struct{}

func (fakeRDI) Identity() uint64 { return 1 }
func (fakeRDI) LineForVoff(uint64) (dasm.SourceFile, dasm.Line, bool) {
	return dasm.SourceFile{}, dasm.Line{}, false
}
func (fakeRDI) ProcedureForVoff(uint64) (string, bool) { return "", false }

type fakeDbgiStore struct{}

func (fakeDbgiStore) RDIFromKey(context.Context, dasm.DbgiKey, time.Time) dasm.RDI {
	return fakeRDI{}
}

// countingFileWatch is a minimal dasm.FileWatch whose ChangeGen only moves
// when Bump is called.
type countingFileWatch struct {
	gen uint64
}

func (f *countingFileWatch) Bump() { f.gen++ }

func (f *countingFileWatch) ChangeGen() uint64 { return f.gen }

func (f *countingFileWatch) KeyFromPath(string) u128.U128 { return u128.Zero }

func (f *countingFileWatch) PropertiesFromPath(string) dasm.FileProperties {
	return dasm.FileProperties{}
}

// TestStaleChangeGenTriggersRequeue covers spec.md §4.6's re-enqueue rule: a
// node committed with a debug-info-backed annotation records the change_gen
// it was built against; once the filesystem watch's generation moves past
// that and the retry thresholds have elapsed, the sweep re-enqueues it.
func TestStaleChangeGenTriggersRequeue(t *testing.T) {
	fw := &countingFileWatch{}
	fw.Bump() // gen 1, so the worker's first commit stamps changeGen=1

	s, blobs := newShared(t,
		dasm.WithFileWatch(fw),
		dasm.WithDebugInfoStore(fakeDbgiStore{}),
		dasm.WithRetryThresholds(0, 0),
		dasm.WithSweepInterval(5*time.Millisecond),
	)
	code := []byte{0x00, 0x06, 0, 0, 0xFF, 0, 0, 0}
	hash := blobs.SubmitData(u128.U128{Low: 6}, code)
	params := dasm.Params{
		Arch:       dasm.ArchX64,
		StyleFlags: dasm.StyleSourceFilesNames,
		DbgiKey:    dasm.DbgiKey{Path: "C:/src/main.c"},
	}

	sc := dasm.ScopeOpen()
	defer s.ScopeClose(sc)
	waitForInfo(t, s, sc, hash, params)

	fw.Bump() // gen 2: the committed node's changeGen (1) is now stale

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Snapshot().NodesRequeued > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("expected the sweep to re-enqueue the node with a stale change_gen")
}
