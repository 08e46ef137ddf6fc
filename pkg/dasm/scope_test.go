package dasm_test

import (
	"testing"
	"time"

	"github.com/Voskan/dasm-cache/internal/u128"
	"github.com/Voskan/dasm-cache/pkg/dasm"
)

// TestScopeCloseReleasesRefCount exercises the pin/unpin cycle: touching a
// node via a lookup bumps its scope ref count, and ScopeClose must release
// every touch it accumulated without panicking or double-releasing.
func TestScopeCloseReleasesRefCount(t *testing.T) {
	s, blobs := newShared(t)
	code := []byte{0x00, 0x03, 0, 0, 0xFF, 0, 0, 0}
	hash := blobs.SubmitData(u128.U128{Low: 3}, code)
	params := dasm.Params{Arch: dasm.ArchX64}

	sc := dasm.ScopeOpen()
	info := waitForInfo(t, s, sc, hash, params)
	if info.Empty() {
		t.Fatal("expected a warm hit before closing the scope")
	}

	// Touching the same node again through a second lookup within the same
	// scope must not panic on close even though the node was pinned twice.
	s.InfoFromHashParams(sc, hash, params)

	s.ScopeClose(sc)
}

// TestScopeCloseAfterNodeEvicted covers the documented "node may have been
// evicted by the time the scope closes" case: a scope that pinned a node,
// then released it (ScopeClose'd) so it becomes evictable, still closes
// harmlessly later even after the node is long gone — closing never
// re-examines the same touch twice.
func TestScopeCloseAfterNodeEvicted(t *testing.T) {
	s, blobs := newShared(t, dasm.WithEvictThresholds(0, 0), dasm.WithSweepInterval(5*time.Millisecond))
	code := []byte{0x00, 0x04, 0, 0, 0xFF, 0, 0, 0}
	hash := blobs.SubmitData(u128.U128{Low: 4}, code)
	params := dasm.Params{Arch: dasm.ArchX64}

	sc := dasm.ScopeOpen()
	waitForInfo(t, s, sc, hash, params)
	s.ScopeClose(sc) // releases the pin, node becomes idle and evictable

	// Give the evictor a chance to sweep the now-idle node away.
	time.Sleep(50 * time.Millisecond)

	// A fresh lookup against the same (hash, params) must behave like any
	// other cold miss (it either finds nothing and re-enqueues, or still
	// finds the not-yet-evicted node) — no panic either way.
	sc2 := dasm.ScopeOpen()
	s.InfoFromHashParams(sc2, hash, params)
	s.ScopeClose(sc2)
}
