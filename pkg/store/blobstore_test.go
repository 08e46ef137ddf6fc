package store

import (
	"testing"
	"time"

	"github.com/Voskan/dasm-cache/internal/u128"
)

func TestSubmitDataRoundTrip(t *testing.T) {
	b := NewBlobStore(1<<20, time.Minute)
	data := []byte("hello, dasm-cache")
	hash := b.SubmitData(u128.U128{Low: 1}, data)

	if hash.IsZero() {
		t.Fatal("expected a non-zero hash for non-empty data")
	}

	got := b.DataFromHash(hash)
	if string(got) != string(data) {
		t.Fatalf("round-trip mismatch: got %q want %q", got, data)
	}

	// The returned slice must be an independent copy, not aliasing the
	// store's internal arena (collab.go's contract).
	got[0] = 'X'
	again := b.DataFromHash(hash)
	if string(again) != string(data) {
		t.Fatal("mutating a returned slice must not affect the stored blob")
	}
}

func TestDataFromHashMissReturnsNil(t *testing.T) {
	b := NewBlobStore(1<<20, time.Minute)
	if got := b.DataFromHash(u128.U128{Low: 42}); got != nil {
		t.Fatalf("expected nil for an absent hash, got %v", got)
	}
}

func TestHashFromDataIgnoresStorage(t *testing.T) {
	b := NewBlobStore(1<<20, time.Minute)
	data := []byte("not stored")
	hash := b.HashFromData(data)
	if b.DataFromHash(hash) != nil {
		t.Fatal("HashFromData must not store anything")
	}
}

// TestHashFromKeyRewind covers the one-level rewind history: rewind 0 is
// always the newest submission under a key, rewind 1 the one before it.
func TestHashFromKeyRewind(t *testing.T) {
	b := NewBlobStore(1<<20, time.Minute)
	key := u128.U128{Low: 7}

	first := b.SubmitData(key, []byte("v1"))
	if got := b.HashFromKey(key, 0); !got.Equal(first) {
		t.Fatalf("rewind 0 after first submit: got %s want %s", got, first)
	}
	if got := b.HashFromKey(key, 1); !got.IsZero() {
		t.Fatalf("rewind 1 before a second submit must be zero, got %s", got)
	}

	second := b.SubmitData(key, []byte("v2"))
	if got := b.HashFromKey(key, 0); !got.Equal(second) {
		t.Fatalf("rewind 0 after second submit: got %s want %s", got, second)
	}
	if got := b.HashFromKey(key, 1); !got.Equal(first) {
		t.Fatalf("rewind 1 after second submit: got %s want %s", got, first)
	}
}

// TestHashFromKeyUnknownRewindIsZero covers rewind indices beyond the
// one-level history the store tracks.
func TestHashFromKeyUnknownRewindIsZero(t *testing.T) {
	b := NewBlobStore(1<<20, time.Minute)
	key := u128.U128{Low: 8}
	b.SubmitData(key, []byte("v1"))
	if got := b.HashFromKey(key, 2); !got.IsZero() {
		t.Fatalf("rewind 2 must be zero, got %s", got)
	}
}

// TestSubmitDataSameContentSameHash covers content-addressing: submitting
// identical bytes under different keys yields the same hash.
func TestSubmitDataSameContentSameHash(t *testing.T) {
	b := NewBlobStore(1<<20, time.Minute)
	data := []byte("identical bytes")
	h1 := b.SubmitData(u128.U128{Low: 10}, data)
	h2 := b.SubmitData(u128.U128{Low: 11}, data)
	if !h1.Equal(h2) {
		t.Fatalf("expected identical content to hash the same: %s vs %s", h1, h2)
	}
}

// TestGenerationRotationPurgesOldBlobs exercises the genring-backed bulk
// reclamation path: once enough distinct blobs are submitted to force a
// rotation, data belonging to the rotated-out generation is gone.
func TestGenerationRotationPurgesOldBlobs(t *testing.T) {
	const capBytes = 256
	b := NewBlobStore(capBytes, time.Hour)

	firstData := make([]byte, 64)
	for i := range firstData {
		firstData[i] = byte(i)
	}
	firstHash := b.SubmitData(u128.U128{Low: 100}, firstData)
	if b.DataFromHash(firstHash) == nil {
		t.Fatal("expected the first blob to be present immediately after submit")
	}

	// Submit enough additional distinct blobs to exceed capBytes repeatedly
	// and force at least one rotation.
	var lastHash u128.U128
	for i := 0; i < 32; i++ {
		chunk := make([]byte, 64)
		for j := range chunk {
			chunk[j] = byte(i*31 + j)
		}
		lastHash = b.SubmitData(u128.U128{Low: uint64(200 + i)}, chunk)
	}

	if b.DataFromHash(lastHash) == nil {
		t.Fatal("expected the most recent blob to still be present")
	}
	if b.DataFromHash(firstHash) != nil {
		t.Fatal("expected the first blob's generation to have rotated out")
	}
}
