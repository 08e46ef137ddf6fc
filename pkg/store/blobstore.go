// Package store provides reference implementations of the core cache's
// external collaborator contracts (pkg/dasm/collab.go): BlobStore,
// DebugInfoStore, TextStore and FileWatch. None of these are part of
// spec.md's scope — the spec treats them as opaque collaborators — but a
// runnable system needs something behind the interfaces, and the teacher's
// generation/arena and CLOCK-Pro machinery are a natural fit for exactly
// this kind of store.
package store

import (
	"sync"
	"time"

	"github.com/Voskan/dasm-cache/internal/arena"
	"github.com/Voskan/dasm-cache/internal/genring"
	"github.com/Voskan/dasm-cache/internal/u128"
)

// blobRecord is one stored blob: its arena-owned bytes plus the generation
// that owns them, so BlobStore can purge entries when genring rotates a
// generation out from under them.
type blobRecord struct {
	bytes []byte
	genID uint32
}

// BlobStore is an in-memory, content-addressed blob store: the reference
// implementation of dasm.BlobStore. Submitted data ages out in bulk via
// internal/genring's generation rotation rather than being tracked
// per-blob: SubmitData rotates when the active generation exceeds its byte
// budget, which frees the oldest generation. Elapsed time alone never
// purges a blob.
type BlobStore struct {
	mu sync.RWMutex

	ring *genring.Ring[u128.U128, []byte]
	data map[u128.U128]blobRecord

	// current/previous implement the one-level "rewind" the blob store's
	// hash_from_key(key, rewind_idx) contract requires (spec.md §4.4):
	// rewind=0 is the newest submission under key, rewind=1 the one
	// before it.
	current  map[u128.U128]u128.U128
	previous map[u128.U128]u128.U128
}

// NewBlobStore constructs a BlobStore holding roughly capBytes live at a
// time. ttl must be positive; it does not drive rotation.
func NewBlobStore(capBytes int64, ttl time.Duration) *BlobStore {
	return &BlobStore{
		ring:     genring.New[u128.U128, []byte](capBytes, ttl),
		data:     make(map[u128.U128]blobRecord),
		current:  make(map[u128.U128]u128.U128),
		previous: make(map[u128.U128]u128.U128),
	}
}

// DataFromHash returns a copy of hash's bytes, or nil if absent. The copy
// is deliberate: the arena backing the stored bytes can be freed by a
// concurrent generation rotation, and dasm.BlobStore's contract (see
// collab.go) promises ordinary GC-owned memory to callers.
func (b *BlobStore) DataFromHash(hash u128.U128) []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.data[hash]
	if !ok {
		return nil
	}
	out := make([]byte, len(rec.bytes))
	copy(out, rec.bytes)
	return out
}

// HashFromKey returns the hash submitted under key at the given rewind
// depth (0 = newest, 1 = the submission before that), or the zero hash if
// there is no such submission.
func (b *BlobStore) HashFromKey(key u128.U128, rewindIdx int) u128.U128 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	switch rewindIdx {
	case 0:
		return b.current[key]
	case 1:
		return b.previous[key]
	default:
		return u128.Zero
	}
}

// SubmitData stores data under key's content hash, rotating it into
// key's rewind history, and returns the hash.
func (b *BlobStore) SubmitData(key u128.U128, data []byte) u128.U128 {
	hash := u128.HashBytes(data)

	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.ring.Active()
	buf := arena.AllocBytes(gen.Arena(), data)
	b.data[hash] = blobRecord{bytes: buf, genID: gen.ID()}

	if prev, ok := b.current[key]; ok && !prev.Equal(hash) {
		b.previous[key] = prev
	}
	b.current[key] = hash

	if b.ring.CheckRotationNeeded(int64(len(buf))) {
		b.rotate()
	}
	return hash
}

// HashFromData derives data's content hash without storing it.
func (b *BlobStore) HashFromData(data []byte) u128.U128 {
	return u128.HashBytes(data)
}

// rotate advances the generation ring and purges blobs whose generation
// was just freed. Caller must hold b.mu for write.
func (b *BlobStore) rotate() {
	dead := b.ring.Rotate()
	if dead == nil {
		return
	}
	deadID := dead.ID()
	for hash, rec := range b.data {
		if rec.genID == deadID {
			delete(b.data, hash)
		}
	}
}
