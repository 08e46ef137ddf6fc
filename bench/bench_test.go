// Package bench provides reproducible micro-benchmarks for dasm-cache.
// Run via:  go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// We measure:
//   1. InfoFromHashParams cold-miss – every lookup is a brand-new hash,
//      forcing node creation and an enqueue.
//   2. InfoFromHashParams warm-hit  – lookups against hashes whose parse
//      has already completed.
//   3. InfoFromHashParams warm-hit, parallel (b.RunParallel).
//   4. internal/ring Enqueue/Dequeue throughput in isolation, independent
//      of the node table or worker pool.
//
// Results are printed in ns/op + alloc/op so CI can diff via benchstat.
//
// NOTE: Unit tests live alongside the packages they cover; this file is
// *only* for performance.
//
// © 2025 dasm-cache authors. MIT License.

package bench

import (
	"math/rand"
	"runtime"
	"testing"
	"time"

	"github.com/Voskan/dasm-cache/internal/decoder"
	"github.com/Voskan/dasm-cache/internal/ring"
	"github.com/Voskan/dasm-cache/internal/u128"
	"github.com/Voskan/dasm-cache/pkg/dasm"
	"github.com/Voskan/dasm-cache/pkg/store"
)

const datasetSize = 1 << 16 // 64K distinct hashes

func randomHashes(n int) []u128.U128 {
	hashes := make([]u128.U128, n)
	for i := range hashes {
		hashes[i] = u128.U128{Low: rand.Uint64(), High: rand.Uint64()}
	}
	return hashes
}

// submitSyntheticCode stores n distinct tiny decoder.Reference-format
// programs (one mov record then halt, the immediate varied per index so
// each blob — and therefore its content hash — differs) and returns their
// real content hashes. A benchmark must look entries up by the hash
// BlobStore.SubmitData actually assigned, not an arbitrary one, since the
// worker resolves bytes via BlobStore.DataFromHash(hash).
func submitSyntheticCode(blobs *store.BlobStore, n int) []u128.U128 {
	hashes := make([]u128.U128, n)
	for i := 0; i < n; i++ {
		code := []byte{0x00, byte(i), byte(i >> 8), 0, 0xFF, 0, 0, 0}
		key := u128.U128{Low: uint64(i), High: 0}
		hashes[i] = blobs.SubmitData(key, code)
	}
	return hashes
}

func newTestShared() (*dasm.Shared, *store.BlobStore) {
	blobs := store.NewBlobStore(64<<20, time.Minute)
	s := dasm.Init(
		dasm.WithBlobStore(blobs),
		dasm.WithDecoder(decoder.Reference{}),
		dasm.WithParseWorkers(runtime.NumCPU()),
		dasm.WithSweepInterval(time.Hour), // keep the evictor out of the way
	)
	return s, blobs
}

/* -------------------------------------------------------------------------
   InfoFromHashParams benchmarks
   ------------------------------------------------------------------------- */

func BenchmarkInfoFromHashParamsColdMiss(b *testing.B) {
	s, _ := newTestShared()
	defer s.Close()

	hashes := randomHashes(b.N)
	params := dasm.Params{Arch: dasm.ArchX64}

	sc := dasm.ScopeOpen()
	defer s.ScopeClose(sc)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.InfoFromHashParams(sc, hashes[i], params)
	}
}

func BenchmarkInfoFromHashParamsWarmHit(b *testing.B) {
	s, blobs := newTestShared()
	defer s.Close()

	params := dasm.Params{Arch: dasm.ArchX64}

	sc := dasm.ScopeOpen()
	defer s.ScopeClose(sc)

	// Prime the blob store and table, then poll until every node has a
	// committed Info so the benchmark loop below measures warm hits only.
	hashes := submitSyntheticCode(blobs, datasetSize)
	for _, h := range hashes {
		for {
			if info := s.InfoFromHashParams(sc, h, params); !info.Empty() {
				break
			}
			time.Sleep(time.Millisecond)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.InfoFromHashParams(sc, hashes[i&(datasetSize-1)], params)
	}
}

func BenchmarkInfoFromHashParamsWarmHitParallel(b *testing.B) {
	s, blobs := newTestShared()
	defer s.Close()

	params := dasm.Params{Arch: dasm.ArchX64}

	warmupScope := dasm.ScopeOpen()
	hashes := submitSyntheticCode(blobs, datasetSize)
	for _, h := range hashes {
		for {
			if info := s.InfoFromHashParams(warmupScope, h, params); !info.Empty() {
				break
			}
			time.Sleep(time.Millisecond)
		}
	}
	s.ScopeClose(warmupScope)

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		sc := dasm.ScopeOpen()
		defer s.ScopeClose(sc)
		idx := rand.Intn(datasetSize)
		for pb.Next() {
			idx = (idx + 1) & (datasetSize - 1)
			s.InfoFromHashParams(sc, hashes[idx], params)
		}
	})
}

/* -------------------------------------------------------------------------
   internal/ring throughput, isolated from the node table and workers
   ------------------------------------------------------------------------- */

func BenchmarkRingEnqueueDequeue(b *testing.B) {
	r := ring.New(1 << 20) // 1 MiB ring, plenty of slack for these tiny records
	defer r.Close()

	rec := ring.Record{
		Hash:  u128.U128{Low: 1, High: 2},
		Vaddr: 0x1000,
		Arch:  1,
	}
	deadline := time.Now().Add(time.Second)

	done := make(chan struct{})
	go func() {
		for i := 0; i < b.N; i++ {
			r.Dequeue()
		}
		close(done)
	}()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Enqueue(rec, deadline)
	}
	<-done
}

func init() {
	rand.Seed(42)
	runtime.GOMAXPROCS(runtime.NumCPU())
}
