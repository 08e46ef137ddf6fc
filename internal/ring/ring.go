// Package ring implements the bounded byte ring that carries disassembly
// requests from any caller goroutine to the parse worker pool.
//
// One mutex serialises both sides; one condition variable wakes waiters on
// either side. The writer ("Enqueue") blocks while occupancy + record size
// exceeds capacity, until space appears or a deadline elapses. The reader
// ("Dequeue") blocks while occupancy is below the minimum record size.
// Every successful Enqueue and every Dequeue broadcasts the condition
// variable, exactly as the original dasm_u2p_enqueue_req/dequeue_req do.
//
// Record wire layout (little-endian), per the spec:
//
//  1. hash          16 bytes
//  2. vaddr          8 bytes
//  3. arch           1 byte
//  4. style_flags    4 bytes
//  5. syntax         1 byte
//  6. base_vaddr     8 bytes
//  7. path_len       8 bytes
//  8. path_bytes     path_len bytes
//  9. min_timestamp  8 bytes
//  10. padding: advance pos by 7, then round down to a multiple of 8.
//
// © 2025 dasm-cache authors. MIT License.
package ring

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/Voskan/dasm-cache/internal/u128"
	"github.com/Voskan/dasm-cache/internal/unsafehelpers"
)

// Record is one disassembly request as carried over the ring. Arch, Syntax
// and StyleFlags are left as plain fixed-width integers here; pkg/dasm
// assigns the concrete enums so this package stays free of a dependency on
// the core cache's types (the ring is an internal protocol, not a stable
// wire format — see spec.md §6).
type Record struct {
	Hash          u128.U128
	Vaddr         uint64
	Arch          uint8
	StyleFlags    uint32
	Syntax        uint8
	BaseVaddr     uint64
	Path          string
	MinTimestamp  uint64
}

// fixedRecordSize is the size of every fixed-width field in a Record, not
// counting the variable-length path and the trailing padding.
const fixedRecordSize = 16 /*hash*/ + 8 /*vaddr*/ + 1 /*arch*/ + 4 /*style*/ + 1 /*syntax*/ + 8 /*base_vaddr*/ + 8 /*path_len*/ + 8 /*min_ts*/

// alignUp8 rounds n up to the nearest multiple of 8, reusing the teacher's
// unsafehelpers bit-twiddling helper instead of hand-rolling the rounding.
func alignUp8(n uint64) uint64 {
	return uint64(unsafehelpers.AlignUp(uintptr(n), 8))
}

// encodedSizeInt returns the number of ring bytes a record with the given
// path length occupies once padding is applied.
func encodedSizeInt(pathLen int) uint64 {
	return alignUp8(uint64(fixedRecordSize + pathLen))
}

// Ring is a single fixed-capacity byte ring shared by all producers and the
// worker pool's consumers.
type Ring struct {
	mu   sync.Mutex
	cond *sync.Cond

	base     []byte
	size     uint64
	writePos uint64
	readPos  uint64
	closed   bool
}

// New allocates a ring of the given byte capacity. sizeBytes should be a
// multiple of 8; it is not required to be, but records are always
// 8-byte-aligned so the last few bytes of an odd-sized ring are simply never
// addressed by an aligned write.
func New(sizeBytes uint64) *Ring {
	if sizeBytes == 0 {
		panic("ring: sizeBytes must be > 0")
	}
	r := &Ring{
		base: make([]byte, sizeBytes),
		size: sizeBytes,
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Enqueue writes rec into the ring, blocking until there is room or deadline
// passes. deadline.IsZero() or a deadline in the far future behaves as an
// unbounded blocking call (the spec's "deadline == max_u64"); a deadline in
// the past makes this a non-blocking attempt. Returns false on timeout.
func (r *Ring) Enqueue(rec Record, deadline time.Time) bool {
	need := encodedSizeInt(len(rec.Path))

	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		unconsumed := r.writePos - r.readPos
		available := r.size - unconsumed
		if available >= need {
			r.writeRecord(rec)
			r.cond.Broadcast()
			return true
		}
		if r.closed {
			return false
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return false
		}
		if deadline.IsZero() {
			r.cond.Wait()
			continue
		}
		waitWithDeadline(r.cond, deadline)
	}
}

// Dequeue blocks until a whole record is available and returns it. Once
// Close has been called and no full record remains, Dequeue returns the
// zero Record immediately — a zero hash never refers to real content
// (spec.md §3), so it doubles as the "nothing more is coming" sentinel
// without widening this method's signature.
func (r *Ring) Dequeue() Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		unconsumed := r.writePos - r.readPos
		if unconsumed >= fixedRecordSize {
			rec, total := r.peekRecord()
			if unconsumed >= total {
				r.readPos += total
				r.cond.Broadcast()
				return rec
			}
		}
		if r.closed {
			return Record{}
		}
		r.cond.Wait()
	}
}

// Close unblocks any goroutine waiting in Enqueue or Dequeue, for clean
// shutdown. After Close, Dequeue keeps draining whatever full records
// remain, then returns the zero Record forever.
func (r *Ring) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cond.Broadcast()
}

/* -------------------------------------------------------------------------
   wire encode/decode — caller holds r.mu
   ------------------------------------------------------------------------- */

func (r *Ring) writeRecord(rec Record) {
	var hashBuf [16]byte
	u128.PutBytes(hashBuf[:], rec.Hash)
	r.writeBytes(hashBuf[:])

	r.writeUint64(rec.Vaddr)
	r.writeByte(rec.Arch)
	r.writeUint32(rec.StyleFlags)
	r.writeByte(rec.Syntax)
	r.writeUint64(rec.BaseVaddr)
	r.writeUint64(uint64(len(rec.Path)))
	r.writeBytes(unsafehelpers.StringToBytes(rec.Path))
	r.writeUint64(rec.MinTimestamp)

	r.writePos = alignUp8(r.writePos)
}

// peekRecord decodes a record starting at readPos without advancing it,
// returning the record and the total number of ring bytes it occupies
// (including padding) so the caller can decide whether it has all of it.
func (r *Ring) peekRecord() (Record, uint64) {
	pos := r.readPos
	var rec Record

	var hashBuf [16]byte
	r.readBytesAt(pos, hashBuf[:])
	rec.Hash = u128.FromBytes(hashBuf[:])
	pos += 16

	rec.Vaddr = r.readUint64At(pos)
	pos += 8
	rec.Arch = r.readByteAt(pos)
	pos += 1
	rec.StyleFlags = r.readUint32At(pos)
	pos += 4
	rec.Syntax = r.readByteAt(pos)
	pos += 1
	rec.BaseVaddr = r.readUint64At(pos)
	pos += 8
	pathLen := r.readUint64At(pos)
	pos += 8
	pathBuf := make([]byte, pathLen)
	r.readBytesAt(pos, pathBuf)
	rec.Path = string(pathBuf)
	pos += pathLen
	rec.MinTimestamp = r.readUint64At(pos)
	pos += 8

	pos = alignUp8(pos)
	return rec, pos - r.readPos
}

func (r *Ring) writeBytes(b []byte) {
	for i := 0; i < len(b); i++ {
		r.base[(r.writePos+uint64(i))%r.size] = b[i]
	}
	r.writePos += uint64(len(b))
}

func (r *Ring) writeByte(b uint8) {
	r.base[r.writePos%r.size] = b
	r.writePos++
}

func (r *Ring) writeUint32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	r.writeBytes(buf[:])
}

func (r *Ring) writeUint64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	r.writeBytes(buf[:])
}

func (r *Ring) readBytesAt(pos uint64, dst []byte) {
	for i := range dst {
		dst[i] = r.base[(pos+uint64(i))%r.size]
	}
}

func (r *Ring) readByteAt(pos uint64) uint8 {
	return r.base[pos%r.size]
}

func (r *Ring) readUint32At(pos uint64) uint32 {
	var buf [4]byte
	r.readBytesAt(pos, buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}

func (r *Ring) readUint64At(pos uint64) uint64 {
	var buf [8]byte
	r.readBytesAt(pos, buf[:])
	return binary.LittleEndian.Uint64(buf[:])
}

// waitWithDeadline wraps cond.Wait with a deadline by spawning a timer that
// broadcasts once the deadline elapses, since sync.Cond has no native
// timeout. The caller must already hold cond.L.
func waitWithDeadline(cond *sync.Cond, deadline time.Time) {
	d := time.Until(deadline)
	if d <= 0 {
		return
	}
	timer := time.AfterFunc(d, cond.Broadcast)
	defer timer.Stop()
	cond.Wait()
}
