// Package u128 provides the 128-bit content hash/key type shared by
// dasm-cache's core table and its blob-store collaborator.
//
// The type mirrors the original `U128` used throughout dasm_cache.c: two
// uint64 halves, compared componentwise, with the high half used to pick a
// table slot (`hash.u64[1]%slots_count` in the original — here `High`).
//
// © 2025 dasm-cache authors. MIT License.
package u128

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// U128 is a 128-bit value used both as a content hash and as a content key.
type U128 struct {
	Low  uint64
	High uint64
}

// Zero is the sentinel "absent" value. A zero hash never refers to real
// content; a zero key is never looked up.
var Zero = U128{}

// IsZero reports whether u is the zero value.
func (u U128) IsZero() bool { return u.Low == 0 && u.High == 0 }

// Equal reports componentwise equality.
func (u U128) Equal(o U128) bool { return u.Low == o.Low && u.High == o.High }

// String renders u as two hex halves, matching the original's
// "[0x%I64x 0x%I64x]" log format.
func (u U128) String() string {
	return fmt.Sprintf("[0x%x 0x%x]", u.Low, u.High)
}

// FromBytes reads a little-endian 16-byte value into a U128, matching the
// ring's wire layout (§4.2 of the spec: hash is the first 16 bytes,
// low half first).
func FromBytes(b []byte) U128 {
	return U128{
		Low:  binary.LittleEndian.Uint64(b[0:8]),
		High: binary.LittleEndian.Uint64(b[8:16]),
	}
}

// PutBytes writes u into b (which must be at least 16 bytes) in the same
// little-endian layout FromBytes expects.
func PutBytes(b []byte, u U128) {
	binary.LittleEndian.PutUint64(b[0:8], u.Low)
	binary.LittleEndian.PutUint64(b[8:16], u.High)
}

// HashBytes derives a content hash from arbitrary data using xxhash for both
// halves (seeded differently so High and Low are not trivially related).
// This stands in for the blob store's `hash_from_data` external contract.
func HashBytes(data []byte) U128 {
	d1 := xxhash.New()
	d1.Write(data)
	low := d1.Sum64()

	d2 := xxhash.NewWithSeed(0x4d534144) // "MSAD" — matches the text-key salt in the original
	d2.Write(data)
	high := d2.Sum64()

	return U128{Low: low, High: high}
}

// HashUint64s derives a content hash from a sequence of uint64 words, used
// by the parse worker to derive the rendered-text's content key the same way
// the original does (hashing an array of U64 fields, not raw bytes).
func HashUint64s(words ...uint64) U128 {
	buf := make([]byte, 8*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint64(buf[i*8:], w)
	}
	return HashBytes(buf)
}
