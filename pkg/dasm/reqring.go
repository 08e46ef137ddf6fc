package dasm

import (
	"time"

	"github.com/Voskan/dasm-cache/internal/ring"
	"github.com/Voskan/dasm-cache/internal/u128"
)

// request is a dequeued disassembly request, hash and Params reassembled
// from the ring's wire record.
type request struct {
	hash   u128.U128
	params Params
}

// requestRing adapts internal/ring's untyped byte records to the core
// cache's Params/Arch/Syntax enums.
type requestRing struct {
	r *ring.Ring
}

func newRequestRing(sizeBytes uint64) *requestRing {
	return &requestRing{r: ring.New(sizeBytes)}
}

func (q *requestRing) enqueue(hash u128.U128, params Params, deadline time.Time) bool {
	rec := ring.Record{
		Hash:         hash,
		Vaddr:        params.Vaddr,
		Arch:         uint8(params.Arch),
		StyleFlags:   uint32(params.StyleFlags),
		Syntax:       uint8(params.Syntax),
		BaseVaddr:    params.BaseVaddr,
		Path:         params.DbgiKey.Path,
		MinTimestamp: params.DbgiKey.MinTimestamp,
	}
	return q.r.Enqueue(rec, deadline)
}

func (q *requestRing) dequeue() request {
	rec := q.r.Dequeue()
	return request{
		hash: rec.Hash,
		params: Params{
			Vaddr:      rec.Vaddr,
			Arch:       Arch(rec.Arch),
			StyleFlags: StyleFlags(rec.StyleFlags),
			Syntax:     Syntax(rec.Syntax),
			BaseVaddr:  rec.BaseVaddr,
			DbgiKey: DbgiKey{
				Path:         rec.Path,
				MinTimestamp: rec.MinTimestamp,
			},
		},
	}
}

func (q *requestRing) closeForShutdown() {
	q.r.Close()
}
