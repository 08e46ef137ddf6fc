package dasm

import (
	"time"

	"go.uber.org/zap"

	"github.com/Voskan/dasm-cache/internal/u128"
)

// maxDeadline is the "block forever" sentinel enqueue_req's spec uses
// (deadline == max_u64). time.Time{} (the zero value) means the same
// thing to internal/ring.Enqueue, so InfoFromHashParams passes it
// directly rather than constructing some far-future time.Time.
var maxDeadline = time.Time{}

// InfoFromHashParams is the synchronous cache probe (spec.md §4.4). A
// zero hash always returns an empty Info without creating a node or
// enqueuing anything. On any other miss it creates (or finds) the node,
// enqueues a parse request if the node is new, and returns an empty Info
// immediately — callers re-query later.
func (s *Shared) InfoFromHashParams(sc *Scope, hash u128.U128, params Params) Info {
	if hash.IsZero() {
		return Info{}
	}

	slotIdx := slotIndex(hash)
	st, localSlot, stripeIdx := s.stripeFor(slotIdx)

	st.mu.RLock()
	if n := st.slots[localSlot].find(hash, params); n != nil {
		info := n.info
		scopeTouchNode(sc, st, n, nowMicros(), s.UserClockIdx())
		st.mu.RUnlock()
		if info.Empty() {
			s.incLookupMiss(stripeIdx)
		} else {
			s.incLookupHit(stripeIdx)
		}
		return info
	}
	st.mu.RUnlock()

	st.mu.Lock()
	n := st.slots[localSlot].find(hash, params)
	nodeIsNew := false
	if n == nil {
		n = st.allocNode(hash, params)
		st.slots[localSlot].pushBack(n)
		nodeIsNew = true
		s.incNodeCreated(stripeIdx)
		s.cfg.logger.Info("dasm: created node",
			zap.Stringer("hash", hash),
			zap.Uint64("vaddr", params.Vaddr),
			zap.Uint8("arch", uint8(params.Arch)),
			zap.Uint32("style_flags", uint32(params.StyleFlags)),
			zap.Uint8("syntax", uint8(params.Syntax)),
			zap.Uint64("base_vaddr", params.BaseVaddr),
			zap.Any("dbgi_key", params.DbgiKey),
		)
	}
	st.mu.Unlock()

	if nodeIsNew {
		now := nowMicros()
		n.lastTimeRequestedUs.Store(now)
		n.lastUserClockIdxRequested.Store(s.UserClockIdx())
		if !s.ring.enqueue(hash, params, maxDeadline) {
			s.incEnqueueTimeout()
		}
	}

	s.incLookupMiss(stripeIdx)
	return Info{}
}

// InfoFromKeyParams tries rewind_idx 0 then 1, converting key to a
// content hash via hs each time, and returns the first non-empty result.
// If hashOut is non-nil it receives the winning attempt's hash; it is left
// untouched if every rewind attempt misses.
func (s *Shared) InfoFromKeyParams(sc *Scope, hs BlobStore, key u128.U128, params Params, hashOut *u128.U128) Info {
	for rewindIdx := 0; rewindIdx <= 1; rewindIdx++ {
		hash := hs.HashFromKey(key, rewindIdx)
		info := s.InfoFromHashParams(sc, hash, params)
		if !info.Empty() {
			if hashOut != nil {
				*hashOut = hash
			}
			return info
		}
	}
	return Info{}
}
