package dasm

import (
	"sync/atomic"

	"github.com/Voskan/dasm-cache/internal/arena"
	"github.com/Voskan/dasm-cache/internal/u128"
	"github.com/Voskan/dasm-cache/internal/unsafehelpers"
)

// node is one cache entry, linked into its slot's doubly-linked list and,
// once evicted, into its stripe's singly-linked free list (reusing next).
//
// Field layout mirrors spec.md §3's Node. Every field a reader may touch
// while holding only the stripe's read lock is atomic.
type node struct {
	hash   u128.U128
	params Params

	infoArena *arena.Arena // nil until committed
	info      Info

	scopeRefCount atomic.Uint64

	lastTimeTouchedUs         atomic.Int64
	lastUserClockIdxTouched   atomic.Uint64
	lastTimeRequestedUs       atomic.Int64
	lastUserClockIdxRequested atomic.Uint64

	loadCount atomic.Uint64
	isWorking atomic.Uint32

	changeGen uint64 // written only under the stripe's write lock

	// epoch is bumped every time this node is recycled off the free
	// list. It resolves the spec's §9 "Open question": a worker that
	// dequeued a request for (hash, params) may find, by the time it
	// takes the write lock to commit, that the node slot was evicted and
	// reused for an unrelated (hash, params) which happens to collide —
	// vanishingly unlikely, but checked for explicitly rather than
	// assumed away.
	epoch uint64

	next, prev *node // slot doubly-linked list
	free       *node // stripe free-list singly-linked stack
}

// reset zeroes node for reuse from a stripe's free list, bumping epoch so
// any in-flight reference to the old identity is detectably stale.
func (n *node) reset(stripeArena *arena.Arena, hash u128.U128, params Params) {
	keptEpoch := n.epoch + 1
	*n = node{epoch: keptEpoch}
	n.hash = hash
	n.params = params
	n.params.DbgiKey.Path = deepCopyPath(stripeArena, params.DbgiKey.Path)
}

// deepCopyPath copies path's bytes into a so the stripe (or scope) arena
// owns the memory independently of whatever buffer the caller passed in —
// matches the original's `di_key_copy` step.
func deepCopyPath(a *arena.Arena, path string) string {
	if path == "" {
		return ""
	}
	b := arena.AllocBytes(a, unsafehelpers.StringToBytes(path))
	return unsafehelpers.BytesToString(b)
}

// touch atomically records that the current moment/user-clock-index
// observed n, matching dasm_scope_touch_node__stripe_r_guarded's atomic
// writes (the scope-pin increment itself is scope.go's job — touch only
// updates the timestamps, since both the lookup read-hit path and the
// scope-touch path need them).
func (n *node) touch(nowUs int64, userClockIdx uint64) {
	n.lastTimeTouchedUs.Store(nowUs)
	n.lastUserClockIdxTouched.Store(userClockIdx)
}

// matches reports whether n identifies the given (hash, params) pair.
func (n *node) matches(hash u128.U128, params Params) bool {
	return n.hash.Equal(hash) && n.params.Equal(params)
}

// slot is a bucket in the striped table: a doubly-linked list of nodes
// sharing one hash.High % SLOTS index.
type slot struct {
	first, last *node
}

func (s *slot) find(hash u128.U128, params Params) *node {
	for n := s.first; n != nil; n = n.next {
		if n.matches(hash, params) {
			return n
		}
	}
	return nil
}

func (s *slot) pushBack(n *node) {
	n.prev = s.last
	n.next = nil
	if s.last != nil {
		s.last.next = n
	} else {
		s.first = n
	}
	s.last = n
}

func (s *slot) remove(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		s.first = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		s.last = n.prev
	}
	n.next, n.prev = nil, nil
}
