package dasm

import (
	"github.com/gammazero/deque"

	"github.com/Voskan/dasm-cache/internal/arena"
	"github.com/Voskan/dasm-cache/internal/u128"
)

// touch is a single pin recorded inside a scope: a deep copy of the
// (hash, Params) pair a scope has observed, not a pointer into the node —
// so scope_close can locate (or fail to locate, harmlessly) the node even
// if it was evicted and its stripe arena released in the meantime
// (spec.md §9, "Cyclic/back pointers").
type touch struct {
	hash   u128.U128
	params Params
}

// Scope is a caller-owned lifetime bracket: every node a scope has
// touched is pinned (via scope_ref_count) until the scope is closed.
// spec.md models this as thread-local; Go has no equivalent of a
// persistent per-goroutine arena, so each Scope gets its own arena
// created in ScopeOpen and released in ScopeClose rather than being
// reused from a goroutine-local slot (documented Open Question
// resolution in DESIGN.md — it costs the "zero-cost nested scope"
// micro-optimization the original gets from a thread-local bump mark,
// nothing else).
type Scope struct {
	arena   *arena.Arena
	touches deque.Deque[touch]
}

// ScopeOpen allocates a new Scope. Callers must call ScopeClose exactly
// once when done, from any goroutine (a Scope is not itself
// goroutine-local; only its creation is modeled that way conceptually).
func ScopeOpen() *Scope {
	return &Scope{arena: arena.New()}
}

// ScopeClose walks the scope's touch list, decrementing scope_ref_count
// on every node still present for each touch's (hash, params), then
// releases the scope's arena.
func (s *Shared) ScopeClose(sc *Scope) {
	for sc.touches.Len() > 0 {
		t := sc.touches.PopBack()
		s.releaseTouch(t)
	}
	sc.arena.Free()
}

func (s *Shared) releaseTouch(t touch) {
	slotIdx := slotIndex(t.hash)
	st, localSlot, _ := s.stripeFor(slotIdx)

	st.mu.RLock()
	n := st.slots[localSlot].find(t.hash, t.params)
	if n != nil {
		// scope_ref_count never underflows: every touch corresponds to
		// exactly one prior increment in scopeTouchNode.
		n.scopeRefCount.Add(^uint64(0))
	}
	st.mu.RUnlock()
}

// scopeTouchNode pins n on behalf of sc. Caller must already hold the
// node's stripe's read lock (spec.md §4.3).
func scopeTouchNode(sc *Scope, st *stripe, n *node, nowUs int64, userClockIdx uint64) {
	n.scopeRefCount.Add(1)
	n.touch(nowUs, userClockIdx)

	pathCopy := deepCopyPath(sc.arena, n.params.DbgiKey.Path)
	t := touch{
		hash: n.hash,
		params: Params{
			Vaddr:      n.params.Vaddr,
			Arch:       n.params.Arch,
			StyleFlags: n.params.StyleFlags,
			Syntax:     n.params.Syntax,
			BaseVaddr:  n.params.BaseVaddr,
			DbgiKey: DbgiKey{
				Path:         pathCopy,
				MinTimestamp: n.params.DbgiKey.MinTimestamp,
			},
		},
	}
	sc.touches.PushBack(t)
}
