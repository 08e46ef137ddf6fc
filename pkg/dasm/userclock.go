package dasm

import "sync/atomic"

// userClock is the externally-ticked logical activity counter (spec.md
// §2, "typically UI frames"). It lives on Shared rather than as a package
// global so that multiple Shared instances (as in tests) don't share
// state.
type userClock struct {
	idx atomic.Uint64
}

// UserClockTick advances the user clock by one. Call this once per unit
// of external activity (e.g. once per rendered UI frame).
func (s *Shared) UserClockTick() {
	s.userClock.idx.Add(1)
}

// UserClockIdx returns the current user clock value.
func (s *Shared) UserClockIdx() uint64 {
	return s.userClock.idx.Load()
}
