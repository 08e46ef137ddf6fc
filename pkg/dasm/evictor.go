package dasm

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// evictorLoop is the single evictor/detector goroutine (spec.md §4.6): a
// fixed-interval sweep that evicts idle nodes and re-enqueues nodes whose
// change_gen has gone stale relative to the filesystem watch.
func (s *Shared) evictorLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.sweepOnce(); err != nil {
				s.cfg.logger.Warn("dasm: sweep completed with errors", zap.Error(err))
			}
		}
	}
}

// sweepOnce performs one full sweep across every stripe, returning an
// aggregated error if any stripe's re-enqueue attempts failed.
func (s *Shared) sweepOnce() error {
	changeGen := s.cfg.fileWatch.ChangeGen()
	nowUs := nowMicros()
	userClockIdx := s.UserClockIdx()

	var merr *multierror.Error
	for stripeIdx, st := range s.stripes {
		if err := s.sweepStripe(st, stripeIdx, changeGen, nowUs, userClockIdx); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}

// sweepStripe examines every slot this stripe owns. It first takes the
// read lock to decide, cheaply, whether any node in the stripe qualifies
// for eviction or re-queue; only if so does it escalate to the write lock
// (spec.md §4.6, "fast path avoids W-lock contention").
func (s *Shared) sweepStripe(st *stripe, stripeIdx int, changeGen uint64, nowUs int64, userClockIdx uint64) error {
	if !s.stripeNeedsWork(st, changeGen, nowUs, userClockIdx) {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	var merr *multierror.Error
	for i := range st.slots {
		sl := &st.slots[i]
		n := sl.first
		for n != nil {
			next := n.next // examine before unlinking, per spec.md §4.6's note
			switch {
			case s.shouldEvict(n, nowUs, userClockIdx):
				sl.remove(n)
				if n.infoArena != nil {
					n.infoArena.Free()
				}
				st.release(n)
				s.incNodeEvicted(stripeIdx)
			case s.shouldRequeue(n, changeGen, nowUs, userClockIdx):
				if s.ring.enqueue(n.hash, n.params, time.Now().Add(time.Millisecond)) {
					n.lastTimeRequestedUs.Store(nowUs)
					n.lastUserClockIdxRequested.Store(userClockIdx)
					s.incNodeRequeued(stripeIdx)
				} else {
					merr = multierror.Append(merr, fmt.Errorf("dasm: re-enqueue failed for hash %s", n.hash))
				}
			}
			n = next
		}
	}
	return merr.ErrorOrNil()
}

// stripeNeedsWork is the R-locked fast path: true if any node in st
// currently qualifies for eviction or re-queue.
func (s *Shared) stripeNeedsWork(st *stripe, changeGen uint64, nowUs int64, userClockIdx uint64) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	for i := range st.slots {
		for n := st.slots[i].first; n != nil; n = n.next {
			if s.shouldEvict(n, nowUs, userClockIdx) || s.shouldRequeue(n, changeGen, nowUs, userClockIdx) {
				return true
			}
		}
	}
	return false
}

func (s *Shared) shouldEvict(n *node, nowUs int64, userClockIdx uint64) bool {
	return n.scopeRefCount.Load() == 0 &&
		n.lastTimeTouchedUs.Load()+s.cfg.evictThresholdUs <= nowUs &&
		n.lastUserClockIdxTouched.Load()+s.cfg.evictThresholdUserClocks <= userClockIdx &&
		n.loadCount.Load() != 0 &&
		n.isWorking.Load() == 0
}

func (s *Shared) shouldRequeue(n *node, changeGen uint64, nowUs int64, userClockIdx uint64) bool {
	return n.changeGen != 0 && n.changeGen != changeGen &&
		n.lastTimeRequestedUs.Load()+s.cfg.retryThresholdUs <= nowUs &&
		n.lastUserClockIdxRequested.Load()+s.cfg.retryThresholdUserClocks <= userClockIdx
}
