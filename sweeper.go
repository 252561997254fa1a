package tempmail

import (
	"context"
	"sync/atomic"
	"time"
)

// SweepResult contains the result of one expiry sweep.
type SweepResult struct {
	// RemovedCount is the number of expired sessions removed.
	RemovedCount int
}

// Sweep removes expired sessions immediately, without waiting for the
// next background pass. Safe to call concurrently with the background
// sweeper; overlapping passes are skipped, not queued.
func (s *service) Sweep(ctx context.Context) (*SweepResult, error) {
	if atomic.LoadInt32(&s.state) != stateConnected {
		return nil, ErrNotConnected
	}
	removed := s.sweepOnce(ctx)
	return &SweepResult{RemovedCount: removed}, nil
}

// runSweeper is the background expiry loop. It starts in Connect and
// runs until Close; one pass per tick, never two at once.
func (s *service) runSweeper() {
	defer close(s.sweepDone)

	ticker := time.NewTicker(s.opts.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.sweepStop:
			return
		case <-ticker.C:
			s.sweepOnce(context.Background())
		}
	}
}

// sweepOnce runs one sweep pass. A pass already in flight makes this a
// no-op; the next tick catches anything the running pass misses.
func (s *service) sweepOnce(ctx context.Context) int {
	if !atomic.CompareAndSwapInt32(&s.sweeping, 0, 1) {
		return 0
	}
	defer atomic.StoreInt32(&s.sweeping, 0)

	now := s.opts.clock()
	removed := s.dir.Sweep(now)
	s.otel.recordSweep(ctx, removed)

	if removed == 0 {
		return 0
	}

	s.logger.Info("swept expired sessions",
		"removed", removed,
		"remaining", s.dir.Len())

	if err := s.events.SessionsSwept.Publish(ctx, SessionsSweptEvent{
		Removed: removed,
		SweptAt: now,
	}); err != nil {
		s.opts.safeEventPublishFailure("SessionsSwept", err)
	}

	return removed
}
