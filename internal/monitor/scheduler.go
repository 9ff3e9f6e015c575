// Package monitor owns one independent, cancellable periodic timer per active
// strategy. Ticks for different strategies are independent; a failure in one
// never cancels or corrupts another's timer.
package monitor

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// TickFunc performs one evaluation for a strategy id.
type TickFunc func(ctx context.Context, id string)

// Scheduler starts and cancels per-strategy timers and guarantees
// single-flight execution per id: when a tick is still outstanding (slow
// price fetch, slow execution) the next interval is skipped, never queued.
type Scheduler struct {
	interval time.Duration

	mu      sync.Mutex
	runners map[string]*runner
}

type runner struct {
	cancel   context.CancelFunc
	inFlight atomic.Bool
	skipped  atomic.Uint64
}

func NewScheduler(interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		interval: interval,
		runners:  make(map[string]*runner),
	}
}

// Start begins monitoring a strategy id. Starting an already-monitored id is
// a no-op so resume after restart is idempotent.
func (s *Scheduler) Start(ctx context.Context, id string, tick TickFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runners[id]; ok {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &runner{cancel: cancel}
	s.runners[id] = r

	go func() {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-t.C:
				if !r.inFlight.CompareAndSwap(false, true) {
					if n := r.skipped.Add(1); n%10 == 1 {
						log.Printf("monitor: strategy %s tick still in flight, skipping (%d skipped)", id, n)
					}
					continue
				}
				func() {
					defer r.inFlight.Store(false)
					// Ticks run under the parent context: Cancel stops the
					// timer but never aborts an order already dispatched.
					tick(ctx, id)
				}()
			}
		}
	}()
}

// Cancel tears down the timer for a strategy id. An in-flight tick is allowed
// to resolve; only the timer resource is released.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runners[id]; ok {
		r.cancel()
		delete(s.runners, id)
	}
}

// CancelAll tears down every timer (shutdown path).
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.runners {
		r.cancel()
		delete(s.runners, id)
	}
}

// Count reports how many strategies are currently monitored.
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runners)
}

// Monitoring reports whether a timer exists for the id.
func (s *Scheduler) Monitoring(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.runners[id]
	return ok
}
