// Package scheduler counts day-cycle ticks and releases the control loop
// from deep sleep once per day.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sweeney/plant-irrigator/internal/logic"
)

// Scheduler runs the tick handler and latches the rollover wake signal.
// A rollover that happens while the control loop is busy stays latched
// until the loop next sleeps; rollovers that pile up meanwhile coalesce
// into that single wake.
type Scheduler struct {
	mu    sync.Mutex
	clock *logic.CycleClock
	wake  chan struct{}
}

// New creates a scheduler that rolls over every ticksPerDay ticks.
func New(ticksPerDay int) *Scheduler {
	return &Scheduler{
		clock: logic.NewCycleClock(ticksPerDay),
		wake:  make(chan struct{}, 1),
	}
}

// Tick handles one tick. It never blocks and returns true on rollover.
func (s *Scheduler) Tick() bool {
	s.mu.Lock()
	rolled := s.clock.Advance()
	s.mu.Unlock()
	if rolled {
		s.wakeup()
	}
	return rolled
}

// Run calls Tick for every value received on ticks until ctx is done or
// ticks is closed.
func (s *Scheduler) Run(ctx context.Context, ticks <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ticks:
			if !ok {
				return
			}
			s.Tick()
		}
	}
}

// Wake is signalled once per latched rollover.
func (s *Scheduler) Wake() <-chan struct{} {
	return s.wake
}

// Trigger latches a wake without a rollover, e.g. for a cycle at boot.
func (s *Scheduler) Trigger() {
	s.wakeup()
}

// Minutes returns the ticks elapsed since the last rollover.
func (s *Scheduler) Minutes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Ticks()
}

// PerDay returns the rollover count.
func (s *Scheduler) PerDay() int {
	return s.clock.PerDay()
}

// Rollovers returns the number of rollovers since start.
func (s *Scheduler) Rollovers() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Rollovers()
}

func (s *Scheduler) wakeup() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
