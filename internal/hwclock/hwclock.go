// Package hwclock provides the periodic day-cycle tick source and the
// startup calibration check.
package hwclock

import (
	"errors"
	"fmt"
	"time"
)

// ErrUncalibrated is returned when the tick source cannot be trusted.
// The daemon must not start in that case.
var ErrUncalibrated = errors.New("hwclock: clock calibration invalid")

// Ticker is the periodic tick source.
type Ticker struct {
	period      time.Duration
	requireSync bool
	t           *time.Ticker
}

// New creates a tick source with the given period. When requireSync is set,
// Calibrated also requires the kernel clock to be synchronised.
func New(period time.Duration, requireSync bool) *Ticker {
	return &Ticker{period: period, requireSync: requireSync}
}

// Calibrated checks that the tick source can be trusted. It is called once
// before the control loop starts; a failure is fatal.
func (k *Ticker) Calibrated() error {
	if k.period <= 0 {
		return fmt.Errorf("%w: tick period %v", ErrUncalibrated, k.period)
	}
	if !k.requireSync {
		return nil
	}
	synced, err := clockSynced()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUncalibrated, err)
	}
	if !synced {
		return fmt.Errorf("%w: kernel clock not synchronised", ErrUncalibrated)
	}
	return nil
}

// Ticks starts the ticker on first use and returns its channel.
func (k *Ticker) Ticks() <-chan time.Time {
	if k.t == nil {
		k.t = time.NewTicker(k.period)
	}
	return k.t.C
}

// Stop stops the ticker.
func (k *Ticker) Stop() {
	if k.t != nil {
		k.t.Stop()
	}
}
