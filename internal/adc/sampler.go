package adc

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type result struct {
	frame Frame
	err   error
}

// completion hands one frame from the conversion handler to the waiting
// sampler. It is written at most once and read at most once.
type completion chan result

func newCompletion() completion {
	return make(completion, 1)
}

func (c completion) deliver(f Frame, err error) {
	select {
	case c <- result{frame: f, err: err}:
	default:
	}
}

// Sampler runs one conversion at a time and blocks the caller until the
// converter reports completion.
type Sampler struct {
	conv     Converter
	channels []int
	timeout  time.Duration

	mu     sync.Mutex
	busy   bool
	latest Frame
}

// NewSampler creates a sampler converting the given channels on each pass.
// A timeout of zero waits for the converter indefinitely.
func NewSampler(conv Converter, channels []int, timeout time.Duration) *Sampler {
	return &Sampler{
		conv:     conv,
		channels: append([]int(nil), channels...),
		timeout:  timeout,
	}
}

// Sample starts a conversion and waits for the completed frame.
// It returns ErrBusy if another Sample is in flight and ErrTimeout if the
// converter does not complete within the configured timeout.
func (s *Sampler) Sample(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return Frame{}, ErrBusy
	}
	s.busy = true
	s.mu.Unlock()
	defer s.release()

	done := newCompletion()
	if err := s.conv.Start(s.channels, done.deliver); err != nil {
		return Frame{}, fmt.Errorf("start conversion: %w", err)
	}

	var expired <-chan time.Time
	if s.timeout > 0 {
		timer := time.NewTimer(s.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case r := <-done:
		if r.err != nil {
			return Frame{}, fmt.Errorf("conversion: %w", r.err)
		}
		s.mu.Lock()
		s.latest = r.frame
		s.mu.Unlock()
		return r.frame, nil
	case <-expired:
		return Frame{}, ErrTimeout
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Latest returns the most recent successfully converted frame.
func (s *Sampler) Latest() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

func (s *Sampler) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}
