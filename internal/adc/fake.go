package adc

import (
	"errors"
	"sync"
)

// FakeConverter is a test double that returns scripted frames.
type FakeConverter struct {
	mu sync.Mutex

	// Frames contains scripted conversion results.
	// Each Start consumes the next frame; the last one repeats.
	Frames []Frame

	// index tracks current position in Frames
	index int

	// Hang, if set, makes Start never report completion.
	Hang bool

	// StartError, if set, is returned by Start.
	StartError error

	// ConvertError, if set, is delivered to the completion callback.
	ConvertError error

	// OnStart, if set, is called with the 1-based conversion number before
	// the frame is delivered.
	OnStart func(n int)

	// Starts counts calls to Start.
	Starts int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeConverter creates a FakeConverter with the given frames.
func NewFakeConverter(frames ...Frame) *FakeConverter {
	return &FakeConverter{Frames: frames}
}

// Start delivers the next scripted frame from a separate goroutine, the way
// a completion interrupt would.
func (f *FakeConverter) Start(channels []int, done func(Frame, error)) error {
	f.mu.Lock()
	if f.StartError != nil {
		f.mu.Unlock()
		return f.StartError
	}
	f.Starts++
	n := f.Starts
	hook := f.OnStart
	if f.Hang {
		f.mu.Unlock()
		return nil
	}
	if len(f.Frames) == 0 {
		f.mu.Unlock()
		go done(Frame{}, errors.New("no frames configured"))
		return nil
	}
	frame := f.Frames[f.index]
	if f.index < len(f.Frames)-1 {
		f.index++
	}
	convErr := f.ConvertError
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	go done(frame, convErr)
	return nil
}

// Close marks the converter as closed.
func (f *FakeConverter) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Count returns the number of conversions started so far.
func (f *FakeConverter) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Starts
}
