package actuator

import (
	"sync"
	"time"
)

// OpKind identifies an output command.
type OpKind string

const (
	OpPosition  OpKind = "position"
	OpPump      OpKind = "pump"
	OpIndicator OpKind = "indicator"
)

// Op is one recorded output command.
type Op struct {
	Kind     OpKind
	Position uint16 // OpPosition only
	On       bool   // OpPump and OpIndicator
	At       time.Time
}

// FakeOutputs is a test double that records every command.
type FakeOutputs struct {
	mu sync.Mutex

	// Ops contains every command in order.
	Ops []Op

	// Now stamps recorded commands; time.Now if nil.
	Now func() time.Time

	// PumpError, if set, is returned by SetPump(true).
	PumpError error

	// PositionError, if set, is returned by SetPosition.
	PositionError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeOutputs creates FakeOutputs stamping commands with now.
func NewFakeOutputs(now func() time.Time) *FakeOutputs {
	return &FakeOutputs{Now: now}
}

func (f *FakeOutputs) record(op Op) {
	if f.Now != nil {
		op.At = f.Now()
	} else {
		op.At = time.Now()
	}
	f.Ops = append(f.Ops, op)
}

// SetPosition records a diverter command.
func (f *FakeOutputs) SetPosition(pulse uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PositionError != nil {
		return f.PositionError
	}
	f.record(Op{Kind: OpPosition, Position: pulse})
	return nil
}

// SetPump records a pump command.
func (f *FakeOutputs) SetPump(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if on && f.PumpError != nil {
		return f.PumpError
	}
	f.record(Op{Kind: OpPump, On: on})
	return nil
}

// SetIndicator records an indicator command.
func (f *FakeOutputs) SetIndicator(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Op{Kind: OpIndicator, On: on})
	return nil
}

// Close marks the outputs as closed.
func (f *FakeOutputs) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Snapshot returns a copy of the recorded commands.
func (f *FakeOutputs) Snapshot() []Op {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Op(nil), f.Ops...)
}

// Reset clears recorded commands.
func (f *FakeOutputs) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ops = nil
	f.Closed = false
}
