//go:build !linux

package actuator

import "errors"

// Pins holds the BCM line numbers of the outputs.
type Pins struct {
	Pump      int
	Indicator int
	Servo     int
}

// RealOutputs is not available on non-Linux platforms.
type RealOutputs struct{}

// NewRealOutputs returns an error on non-Linux platforms.
func NewRealOutputs(p Pins) (*RealOutputs, error) {
	return nil, errors.New("actuator: not supported on this platform (requires Linux)")
}

// SetPosition is not implemented on non-Linux platforms.
func (r *RealOutputs) SetPosition(pulse uint16) error {
	return errors.New("actuator: not supported")
}

// SetPump is not implemented on non-Linux platforms.
func (r *RealOutputs) SetPump(on bool) error {
	return errors.New("actuator: not supported")
}

// SetIndicator is not implemented on non-Linux platforms.
func (r *RealOutputs) SetIndicator(on bool) error {
	return errors.New("actuator: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealOutputs) Close() error {
	return nil
}
