//go:build linux

package actuator

import (
	"errors"
	"fmt"

	rpio "github.com/stianeikeland/go-rpio/v4"
	"github.com/warthog618/go-gpiocdev"
)

// Pins holds the BCM line numbers of the outputs.
type Pins struct {
	Pump      int
	Indicator int
	Servo     int // must be a hardware PWM capable pin
}

// RealOutputs drives actual Raspberry Pi hardware.
type RealOutputs struct {
	chip      *gpiocdev.Chip
	pump      *gpiocdev.Line
	indicator *gpiocdev.Line
	servo     rpio.Pin
	pwmOpen   bool
}

// NewRealOutputs requests the pump and indicator lines (both driven low) and
// configures the servo pin for a 50 Hz PWM frame.
func NewRealOutputs(p Pins) (*RealOutputs, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	r := &RealOutputs{chip: chip}

	r.pump, err = chip.RequestLine(p.Pump, gpiocdev.AsOutput(0))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request pump pin %d: %w", p.Pump, err)
	}

	r.indicator, err = chip.RequestLine(p.Indicator, gpiocdev.AsOutput(0))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request indicator pin %d: %w", p.Indicator, err)
	}

	if err := rpio.Open(); err != nil {
		r.Close()
		return nil, fmt.Errorf("open pwm: %w", err)
	}
	r.pwmOpen = true
	r.servo = rpio.Pin(p.Servo)
	r.servo.Mode(rpio.Pwm)
	r.servo.Freq(PWMClockHz)

	return r, nil
}

// SetPosition sets the servo pulse width.
func (r *RealOutputs) SetPosition(pulse uint16) error {
	if pulse >= FrameMicros {
		return fmt.Errorf("pulse %dus exceeds %dus frame", pulse, FrameMicros)
	}
	r.servo.DutyCycle(uint32(pulse), FrameMicros)
	return nil
}

// SetPump drives the pump line.
func (r *RealOutputs) SetPump(on bool) error {
	return r.pump.SetValue(boolToValue(on))
}

// SetIndicator drives the indicator line.
func (r *RealOutputs) SetIndicator(on bool) error {
	return r.indicator.SetValue(boolToValue(on))
}

// Close drives the lines low, returns them to input with pull-down (the Pi
// boot default) and releases all resources.
func (r *RealOutputs) Close() error {
	var errs []error

	for name, line := range map[string]*gpiocdev.Line{"pump": r.pump, "indicator": r.indicator} {
		if line == nil {
			continue
		}
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("drive %s low: %w", name, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", name, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
		}
	}
	if r.pwmOpen {
		r.servo.DutyCycle(0, FrameMicros)
		if err := rpio.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pwm: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}

func boolToValue(on bool) int {
	if on {
		return 1
	}
	return 0
}
