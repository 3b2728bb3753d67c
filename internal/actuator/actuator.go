// Package actuator drives the shared diverter and the shared pump.
// The real outputs use the Linux GPIO character device for the pump and
// indicator lines and the hardware PWM block for the diverter servo.
// The fake implementation records commands for tests.
package actuator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/logger"
	"github.com/sweeney/plant-irrigator/internal/logic"
)

// Servo frame: 50 Hz with 1 µs resolution.
const (
	FrameMicros = 20000
	PWMClockHz  = 1000000
)

// Pin definitions (BCM numbering)
const (
	DefaultPinPump      = 23
	DefaultPinIndicator = 24
	DefaultPinServo     = 18 // PWM0
)

// ErrPumpRunning is returned when the diverter is moved while the pump runs.
var ErrPumpRunning = errors.New("actuator: diverter cannot move while pump is on")

// Outputs is the actuator hardware. Calls are fire-and-forget: there is no
// feedback on diverter position.
type Outputs interface {
	// SetPosition sets the diverter servo pulse width in microseconds.
	SetPosition(pulse uint16) error

	// SetPump switches the shared pump.
	SetPump(on bool) error

	// SetIndicator switches the sensor power / status indicator line.
	SetIndicator(on bool) error

	// Close releases output resources.
	Close() error
}

// PumpState is the logical state of the shared pump and diverter.
type PumpState struct {
	On         bool
	Position   uint16
	Positioned bool // false until the diverter has been commanded once
	Plant      string
	Indicator  bool
}

// Driver sequences the outputs and owns PumpState.
type Driver struct {
	out Outputs

	mu    sync.Mutex
	state PumpState
}

// NewDriver creates a driver over the given outputs.
func NewDriver(out Outputs) *Driver {
	return &Driver{out: out}
}

// Position moves the diverter to route flow to plant. The caller must wait
// the settle delay before switching the pump on.
func (d *Driver) Position(plant logic.PlantProfile) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.On {
		return ErrPumpRunning
	}
	if err := d.out.SetPosition(plant.Position); err != nil {
		return fmt.Errorf("set diverter position %d: %w", plant.Position, err)
	}
	d.state.Position = plant.Position
	d.state.Positioned = true
	d.state.Plant = plant.Name
	logger.Infof("diverter -> %s (%dus)", plant.Name, plant.Position)
	return nil
}

// PumpOn starts the shared pump.
func (d *Driver) PumpOn() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.out.SetPump(true); err != nil {
		return fmt.Errorf("pump on: %w", err)
	}
	d.state.On = true
	logger.Infof("pump on (%s)", d.state.Plant)
	return nil
}

// PumpOff stops the shared pump. The logical state is cleared even if the
// output reports an error.
func (d *Driver) PumpOff() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.out.SetPump(false)
	d.state.On = false
	if err != nil {
		return fmt.Errorf("pump off: %w", err)
	}
	logger.Infof("pump off (%s)", d.state.Plant)
	return nil
}

// Indicator switches the sensor power / status indicator.
func (d *Driver) Indicator(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.out.SetIndicator(on); err != nil {
		return fmt.Errorf("indicator: %w", err)
	}
	d.state.Indicator = on
	return nil
}

// State returns a copy of the current pump state.
func (d *Driver) State() PumpState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Close stops the pump, switches the indicator off and releases the outputs.
func (d *Driver) Close() error {
	var errs []error
	if err := d.PumpOff(); err != nil {
		errs = append(errs, err)
	}
	if err := d.Indicator(false); err != nil {
		errs = append(errs, err)
	}
	if err := d.out.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
