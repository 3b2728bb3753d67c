// Package controller implements the irrigation control loop: wake, sense,
// evaluate each plant in turn, water through the shared diverter and pump,
// then hand control back to the day-cycle scheduler.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/sweeney/plant-irrigator/internal/actuator"
	"github.com/sweeney/plant-irrigator/internal/adc"
	"github.com/sweeney/plant-irrigator/internal/logic"
)

// MaxPlants is the number of plant slots sharing the pump and diverter.
const MaxPlants = 2

var (
	// ErrWateringTimeout is reported when a plant does not reach its wet
	// threshold within the watering limit.
	ErrWateringTimeout = errors.New("watering limit reached before wet threshold")
	// ErrSensor is reported when no frame could be sampled.
	ErrSensor = errors.New("sensor fault")
	// ErrPumpLeftOn is reported when the pump is still on at the sleep boundary.
	ErrPumpLeftOn = errors.New("pump on at sleep boundary")
)

// Sampler returns a fresh frame of readings, blocking until it is available.
type Sampler interface {
	Sample(ctx context.Context) (adc.Frame, error)
}

// Actuator drives the shared diverter, pump and indicator.
type Actuator interface {
	Position(plant logic.PlantProfile) error
	PumpOn() error
	PumpOff() error
	Indicator(on bool) error
	State() actuator.PumpState
}

// Notifier receives every event as it happens.
type Notifier interface {
	Notify(e logic.Event)
}

// NotifyFunc adapts a function to Notifier.
type NotifyFunc func(logic.Event)

// Notify calls f(e).
func (f NotifyFunc) Notify(e logic.Event) { f(e) }

// Options holds timing policy. Zero durations for the limits mean no limit.
type Options struct {
	SettleDelay   time.Duration // diverter settle before the pump starts
	SensorSettle  time.Duration // sensor power-up before the first reading
	WaterTimeout  time.Duration // longest a single plant may be watered
	SampleRetries int           // extra attempts after a failed conversion

	// Now and Sleep are injectable for tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Controller runs irrigation cycles. RunCycle and Sleep must be called from
// a single goroutine; State may be read from anywhere.
type Controller struct {
	plants  []logic.PlantProfile
	sampler Sampler
	act     Actuator
	notify  Notifier
	opts    Options

	mu    sync.Mutex
	state logic.State
}

// New creates a controller for up to MaxPlants plants, evaluated in order.
func New(plants []logic.PlantProfile, sampler Sampler, act Actuator, notify Notifier, opts Options) (*Controller, error) {
	if len(plants) == 0 || len(plants) > MaxPlants {
		return nil, fmt.Errorf("need 1 to %d plants, got %d", MaxPlants, len(plants))
	}
	for _, p := range plants {
		if p.Channel < 0 || p.Channel >= adc.Channels {
			return nil, fmt.Errorf("plant %s: channel %d out of range", p.Name, p.Channel)
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = Wait
	}
	if notify == nil {
		notify = NotifyFunc(func(logic.Event) {})
	}
	return &Controller{
		plants:  append([]logic.PlantProfile(nil), plants...),
		sampler: sampler,
		act:     act,
		notify:  notify,
		opts:    opts,
		state:   logic.StateSleeping,
	}, nil
}

// State returns the current phase of the loop.
func (c *Controller) State() logic.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s logic.State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev != s {
		logger.Infof("state %s -> %s", prev, s)
	}
}

func (c *Controller) emit(e logic.Event) {
	e.Timestamp = c.opts.Now()
	e.State = c.State()
	c.notify.Notify(e)
}

// Sleep moves the loop to SLEEPING. The pump must never stay on across the
// sleep boundary: if it is on, it is forced off and ErrPumpLeftOn returned.
func (c *Controller) Sleep() error {
	var err error
	if c.act.State().On {
		logger.Errorf("pump still on at sleep boundary, forcing off")
		err = ErrPumpLeftOn
		if offErr := c.act.PumpOff(); offErr != nil {
			err = errors.Join(err, offErr)
		}
	}
	c.setState(logic.StateSleeping)
	return err
}

// RunCycle performs one full sensing cycle. Plant faults and sensor faults
// are reported through events and the Report; the returned error is non-nil
// only when ctx ends the cycle early. The pump is off whenever RunCycle
// returns.
func (c *Controller) RunCycle(ctx context.Context) (Report, error) {
	rep := Report{Start: c.opts.Now()}

	c.setState(logic.StateSensing)
	c.emit(logic.Event{Type: logic.EventCycleStart})

	if err := c.act.Indicator(true); err != nil {
		logger.Warningf("sensor power on: %v", err)
	}
	defer func() {
		if err := c.act.Indicator(false); err != nil {
			logger.Warningf("sensor power off: %v", err)
		}
	}()

	if err := c.opts.Sleep(ctx, c.opts.SensorSettle); err != nil {
		return rep, err
	}

	frame, err := c.sample(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return rep, ctxErr
		}
		logger.Errorf("baseline sample: %v", err)
		rep.Fault = err
		c.emit(logic.Event{Type: logic.EventSensorFault, Fault: err.Error()})
		c.finish(&rep)
		return rep, nil
	}

	for _, p := range c.plants {
		c.setState(logic.StateEvaluating)
		pr := PlantReport{Plant: p.Name, Initial: frame[p.Channel], Final: frame[p.Channel]}

		if !p.IsDry(pr.Initial) {
			logger.Infof("%s: reading %d not dry (threshold %d, %s), skipping", p.Name, pr.Initial, p.Dry, p.Polarity)
			pr.Outcome = OutcomeSkipped
			rep.Plants = append(rep.Plants, pr)
			c.emit(logic.Event{Type: logic.EventPlantSkipped, Plant: p.Name, Reading: pr.Initial, Threshold: p.Dry})
			continue
		}

		logger.Infof("%s: reading %d dry (threshold %d, %s), watering", p.Name, pr.Initial, p.Dry, p.Polarity)
		c.setState(logic.StateWatering)
		var dur time.Duration
		frame, dur, err = c.water(ctx, p, frame)
		if offErr := c.act.PumpOff(); offErr != nil {
			logger.Errorf("%s: %v", p.Name, offErr)
			err = errors.Join(err, offErr)
		}
		pr.Final = frame[p.Channel]
		pr.Duration = dur

		if ctxErr := ctx.Err(); ctxErr != nil {
			pr.Outcome = OutcomeFault
			pr.Err = ctxErr
			rep.Plants = append(rep.Plants, pr)
			return rep, ctxErr
		}

		if err != nil {
			logger.Errorf("%s: watering fault after %v: %v", p.Name, dur, err)
			pr.Outcome = OutcomeFault
			pr.Err = err
			rep.Plants = append(rep.Plants, pr)
			c.emit(logic.Event{
				Type:      logic.EventWateringFault,
				Plant:     p.Name,
				Reading:   pr.Final,
				Threshold: p.Wet,
				Duration:  dur,
				Fault:     err.Error(),
			})
			if errors.Is(err, ErrSensor) {
				// Readings can no longer be trusted for the rest of the cycle.
				rep.Fault = err
				break
			}
			continue
		}

		logger.Infof("%s: wet at %d after %v", p.Name, pr.Final, dur)
		pr.Outcome = OutcomeWatered
		rep.Plants = append(rep.Plants, pr)
		c.emit(logic.Event{
			Type:      logic.EventWateringStop,
			Plant:     p.Name,
			Reading:   pr.Final,
			Threshold: p.Wet,
			Duration:  dur,
		})
	}

	c.finish(&rep)
	return rep, nil
}

// finish closes the cycle. The loop is back to sleeping once CYCLE_END is
// seen, so listeners tracking State through events do not go stale.
func (c *Controller) finish(rep *Report) {
	rep.End = c.opts.Now()
	c.setState(logic.StateSleeping)
	c.emit(logic.Event{Type: logic.EventCycleEnd, Duration: rep.End.Sub(rep.Start)})
}

// water routes flow to p, waits for the diverter to settle, starts the pump
// and re-samples until p reads wet. The caller switches the pump off.
func (c *Controller) water(ctx context.Context, p logic.PlantProfile, frame adc.Frame) (adc.Frame, time.Duration, error) {
	if err := c.act.Position(p); err != nil {
		return frame, 0, fmt.Errorf("position diverter: %w", err)
	}
	if err := c.opts.Sleep(ctx, c.opts.SettleDelay); err != nil {
		return frame, 0, err
	}
	if err := c.act.PumpOn(); err != nil {
		return frame, 0, err
	}

	start := c.opts.Now()
	c.emit(logic.Event{Type: logic.EventWateringStart, Plant: p.Name, Reading: frame[p.Channel], Threshold: p.Wet})

	for !p.IsWet(frame[p.Channel]) {
		elapsed := c.opts.Now().Sub(start)
		if err := ctx.Err(); err != nil {
			return frame, elapsed, err
		}
		if c.opts.WaterTimeout > 0 && elapsed >= c.opts.WaterTimeout {
			return frame, elapsed, fmt.Errorf("%w: %v elapsed, reading %d, wet %d",
				ErrWateringTimeout, elapsed, frame[p.Channel], p.Wet)
		}
		next, err := c.sample(ctx)
		if err != nil {
			return frame, c.opts.Now().Sub(start), err
		}
		frame = next
	}
	return frame, c.opts.Now().Sub(start), nil
}

func (c *Controller) sample(ctx context.Context) (adc.Frame, error) {
	var err error
	for attempt := 0; attempt <= c.opts.SampleRetries; attempt++ {
		var f adc.Frame
		f, err = c.sampler.Sample(ctx)
		if err == nil {
			return f, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return adc.Frame{}, ctxErr
		}
		logger.Warningf("sample attempt %d: %v", attempt+1, err)
	}
	return adc.Frame{}, fmt.Errorf("%w: %w", ErrSensor, err)
}
