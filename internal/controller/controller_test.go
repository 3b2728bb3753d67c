package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/plant-irrigator/internal/actuator"
	"github.com/sweeney/plant-irrigator/internal/adc"
	"github.com/sweeney/plant-irrigator/internal/logic"
)

var t0 = time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC)

// fakeClock advances only when slept on or when a conversion runs.
// Only touched from the goroutine running the cycle.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	return nil
}

type harness struct {
	clk    *fakeClock
	conv   *adc.FakeConverter
	out    *actuator.FakeOutputs
	drv    *actuator.Driver
	ctrl   *Controller
	events []logic.Event
}

func plant1() logic.PlantProfile {
	return logic.PlantProfile{Name: "plant1", Channel: 0, Dry: 450, Wet: 550, Position: 500, Polarity: logic.DryLow}
}

func plant2() logic.PlantProfile {
	return logic.PlantProfile{Name: "plant2", Channel: 1, Dry: 450, Wet: 550, Position: 2300, Polarity: logic.DryLow}
}

func defaultOptions() Options {
	return Options{
		SettleDelay:  time.Second,
		SensorSettle: time.Second,
	}
}

// newHarness wires a controller to fakes. Every conversion takes one
// simulated second.
func newHarness(t *testing.T, plants []logic.PlantProfile, opts Options, frames ...adc.Frame) *harness {
	t.Helper()
	h := &harness{clk: &fakeClock{now: t0}}
	h.conv = adc.NewFakeConverter(frames...)
	h.conv.OnStart = func(int) { h.clk.now = h.clk.now.Add(time.Second) }
	sampler := adc.NewSampler(h.conv, []int{0, 1}, time.Second)
	h.out = actuator.NewFakeOutputs(h.clk.Now)
	h.drv = actuator.NewDriver(h.out)

	opts.Now = h.clk.Now
	opts.Sleep = h.clk.Sleep
	ctrl, err := New(plants, sampler, h.drv, NotifyFunc(func(e logic.Event) {
		h.events = append(h.events, e)
	}), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.ctrl = ctrl
	return h
}

// flow returns the diverter and pump commands, dropping indicator commands.
func (h *harness) flow() []actuator.Op {
	var ops []actuator.Op
	for _, op := range h.out.Snapshot() {
		if op.Kind != actuator.OpIndicator {
			ops = append(ops, op)
		}
	}
	return ops
}

func (h *harness) eventTypes() []logic.EventType {
	var types []logic.EventType
	for _, e := range h.events {
		types = append(types, e.Type)
	}
	return types
}

func assertOps(t *testing.T, got []actuator.Op, want []actuator.Op) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d ops, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i].Kind != want[i].Kind || got[i].Position != want[i].Position || got[i].On != want[i].On {
			t.Errorf("op %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func assertEvents(t *testing.T, got, want []logic.EventType) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func position(p uint16) actuator.Op { return actuator.Op{Kind: actuator.OpPosition, Position: p} }
func pump(on bool) actuator.Op      { return actuator.Op{Kind: actuator.OpPump, On: on} }

// Dry-low plant at 300 waters until a reading of at least 550.
func TestScenarioADryLowWatersUntilWet(t *testing.T) {
	h := newHarness(t, []logic.PlantProfile{plant1(), plant2()}, defaultOptions(),
		adc.FrameOf(300, 600), // baseline
		adc.FrameOf(400, 600),
		adc.FrameOf(549, 600),
		adc.FrameOf(550, 600),
		adc.FrameOf(700, 600), // never reached
	)

	rep, err := h.ctrl.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	assertOps(t, h.flow(), []actuator.Op{position(500), pump(true), pump(false)})

	if h.conv.Count() != 4 {
		t.Errorf("expected 4 conversions, got %d", h.conv.Count())
	}

	ops := h.flow()
	// t0 +1s sensor settle +1s baseline conversion = diverter move.
	if !ops[0].At.Equal(t0.Add(2 * time.Second)) {
		t.Errorf("diverter moved at %v", ops[0].At.Sub(t0))
	}
	if got := ops[1].At.Sub(ops[0].At); got < time.Second {
		t.Errorf("pump started %v after diverter, want >= settle delay", got)
	}
	// Three more conversions: the pump stops on the one that reads 550.
	if !ops[2].At.Equal(t0.Add(6 * time.Second)) {
		t.Errorf("pump stopped at %v, want 6s", ops[2].At.Sub(t0))
	}

	if len(rep.Plants) != 2 {
		t.Fatalf("expected 2 plant reports, got %d", len(rep.Plants))
	}
	p1 := rep.Plants[0]
	if p1.Outcome != OutcomeWatered || p1.Initial != 300 || p1.Final != 550 || p1.Duration != 3*time.Second {
		t.Errorf("unexpected plant1 report: %+v", p1)
	}
	if rep.Plants[1].Outcome != OutcomeSkipped {
		t.Errorf("plant2 should be skipped, got %s", rep.Plants[1].Outcome)
	}

	assertEvents(t, h.eventTypes(), []logic.EventType{
		logic.EventCycleStart,
		logic.EventWateringStart,
		logic.EventWateringStop,
		logic.EventPlantSkipped,
		logic.EventCycleEnd,
	})
	if h.drv.State().On {
		t.Error("pump left on")
	}
}

// Equal dry and wet thresholds are not an overlap: the plant waters until it
// reads the shared threshold.
func TestEqualThresholdsWaterUntilThreshold(t *testing.T) {
	p := plant1()
	p.Dry, p.Wet = 450, 450
	if p.Inverted() {
		t.Fatal("equal thresholds reported as inverted")
	}
	h := newHarness(t, []logic.PlantProfile{p}, defaultOptions(),
		adc.FrameOf(300), adc.FrameOf(400), adc.FrameOf(449), adc.FrameOf(450))

	rep, err := h.ctrl.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	got := rep.Plants[0]
	if got.Outcome != OutcomeWatered || got.Final != 450 || got.Duration != 3*time.Second {
		t.Errorf("unexpected report: %+v", got)
	}
}

// Dry-high plant at 900 waters until a reading of at most 350.
func TestScenarioBDryHighWatersUntilWet(t *testing.T) {
	p := plant1()
	p.Polarity = logic.DryHigh
	p.Dry = 800
	p.Wet = 350

	h := newHarness(t, []logic.PlantProfile{p}, defaultOptions(),
		adc.FrameOf(900),
		adc.FrameOf(700),
		adc.FrameOf(351),
		adc.FrameOf(350),
	)

	rep, err := h.ctrl.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	assertOps(t, h.flow(), []actuator.Op{position(500), pump(true), pump(false)})
	if rep.Plants[0].Final != 350 {
		t.Errorf("expected final reading 350, got %d", rep.Plants[0].Final)
	}
	if h.conv.Count() != 4 {
		t.Errorf("expected 4 conversions, got %d", h.conv.Count())
	}
}

// Both plants dry: plant 1 completes before the diverter moves for plant 2.
func TestScenarioCBothDrySequential(t *testing.T) {
	h := newHarness(t, []logic.PlantProfile{plant1(), plant2()}, defaultOptions(),
		adc.FrameOf(300, 300), // baseline
		adc.FrameOf(560, 300), // plant1 wet
		adc.FrameOf(560, 420),
		adc.FrameOf(560, 560), // plant2 wet
	)

	rep, err := h.ctrl.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	assertOps(t, h.flow(), []actuator.Op{
		position(500), pump(true), pump(false),
		position(2300), pump(true), pump(false),
	})

	// At most one plant is being watered at any instant.
	on := false
	for i, op := range h.flow() {
		switch op.Kind {
		case actuator.OpPump:
			if op.On && on {
				t.Errorf("op %d: pump started twice", i)
			}
			on = op.On
		case actuator.OpPosition:
			if on {
				t.Errorf("op %d: diverter moved while pumping", i)
			}
		}
	}

	if got := rep.Watered(); len(got) != 2 || got[0] != "plant1" || got[1] != "plant2" {
		t.Errorf("watered = %v, want [plant1 plant2]", got)
	}

	assertEvents(t, h.eventTypes(), []logic.EventType{
		logic.EventCycleStart,
		logic.EventWateringStart,
		logic.EventWateringStop,
		logic.EventWateringStart,
		logic.EventWateringStop,
		logic.EventCycleEnd,
	})
	if h.events[1].Plant != "plant1" || h.events[3].Plant != "plant2" {
		t.Errorf("unexpected watering order: %s then %s", h.events[1].Plant, h.events[3].Plant)
	}
}

// Plant 2 is judged on the latest frame, sampled while plant 1 was watered.
func TestPlant2UsesLatestReading(t *testing.T) {
	h := newHarness(t, []logic.PlantProfile{plant1(), plant2()}, defaultOptions(),
		adc.FrameOf(300, 300), // plant2 dry at baseline
		adc.FrameOf(560, 500), // but recovered by the time plant1 is done
	)

	rep, err := h.ctrl.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if rep.Plants[1].Outcome != OutcomeSkipped || rep.Plants[1].Initial != 500 {
		t.Errorf("unexpected plant2 report: %+v", rep.Plants[1])
	}
}

// A reading equal to the dry threshold is not dry.
func TestScenarioDEqualToDryIsSkipped(t *testing.T) {
	h := newHarness(t, []logic.PlantProfile{plant1(), plant2()}, defaultOptions(),
		adc.FrameOf(450, 451),
	)

	rep, err := h.ctrl.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(h.flow()) != 0 {
		t.Errorf("expected no pump or diverter commands, got %+v", h.flow())
	}
	if h.conv.Count() != 1 {
		t.Errorf("expected only the baseline conversion, got %d", h.conv.Count())
	}
	for _, p := range rep.Plants {
		if p.Outcome != OutcomeSkipped {
			t.Errorf("%s: expected skipped, got %s", p.Plant, p.Outcome)
		}
	}
}

func TestIndicatorWrapsCycle(t *testing.T) {
	h := newHarness(t, []logic.PlantProfile{plant1()}, defaultOptions(),
		adc.FrameOf(300), adc.FrameOf(600),
	)
	if _, err := h.ctrl.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	ops := h.out.Snapshot()
	first, last := ops[0], ops[len(ops)-1]
	if first.Kind != actuator.OpIndicator || !first.On {
		t.Errorf("first op should switch indicator on, got %+v", first)
	}
	if last.Kind != actuator.OpIndicator || last.On {
		t.Errorf("last op should switch indicator off, got %+v", last)
	}
	// The cycle is stamped at wake, before the sensor settles.
	if !h.events[0].Timestamp.Equal(t0) {
		t.Errorf("cycle start at %v", h.events[0].Timestamp)
	}
}

func TestWateringTimeoutFaultsAndContinues(t *testing.T) {
	opts := defaultOptions()
	opts.WaterTimeout = 5 * time.Second

	h := newHarness(t, []logic.PlantProfile{plant1(), plant2()}, opts,
		adc.FrameOf(300, 300), // plant1 never gets wet, plant2 dry
		adc.FrameOf(300, 300),
	)
	// Plant2's sensor reads wet a few conversions into its own watering.
	h.conv.OnStart = func(n int) {
		h.clk.now = h.clk.now.Add(time.Second)
		if n == 8 {
			h.conv.Frames = append(h.conv.Frames, adc.FrameOf(300, 600))
		}
	}

	rep, err := h.ctrl.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	p1 := rep.Plants[0]
	if p1.Outcome != OutcomeFault || !errors.Is(p1.Err, ErrWateringTimeout) {
		t.Fatalf("expected plant1 timeout fault, got %+v", p1)
	}
	if p1.Duration != 5*time.Second {
		t.Errorf("expected 5s of watering, got %v", p1.Duration)
	}
	if len(rep.Plants) != 2 {
		t.Fatalf("plant2 should still be evaluated, got %d reports", len(rep.Plants))
	}
	if h.drv.State().On {
		t.Error("pump left on after fault")
	}

	found := false
	for _, e := range h.events {
		if e.Type == logic.EventWateringFault && e.Plant == "plant1" {
			found = true
			if e.Fault == "" {
				t.Error("fault event without description")
			}
		}
	}
	if !found {
		t.Error("expected WATERING_FAULT event for plant1")
	}

	// First flow commands: plant1 watered then stopped before plant2 starts.
	ops := h.flow()
	if len(ops) < 4 || ops[2].Kind != actuator.OpPump || ops[2].On || ops[3].Position != 2300 {
		t.Errorf("unexpected sequence %+v", ops)
	}
}

func TestBaselineSensorFault(t *testing.T) {
	opts := defaultOptions()
	opts.SampleRetries = 2

	h := newHarness(t, []logic.PlantProfile{plant1()}, opts, adc.FrameOf(300))
	h.conv.StartError = errors.New("spi fault")

	rep, err := h.ctrl.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if !errors.Is(rep.Fault, ErrSensor) {
		t.Fatalf("expected ErrSensor, got %v", rep.Fault)
	}
	if len(rep.Plants) != 0 {
		t.Errorf("no plant should be evaluated, got %d", len(rep.Plants))
	}
	if len(h.flow()) != 0 {
		t.Errorf("expected no pump or diverter commands, got %+v", h.flow())
	}
	assertEvents(t, h.eventTypes(), []logic.EventType{
		logic.EventCycleStart, logic.EventSensorFault, logic.EventCycleEnd,
	})
}

func TestSensorFaultWhileWatering(t *testing.T) {
	opts := defaultOptions()
	opts.SampleRetries = 1

	h := newHarness(t, []logic.PlantProfile{plant1(), plant2()}, opts,
		adc.FrameOf(300, 300),
	)
	h.conv.OnStart = func(n int) {
		h.clk.now = h.clk.now.Add(time.Second)
		if n == 2 {
			h.conv.StartError = errors.New("spi fault")
		}
	}

	rep, err := h.ctrl.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(rep.Plants) != 1 {
		t.Fatalf("cycle should stop after plant1, got %d reports", len(rep.Plants))
	}
	if !errors.Is(rep.Plants[0].Err, ErrSensor) || !errors.Is(rep.Fault, ErrSensor) {
		t.Errorf("expected sensor fault, got plant err %v, cycle fault %v", rep.Plants[0].Err, rep.Fault)
	}
	assertOps(t, h.flow(), []actuator.Op{position(500), pump(true), pump(false)})
}

func TestPumpFailureIsFault(t *testing.T) {
	h := newHarness(t, []logic.PlantProfile{plant1()}, defaultOptions(), adc.FrameOf(300))
	h.out.PumpError = errors.New("relay")

	rep, err := h.ctrl.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if rep.Plants[0].Outcome != OutcomeFault {
		t.Errorf("expected fault, got %+v", rep.Plants[0])
	}
	if h.conv.Count() != 1 {
		t.Errorf("no re-sampling without a running pump, got %d conversions", h.conv.Count())
	}
}

func TestCancelWhileWateringStopsPump(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t, []logic.PlantProfile{plant1(), plant2()}, defaultOptions(),
		adc.FrameOf(300, 300),
	)
	h.conv.OnStart = func(n int) {
		h.clk.now = h.clk.now.Add(time.Second)
		if n == 3 {
			cancel()
		}
	}

	rep, err := h.ctrl.RunCycle(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if h.drv.State().On {
		t.Error("pump must be off after cancellation")
	}
	if len(rep.Plants) != 1 {
		t.Errorf("plant2 must not be evaluated after cancellation, got %d reports", len(rep.Plants))
	}
	ops := h.flow()
	if last := ops[len(ops)-1]; last.Kind != actuator.OpPump || last.On {
		t.Errorf("last flow command should stop the pump, got %+v", last)
	}
}

func TestSleepForcesPumpOff(t *testing.T) {
	h := newHarness(t, []logic.PlantProfile{plant1()}, defaultOptions(), adc.FrameOf(600))
	h.drv.Position(plant1())
	h.drv.PumpOn()

	err := h.ctrl.Sleep()
	if !errors.Is(err, ErrPumpLeftOn) {
		t.Fatalf("expected ErrPumpLeftOn, got %v", err)
	}
	if h.drv.State().On {
		t.Error("pump should be forced off")
	}
	if h.ctrl.State() != logic.StateSleeping {
		t.Errorf("expected SLEEPING, got %s", h.ctrl.State())
	}
}

func TestStateTransitions(t *testing.T) {
	h := newHarness(t, []logic.PlantProfile{plant1()}, defaultOptions(), adc.FrameOf(300), adc.FrameOf(600))
	if h.ctrl.State() != logic.StateSleeping {
		t.Errorf("new controller should be SLEEPING, got %s", h.ctrl.State())
	}

	if _, err := h.ctrl.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if h.events[0].State != logic.StateSensing {
		t.Errorf("cycle start state = %s", h.events[0].State)
	}
	if h.events[1].State != logic.StateWatering {
		t.Errorf("watering start state = %s", h.events[1].State)
	}

	last := h.events[len(h.events)-1]
	if last.Type != logic.EventCycleEnd || last.State != logic.StateSleeping {
		t.Errorf("cycle end: got %s in %s, want CYCLE_END in SLEEPING", last.Type, last.State)
	}

	if err := h.ctrl.Sleep(); err != nil {
		t.Fatalf("Sleep: %v", err)
	}
	if h.ctrl.State() != logic.StateSleeping {
		t.Errorf("expected SLEEPING, got %s", h.ctrl.State())
	}
}

func TestNewValidatesPlants(t *testing.T) {
	drv := actuator.NewDriver(actuator.NewFakeOutputs(nil))
	sampler := adc.NewSampler(adc.NewFakeConverter(), nil, 0)

	if _, err := New(nil, sampler, drv, nil, Options{}); err == nil {
		t.Error("expected error with no plants")
	}
	three := []logic.PlantProfile{plant1(), plant2(), plant1()}
	if _, err := New(three, sampler, drv, nil, Options{}); err == nil {
		t.Error("expected error with three plants")
	}
	bad := plant1()
	bad.Channel = adc.Channels
	if _, err := New([]logic.PlantProfile{bad}, sampler, drv, nil, Options{}); err == nil {
		t.Error("expected error for out of range channel")
	}
}

func TestWait(t *testing.T) {
	if err := Wait(context.Background(), time.Millisecond); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Wait(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if err := Wait(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled for zero wait, got %v", err)
	}
}
