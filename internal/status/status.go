// Package status provides a thread-safe status tracker for the irrigator daemon.
// It is fed by the controller's events and read by HTTP handlers and heartbeats.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/plant-irrigator/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	TickMs         int64
	TicksPerDay    int
	SettleMs       int64
	WaterTimeoutMs int64
	HeartbeatMs    int64
	Broker         string
	HTTPAddr       string
}

// PlantStatus is the last known state of one plant slot.
type PlantStatus struct {
	Name        string
	Channel     int
	Dry         uint16
	Wet         uint16
	Position    uint16 // diverter pulse width for this plant
	Reading     uint16
	Sampled     bool // Reading holds a real sample
	LastWatered time.Time
	LastOutcome string // last plant event type, e.g. "PLANT_SKIPPED"
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	State         logic.State
	PumpOn        bool
	PumpPlant     string
	Diverter      uint16 // last commanded diverter position, 0 before the first watering
	Plants        []PlantStatus
	Counts        logic.EventCounts
	DayTicks      int
	TicksPerDay   int
	LastFault     string
	LastFaultAt   time.Time
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time, config and plants.
func NewTracker(startTime time.Time, cfg Config, plants []logic.PlantProfile) *Tracker {
	ps := make([]PlantStatus, len(plants))
	for i, p := range plants {
		ps[i] = PlantStatus{Name: p.Name, Channel: p.Channel, Dry: p.Dry, Wet: p.Wet, Position: p.Position}
	}
	return &Tracker{
		snap: Snapshot{
			State:       logic.StateSleeping,
			Plants:      ps,
			TicksPerDay: cfg.TicksPerDay,
			StartTime:   startTime,
			Config:      cfg,
		},
	}
}

// Record folds a controller event into the tracked state.
func (t *Tracker) Record(e logic.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.State = e.State
	t.snap.Counts.Add(e)

	switch e.Type {
	case logic.EventWateringStart:
		t.snap.PumpOn = true
		t.snap.PumpPlant = e.Plant
	case logic.EventWateringStop, logic.EventWateringFault:
		t.snap.PumpOn = false
		t.snap.PumpPlant = ""
	case logic.EventCycleEnd:
		t.snap.PumpOn = false
		t.snap.PumpPlant = ""
	}
	if e.Fault != "" {
		t.snap.LastFault = e.Fault
		t.snap.LastFaultAt = e.Timestamp
	}

	if e.Plant == "" {
		return
	}
	for i := range t.snap.Plants {
		p := &t.snap.Plants[i]
		if p.Name != e.Plant {
			continue
		}
		// Sensor faults carry no valid reading.
		if e.Type != logic.EventSensorFault {
			p.Reading = e.Reading
			p.Sampled = true
		}
		p.LastOutcome = string(e.Type)
		if e.Type == logic.EventWateringStart {
			t.snap.Diverter = p.Position
		}
		if e.Type == logic.EventWateringStop {
			p.LastWatered = e.Timestamp
		}
	}
}

// SetState sets the control loop phase directly, for transitions that are
// not announced by an event (e.g. an interrupted cycle going to sleep).
func (t *Tracker) SetState(s logic.State) {
	t.mu.Lock()
	t.snap.State = s
	t.mu.Unlock()
}

// SetDayClock sets the position within the day cycle.
func (t *Tracker) SetDayClock(ticks, perDay int) {
	t.mu.Lock()
	t.snap.DayTicks = ticks
	t.snap.TicksPerDay = perDay
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Plants = append([]PlantStatus(nil), t.snap.Plants...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
