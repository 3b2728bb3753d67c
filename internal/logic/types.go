// Package logic contains the pure irrigation rules: plant calibration,
// dry/wet hysteresis, the day-cycle tick counter and the event vocabulary.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// Polarity selects which side of the dry threshold means "needs water".
type Polarity string

const (
	// DryLow is the moisture-as-conductance sensor: low reading = dry.
	DryLow Polarity = "low"
	// DryHigh is the inverted sensor: high reading = dry.
	DryHigh Polarity = "high"
)

// ParsePolarity converts a configuration string into a Polarity.
func ParsePolarity(s string) (Polarity, error) {
	switch Polarity(s) {
	case DryLow, DryHigh:
		return Polarity(s), nil
	}
	return "", fmt.Errorf("unknown polarity %q (want %q or %q)", s, DryLow, DryHigh)
}

// PlantProfile is the calibration for one plant slot. It is built once at
// configuration time and never mutated.
type PlantProfile struct {
	Name     string
	Channel  int      // ADC channel of the moisture sensor
	Dry      uint16   // dry threshold
	Wet      uint16   // wet threshold, independent of Dry
	Position uint16   // diverter servo pulse width in microseconds
	Polarity Polarity // which side of Dry is dry
}

// State is the control loop's current phase.
type State string

const (
	StateSleeping   State = "SLEEPING"
	StateSensing    State = "SENSING"
	StateEvaluating State = "EVALUATING"
	StateWatering   State = "WATERING"
)

// EventType identifies something the control loop did.
type EventType string

const (
	EventCycleStart    EventType = "CYCLE_START"
	EventPlantSkipped  EventType = "PLANT_SKIPPED"
	EventWateringStart EventType = "WATERING_START"
	EventWateringStop  EventType = "WATERING_STOP"
	EventWateringFault EventType = "WATERING_FAULT"
	EventSensorFault   EventType = "SENSOR_FAULT"
	EventCycleEnd      EventType = "CYCLE_END"
)

// Event describes one step of an irrigation cycle.
type Event struct {
	Timestamp time.Time
	Type      EventType
	State     State
	Plant     string        // empty for cycle-level events
	Reading   uint16        // latest reading for Plant
	Threshold uint16        // threshold the reading was compared against
	Duration  time.Duration // watering time (stop/fault only)
	Fault     string        // fault description (fault events only)
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Cycles         int
	Skipped        int
	Waterings      int
	WateringFaults int
	SensorFaults   int
}

// Add counts e.
func (c *EventCounts) Add(e Event) {
	switch e.Type {
	case EventCycleStart:
		c.Cycles++
	case EventPlantSkipped:
		c.Skipped++
	case EventWateringStop:
		c.Waterings++
	case EventWateringFault:
		c.WateringFaults++
	case EventSensorFault:
		c.SensorFaults++
	}
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
