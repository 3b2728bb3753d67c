// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/plant-irrigator/internal/logic"
)

// Topic is the MQTT topic for irrigation events.
const Topic = "garden/irrigator/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "garden/irrigator/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends an irrigation event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Irrigation IrrigationPayload `json:"irrigation"`
}

// IrrigationPayload contains the irrigation event details.
type IrrigationPayload struct {
	Timestamp  string  `json:"timestamp"`
	Event      string  `json:"event"`
	State      string  `json:"state"`
	Plant      string  `json:"plant,omitempty"`
	Reading    *uint16 `json:"reading,omitempty"`
	Threshold  *uint16 `json:"threshold,omitempty"`
	DurationMs int64   `json:"duration_ms,omitempty"`
	Fault      string  `json:"fault,omitempty"`
}

// FormatPayload creates the JSON payload for an irrigation event.
// Reading and threshold are only present on plant events.
func FormatPayload(event logic.Event) ([]byte, error) {
	inner := IrrigationPayload{
		Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
		Event:      string(event.Type),
		State:      string(event.State),
		Plant:      event.Plant,
		DurationMs: event.Duration.Milliseconds(),
		Fault:      event.Fault,
	}
	if event.Plant != "" {
		reading, threshold := event.Reading, event.Threshold
		inner.Reading = &reading
		inner.Threshold = &threshold
	}
	return json.Marshal(Payload{Irrigation: inner})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// Discard is a Publisher that drops everything. It stands in when no
// broker is configured.
type Discard struct{}

// Publish drops the event.
func (Discard) Publish(logic.Event) error { return nil }

// PublishSystem drops the event.
func (Discard) PublishSystem(SystemEvent) error { return nil }

// Close does nothing.
func (Discard) Close() error { return nil }

// IsConnected always reports false.
func (Discard) IsConnected() bool { return false }
