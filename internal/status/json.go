package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string      `json:"event,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	State         string      `json:"state"`
	Pump          PumpJSON    `json:"pump"`
	Plants        []PlantJSON `json:"plants"`
	Day           DayJSON     `json:"day"`
	LastFault     *FaultJSON  `json:"last_fault,omitempty"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	StartTime     string      `json:"start_time"`
	Timestamp     string      `json:"timestamp"`
	MQTT          MQTTStatus  `json:"mqtt"`
	Counts        CountsJSON  `json:"event_counts"`
	Config        ConfigJSON  `json:"config"`
}

// PumpJSON reports the pump output.
type PumpJSON struct {
	On       bool   `json:"on"`
	Plant    string `json:"plant,omitempty"`
	Diverter uint16 `json:"diverter_us"`
}

// PlantJSON is the JSON representation of one plant slot.
type PlantJSON struct {
	Name        string  `json:"name"`
	Channel     int     `json:"channel"`
	Dry         uint16  `json:"dry"`
	Wet         uint16  `json:"wet"`
	Reading     *uint16 `json:"reading"`
	LastWatered string  `json:"last_watered,omitempty"`
	LastOutcome string  `json:"last_outcome,omitempty"`
}

// DayJSON reports the position within the day cycle.
type DayJSON struct {
	Ticks  int `json:"ticks"`
	PerDay int `json:"per_day"`
}

// FaultJSON is the most recent fault.
type FaultJSON struct {
	Fault     string `json:"fault"`
	Timestamp string `json:"timestamp"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Cycles         int `json:"cycles"`
	Skipped        int `json:"skipped"`
	Waterings      int `json:"waterings"`
	WateringFaults int `json:"watering_faults"`
	SensorFaults   int `json:"sensor_faults"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs         int64  `json:"tick_ms"`
	TicksPerDay    int    `json:"ticks_per_day"`
	SettleMs       int64  `json:"settle_ms"`
	WaterTimeoutMs int64  `json:"water_timeout_ms"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = "UNKNOWN"
	}

	plants := make([]PlantJSON, len(snap.Plants))
	for i, p := range snap.Plants {
		plants[i] = PlantJSON{
			Name:        p.Name,
			Channel:     p.Channel,
			Dry:         p.Dry,
			Wet:         p.Wet,
			LastOutcome: p.LastOutcome,
		}
		if p.Sampled {
			reading := p.Reading
			plants[i].Reading = &reading
		}
		if !p.LastWatered.IsZero() {
			plants[i].LastWatered = p.LastWatered.UTC().Format(time.RFC3339)
		}
	}

	inner := StatusInner{
		State:         state,
		Pump:          PumpJSON{On: snap.PumpOn, Plant: snap.PumpPlant, Diverter: snap.Diverter},
		Plants:        plants,
		Day:           DayJSON{Ticks: snap.DayTicks, PerDay: snap.TicksPerDay},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Cycles:         snap.Counts.Cycles,
			Skipped:        snap.Counts.Skipped,
			Waterings:      snap.Counts.Waterings,
			WateringFaults: snap.Counts.WateringFaults,
			SensorFaults:   snap.Counts.SensorFaults,
		},
		Config: ConfigJSON{
			TickMs:         snap.Config.TickMs,
			TicksPerDay:    snap.Config.TicksPerDay,
			SettleMs:       snap.Config.SettleMs,
			WaterTimeoutMs: snap.Config.WaterTimeoutMs,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
		},
	}
	if snap.LastFault != "" {
		inner.LastFault = &FaultJSON{
			Fault:     snap.LastFault,
			Timestamp: snap.LastFaultAt.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
