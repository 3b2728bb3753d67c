package config

import (
	"errors"
	"testing"
	"time"

	"github.com/warthog618/config/dict"

	"github.com/sweeney/plant-irrigator/internal/logic"
)

func load(t *testing.T, overrides map[string]interface{}) (Config, error) {
	t.Helper()
	return FromGetter(dict.New(dict.WithMap(overrides)))
}

func TestDefaults(t *testing.T) {
	c, err := load(t, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(c.Plants) != 2 {
		t.Fatalf("expected 2 plants, got %d", len(c.Plants))
	}
	p1, p2 := c.Plants[0], c.Plants[1]
	if p1.Name != "plant1" || p1.Channel != 0 || p1.Dry != 450 || p1.Wet != 550 || p1.Position != 500 || p1.Polarity != logic.DryLow {
		t.Errorf("unexpected plant1: %+v", p1)
	}
	if p2.Channel != 1 || p2.Dry != 450 || p2.Wet != 450 || p2.Position != 2300 {
		t.Errorf("unexpected plant2: %+v", p2)
	}

	if c.SettleDelay != time.Second || c.SensorSettle != time.Second {
		t.Errorf("unexpected settle delays %v / %v", c.SettleDelay, c.SensorSettle)
	}
	if c.TickPeriod != time.Minute || c.TicksPerDay != 1440 {
		t.Errorf("unexpected tick config %v x %d", c.TickPeriod, c.TicksPerDay)
	}
	if c.WaterTimeout != 15*time.Minute || c.ADCTimeout != time.Second || c.SampleRetries != 2 {
		t.Errorf("unexpected limits %v %v %d", c.WaterTimeout, c.ADCTimeout, c.SampleRetries)
	}
	if c.ADC.Clk != 21 || c.ADC.Csz != 6 || c.ADC.DI != 19 || c.ADC.DO != 26 || c.ADC.Tclk != 500*time.Nanosecond {
		t.Errorf("unexpected adc wiring %+v", c.ADC)
	}
	if c.Pins.Pump != 23 || c.Pins.Indicator != 24 || c.Pins.Servo != 18 {
		t.Errorf("unexpected pins %+v", c.Pins)
	}
	if c.Broker != "" || c.HTTPAddr != "" {
		t.Errorf("network outputs should be off by default: broker=%q http=%q", c.Broker, c.HTTPAddr)
	}
	if c.Heartbeat != 15*time.Minute {
		t.Errorf("unexpected heartbeat %v", c.Heartbeat)
	}
	if c.PrintReadings || c.CycleOnStart {
		t.Error("one-shot and boot cycle should be off by default")
	}
	if ch := c.Channels(); len(ch) != 2 || ch[0] != 0 || ch[1] != 1 {
		t.Errorf("unexpected channels %v", ch)
	}
}

func TestOverrides(t *testing.T) {
	c, err := load(t, map[string]interface{}{
		"plant1.polarity": "high",
		"plant1.dry":      800,
		"plant1.wet":      350,
		"plant2.enabled":  false,
		"water.timeout":   "0s",
		"tick.period":     "1s",
		"mqtt.broker":     "tcp://localhost:1883",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Plants) != 1 {
		t.Fatalf("expected 1 plant, got %d", len(c.Plants))
	}
	p := c.Plants[0]
	if p.Polarity != logic.DryHigh || p.Dry != 800 || p.Wet != 350 {
		t.Errorf("unexpected plant: %+v", p)
	}
	if c.WaterTimeout != 0 {
		t.Errorf("expected unbounded watering, got %v", c.WaterTimeout)
	}
	if c.TickPeriod != time.Second {
		t.Errorf("expected 1s tick, got %v", c.TickPeriod)
	}
	if c.Broker != "tcp://localhost:1883" {
		t.Errorf("unexpected broker %q", c.Broker)
	}
	if got := c.Channels(); len(got) != 1 || got[0] != 0 {
		t.Errorf("Channels() = %v", got)
	}
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]interface{}
	}{
		{"unknown polarity", map[string]interface{}{"plant1.polarity": "sideways"}},
		{"channel out of range", map[string]interface{}{"plant1.channel": 8}},
		{"duplicate channel", map[string]interface{}{"plant2.channel": 0}},
		{"threshold too large", map[string]interface{}{"plant1.dry": 70000}},
		{"negative threshold", map[string]interface{}{"plant1.wet": -1}},
		{"position outside frame", map[string]interface{}{"plant2.position": 20000}},
		{"no plants", map[string]interface{}{"plant1.enabled": false, "plant2.enabled": false}},
		{"zero tick period", map[string]interface{}{"tick.period": "0s"}},
		{"zero ticks per day", map[string]interface{}{"tick.perday": 0}},
		{"negative retries", map[string]interface{}{"adc.retries": -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.overrides)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}
