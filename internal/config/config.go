// Package config loads the irrigator configuration from flags, environment,
// an optional JSON file and built-in defaults, highest priority first.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/config/pflag"

	"github.com/sweeney/plant-irrigator/internal/actuator"
	"github.com/sweeney/plant-irrigator/internal/adc"
	"github.com/sweeney/plant-irrigator/internal/logic"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix is the prefix of environment overrides, e.g. IRRIGATOR_PLANT1_DRY.
const EnvPrefix = "IRRIGATOR_"

// Config is the complete, validated daemon configuration. It is fixed for
// the life of the process.
type Config struct {
	Plants []logic.PlantProfile

	SettleDelay  time.Duration
	SensorSettle time.Duration
	TickPeriod   time.Duration
	TicksPerDay  int

	WaterTimeout  time.Duration
	ADCTimeout    time.Duration
	SampleRetries int

	ADC  adc.Wiring
	Pins actuator.Pins

	RequireClockSync bool
	CycleOnStart     bool

	Broker    string
	HTTPAddr  string
	Heartbeat time.Duration
	Syslog    bool

	// PrintReadings samples the sensors once, prints them and exits.
	PrintReadings bool
}

// Defaults returns the built-in configuration values keyed as in the
// config file. Plant 2's wet threshold equals its dry threshold, as in the
// reference installation.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"plant1.name":     "plant1",
		"plant1.enabled":  true,
		"plant1.channel":  0,
		"plant1.dry":      450,
		"plant1.wet":      550,
		"plant1.position": 500,
		"plant1.polarity": string(logic.DryLow),

		"plant2.name":     "plant2",
		"plant2.enabled":  true,
		"plant2.channel":  1,
		"plant2.dry":      450,
		"plant2.wet":      450,
		"plant2.position": 2300,
		"plant2.polarity": string(logic.DryLow),

		"settle.diverter": "1s",
		"settle.sensor":   "1s",
		"tick.period":     "1m",
		"tick.perday":     logic.TicksPerDay,

		"water.timeout": "15m",
		"adc.timeout":   "1s",
		"adc.retries":   2,
		"adc.tclk":      adc.DefaultWiring.Tclk.String(),
		"adc.clk":       adc.DefaultWiring.Clk,
		"adc.csz":       adc.DefaultWiring.Csz,
		"adc.di":        adc.DefaultWiring.DI,
		"adc.do":        adc.DefaultWiring.DO,

		"pin.pump":      actuator.DefaultPinPump,
		"pin.indicator": actuator.DefaultPinIndicator,
		"pin.servo":     actuator.DefaultPinServo,

		"clock.requiresync": false,
		"cycle.onstart":     false,

		"mqtt.broker": "",
		"http.addr":   "",
		"heartbeat":   "15m",
		"syslog":      false,

		"print.readings": false,
	}
}

// Load reads flags from the command line, IRRIGATOR_ environment variables
// and the JSON file named by config.file (default irrigator.json).
func Load() (Config, error) {
	// highest priority sources first - flags override environment
	cfg := config.New(
		pflag.New(pflag.WithFlags([]pflag.Flag{{Short: 'c', Name: "config-file"}})),
		env.New(env.WithEnvPrefix(EnvPrefix)),
		config.WithDefault(dict.New(dict.WithMap(Defaults()))))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "irrigator.json", json.NewDecoder()))
	return build(cfg)
}

// FromGetter reads the configuration from g, falling back to Defaults.
func FromGetter(g config.Getter) (Config, error) {
	cfg := config.New(g, config.WithDefault(dict.New(dict.WithMap(Defaults()))))
	return build(cfg)
}

func build(cfg *config.Config) (c Config, err error) {
	cfg = cfg.GetConfig("", config.WithMust())
	// WithMust panics on missing or unconvertible values.
	defer func() {
		if r := recover(); r != nil {
			c = Config{}
			err = fmt.Errorf("%w: %v", ErrInvalid, r)
		}
	}()

	for _, slot := range []string{"plant1", "plant2"} {
		if !cfg.MustGet(slot + ".enabled").Bool() {
			continue
		}
		pol, perr := logic.ParsePolarity(cfg.MustGet(slot + ".polarity").String())
		if perr != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalid, slot, perr)
		}
		p := logic.PlantProfile{
			Name:     cfg.MustGet(slot + ".name").String(),
			Channel:  int(cfg.MustGet(slot + ".channel").Int()),
			Polarity: pol,
		}
		if p.Dry, err = u16(cfg, slot+".dry"); err != nil {
			return Config{}, err
		}
		if p.Wet, err = u16(cfg, slot+".wet"); err != nil {
			return Config{}, err
		}
		if p.Position, err = u16(cfg, slot+".position"); err != nil {
			return Config{}, err
		}
		c.Plants = append(c.Plants, p)
	}

	c.SettleDelay = cfg.MustGet("settle.diverter").Duration()
	c.SensorSettle = cfg.MustGet("settle.sensor").Duration()
	c.TickPeriod = cfg.MustGet("tick.period").Duration()
	c.TicksPerDay = int(cfg.MustGet("tick.perday").Int())
	c.WaterTimeout = cfg.MustGet("water.timeout").Duration()
	c.ADCTimeout = cfg.MustGet("adc.timeout").Duration()
	c.SampleRetries = int(cfg.MustGet("adc.retries").Int())
	c.ADC = adc.Wiring{
		Tclk: cfg.MustGet("adc.tclk").Duration(),
		Clk:  int(cfg.MustGet("adc.clk").Int()),
		Csz:  int(cfg.MustGet("adc.csz").Int()),
		DI:   int(cfg.MustGet("adc.di").Int()),
		DO:   int(cfg.MustGet("adc.do").Int()),
	}
	c.Pins = actuator.Pins{
		Pump:      int(cfg.MustGet("pin.pump").Int()),
		Indicator: int(cfg.MustGet("pin.indicator").Int()),
		Servo:     int(cfg.MustGet("pin.servo").Int()),
	}
	c.RequireClockSync = cfg.MustGet("clock.requiresync").Bool()
	c.CycleOnStart = cfg.MustGet("cycle.onstart").Bool()
	c.Broker = cfg.MustGet("mqtt.broker").String()
	c.HTTPAddr = cfg.MustGet("http.addr").String()
	c.Heartbeat = cfg.MustGet("heartbeat").Duration()
	c.Syslog = cfg.MustGet("syslog").Bool()
	c.PrintReadings = cfg.MustGet("print.readings").Bool()

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func u16(cfg *config.Config, key string) (uint16, error) {
	v := cfg.MustGet(key).Int()
	if v < 0 || v > 0xFFFF {
		return 0, fmt.Errorf("%w: %s=%d out of range", ErrInvalid, key, v)
	}
	return uint16(v), nil
}

// Validate checks the values that the control loop depends on.
func (c Config) Validate() error {
	var errs []error
	if len(c.Plants) == 0 {
		errs = append(errs, errors.New("no plants enabled"))
	}
	seen := make(map[int]string)
	for _, p := range c.Plants {
		if p.Channel < 0 || p.Channel >= adc.Channels {
			errs = append(errs, fmt.Errorf("%s: channel %d out of range 0-%d", p.Name, p.Channel, adc.Channels-1))
		}
		if other, ok := seen[p.Channel]; ok {
			errs = append(errs, fmt.Errorf("%s: channel %d already used by %s", p.Name, p.Channel, other))
		}
		seen[p.Channel] = p.Name
		if p.Position == 0 || p.Position >= actuator.FrameMicros {
			errs = append(errs, fmt.Errorf("%s: position %dus outside servo frame", p.Name, p.Position))
		}
	}
	if c.TickPeriod <= 0 {
		errs = append(errs, fmt.Errorf("tick period %v must be positive", c.TickPeriod))
	}
	if c.TicksPerDay < 1 {
		errs = append(errs, fmt.Errorf("ticks per day %d must be positive", c.TicksPerDay))
	}
	if c.SettleDelay < 0 || c.SensorSettle < 0 {
		errs = append(errs, errors.New("settle delays must not be negative"))
	}
	if c.WaterTimeout < 0 || c.ADCTimeout < 0 || c.Heartbeat < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.SampleRetries < 0 {
		errs = append(errs, fmt.Errorf("adc retries %d must not be negative", c.SampleRetries))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Channels returns the ADC channels used by the enabled plants.
func (c Config) Channels() []int {
	chans := make([]int, 0, len(c.Plants))
	for _, p := range c.Plants {
		chans = append(chans, p.Channel)
	}
	return chans
}
