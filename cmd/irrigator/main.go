// Command irrigator waters up to two plants once per day from a shared pump
// and diverter, and publishes what it did to MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/logger"

	"github.com/sweeney/plant-irrigator/internal/actuator"
	"github.com/sweeney/plant-irrigator/internal/adc"
	"github.com/sweeney/plant-irrigator/internal/config"
	"github.com/sweeney/plant-irrigator/internal/controller"
	"github.com/sweeney/plant-irrigator/internal/hwclock"
	"github.com/sweeney/plant-irrigator/internal/logic"
	"github.com/sweeney/plant-irrigator/internal/metrics"
	"github.com/sweeney/plant-irrigator/internal/mqtt"
	"github.com/sweeney/plant-irrigator/internal/scheduler"
	"github.com/sweeney/plant-irrigator/internal/status"
	"github.com/sweeney/plant-irrigator/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	defer logger.Init("plant-irrigator", true, cfg.Syslog, io.Discard).Close()

	if err := run(cfg); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}

// publisher is an MQTT publisher that can also report its connection.
type publisher interface {
	mqtt.Publisher
	mqtt.ConnectionStatus
}

func run(cfg config.Config) error {
	// The tick source must be trustworthy before anything is driven.
	clock := hwclock.New(cfg.TickPeriod, cfg.RequireClockSync)
	if err := clock.Calibrated(); err != nil {
		return err
	}
	defer clock.Stop()

	for _, p := range cfg.Plants {
		if p.Inverted() {
			logger.Warningf("plant %s: wet threshold %d does not clear dry threshold %d, watering will stop immediately", p.Name, p.Wet, p.Dry)
		}
	}

	conv, err := adc.NewMCP3008(cfg.ADC)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer conv.Close()
	sampler := adc.NewSampler(conv, cfg.Channels(), cfg.ADCTimeout)

	outs, err := actuator.NewRealOutputs(cfg.Pins)
	if err != nil {
		return fmt.Errorf("init outputs: %w", err)
	}
	driver := actuator.NewDriver(outs)
	defer driver.Close()

	if cfg.PrintReadings {
		return printReadings(context.Background(), os.Stdout, sampler, driver, cfg.SensorSettle, cfg.Plants)
	}

	var pub publisher = mqtt.Discard{}
	if cfg.Broker != "" {
		rp, err := mqtt.NewRealPublisher(cfg.Broker)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		pub = rp
	}
	defer pub.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg), cfg.Plants)
	recorder := metrics.New()
	sched := scheduler.New(cfg.TicksPerDay)
	recorder.RegisterDayClock(sched.Minutes)

	ctrl, err := controller.New(cfg.Plants, sampler, driver, notifier(pub, tracker, recorder), controller.Options{
		SettleDelay:   cfg.SettleDelay,
		SensorSettle:  cfg.SensorSettle,
		WaterTimeout:  cfg.WaterTimeout,
		SampleRetries: cfg.SampleRetries,
	})
	if err != nil {
		return fmt.Errorf("init controller: %w", err)
	}

	tracker.SetMQTTConnected(pub.IsConnected())
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := pub.PublishSystem(startupEvent); err != nil {
		logger.Warningf("failed to publish startup event: %v", err)
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, recorder.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Infof("http status server listening on %s", cfg.HTTPAddr)
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case s := <-sigCh:
			cancel(shutdownSignal{s})
		case <-ctx.Done():
		}
	}()

	go sched.Run(ctx, clock.Ticks())
	if cfg.CycleOnStart {
		sched.Trigger()
	}

	var heartbeat <-chan time.Time
	if cfg.Heartbeat > 0 {
		hb := time.NewTicker(cfg.Heartbeat)
		defer hb.Stop()
		heartbeat = hb.C
	}

	logger.Infof("started: plants=%d tick=%v perday=%d broker=%q heartbeat=%v",
		len(cfg.Plants), cfg.TickPeriod, cfg.TicksPerDay, cfg.Broker, cfg.Heartbeat)

	return runLoop(ctx, ctrl, sched, pub, pub, tracker, time.Now, heartbeat)
}

// cycler is the part of the controller driven by the main loop.
type cycler interface {
	RunCycle(ctx context.Context) (controller.Report, error)
	Sleep() error
	State() logic.State
}

// dayClock is the part of the scheduler read by the main loop.
type dayClock interface {
	Wake() <-chan struct{}
	Minutes() int
	PerDay() int
}

// runLoop sleeps until the day clock wakes it, runs one cycle, and goes back
// to sleep. It returns when ctx is cancelled; a cycle in progress is
// abandoned with the pump off.
func runLoop(ctx context.Context, ctrl cycler, clock dayClock, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time, heartbeat <-chan time.Time) error {
	refresh := func() {
		tracker.SetState(ctrl.State())
		tracker.SetDayClock(clock.Minutes(), clock.PerDay())
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case <-ctx.Done():
			reason := shutdownReason(ctx)
			logger.Infof("shutting down: %s", reason)
			refresh()
			snap := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     reason,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", reason),
			}
			if err := publisher.PublishSystem(event); err != nil {
				logger.Warningf("failed to publish shutdown event: %v", err)
			}
			return nil

		case <-clock.Wake():
			if ctx.Err() != nil {
				continue
			}
			rep, err := ctrl.RunCycle(ctx)
			if err != nil {
				logger.Warningf("cycle interrupted: %v", err)
			} else {
				logger.Infof("cycle done in %v: watered [%s]", rep.End.Sub(rep.Start), strings.Join(rep.Watered(), ", "))
			}
			if err := ctrl.Sleep(); err != nil {
				logger.Errorf("sleep: %v", err)
			}
			refresh()

		case <-heartbeat:
			refresh()
			snap := tracker.Snapshot()
			logger.Infof("heartbeat: uptime=%v cycles=%d waterings=%d faults=%d",
				snap.Uptime().Truncate(time.Second), snap.Counts.Cycles, snap.Counts.Waterings,
				snap.Counts.WateringFaults+snap.Counts.SensorFaults)
			hbEvent := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				logger.Warningf("heartbeat publish error: %v", err)
			}
		}
	}
}

// notifier fans every controller event out to the log, the status tracker,
// the metrics recorder and MQTT.
func notifier(publisher mqtt.Publisher, tracker *status.Tracker, recorder *metrics.Recorder) controller.NotifyFunc {
	return func(e logic.Event) {
		logEvent(e)
		tracker.Record(e)
		recorder.Notify(e)
		if err := publisher.Publish(e); err != nil {
			// Don't stop watering on publish failure
			logger.Warningf("publish error: %v", err)
		}
	}
}

func logEvent(e logic.Event) {
	switch {
	case e.Fault != "":
		logger.Errorf("event: %s plant=%s reading=%d: %s", e.Type, e.Plant, e.Reading, e.Fault)
	case e.Plant != "":
		logger.Infof("event: %s plant=%s reading=%d threshold=%d duration=%v", e.Type, e.Plant, e.Reading, e.Threshold, e.Duration)
	default:
		logger.Infof("event: %s", e.Type)
	}
}

// shutdownSignal is the cancellation cause when a signal stops the daemon.
type shutdownSignal struct {
	sig os.Signal
}

func (s shutdownSignal) Error() string {
	return "received " + s.sig.String()
}

func shutdownReason(ctx context.Context) string {
	var s shutdownSignal
	if !errors.As(context.Cause(ctx), &s) {
		return "UNKNOWN"
	}
	switch s.sig {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		TickMs:         cfg.TickPeriod.Milliseconds(),
		TicksPerDay:    cfg.TicksPerDay,
		SettleMs:       cfg.SettleDelay.Milliseconds(),
		WaterTimeoutMs: cfg.WaterTimeout.Milliseconds(),
		HeartbeatMs:    cfg.Heartbeat.Milliseconds(),
		Broker:         cfg.Broker,
		HTTPAddr:       cfg.HTTPAddr,
	}
}

// sensorSampler is satisfied by adc.Sampler.
type sensorSampler interface {
	Sample(ctx context.Context) (adc.Frame, error)
}

// sensorPower switches the supply shared by the sensors and the indicator.
type sensorPower interface {
	Indicator(on bool) error
}

// printReadings powers the sensors, lets them settle, samples every plant
// sensor once and prints the readings.
func printReadings(ctx context.Context, w io.Writer, sampler sensorSampler, power sensorPower, settle time.Duration, plants []logic.PlantProfile) error {
	if err := power.Indicator(true); err != nil {
		return fmt.Errorf("sensor power on: %w", err)
	}
	defer func() {
		if err := power.Indicator(false); err != nil {
			logger.Warningf("sensor power off: %v", err)
		}
	}()
	if err := controller.Wait(ctx, settle); err != nil {
		return err
	}

	frame, err := sampler.Sample(ctx)
	if err != nil {
		return fmt.Errorf("read sensors: %w", err)
	}
	for _, p := range plants {
		r := frame[p.Channel]
		verdict := "ok"
		switch {
		case p.IsDry(r):
			verdict = "dry"
		case p.IsWet(r):
			verdict = "wet"
		}
		fmt.Fprintf(w, "%s: ch%d=%d dry=%d wet=%d (%s)\n", p.Name, p.Channel, r, p.Dry, p.Wet, verdict)
	}
	return nil
}
