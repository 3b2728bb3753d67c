// Package metrics exposes irrigation activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/plant-irrigator/internal/logic"
)

// Recorder turns control loop events into metrics. It uses its own registry
// so several recorders can coexist in tests.
type Recorder struct {
	reg *prometheus.Registry

	reading         *prometheus.GaugeVec
	waterings       *prometheus.CounterVec
	faults          *prometheus.CounterVec
	skipped         *prometheus.CounterVec
	wateringSeconds *prometheus.HistogramVec
	pumpOn          prometheus.Gauge
	cycles          prometheus.Counter
}

// New creates a Recorder with all collectors registered.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		reading: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "irrigator_moisture_reading",
			Help: "Latest raw moisture reading per plant",
		}, []string{"plant"}),
		waterings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "irrigator_waterings_total",
			Help: "Waterings that reached the wet threshold",
		}, []string{"plant"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "irrigator_faults_total",
			Help: "Watering and sensor faults",
		}, []string{"plant", "kind"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "irrigator_skipped_total",
			Help: "Evaluations where the plant was not dry",
		}, []string{"plant"}),
		wateringSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "irrigator_watering_seconds",
			Help:    "Pump running time per watering",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 900},
		}, []string{"plant"}),
		pumpOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "irrigator_pump_on",
			Help: "1 while the shared pump is running",
		}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "irrigator_cycles_total",
			Help: "Sensing cycles started",
		}),
	}
	r.reg.MustRegister(r.reading, r.waterings, r.faults, r.skipped, r.wateringSeconds, r.pumpOn, r.cycles)
	return r
}

// RegisterDayClock exposes the ticks elapsed in the current day.
func (r *Recorder) RegisterDayClock(ticks func() int) {
	r.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "irrigator_day_ticks",
		Help: "Ticks elapsed since the last day rollover",
	}, func() float64 { return float64(ticks()) }))
}

// Notify records one event.
func (r *Recorder) Notify(e logic.Event) {
	// Sensor faults carry no valid reading.
	if e.Plant != "" && e.Type != logic.EventSensorFault {
		r.reading.WithLabelValues(e.Plant).Set(float64(e.Reading))
	}
	switch e.Type {
	case logic.EventCycleStart:
		r.cycles.Inc()
	case logic.EventPlantSkipped:
		r.skipped.WithLabelValues(e.Plant).Inc()
	case logic.EventWateringStart:
		r.pumpOn.Set(1)
	case logic.EventWateringStop:
		r.pumpOn.Set(0)
		r.waterings.WithLabelValues(e.Plant).Inc()
		r.wateringSeconds.WithLabelValues(e.Plant).Observe(e.Duration.Seconds())
	case logic.EventWateringFault:
		r.pumpOn.Set(0)
		r.faults.WithLabelValues(e.Plant, "watering").Inc()
		if e.Duration > 0 {
			r.wateringSeconds.WithLabelValues(e.Plant).Observe(e.Duration.Seconds())
		}
	case logic.EventSensorFault:
		r.faults.WithLabelValues(e.Plant, "sensor").Inc()
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
