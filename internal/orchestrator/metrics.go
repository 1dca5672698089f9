package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "mirror"

// Metrics holds the render loop's Prometheus collectors.
type Metrics struct {
	ModuleCost     *prometheus.HistogramVec
	ModuleRenders  *prometheus.CounterVec
	TickSeconds    prometheus.Histogram
	Faults         *prometheus.CounterVec
	EventsDispatch *prometheus.CounterVec
	Frames         prometheus.Counter
	EnabledModules prometheus.Gauge
}

// NewMetrics creates and registers the loop metrics on reg. A nil reg gets
// a private registry so repeated construction never collides.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		ModuleCost: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "module_cost_seconds",
				Help:      "Time spent evaluating and rendering a module per tick",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"module"},
		),
		ModuleRenders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "module_renders_total",
				Help:      "Number of times a module surface was re-rendered",
			},
			[]string{"module"},
		),
		TickSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "tick_seconds",
			Help:      "Duration of one render loop iteration, excluding the pause",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		Faults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "faults_total",
				Help:      "Faults caught at the render loop boundary",
			},
			[]string{"stage"},
		),
		EventsDispatch: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "events_dispatched_total",
				Help:      "Events fanned out to subscribers",
			},
			[]string{"kind"},
		),
		Frames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_total",
			Help:      "Frames flushed to the output sinks",
		}),
		EnabledModules: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "modules_enabled",
			Help:      "Number of enabled modules",
		}),
	}
}
