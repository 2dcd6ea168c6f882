package geolocation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Path labels for the stage that produced a result
const (
	PathDirect   = "direct"
	PathFallback = "fallback"
)

// Metrics holds the extraction counters. A nil *Metrics records nothing.
type Metrics struct {
	Extractions *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	Fallbacks   prometheus.Counter
	TempBytes   prometheus.Counter
}

// NewMetrics creates and registers extraction metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Extractions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geotag_extractions_total",
				Help: "Total number of location extractions by outcome.",
			},
			[]string{"outcome", "path"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geotag_extraction_duration_seconds",
				Help:    "Duration of location extractions.",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"path"},
		),
		Fallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "geotag_fallback_total",
				Help: "Number of times a resource was copied to a temporary file for parsing.",
			},
		),
		TempBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "geotag_temp_bytes_total",
				Help: "Bytes written to temporary files by the fallback path.",
			},
		),
	}
}

func (m *Metrics) observe(res Result, elapsed time.Duration) {
	if m == nil {
		return
	}
	path := PathDirect
	if res.UsedFallback {
		path = PathFallback
	}
	m.Extractions.WithLabelValues(res.Outcome.String(), path).Inc()
	m.Duration.WithLabelValues(path).Observe(elapsed.Seconds())
}

func (m *Metrics) fallback(written int64) {
	if m == nil {
		return
	}
	m.Fallbacks.Inc()
	if written > 0 {
		m.TempBytes.Add(float64(written))
	}
}
