package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "pvp"

// Run outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeEmpty     = "empty"
	OutcomeRejected  = "rejected"
	OutcomeCancelled = "cancelled"
)

// Metrics records pipeline activity on a caller-supplied registry.
type Metrics struct {
	runs        *prometheus.CounterVec
	strategies  *prometheus.CounterVec
	ocrPages    prometheus.Counter
	aiFallbacks prometheus.Counter
	duration    prometheus.Histogram
}

// NewMetrics registers the pipeline collectors on reg. A nil reg keeps the
// collectors unregistered, which is what tests and one-shot runs want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "runs_total",
				Help:      "Extraction runs by outcome",
			},
			[]string{"outcome"},
		),
		strategies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "entity_strategy_total",
				Help:      "Strategy that produced each extracted entity list",
			},
			[]string{"entity", "strategy"},
		),
		ocrPages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ocr_pages_total",
			Help:      "Pages whose text was completed by OCR",
		}),
		aiFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ai_fallbacks_total",
			Help:      "Product info requests answered by the regex path while AI was configured",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full extraction run",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}
