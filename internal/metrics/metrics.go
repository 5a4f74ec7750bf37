// Package metrics defines the Prometheus instrumentation for the scanner:
// scan cycle outcomes, per-pair processing counts, signal emission, alert
// delivery, and classifier activity. Everything is exposed on the metrics
// endpoint started in main.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the scanner.
type Metrics struct {
	ScansTotal     prometheus.Counter // Completed scan cycles
	FetchErrors    prometheus.Counter // Feed fetch failures (timeout, non-200, malformed)
	FetchLatency   prometheus.Histogram
	PairsProcessed prometheus.Counter // Pair records examined
	PairsSkipped   prometheus.Counter // Pair records dropped by the liquidity filter
	SignalsEmitted prometheus.Counter
	AlertFailures  prometheus.Counter // Best-effort deliveries that failed

	MLPredictions prometheus.Counter
	MLRetrains    prometheus.Counter
	MLModelAge    prometheus.Gauge
	TrainingRows  prometheus.Gauge

	ErrorsTotal prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics against a custom registry, which keeps
// tests isolated from the global state.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		ScansTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "scans_total",
			Help: "Total number of completed scan cycles",
		}),
		FetchErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "fetch_errors_total",
			Help: "Total number of failed feed fetches",
		}),
		FetchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fetch_latency_seconds",
			Help:    "Feed fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		PairsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "pairs_processed_total",
			Help: "Total number of pair records examined",
		}),
		PairsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "pairs_skipped_total",
			Help: "Total number of pair records skipped by the liquidity filter",
		}),
		SignalsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "signals_emitted_total",
			Help: "Total number of pump signals emitted",
		}),
		AlertFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "alert_failures_total",
			Help: "Total number of failed alert deliveries",
		}),
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of classifier predictions made",
		}),
		MLRetrains: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_retrains_total",
			Help: "Total number of successful model retrainings",
		}),
		MLModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the active classifier model in seconds",
		}),
		TrainingRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "training_rows",
			Help: "Number of rows currently in the training log",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}

// MLPredictionsInc satisfies the classifier's metrics interface.
func (m *Metrics) MLPredictionsInc() { m.MLPredictions.Inc() }

// MLRetrainsInc satisfies the classifier's metrics interface.
func (m *Metrics) MLRetrainsInc() { m.MLRetrains.Inc() }

// MLModelAgeSet satisfies the classifier's metrics interface.
func (m *Metrics) MLModelAgeSet(age float64) { m.MLModelAge.Set(age) }
