package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements the domain Metrics port using Prometheus.
type Recorder struct {
	analyses     *prometheus.CounterVec
	marketScore  *prometheus.GaugeVec
	observations *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New registers the collectors on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors on reg. Used by tests with a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		analyses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agripulse_crop_analyses_total",
				Help: "Per-crop analyses by market and result",
			},
			[]string{"market", "result"},
		),
		marketScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agripulse_market_score",
				Help: "Last computed market score for a crop at a market",
			},
			[]string{"crop", "market"},
		),
		observations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agripulse_price_observations_total",
				Help: "Price observations ingested by source",
			},
			[]string{"source", "crop"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agripulse_errors_total",
				Help: "Errors by kind",
			},
			[]string{"kind"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agripulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordAnalysis counts one crop analysis with result ok, failed or not_found.
func (r *Recorder) RecordAnalysis(market, result string) {
	r.analyses.WithLabelValues(market, result).Inc()
}

func (r *Recorder) RecordMarketScore(crop, market string, score float64) {
	r.marketScore.WithLabelValues(crop, market).Set(score)
}

func (r *Recorder) RecordObservation(source, crop string) {
	r.observations.WithLabelValues(source, crop).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordAnalysis(string, string)             {}
func (Nop) RecordMarketScore(string, string, float64) {}
func (Nop) RecordObservation(string, string)          {}
func (Nop) RecordError(string)                        {}
func (Nop) RecordLatency(string, float64)             {}
