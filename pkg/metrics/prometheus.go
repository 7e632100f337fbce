package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	decisions      *prometheus.CounterVec
	gateRejections *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
	openPositions  prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		decisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphafuse_decisions_total",
				Help: "Total decisions emitted, by symbol and action",
			},
			[]string{"symbol", "action"},
		),
		gateRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphafuse_gate_rejections_total",
				Help: "Decisions rejected per gate",
			},
			[]string{"gate"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphafuse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "alphafuse_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alphafuse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		openPositions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "alphafuse_open_positions",
				Help: "Open positions seen in the last exit sweep",
			},
		),
	}
}

// RecordDecision counts an emitted decision.
func (r *Recorder) RecordDecision(symbol, action string) {
	r.decisions.WithLabelValues(symbol, action).Inc()
}

// RecordGateRejection counts a decision rejected by a gate.
func (r *Recorder) RecordGateRejection(gate string) {
	r.gateRejections.WithLabelValues(gate).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordOpenPositions records the size of the open position set.
func (r *Recorder) RecordOpenPositions(n int) {
	r.openPositions.Set(float64(n))
}
