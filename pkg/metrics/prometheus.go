package metrics

import (
	"errors"
	"strconv"
	"time"

	"FinSignal/internal/domain/errs"
	"FinSignal/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	callsTotal   *prometheus.CounterVec
	callLatency  *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	signalsTotal *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
}

// New creates a recorder registered on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		callsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsignal_component_calls_total",
				Help: "Calls into pipeline components by outcome",
			},
			[]string{"component", "outcome"},
		),
		callLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finsignal_component_duration_seconds",
				Help:    "Duration of component calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"component"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsignal_cache_lookups_total",
				Help: "Cache lookups by category, tier and result",
			},
			[]string{"category", "tier", "result"},
		),
		signalsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsignal_signals_total",
				Help: "Signals generated by action",
			},
			[]string{"action", "degraded"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsignal_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finsignal_last_price",
				Help: "Last streamed trade price for a symbol",
			},
			[]string{"symbol"},
		),
	}
}

// ObserveCall records a component call's latency and outcome.
func (r *Recorder) ObserveCall(component string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = errs.Kind(err)
		if errors.Is(err, errs.ErrNoSentimentAvailable) {
			// an answer, not a fault
			outcome = "empty"
		}
		r.errorsTotal.WithLabelValues(component).Inc()
	}
	r.callsTotal.WithLabelValues(component, outcome).Inc()
	r.callLatency.WithLabelValues(component).Observe(d.Seconds())
}

// ObserveCache records a cache lookup on one tier.
func (r *Recorder) ObserveCache(category, tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(category, tier, result).Inc()
}

// ObserveSignal counts a generated signal. Symbols are not a label to keep cardinality bounded.
func (r *Recorder) ObserveSignal(_ string, action models.Action, degraded bool) {
	r.signalsTotal.WithLabelValues(string(action), strconv.FormatBool(degraded)).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}
