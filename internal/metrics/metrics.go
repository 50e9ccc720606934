// Package metrics exposes Prometheus instruments for message exchanges.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "threadchat"

// Outcome labels for a finished exchange.
const (
	OutcomeOK         = "ok"
	OutcomeNotFound   = "not_found"
	OutcomeValidation = "validation"
	OutcomeProvider   = "provider_error"
	OutcomeInternal   = "internal_error"
)

// Exchange records one counter per outcome and the provider call latency.
type Exchange struct {
	exchanges       *prometheus.CounterVec
	providerLatency prometheus.Histogram
	placeholders    prometheus.Counter
}

// NewExchange registers the exchange instruments on reg. A nil reg leaves them
// unregistered, which tests use to avoid global state.
func NewExchange(reg prometheus.Registerer) *Exchange {
	m := &Exchange{
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_total",
			Help:      "Message exchanges handled, by outcome.",
		}, []string{"outcome"}),
		providerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Latency of completion provider calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		placeholders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "placeholder_replies_total",
			Help:      "Replies replaced by the placeholder because the provider returned no text.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.exchanges, m.providerLatency, m.placeholders)
	}
	return m
}

func (m *Exchange) Observe(outcome string) {
	if m == nil {
		return
	}
	m.exchanges.WithLabelValues(outcome).Inc()
}

func (m *Exchange) ObserveProvider(d time.Duration) {
	if m == nil {
		return
	}
	m.providerLatency.Observe(d.Seconds())
}

func (m *Exchange) ObservePlaceholder() {
	if m == nil {
		return
	}
	m.placeholders.Inc()
}

func (m *Exchange) counter(outcome string) prometheus.Counter {
	return m.exchanges.WithLabelValues(outcome)
}
