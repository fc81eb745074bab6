package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quoteflow"

// Outcome labels shared by the flow counters.
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeDeclined   = "declined"
	OutcomeIneligible = "ineligible"
	OutcomeInvalid    = "invalid"
	OutcomeCancelled  = "cancelled"
	OutcomeUnrecorded = "unrecorded"
)

// FlowMetrics records quote, payment and backend call activity.
type FlowMetrics struct {
	quotes     *prometheus.CounterVec
	payments   *prometheus.CounterVec
	shares     *prometheus.CounterVec
	backend    *prometheus.HistogramVec
	unrecorded prometheus.Counter
}

// NewFlowMetrics registers the flow metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewFlowMetrics(reg prometheus.Registerer) *FlowMetrics {
	if reg == nil {
		return &FlowMetrics{}
	}
	quotes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quotes_total",
		Help:      "Quote generation attempts by product kind and outcome.",
	}, []string{"kind", "outcome"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payments_total",
		Help:      "Card payment attempts by outcome.",
	}, []string{"outcome"})
	shares := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "shares_total",
		Help:      "Reseller share actions by action and outcome.",
	}, []string{"action", "outcome"})
	backend := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_request_duration_seconds",
		Help:      "Duration of calls to the insurance backend.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint", "status"})
	unrecorded := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "unrecorded_charges_total",
		Help:      "Approved charges whose transaction record could not be saved.",
	})
	reg.MustRegister(quotes, payments, shares, backend, unrecorded)
	return &FlowMetrics{
		quotes:     quotes,
		payments:   payments,
		shares:     shares,
		backend:    backend,
		unrecorded: unrecorded,
	}
}

// IncQuote counts a quote attempt for the given kind.
func (m *FlowMetrics) IncQuote(kind, outcome string) {
	if m == nil || m.quotes == nil {
		return
	}
	m.quotes.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

// IncPayment counts a payment attempt.
func (m *FlowMetrics) IncPayment(outcome string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncShare counts a share create or email action.
func (m *FlowMetrics) IncShare(action, outcome string) {
	if m == nil || m.shares == nil {
		return
	}
	m.shares.WithLabelValues(normalizeLabel(action), normalizeLabel(outcome)).Inc()
}

// ObserveBackend records the duration of one backend call.
func (m *FlowMetrics) ObserveBackend(endpoint, status string, duration time.Duration) {
	if m == nil || m.backend == nil {
		return
	}
	m.backend.WithLabelValues(normalizeLabel(endpoint), normalizeLabel(status)).Observe(duration.Seconds())
}

// IncUnrecorded counts a charge that was journaled instead of saved.
func (m *FlowMetrics) IncUnrecorded() {
	if m == nil || m.unrecorded == nil {
		return
	}
	m.unrecorded.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
