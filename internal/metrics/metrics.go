package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "payledger"

// Metrics holds the Prometheus instruments of the ledger. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	paymentsCreated     *prometheus.CounterVec
	transitions         *prometheus.CounterVec
	webhooksReceived    *prometheus.CounterVec
	webhooksRejected    *prometheus.CounterVec
	sweepRuns           *prometheus.CounterVec
	sweepExpired        prometheus.Counter
	payoutsCreated      *prometheus.CounterVec
	gatewayCallDuration *prometheus.HistogramVec
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		paymentsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_created_total",
			Help:      "Payments persisted as PENDING.",
		}, []string{"gateway", "kind"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_transitions_total",
			Help:      "Applied payment status transitions.",
		}, []string{"status", "source"}),
		webhooksReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_received_total",
			Help:      "Webhook deliveries that passed signature verification.",
		}, []string{"gateway"}),
		webhooksRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_rejected_total",
			Help:      "Webhook deliveries rejected for an invalid signature.",
		}, []string{"gateway"}),
		sweepRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expiry_sweeps_total",
			Help:      "Expiry sweep runs by outcome.",
		}, []string{"outcome"}),
		sweepExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expiry_sweep_expired_total",
			Help:      "Payments expired by the sweep.",
		}),
		payoutsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payouts_created_total",
			Help:      "Payouts persisted as PENDING.",
		}, []string{"gateway"}),
		gatewayCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_call_duration_seconds",
			Help:      "Duration of calls to external gateways.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"gateway", "operation", "outcome"}),
	}
}

// PaymentCreated counts a new PENDING payment.
func (m *Metrics) PaymentCreated(gateway, kind string) {
	if m == nil {
		return
	}
	m.paymentsCreated.WithLabelValues(gateway, kind).Inc()
}

// Transitioned counts an applied transition.
func (m *Metrics) Transitioned(status, source string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status, source).Inc()
}

// WebhookReceived counts a verified webhook.
func (m *Metrics) WebhookReceived(gateway string) {
	if m == nil {
		return
	}
	m.webhooksReceived.WithLabelValues(gateway).Inc()
}

// WebhookRejected counts a webhook with a bad signature.
func (m *Metrics) WebhookRejected(gateway string) {
	if m == nil {
		return
	}
	m.webhooksRejected.WithLabelValues(gateway).Inc()
}

// SweepRun counts one sweep attempt. outcome is "ran", "skipped" or "error".
func (m *Metrics) SweepRun(outcome string, expired int) {
	if m == nil {
		return
	}
	m.sweepRuns.WithLabelValues(outcome).Inc()
	m.sweepExpired.Add(float64(expired))
}

// PayoutCreated counts a new PENDING payout.
func (m *Metrics) PayoutCreated(gateway string) {
	if m == nil {
		return
	}
	m.payoutsCreated.WithLabelValues(gateway).Inc()
}

// ObserveGatewayCall records the duration of one gateway call.
func (m *Metrics) ObserveGatewayCall(gateway, operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.gatewayCallDuration.WithLabelValues(gateway, operation, outcome).Observe(d.Seconds())
}
