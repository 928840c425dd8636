package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PaymentIntentTotal counts order-intent creation outcomes.
	PaymentIntentTotal *prometheus.CounterVec
	// PaymentVerifyTotal counts callback signature verification outcomes.
	PaymentVerifyTotal *prometheus.CounterVec
	// PaymentReconcileTotal counts reconciliation outcomes for stuck intents.
	PaymentReconcileTotal *prometheus.CounterVec
	// GatewayRequestLatency records gateway REST call latency in milliseconds.
	GatewayRequestLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PaymentIntentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_intent_total",
			Help:      "Count of payment intent creation outcomes.",
		}, []string{"result"})
		PaymentVerifyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_verify_total",
			Help:      "Count of callback verification outcomes.",
		}, []string{"result"})
		PaymentReconcileTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_reconcile_total",
			Help:      "Count of reconciled pending intents by outcome.",
		}, []string{"result"})
		GatewayRequestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_ms",
			Help:      "Latency of outbound payment gateway calls in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"operation", "result"})

		PaymentIntentTotal = registerCounterVec(reg, PaymentIntentTotal)
		PaymentVerifyTotal = registerCounterVec(reg, PaymentVerifyTotal)
		PaymentReconcileTotal = registerCounterVec(reg, PaymentReconcileTotal)
		GatewayRequestLatency = registerHistogramVec(reg, GatewayRequestLatency)
	})
}
