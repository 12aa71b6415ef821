// Package metrics defines Prometheus collectors for the checkout saga.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckoutAttempts counts checkout runs by outcome
	// (completed, purchase_failed, conflict, invalid, error).
	CheckoutAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_attempts_total",
			Help: "Total number of checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	// CheckoutDuration observes end-to-end checkout latency.
	CheckoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkout_duration_seconds",
			Help:    "End-to-end checkout duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// CompensationsIssued counts compensating cancel calls by result.
	CompensationsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_compensations_total",
			Help: "Total number of compensating cancel calls by result",
		},
		[]string{"result"},
	)

	// GatewayCallDuration observes product gateway call latency by operation.
	GatewayCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "product_gateway_call_duration_seconds",
			Help:    "Product gateway call duration in seconds by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)
