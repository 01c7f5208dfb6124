package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		callbacksTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by status (pending/completed/failed/canceled).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of completed payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	callbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpesa_callbacks_total",
			Help: "STK callbacks by outcome (completed/failed/duplicate/unknown/malformed/missing_receipt).",
		},
		[]string{"outcome"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncCallback(outcome string) {
	callbacksTotal.WithLabelValues(norm(outcome)).Inc()
}

func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
