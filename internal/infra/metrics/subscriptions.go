package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mpesa-subscription-billing/internal/domain/model"
)

func init() {
	register(
		subscriptionsExpiredTotal,
		subscriptionsActivatedTotal,
		subscriptionsTotal,
	)
}

var (
	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Total number of subscriptions processed by the expiry worker.",
		},
	)

	subscriptionsActivatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_activated_total",
			Help: "Subscriptions activated by successful payment callbacks.",
		},
	)

	subscriptionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscriptions_total",
			Help: "Current number of subscriptions by status.",
		},
		[]string{"status"},
	)
)

func IncSubscriptionsExpired(count int) {
	subscriptionsExpiredTotal.Add(float64(count))
}

func IncSubscriptionActivated() {
	subscriptionsActivatedTotal.Inc()
}

func SetSubscriptionsTotal(counts map[model.SubscriptionStatus]int) {
	statuses := []model.SubscriptionStatus{
		model.SubscriptionStatusTrialing,
		model.SubscriptionStatusActive,
		model.SubscriptionStatusPastDue,
		model.SubscriptionStatusCanceled,
		model.SubscriptionStatusExpired,
	}
	for _, status := range statuses {
		if count, ok := counts[status]; ok {
			subscriptionsTotal.WithLabelValues(string(status)).Set(float64(count))
		}
	}
}
