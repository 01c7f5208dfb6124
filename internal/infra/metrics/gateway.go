package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		gatewayRequestsTotal,
		gatewayLatencyMs,
		tokenCacheRequests,
	)
}

var (
	gatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpesa_gateway_requests_total",
			Help: "Outbound Daraja calls by endpoint (auth/stkpush) and success.",
		},
		[]string{"endpoint", "success"},
	)

	gatewayLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mpesa_gateway_latency_ms",
			Help:    "Daraja call latency distribution in milliseconds.",
			Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 30000},
		},
		[]string{"endpoint"},
	)

	tokenCacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpesa_token_cache_requests_total",
			Help: "Access-token lookups by outcome (hit/miss).",
		},
		[]string{"outcome"},
	)
)

func ObserveGatewayCall(endpoint string, success bool, elapsedMs float64) {
	gatewayRequestsTotal.WithLabelValues(norm(endpoint), strconv.FormatBool(success)).Inc()
	gatewayLatencyMs.WithLabelValues(norm(endpoint)).Observe(elapsedMs)
}

func IncTokenCache(outcome string) {
	tokenCacheRequests.WithLabelValues(norm(outcome)).Inc()
}
