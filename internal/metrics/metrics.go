package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_latency_seconds",
			Help:    "Latency of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// Ledger
	LedgerEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_entries_total",
			Help: "Total settled ledger entries",
		},
		[]string{"kind"},
	)

	// Settlement workflow
	ApplicationsSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applications_settled_total",
			Help: "Applications moved to a settlement decision",
		},
		[]string{"decision"}, // approved|rejected|completed
	)

	// Recharge pipeline
	RechargeOrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recharge_orders_total",
			Help: "Recharge orders by terminal status",
		},
		[]string{"status"},
	)
	PendingConfirmationResolved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pending_confirmation_resolved_total",
			Help: "Orders resolved by the reconciliation sweep",
		},
	)

	// External collaborators
	AggregatorErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregator_errors_total",
			Help: "Aggregator calls that failed or timed out",
		},
	)
)

// Handler serves the /metrics endpoint.
var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestLatency)
	prometheus.MustRegister(LedgerEntriesTotal)
	prometheus.MustRegister(ApplicationsSettled)
	prometheus.MustRegister(RechargeOrdersTotal)
	prometheus.MustRegister(PendingConfirmationResolved)
	prometheus.MustRegister(AggregatorErrors)
}
