package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPRequests counts served requests by method, route pattern and status code.
var HTTPRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "finance_http_requests_total",
		Help: "Total number of HTTP requests served",
	},
	[]string{"method", "route", "status"},
)

// HTTPLatency records request handling time by route pattern.
var HTTPLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "finance_http_request_duration_seconds",
		Help:    "Latency in seconds to handle HTTP requests",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// RecordsBackedUp counts records written by successful backups, by kind
// (transactions, budgets, categories).
var RecordsBackedUp = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "finance_records_backed_up_total",
		Help: "Total number of records written by successful backups",
	},
	[]string{"kind"},
)

var (
	BackupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "finance_backup_failures_total",
			Help: "Total number of backups rolled back because of a database error",
		},
	)

	DatabaseUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "finance_database_up",
			Help: "1 if the last health check reached the database, 0 otherwise",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPLatency)
	prometheus.MustRegister(RecordsBackedUp, BackupFailures, DatabaseUp)
}
