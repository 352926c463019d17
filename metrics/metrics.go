// Package metrics exposes Prometheus instrumentation for session lifecycles.
//
// Metrics register on the default registry via promauto and are served by the
// standard promhttp handler. Session and transaction metrics are reported by
// the wrappers in this package (WrapConnect/WrapConn); pool gauges are pushed
// by the application via UpdateDBConnections.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session metrics
var (
	// SessionsOpened counts opened sessions by kind
	SessionsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sessionkit",
			Subsystem: "sessions",
			Name:      "opened_total",
			Help:      "Total number of sessions opened",
		},
		[]string{"kind"},
	)

	// SessionsActive tracks sessions that are open right now
	SessionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sessionkit",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of currently open sessions",
		},
		[]string{"kind"},
	)

	// SessionDuration measures session lifetime from open to close
	SessionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sessionkit",
			Subsystem: "sessions",
			Name:      "duration_seconds",
			Help:      "Session lifetime in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	// ConnectErrors counts failed connection attempts
	ConnectErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sessionkit",
			Subsystem: "sessions",
			Name:      "connect_errors_total",
			Help:      "Total number of failed connection attempts",
		},
		[]string{"kind"},
	)
)

// Transaction metrics
var (
	// TransactionsStarted counts started transactions by kind and isolation level
	TransactionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sessionkit",
			Subsystem: "tx",
			Name:      "started_total",
			Help:      "Total number of transactions started",
		},
		[]string{"kind", "isolation"},
	)

	// TransactionsCommitted counts committed transactions
	TransactionsCommitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sessionkit",
			Subsystem: "tx",
			Name:      "committed_total",
			Help:      "Total number of committed transactions",
		},
		[]string{"kind"},
	)

	// TransactionsRolledBack counts transactions released without a commit
	TransactionsRolledBack = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sessionkit",
			Subsystem: "tx",
			Name:      "rolled_back_total",
			Help:      "Total number of transactions closed without commit",
		},
		[]string{"kind"},
	)

	// TransactionErrors counts failed begin/commit operations
	TransactionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sessionkit",
			Subsystem: "tx",
			Name:      "errors_total",
			Help:      "Total number of failed transaction operations",
		},
		[]string{"kind", "operation"},
	)

	// TransactionDuration measures transaction lifetime from begin to commit or release
	TransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sessionkit",
			Subsystem: "tx",
			Name:      "duration_seconds",
			Help:      "Transaction duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"kind"},
	)
)

// Database connection metrics
var (
	// DBConnections tracks database connections by state
	DBConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sessionkit",
			Subsystem: "db",
			Name:      "connections",
			Help:      "Number of database connections",
		},
		[]string{"state"}, // idle, in_use, max
	)
)

// UpdateDBConnections updates database connection gauges from pool stats.
func UpdateDBConnections(idle, inUse, max int32) {
	DBConnections.WithLabelValues("idle").Set(float64(idle))
	DBConnections.WithLabelValues("in_use").Set(float64(inUse))
	DBConnections.WithLabelValues("max").Set(float64(max))
}
