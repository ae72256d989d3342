package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "branch-ledger/pkg/errors"
)

const prefix = "branch_ledger"

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	OperationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_operations_total",
			Help: "Ledger and transfer operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_operation_duration_seconds",
			Help:    "Duration of ledger and transfer operations including lock waits",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	MovementsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_movements_total",
			Help: "Stock movement rows written, by action",
		},
		[]string{"action"},
	)

	MovedUnitsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_moved_units_total",
			Help: "Units carried by stock movement rows, by action",
		},
		[]string{"action"},
	)
)

// TrackOperation returns a func to defer with the operation's final error.
//
//	defer metrics.TrackOperation("add_stock")(&err)
func TrackOperation(operation string) func(errp *error) {
	start := time.Now()
	return func(errp *error) {
		OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		var err error
		if errp != nil {
			err = *errp
		}
		OperationsCounter.WithLabelValues(operation, Outcome(err)).Inc()
	}
}

// Outcome labels an operation result: "ok", the ledger error kind, or "error".
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind, ok := apperrors.KindOf(err); ok {
		return string(kind)
	}
	return "error"
}

func RecordMovement(action string, quantity int) {
	MovementsCounter.WithLabelValues(action).Inc()
	MovedUnitsCounter.WithLabelValues(action).Add(float64(quantity))
}
