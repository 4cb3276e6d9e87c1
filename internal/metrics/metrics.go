// Package metrics exposes Prometheus counters and histograms for the
// request executor and the sync engine. Registration is lazy: a process
// that never calls Init runs with metrics disabled rather than panicking
// on double-registration in tests that construct multiple executors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	syncOperationsTotal *prometheus.CounterVec
	syncDuration        *prometheus.HistogramVec

	once       sync.Once
	registered bool
)

// Init registers every collector. Safe to call multiple times; only the
// first call takes effect.
func Init() {
	once.Do(func() {
		requestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restbench_requests_total",
				Help: "Total number of requests sent through the script executor.",
			},
			[]string{"method", "status"},
		)
		requestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "restbench_request_duration_seconds",
				Help:    "Duration of outbound requests sent through the script executor.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method"},
		)
		syncOperationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restbench_sync_operations_total",
				Help: "Total number of per-path sync decisions applied.",
			},
			[]string{"action"},
		)
		syncDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "restbench_sync_collection_duration_seconds",
				Help:    "Duration of a full collection reconcile pass.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"result"},
		)
		registered = true
	})
}

// RecordRequest records one script-executor HTTP send.
func RecordRequest(method, status string, durationSeconds float64) {
	if !registered {
		return
	}
	requestsTotal.WithLabelValues(method, status).Inc()
	requestDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordSyncOperation records one path-level sync decision ("pull",
// "push", "pull-delete", "push-delete", "noop", or "conflict").
func RecordSyncOperation(action string) {
	if !registered {
		return
	}
	syncOperationsTotal.WithLabelValues(action).Inc()
}

// RecordSyncCollection records the wall time of one full collection
// reconcile pass, tagged by its outcome ("ok", "conflict", or "error").
func RecordSyncCollection(result string, durationSeconds float64) {
	if !registered {
		return
	}
	syncDuration.WithLabelValues(result).Observe(durationSeconds)
}

// Registered reports whether Init has run, for tests that want to
// assert on collector state without forcing global registration.
func Registered() bool {
	return registered
}
