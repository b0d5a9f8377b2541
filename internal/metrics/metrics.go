package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wearlog",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wearlog",
			Name:      "queue_depth",
			Help:      "Pending actions in the offline queue.",
		},
	)

	flushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wearlog",
			Name:      "flush_total",
			Help:      "Queue flush attempts by result.",
		},
		[]string{"result"},
	)

	actionsReplayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wearlog",
			Name:      "actions_replayed_total",
			Help:      "Queued actions successfully replayed, by kind.",
		},
		[]string{"kind"},
	)

	recordsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wearlog",
			Name:      "records_written_total",
			Help:      "Wear/wash events written by the server, by kind.",
		},
		[]string{"kind"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, queueDepth, flushTotal, actionsReplayed, recordsWritten)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// SetQueueDepth reports the current pending-action count.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// IncFlush counts one flush attempt with its result label.
func IncFlush(result string) {
	flushTotal.WithLabelValues(result).Inc()
}

// IncReplayed counts one replayed action of the given kind.
func IncReplayed(kind string) {
	actionsReplayed.WithLabelValues(kind).Inc()
}

// IncRecords counts server-side written events of the given kind.
func IncRecords(kind string, n int) {
	recordsWritten.WithLabelValues(kind).Add(float64(n))
}
