package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "campusrun"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mission_transitions_total",
			Help:      "Committed mission status changes by target status.",
		},
		[]string{"status"},
	)

	rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mission_operation_rejections_total",
			Help:      "Lifecycle operations refused, by operation and error kind.",
		},
		[]string{"operation", "kind"},
	)

	grpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC unary call latency by method and status code.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "code"},
	)

	syncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheets_sync_tasks_total",
			Help:      "Spreadsheet sync task outcomes.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, grpcDuration, transitions, rejections, syncTasks)
	})
}

func IncHTTP(route string, code int) {
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func ObserveGRPC(method, code string, d time.Duration) {
	grpcDuration.WithLabelValues(method, code).Observe(d.Seconds())
}

func IncTransition(status string) {
	transitions.WithLabelValues(status).Inc()
}

func IncRejection(operation, kind string) {
	rejections.WithLabelValues(operation, kind).Inc()
}

func IncSyncTask(result string) {
	syncTasks.WithLabelValues(result).Inc()
}
