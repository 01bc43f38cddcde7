package rpc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexsync_rpc_requests_total",
		Help: "RPC requests by method",
	}, []string{"method"})

	requestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexsync_rpc_errors_total",
		Help: "Failed RPC requests by method and error type",
	}, []string{"method", "error_type"})

	retries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexsync_rpc_retries_total",
		Help: "RPC retries by method",
	}, []string{"method"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "indexsync_rpc_request_duration_seconds",
		Help:    "Duration of RPC requests including retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

// requestLog records one request of method, retries included.
func requestLog(method string, took time.Duration, err error) {
	requests.WithLabelValues(method).Inc()
	requestDuration.WithLabelValues(method).Observe(took.Seconds())
	if err != nil {
		requestErrors.WithLabelValues(method, ErrorType(err)).Inc()
	}
}

func retryInc(method string) {
	retries.WithLabelValues(method).Inc()
}
