// Package metrics holds the process-wide collectors and the Prometheus endpoint.
// Package-specific collectors live next to the code they observe.
package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexsync_db_queries_total",
			Help: "Total number of checkpoint store operations",
		},
		[]string{"db", "operation"},
	)

	storeOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "indexsync_db_query_duration_seconds",
			Help:    "Duration of checkpoint store operations",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"db", "operation"},
	)

	storeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexsync_db_errors_total",
			Help: "Total number of failed checkpoint store operations",
		},
		[]string{"db", "operation"},
	)

	componentErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexsync_errors_total",
			Help: "Total number of errors by component and severity",
		},
		[]string{"component", "severity"},
	)

	componentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexsync_component_health",
			Help: "Component health (1=healthy, 0=unhealthy)",
		},
		[]string{"component"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexsync_build_info",
			Help: "Always 1, labelled with the running version",
		},
		[]string{"version"},
	)

	uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexsync_uptime_seconds",
			Help: "Process uptime in seconds",
		},
	)

	goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexsync_goroutines",
			Help: "Number of live goroutines",
		},
	)

	memory = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexsync_memory_usage_bytes",
			Help: "Go runtime memory statistics",
		},
		[]string{"type"},
	)

	startTime = time.Now()
)

// StoreOpLog records one checkpoint store operation.
func StoreOpLog(db, operation string, took time.Duration, err error) {
	storeOps.WithLabelValues(db, operation).Inc()
	storeOpDuration.WithLabelValues(db, operation).Observe(took.Seconds())
	if err != nil {
		storeErrors.WithLabelValues(db, operation).Inc()
	}
}

// ErrorsInc counts an error of component. severity is "error" or "fatal".
func ErrorsInc(component, severity string) {
	componentErrors.WithLabelValues(component, severity).Inc()
}

func ComponentHealthSet(component string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1
	}
	componentHealth.WithLabelValues(component).Set(v)
}

// BuildInfoSet publishes the running version.
func BuildInfoSet(version string) {
	buildInfo.WithLabelValues(version).Set(1)
}

// UpdateSystemMetrics samples the Go runtime.
func UpdateSystemMetrics() {
	uptime.Set(time.Since(startTime).Seconds())
	goroutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	memory.WithLabelValues("alloc").Set(float64(m.Alloc))
	memory.WithLabelValues("heap_inuse").Set(float64(m.HeapInuse))
	memory.WithLabelValues("sys").Set(float64(m.Sys))
}
