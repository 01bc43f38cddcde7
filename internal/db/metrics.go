package db

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	maintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexsync_maintenance_runs_total",
			Help: "Total number of maintenance runs by outcome",
		},
		[]string{"db", "outcome"},
	)

	maintenanceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "indexsync_maintenance_duration_seconds",
			Help:    "Duration of maintenance runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"db"},
	)

	maintenanceLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexsync_maintenance_last_run_timestamp",
			Help: "Unix timestamp of the last maintenance run",
		},
		[]string{"db"},
	)

	maintenanceReclaimed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexsync_maintenance_reclaimed_bytes",
			Help: "Bytes reclaimed by the last maintenance run",
		},
		[]string{"db"},
	)

	walCheckpoints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexsync_wal_checkpoints_total",
			Help: "Total number of WAL checkpoints by mode",
		},
		[]string{"db", "mode"},
	)

	vacuums = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexsync_vacuums_total",
			Help: "Total number of completed VACUUM operations",
		},
		[]string{"db"},
	)

	dbSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexsync_db_size_bytes",
			Help: "Size of the database file plus its WAL and shared memory files",
		},
		[]string{"db"},
	)
)

func maintenanceRunLog(db string, err error, took time.Duration, at time.Time) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	maintenanceRuns.WithLabelValues(db, outcome).Inc()
	maintenanceDuration.WithLabelValues(db).Observe(took.Seconds())
	maintenanceLastRun.WithLabelValues(db).Set(float64(at.Unix()))
}

func reclaimedSet(db string, bytes int64) {
	maintenanceReclaimed.WithLabelValues(db).Set(float64(bytes))
}

func walCheckpointInc(db, mode string) {
	walCheckpoints.WithLabelValues(db, strings.ToLower(mode)).Inc()
}

func vacuumInc(db string) {
	vacuums.WithLabelValues(db).Inc()
}

func dbSizeSet(db string, bytes int64) {
	dbSize.WithLabelValues(db).Set(float64(bytes))
}
