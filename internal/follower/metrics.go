package follower

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	headHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexsync_follower_head_height",
			Help: "Height of the node head for the followed finality tag",
		},
	)

	blocksFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indexsync_follower_blocks_fetched_total",
			Help: "Total number of blocks fetched from the node",
		},
	)

	reorgsDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indexsync_reorgs_detected_total",
			Help: "Total number of blockchain reorganizations detected",
		},
	)

	reorgDepth = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "indexsync_reorg_depth_blocks",
			Help:    "Depth of blockchain reorganizations in blocks",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	reorgLastDetected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexsync_reorg_last_detected_timestamp",
			Help: "Unix timestamp of last reorg detection",
		},
	)
)

func headHeightSet(height uint64) {
	headHeight.Set(float64(height))
}

func blocksFetchedInc() {
	blocksFetched.Inc()
}

func reorgDetectedLog(depth uint64, at time.Time) {
	reorgsDetected.Inc()
	reorgDepth.Observe(float64(depth))
	reorgLastDetected.Set(float64(at.UTC().Unix()))
}
