package chainstate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tipHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexsync_chain_tip_height",
			Help: "Height of the active chain tip",
		},
	)

	blocksConnected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indexsync_chain_blocks_connected_total",
			Help: "Total number of blocks connected to the active chain",
		},
	)

	blocksDisconnected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indexsync_chain_blocks_disconnected_total",
			Help: "Total number of blocks disconnected from the active chain by reorgs",
		},
	)

	flushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indexsync_chain_flushes_total",
			Help: "Total number of chain state flush notifications",
		},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexsync_notification_queue_depth",
			Help: "Number of callbacks waiting in the notification queue",
		},
	)

	prunedBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indexsync_chain_pruned_blocks_total",
			Help: "Total number of blocks whose data was pruned",
		},
	)

	pruneHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexsync_chain_prune_height",
			Help: "Highest height whose block data has been pruned",
		},
	)
)

func tipHeightSet(height uint64) {
	tipHeight.Set(float64(height))
}

func blocksConnectedInc() {
	blocksConnected.Inc()
}

func blocksDisconnectedInc() {
	blocksDisconnected.Inc()
}

func flushesInc() {
	flushes.Inc()
}

func queueDepthSet(depth int64) {
	queueDepth.Set(float64(depth))
}

func prunedBlocksAdd(n int) {
	prunedBlocks.Add(float64(n))
}

func pruneHeightSet(height uint64) {
	pruneHeight.Set(float64(height))
}
