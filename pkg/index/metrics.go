package index

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bestBlockHeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexsync_index_best_block_height",
			Help: "Height of the best block processed by each index",
		},
		[]string{"index"},
	)

	blocksAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexsync_index_blocks_appended_total",
			Help: "Total number of blocks applied to each index",
		},
		[]string{"index", "phase"},
	)

	rewinds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexsync_index_rewinds_total",
			Help: "Total number of rewinds performed by each index",
		},
		[]string{"index"},
	)

	commits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexsync_index_commits_total",
			Help: "Total number of checkpoint commits by outcome",
		},
		[]string{"index", "status"},
	)

	staleFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexsync_index_stale_flushes_total",
			Help: "Total number of chain flush notifications ignored as stale",
		},
		[]string{"index"},
	)

	fatalErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexsync_index_fatal_errors_total",
			Help: "Total number of fatal errors raised by each index",
		},
		[]string{"index"},
	)

	syncState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexsync_index_state",
			Help: "Sync state of each index (0=uninitialized, 1=catching up, 2=synced)",
		},
		[]string{"index"},
	)
)

func bestBlockHeightSet(index string, height uint64) {
	bestBlockHeight.WithLabelValues(index).Set(float64(height))
}

func blocksAppendedInc(index, phase string) {
	blocksAppended.WithLabelValues(index, phase).Inc()
}

func rewindsInc(index string) {
	rewinds.WithLabelValues(index).Inc()
}

func commitSuccessInc(index string) {
	commits.WithLabelValues(index, "success").Inc()
}

func commitErrorInc(index string) {
	commits.WithLabelValues(index, "error").Inc()
}

func staleFlushesInc(index string) {
	staleFlushes.WithLabelValues(index).Inc()
}

func fatalErrorsInc(index string) {
	fatalErrors.WithLabelValues(index).Inc()
}

func syncStateSet(index string, state State) {
	syncState.WithLabelValues(index).Set(float64(state))
}
