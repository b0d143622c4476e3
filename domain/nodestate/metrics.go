package nodestate

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusBlocksProcessed     *prometheus.CounterVec
	prometheusReorgs              prometheus.Counter
	prometheusTransactions        *prometheus.CounterVec
	prometheusEvictedTransactions prometheus.Counter
	prometheusSelectedTipHeight   prometheus.Gauge
	prometheusMempoolSize         prometheus.Gauge
	prometheusOrphanBlocks        prometheus.Gauge
	prometheusUTXOSetSize         prometheus.Gauge
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusBlocksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledgerd",
			Subsystem: "nodestate",
			Name:      "blocks_processed",
			Help:      "Number of submitted blocks, by outcome",
		},
		[]string{"status"},
	)

	prometheusReorgs = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ledgerd",
			Subsystem: "nodestate",
			Name:      "reorgs",
			Help:      "Number of times the selected chain switched to another branch",
		},
	)

	prometheusTransactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledgerd",
			Subsystem: "nodestate",
			Name:      "transactions_processed",
			Help:      "Number of submitted transactions, by outcome",
		},
		[]string{"status"},
	)

	prometheusEvictedTransactions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ledgerd",
			Subsystem: "nodestate",
			Name:      "evicted_transactions",
			Help:      "Number of mempool transactions evicted after the selected chain changed",
		},
	)

	prometheusSelectedTipHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ledgerd",
			Subsystem: "nodestate",
			Name:      "selected_tip_height",
			Help:      "Height of the selected tip",
		},
	)

	prometheusMempoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ledgerd",
			Subsystem: "nodestate",
			Name:      "mempool_size",
			Help:      "Number of transactions in the mempool",
		},
	)

	prometheusOrphanBlocks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ledgerd",
			Subsystem: "nodestate",
			Name:      "orphan_blocks",
			Help:      "Number of blocks in the orphan pool",
		},
	)

	prometheusUTXOSetSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ledgerd",
			Subsystem: "nodestate",
			Name:      "utxo_set_size",
			Help:      "Number of unspent outputs on the selected chain",
		},
	)
}

// updateGauges must be called with the state lock held.
func (ns *NodeState) updateGauges() {
	prometheusSelectedTipHeight.Set(float64(ns.chainManager.SelectedTip().Height))
	prometheusMempoolSize.Set(float64(ns.miningManager.TransactionCount()))
	prometheusOrphanBlocks.Set(float64(ns.blockManager.OrphanCount()))
	prometheusUTXOSetSize.Set(float64(ns.chainManager.UTXOSet().Len()))
}
