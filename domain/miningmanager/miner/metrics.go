package miner

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusHashesTried prometheus.Counter
	prometheusBlocksFound *prometheus.CounterVec
	prometheusHashRate    prometheus.Gauge
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusHashesTried = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ledgerd",
			Subsystem: "miner",
			Name:      "hashes_tried",
			Help:      "Number of nonces tried by the miner",
		},
	)

	prometheusBlocksFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledgerd",
			Subsystem: "miner",
			Name:      "blocks_found",
			Help:      "Number of blocks found by the miner, by the status they were submitted with",
		},
		[]string{"status"},
	)

	prometheusHashRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ledgerd",
			Subsystem: "miner",
			Name:      "hash_rate",
			Help:      "Hashes per second over the last sampling interval",
		},
	)
}
