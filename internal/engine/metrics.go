package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the four-lane pipeline. Labels use the Lane string
// values so dashboards line up with log fields.

var packetsSubmitted = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "engine",
		Name:      "packets_submitted_total",
		Help:      "Total number of opportunity packets submitted",
	},
)

var laneProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "engine",
		Name:      "lane_processed_total",
		Help:      "Packets processed per lane by outcome",
	},
	[]string{"lane", "outcome"},
)

var laneDropped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "engine",
		Name:      "lane_dropped_total",
		Help:      "Packets dropped on a full lane queue",
	},
	[]string{"lane"},
)

var queueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "dexarb",
		Subsystem: "engine",
		Name:      "lane_queue_depth",
		Help:      "Current number of packets waiting in a lane queue",
	},
	[]string{"lane"},
)

var executionLatency = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "dexarb",
		Subsystem: "engine",
		Name:      "execution_latency_seconds",
		Help:      "Production lane execution latency",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	},
)

var shadowDiscrepancy = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "dexarb",
		Subsystem: "engine",
		Name:      "shadow_discrepancy_dollars",
		Help:      "Absolute profit difference between production and shadow",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
	},
)
