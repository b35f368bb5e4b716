package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the trading core, scraped via /metrics
// (internal/api/routes.go). Namespaced "tradeengine" to distinguish
// this process's series from any co-located exporter.

// OrderExecutionLatency - time to place an order on the broker.
var OrderExecutionLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "tradeengine",
		Subsystem: "trading",
		Name:      "order_execution_latency_ms",
		Help:      "Time to place an order on the broker in milliseconds",
		Buckets:   []float64{10, 25, 50, 100, 200, 300, 500, 1000, 2000, 5000},
	},
	[]string{"side", "stage"}, // stage: entry, exit
)

// AlertsDispatched - alerts received through the webhook, by alert name.
var AlertsDispatched = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradeengine",
		Subsystem: "trading",
		Name:      "alerts_dispatched_total",
		Help:      "Total number of alerts dispatched through the webhook",
	},
	[]string{"alert"},
)

// EntryResults - Entry Path outcomes, by terminal status/reason.
var EntryResults = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradeengine",
		Subsystem: "trading",
		Name:      "entry_results_total",
		Help:      "Entry Path outcomes by status and reason",
	},
	[]string{"status", "reason"}, // status: ENTERED, REJECTED, SKIPPED, ERROR
)

// ExitsTotal - Exit Path completions, by reason.
var ExitsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradeengine",
		Subsystem: "trading",
		Name:      "exits_total",
		Help:      "Total number of position exits by reason",
	},
	[]string{"reason"}, // TARGET, STOP_LOSS, TRAILING_SL, MANUAL, AUTO_SQ_OFF
)

// ActivePositions - current number of open positions.
var ActivePositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradeengine",
		Subsystem: "trading",
		Name:      "active_positions",
		Help:      "Current number of open positions",
	},
)

// KillSwitchEngagements - number of times the kill switch was engaged
// automatically (not via the admin API), by cause.
var KillSwitchEngagements = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradeengine",
		Subsystem: "risk",
		Name:      "kill_switch_engagements_total",
		Help:      "Number of automatic kill switch engagements",
	},
	[]string{"cause"},
)

// BrokerConnectionStatus - broker session health (1=connected, 0=not).
var BrokerConnectionStatus = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradeengine",
		Subsystem: "broker",
		Name:      "connection_status",
		Help:      "Broker connection status (1=connected, 0=disconnected)",
	},
)

// recordEntryResult tallies one Entry Path outcome.
func recordEntryResult(status, reason string) {
	EntryResults.WithLabelValues(status, reason).Inc()
	if status == "ENTERED" {
		ActivePositions.Inc()
	}
}

// recordExit tallies one Exit Path completion.
func recordExit(reason string) {
	ExitsTotal.WithLabelValues(reason).Inc()
	ActivePositions.Dec()
}

// recordKillSwitchEngagement tallies one automatic kill switch trip,
// keyed by a short cause tag rather than the full free-text cause
// string (unbounded label cardinality would defeat Prometheus's
// storage model).
func recordKillSwitchEngagement(cause string) {
	KillSwitchEngagements.WithLabelValues(cause).Inc()
}
