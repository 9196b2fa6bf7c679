package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============ Feed ============

// FeedMessages counts feed messages by outcome: applied, drained, dropped, malformed.
var FeedMessages = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autoexit",
		Subsystem: "feed",
		Name:      "messages_total",
		Help:      "Feed messages received, by outcome",
	},
	[]string{"result"},
)

// FeedSourceErrors counts dial and receive failures of a feed source.
var FeedSourceErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autoexit",
		Subsystem: "feed",
		Name:      "source_errors_total",
		Help:      "Feed source dial or receive errors, by transport",
	},
	[]string{"transport"},
)

var QuotesCached = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "autoexit",
		Subsystem: "feed",
		Name:      "quotes_cached",
		Help:      "Symbols with a cached quote",
	},
)

// ============ Engine ============

var MarketOpen = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "autoexit",
		Subsystem: "engine",
		Name:      "market_open",
		Help:      "1 while the market session is open",
	},
)

var EvaluationDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "autoexit",
		Subsystem: "engine",
		Name:      "evaluation_cycle_seconds",
		Help:      "Duration of one full rule evaluation cycle",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	},
)

var RulesEvaluated = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "autoexit",
		Subsystem: "engine",
		Name:      "rules_evaluated_total",
		Help:      "Active rules evaluated",
	},
)

// RuleTriggers counts triggered rules by reason.
var RuleTriggers = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autoexit",
		Subsystem: "engine",
		Name:      "rule_triggers_total",
		Help:      "Rules that met an exit condition, by reason",
	},
	[]string{"reason"},
)

var PositionFetchErrors = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "autoexit",
		Subsystem: "engine",
		Name:      "position_fetch_errors_total",
		Help:      "Failed position fetches, one per user per cycle",
	},
)

var LoopErrors = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "autoexit",
		Subsystem: "engine",
		Name:      "loop_errors_total",
		Help:      "Unexpected errors recovered by the supervising loop",
	},
)

// ============ Exits ============

// ExitOrders counts exit order attempts by status: submitted, rejected, error.
var ExitOrders = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autoexit",
		Subsystem: "exit",
		Name:      "orders_total",
		Help:      "Exit order attempts, by status",
	},
	[]string{"status"},
)

var ExitOrderLatency = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "autoexit",
		Subsystem: "exit",
		Name:      "order_latency_seconds",
		Help:      "Time to submit an exit order to the broker",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
)
