// Package metrics holds the Prometheus collectors shared across the quote
// engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	QuoteLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swapwatch_quote_latency_seconds",
		Help:    "Time to obtain a quote from a venue",
		Buckets: prometheus.DefBuckets,
	}, []string{"venue"})

	QuoteErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swapwatch_quote_errors_total",
		Help: "Quote failures by venue and error kind",
	}, []string{"venue", "kind"})

	FeeEstimates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swapwatch_fee_estimates_total",
		Help: "Fee estimations by outcome (full, partial, none)",
	}, []string{"outcome"})

	LoopDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "swapwatch_loop_duration_seconds",
		Help:    "Duration of one evaluation pass over all pairs",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	Opportunities = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swapwatch_opportunities_total",
		Help: "Round trips that cleared the minimum profit",
	}, []string{"pair"})

	LastProfit = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "swapwatch_last_profit",
		Help: "Profit of the most recent evaluated round trip, in base units",
	}, []string{"pair", "amount"})

	BookUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swapwatch_book_updates_total",
		Help: "Order book snapshots written by the depth feed, by result",
	}, []string{"symbol", "result"})

	FeedReconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swapwatch_feed_reconnects_total",
		Help: "Depth stream reconnect attempts",
	})
)

func init() {
	prometheus.MustRegister(
		QuoteLatency,
		QuoteErrors,
		FeeEstimates,
		LoopDuration,
		Opportunities,
		LastProfit,
		BookUpdates,
		FeedReconnects,
	)
}
