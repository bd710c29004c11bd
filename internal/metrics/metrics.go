package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefreshesTotal tracks refresh attempts per partition and trigger
	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashcore_refreshes_total",
			Help: "Total number of partition refreshes",
		},
		[]string{"partition", "trigger"},
	)

	// RefreshErrorsTotal tracks failed partition fetches
	RefreshErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashcore_refresh_errors_total",
			Help: "Total number of failed partition fetches",
		},
		[]string{"partition"},
	)

	// CoalescedRefreshesTotal tracks callers that joined an in-flight fetch
	CoalescedRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashcore_coalesced_refreshes_total",
			Help: "Refresh calls that awaited an already in-flight fetch",
		},
		[]string{"partition"},
	)

	// StaleResultsDiscarded tracks late fetch results dropped by the generation check
	StaleResultsDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashcore_stale_results_discarded_total",
			Help: "Fetch results discarded because a newer fetch superseded them",
		},
		[]string{"partition"},
	)

	// LedgerCallsTotal tracks ledger RPC calls by method
	LedgerCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashcore_ledger_calls_total",
			Help: "Total number of ledger RPC calls",
		},
		[]string{"method"},
	)

	// LedgerErrorsTotal tracks ledger RPC failures by method
	LedgerErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashcore_ledger_errors_total",
			Help: "Total number of ledger RPC errors",
		},
		[]string{"method"},
	)

	// LedgerLatency tracks ledger RPC latency
	LedgerLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashcore_ledger_latency_seconds",
			Help:    "Ledger RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// PriceSamplesDropped tracks swap samples rejected by the zero guard
	PriceSamplesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashcore_price_samples_dropped_total",
			Help: "Swap samples dropped due to zero or negative amounts",
		},
	)

	// PriceSeriesLength tracks the current price series size
	PriceSeriesLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashcore_price_series_length",
			Help: "Number of points currently held in the price series",
		},
	)

	// BusPublishesTotal tracks bus publishes per topic
	BusPublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashcore_bus_publishes_total",
			Help: "Total number of broadcast bus publishes",
		},
		[]string{"topic"},
	)
)
