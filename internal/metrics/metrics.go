package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCallsTotal tracks RPC calls per network and provider
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glpmon_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"network", "provider", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per network and provider
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glpmon_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"network", "provider", "error_type"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "glpmon_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"network", "provider", "method"},
	)

	// UpstreamErrorsTotal tracks failures of off-chain data sources
	UpstreamErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glpmon_upstream_errors_total",
			Help: "Total number of failed upstream fetches",
		},
		[]string{"source"},
	)

	// PriceCacheLookups tracks price cache hits and misses
	PriceCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glpmon_price_cache_lookups_total",
			Help: "Price cache lookups by result",
		},
		[]string{"result"}, // hit, miss, error
	)

	// CyclesTotal tracks monitor cycles by outcome
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glpmon_cycles_total",
			Help: "Total number of monitor cycles",
		},
		[]string{"status"}, // completed, cancelled
	)

	// CycleDuration tracks how long one full cycle takes
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "glpmon_cycle_duration_seconds",
			Help:    "Monitor cycle duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	// UserFailuresTotal tracks per-user network failures inside a cycle
	UserFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glpmon_user_failures_total",
			Help: "Total number of failed user observations",
		},
		[]string{"network"},
	)

	// ObservationsTotal tracks emitted observations
	ObservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glpmon_observations_total",
			Help: "Total number of emitted observations",
		},
		[]string{"network"},
	)

	// AverageMintPrice is the latest reconciled average mint price
	AverageMintPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "glpmon_average_mint_price",
			Help: "Average GLP mint price over the lookback window",
		},
		[]string{"network"},
	)

	// RedemptionPrice is the latest GLP redemption price
	RedemptionPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "glpmon_redemption_price",
			Help: "GLP redemption price",
		},
		[]string{"network"},
	)

	// ChainLatestBlock tracks the latest block height of the network
	ChainLatestBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "glpmon_chain_latest_block",
			Help: "Latest block height of the network",
		},
		[]string{"network"},
	)
)
