package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsStarted counts settlement sessions by source and destination chain
	SessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_sessions_started_total",
			Help: "Total number of settlement sessions started",
		},
		[]string{"source_chain", "dest_chain"},
	)

	// SessionsActive tracks sessions that are still polling
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "settlement_sessions_active",
			Help: "Number of settlement sessions currently polling",
		},
	)

	// SessionsFinished counts sessions by the state they stopped in
	SessionsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_sessions_finished_total",
			Help: "Total number of settlement sessions that stopped polling",
		},
		[]string{"state"},
	)

	// SessionDuration tracks wall-clock time from submission to terminal state
	SessionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settlement_session_duration_seconds",
			Help:    "Settlement session duration in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		},
		[]string{"state"},
	)

	// ProbeRequests counts probe calls by probe name and result
	ProbeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_probe_requests_total",
			Help: "Total number of chain and bridge probe requests",
		},
		[]string{"probe", "result"},
	)

	// ProbeDuration tracks probe latency
	ProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settlement_probe_duration_seconds",
			Help:    "Probe request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"probe"},
	)

	// QuotesTotal counts quote requests by result
	QuotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_quotes_total",
			Help: "Total number of quote requests",
		},
		[]string{"result"},
	)

	// PoolCacheRefreshes counts pool and network snapshot refreshes
	PoolCacheRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_pool_cache_refreshes_total",
			Help: "Total number of bridge snapshot refreshes",
		},
		[]string{"result"},
	)

	// ErrorsTotal counts errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)
