// Package metrics holds the prometheus collectors shared by the cache, the
// upstream clients and the aggregation engine.
package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheRequests counts GetOrRefresh outcomes: hit, refresh, stale, error.
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_cache_requests_total",
		Help: "Cache lookups by bucket and outcome",
	}, []string{"bucket", "outcome"})

	CacheRefreshDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sentinel_cache_refresh_duration_seconds",
		Help:    "Time spent computing a cache refresh",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"bucket"})

	CacheEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sentinel_cache_entries",
		Help: "Entries currently held per bucket",
	}, []string{"bucket"})

	// UpstreamDuration observes every upstream call by source and result.
	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sentinel_upstream_request_duration_seconds",
		Help:    "Latency of calls to external data sources",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"source", "result"})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sentinel_circuit_breaker_state",
		Help: "Circuit breaker state per backend (0 closed, 1 half-open, 2 open)",
	}, []string{"backend"})

	AggregationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_aggregation_item_errors_total",
		Help: "Per-instrument failures recorded during aggregation",
	}, []string{"group"})

	BurnPeriodFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_burn_period_failures_total",
		Help: "Burn periods that could not be resolved",
	}, []string{"period"})

	LedgerProbes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_ledger_probes_total",
		Help: "Ledger snapshots fetched while resolving timestamps",
	})

	Goroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_goroutines",
		Help: "Current number of goroutines",
	})

	MemoryUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_memory_bytes",
		Help: "Current heap allocation in bytes",
	})
)

// ObserveUpstream records one upstream call started at start.
func ObserveUpstream(source string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	UpstreamDuration.WithLabelValues(source, result).Observe(time.Since(start).Seconds())
}

// StartSystemCollection samples runtime gauges until stop is closed.
func StartSystemCollection(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				var m runtime.MemStats
				runtime.ReadMemStats(&m)
				MemoryUsage.Set(float64(m.Alloc))
				Goroutines.Set(float64(runtime.NumGoroutine()))
			}
		}
	}()
}
