// Package observability holds the prometheus collectors shared by the store,
// the HTTP surface and the event feed.
package observability

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

var (
	storeOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_ops_total",
			Help: "Store operations by op and result.",
		},
		[]string{"op", "result"},
	)

	storeEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "store_entries",
		Help: "Entries currently held by the store.",
	})

	indexCells = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "index_cells",
		Help: "Distinct geohash cells present in the index tree.",
	})

	queryDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "query_duration_seconds",
		Help:    "Duration of circle range queries in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16), // 10us to ~0.3s
	})

	queryCandidateCells = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "query_candidate_cells",
		Help:    "Cells that survived overlap pruning per query.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14),
	})

	queryResults = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "query_results",
		Help:    "Objects returned per query.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14),
	})

	resultCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_result_cache_total",
			Help: "Query result cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"method", "route", "status"},
	)

	feedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_events_total",
			Help: "Location feed events by op and result.",
		},
		[]string{"op", "result"},
	)

	hotCells = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hot_cells",
		Help: "Cells tracked by the hotness tracker.",
	})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		storeOps, storeEntries, indexCells,
		queryDurationSeconds, queryCandidateCells, queryResults, resultCache,
		httpRequestsTotal, httpRequestDurationSeconds,
		feedEvents, hotCells,
	}
}

// Init registers the collectors on reg. With on=false, or a nil registerer,
// every recording function becomes a no-op.
func Init(reg prometheus.Registerer, on bool) {
	if !on || reg == nil {
		enabled.Store(false)
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
	enabled.Store(true)
}

func ObserveStoreOp(op string, ok bool) {
	if !enabled.Load() {
		return
	}
	res := "ok"
	if !ok {
		res = "rejected"
	}
	storeOps.WithLabelValues(op, res).Inc()
}

func SetStoreSize(entries, cells int) {
	if !enabled.Load() {
		return
	}
	storeEntries.Set(float64(entries))
	indexCells.Set(float64(cells))
}

func ObserveQuery(durationSeconds float64, candidates, results int) {
	if !enabled.Load() {
		return
	}
	queryDurationSeconds.Observe(durationSeconds)
	queryCandidateCells.Observe(float64(candidates))
	queryResults.Observe(float64(results))
}

func IncResultCache(hit bool) {
	if !enabled.Load() {
		return
	}
	if hit {
		resultCache.WithLabelValues("hit").Inc()
		return
	}
	resultCache.WithLabelValues("miss").Inc()
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func IncFeedEvent(op, result string) {
	if !enabled.Load() {
		return
	}
	feedEvents.WithLabelValues(op, result).Inc()
}

func SetHotCells(n int) {
	if !enabled.Load() {
		return
	}
	hotCells.Set(float64(n))
}
