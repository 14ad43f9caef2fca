// Package metrics collects the Prometheus metrics of the listings service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the ranking, boost and API layers report to.
type Recorder interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordSchemaRetry(column string)
	RecordDegraded(phase string)
	RecordFetchLatency(duration time.Duration)
	RecordRPC(method string, outcome string)
	RecordBoostPurchase(durationDays int)
	RecordStaleBoostsCleared(count int64)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	schemaRetries  *prometheus.CounterVec
	degraded       *prometheus.CounterVec
	fetchLatency   prometheus.Histogram
	rpcRequests    *prometheus.CounterVec
	boostPurchases *prometheus.CounterVec
	staleCleared   prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_ranked_cache_hits_total",
			Help: "Ranked listing requests served from cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_ranked_cache_misses_total",
			Help: "Ranked listing requests that reached the database",
		}),
		schemaRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_schema_retries_total",
			Help: "Queries retried under the alternate boost column",
		}, []string{"column"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_ranked_degraded_total",
			Help: "Ranked fetches that returned a partial result",
		}, []string{"phase"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketplace_ranked_fetch_latency_seconds",
			Help:    "Latency of uncached ranked listing fetches",
			Buckets: prometheus.DefBuckets,
		}),
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_rpc_requests_total",
			Help: "JSON-RPC requests by method and outcome",
		}, []string{"method", "outcome"}),
		boostPurchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_boost_purchases_total",
			Help: "Completed boost purchases by duration",
		}, []string{"duration_days"}),
		staleCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_stale_boosts_cleared_total",
			Help: "Listings whose lapsed boost flag was reset",
		}),
	}

	reg.MustRegister(
		c.cacheHits,
		c.cacheMisses,
		c.schemaRetries,
		c.degraded,
		c.fetchLatency,
		c.rpcRequests,
		c.boostPurchases,
		c.staleCleared,
	)

	return c
}

// RecordCacheHit records a ranked result served from cache.
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss records a ranked result computed from the database.
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// RecordSchemaRetry records a retry under column.
func (c *Collector) RecordSchemaRetry(column string) {
	c.schemaRetries.WithLabelValues(column).Inc()
}

// RecordDegraded records a fetch whose phase failed.
func (c *Collector) RecordDegraded(phase string) {
	c.degraded.WithLabelValues(phase).Inc()
}

// RecordFetchLatency records the duration of an uncached fetch.
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordRPC records a JSON-RPC call.
func (c *Collector) RecordRPC(method string, outcome string) {
	c.rpcRequests.WithLabelValues(method, outcome).Inc()
}

// RecordBoostPurchase records a completed purchase.
func (c *Collector) RecordBoostPurchase(durationDays int) {
	c.boostPurchases.WithLabelValues(strconv.Itoa(durationDays)).Inc()
}

// RecordStaleBoostsCleared records a reconciliation pass.
func (c *Collector) RecordStaleBoostsCleared(count int64) {
	c.staleCleared.Add(float64(count))
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordCacheHit() {}
func (Nop) RecordCacheMiss() {}
func (Nop) RecordSchemaRetry(string) {}
func (Nop) RecordDegraded(string) {}
func (Nop) RecordFetchLatency(time.Duration) {}
func (Nop) RecordRPC(string, string) {}
func (Nop) RecordBoostPurchase(int) {}
func (Nop) RecordStaleBoostsCleared(int64) {}
