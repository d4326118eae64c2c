package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flowlab.dev/flowlab/internal/cachesim"
	"flowlab.dev/flowlab/internal/logging"
	"flowlab.dev/flowlab/internal/minsim"
)

// SimCollector exposes the simulation core's live counters as Prometheus
// metrics, polling internal/cachesim.Cache and internal/minsim.SimMIN on
// an interval and caching the last snapshot behind a mutex for concurrent
// read access. Grounded on internal/metrics/collector.go's cached-stats
// idiom (mutex-guarded snapshot refreshed by a ticking background
// goroutine) and internal/ebpf/metrics/prometheus.go's metric-struct
// registration style.
type SimCollector struct {
	logger   *logging.Logger
	interval time.Duration
	stopCh   chan struct{}

	mu       sync.RWMutex
	lastSnap Snapshot

	cacheHits         prometheus.Counter
	cacheCapacityMiss prometheus.Counter
	cacheConflictMiss prometheus.Counter
	cacheConflictHit  prometheus.Counter
	minHits           prometheus.Counter
	minCapacityMiss   prometheus.Counter
	minCompulsoryMiss prometheus.Counter
	perceptronCorrect prometheus.Counter
}

// Snapshot is the cached view of the last poll, readable without touching
// Prometheus internals.
type Snapshot struct {
	Updated time.Time

	CacheHits         int64
	CacheCapacityMiss int64
	CacheConflictMiss int64
	CacheConflictHit  int64

	MINHits           uint64
	MINCapacityMiss   uint64
	MINCompulsoryMiss uint64
}

// NewSimCollector builds a SimCollector. Call Start to begin polling.
func NewSimCollector(logger *logging.Logger, interval time.Duration) *SimCollector {
	return &SimCollector{
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),

		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowlab_cache_hits_total",
			Help: "Total cache hits observed by the set-associative simulator.",
		}),
		cacheCapacityMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowlab_cache_capacity_miss_total",
			Help: "Total capacity misses (would miss even fully associative).",
		}),
		cacheConflictMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowlab_cache_conflict_miss_total",
			Help: "Total conflict misses (fully-associative reference would have hit).",
		}),
		cacheConflictHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowlab_cache_conflict_hit_total",
			Help: "Total conflict hits (real cache hit despite the FA reference missing).",
		}),
		minHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowlab_min_hits_total",
			Help: "Total hits under Belady's MIN classification.",
		}),
		minCapacityMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowlab_min_capacity_miss_total",
			Help: "Total capacity misses under Belady's MIN classification.",
		}),
		minCompulsoryMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowlab_min_compulsory_miss_total",
			Help: "Total compulsory (first-touch) misses under MIN.",
		}),
		perceptronCorrect: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowlab_perceptron_corrections_total",
			Help: "Total perceptron weight updates fired by a misprediction.",
		}),
	}
}

// Register registers every metric with reg. reg is a prometheus.Registerer
// so callers can pass either a scoped *prometheus.Registry or the package
// default registerer (matching sampling.Server's /metrics route, which
// serves promhttp.Handler()'s default gatherer).
func (c *SimCollector) Register(reg prometheus.Registerer) error {
	for _, m := range []prometheus.Collector{
		c.cacheHits, c.cacheCapacityMiss, c.cacheConflictMiss, c.cacheConflictHit,
		c.minHits, c.minCapacityMiss, c.minCompulsoryMiss, c.perceptronCorrect,
	} {
		if err := reg.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Handler returns an http.Handler serving the Prometheus exposition format
// for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Poll takes one snapshot of cache and min and updates both the cached
// Snapshot and the Prometheus counters. Counters only move forward
// (Prometheus counters cannot decrease), so Poll adds the delta since the
// last observed total rather than re-setting an absolute value.
func (c *SimCollector) Poll(cache *cachesim.Cache, min *minsim.SimMIN) {
	stats := cache.Stats()

	c.mu.Lock()
	prevCacheHits := c.lastSnap.CacheHits
	prevCacheCapacity := c.lastSnap.CacheCapacityMiss
	prevCacheConflictMiss := c.lastSnap.CacheConflictMiss
	prevCacheConflictHit := c.lastSnap.CacheConflictHit
	prevMinHits := c.lastSnap.MINHits
	prevMinCapacity := c.lastSnap.MINCapacityMiss
	prevMinCompulsory := c.lastSnap.MINCompulsoryMiss

	c.lastSnap = Snapshot{
		Updated:           time.Now(),
		CacheHits:         stats.Hits,
		CacheCapacityMiss: stats.CapacityMiss,
		CacheConflictMiss: stats.ConflictMiss,
		CacheConflictHit:  stats.ConflictHit,
		MINHits:           min.Hits(),
		MINCapacityMiss:   min.CapacityMiss(),
		MINCompulsoryMiss: min.CompulsoryMiss(),
	}
	snap := c.lastSnap
	c.mu.Unlock()

	addCounter(c.cacheHits, prevCacheHits, snap.CacheHits)
	addCounter(c.cacheCapacityMiss, prevCacheCapacity, snap.CacheCapacityMiss)
	addCounter(c.cacheConflictMiss, prevCacheConflictMiss, snap.CacheConflictMiss)
	addCounter(c.cacheConflictHit, prevCacheConflictHit, snap.CacheConflictHit)
	addCounterU(c.minHits, prevMinHits, snap.MINHits)
	addCounterU(c.minCapacityMiss, prevMinCapacity, snap.MINCapacityMiss)
	addCounterU(c.minCompulsoryMiss, prevMinCompulsory, snap.MINCompulsoryMiss)
}

// RecordPerceptronCorrection increments the misprediction-driven weight
// update counter. It is an event count rather than a derivable total, so
// Poll never moves it; it changes only when this method is called.
func (c *SimCollector) RecordPerceptronCorrection() {
	c.perceptronCorrect.Inc()
}

func addCounter(m prometheus.Counter, prev, cur int64) {
	if delta := cur - prev; delta > 0 {
		m.Add(float64(delta))
	}
}

func addCounterU(m prometheus.Counter, prev, cur uint64) {
	if cur > prev {
		m.Add(float64(cur - prev))
	}
}

// Snapshot returns the most recently polled stats.
func (c *SimCollector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSnap
}

// Start begins polling cache/min every interval until Stop is called.
func (c *SimCollector) Start(cache *cachesim.Cache, min *minsim.SimMIN) {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Poll(cache, min)
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop halts the background polling goroutine started by Start.
func (c *SimCollector) Stop() {
	close(c.stopCh)
}
