// metrics.go mirrors the teacher's pkg/metrics.go pattern: a minimal
// metricsSink interface so the cache runs with or without Prometheus, with
// all updates keyed by stripe index instead of shard.
//
// ┌──────────────────────────────────┐
// │ Metric                │ Type     │
// ├───────────────────────┼──────────┤
// │ dasm_cache_lookup_hits_total      │ Ctr │
// │ dasm_cache_lookup_misses_total    │ Ctr │
// │ dasm_cache_nodes_created_total    │ Ctr │
// │ dasm_cache_nodes_evicted_total    │ Ctr │
// │ dasm_cache_nodes_requeued_total   │ Ctr │
// │ dasm_cache_worker_commits_total   │ Ctr │
// │ dasm_cache_ring_enqueue_timeouts_total │ Ctr │
// └──────────────────────────────────┘
//
// © 2025 dasm-cache authors. MIT License.
package dasm

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsSink interface {
	incLookupHit(stripe int)
	incLookupMiss(stripe int)
	incNodeCreated(stripe int)
	incNodeEvicted(stripe int)
	incNodeRequeued(stripe int)
	incWorkerCommit()
	incEnqueueTimeout()
}

type noopMetrics struct{}

func (noopMetrics) incLookupHit(int)     {}
func (noopMetrics) incLookupMiss(int)    {}
func (noopMetrics) incNodeCreated(int)   {}
func (noopMetrics) incNodeEvicted(int)   {}
func (noopMetrics) incNodeRequeued(int)  {}
func (noopMetrics) incWorkerCommit()     {}
func (noopMetrics) incEnqueueTimeout()   {}

type promMetrics struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	created   *prometheus.CounterVec
	evicted   *prometheus.CounterVec
	requeued  *prometheus.CounterVec
	commits   prometheus.Counter
	timeouts  prometheus.Counter
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	label := []string{"stripe"}
	pm := &promMetrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dasm_cache", Name: "lookup_hits_total",
			Help: "Number of lookups served from a cached node.",
		}, label),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dasm_cache", Name: "lookup_misses_total",
			Help: "Number of lookups that returned an empty Info.",
		}, label),
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dasm_cache", Name: "nodes_created_total",
			Help: "Number of nodes created on first miss for a (hash, Params) pair.",
		}, label),
		evicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dasm_cache", Name: "nodes_evicted_total",
			Help: "Number of nodes reclaimed by the evictor for being idle.",
		}, label),
		requeued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dasm_cache", Name: "nodes_requeued_total",
			Help: "Number of nodes re-enqueued because change_gen went stale.",
		}, label),
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dasm_cache", Name: "worker_commits_total",
			Help: "Number of times a parse worker committed a result.",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dasm_cache", Name: "ring_enqueue_timeouts_total",
			Help: "Number of enqueue attempts that hit their deadline.",
		}),
	}
	reg.MustRegister(pm.hits, pm.misses, pm.created, pm.evicted, pm.requeued, pm.commits, pm.timeouts)
	return pm
}

func (m *promMetrics) incLookupHit(stripe int)  { m.hits.WithLabelValues(strconv.Itoa(stripe)).Inc() }
func (m *promMetrics) incLookupMiss(stripe int) { m.misses.WithLabelValues(strconv.Itoa(stripe)).Inc() }
func (m *promMetrics) incNodeCreated(stripe int) {
	m.created.WithLabelValues(strconv.Itoa(stripe)).Inc()
}
func (m *promMetrics) incNodeEvicted(stripe int) {
	m.evicted.WithLabelValues(strconv.Itoa(stripe)).Inc()
}
func (m *promMetrics) incNodeRequeued(stripe int) {
	m.requeued.WithLabelValues(strconv.Itoa(stripe)).Inc()
}
func (m *promMetrics) incWorkerCommit()   { m.commits.Inc() }
func (m *promMetrics) incEnqueueTimeout() { m.timeouts.Inc() }

// The following s.inc* wrappers fan out to both the configured
// metricsSink (Prometheus or noop) and Shared's plain atomic counters,
// the latter consumed by Snapshot for embedders that want a cheap
// in-process view without scraping /metrics.

func (s *Shared) incLookupHit(stripe int) {
	s.cfg.metrics.incLookupHit(stripe)
	s.hits.Add(1)
}

func (s *Shared) incLookupMiss(stripe int) {
	s.cfg.metrics.incLookupMiss(stripe)
	s.misses.Add(1)
}

func (s *Shared) incNodeCreated(stripe int) {
	s.cfg.metrics.incNodeCreated(stripe)
	s.created.Add(1)
}

func (s *Shared) incNodeEvicted(stripe int) {
	s.cfg.metrics.incNodeEvicted(stripe)
	s.evicted.Add(1)
}

func (s *Shared) incNodeRequeued(stripe int) {
	s.cfg.metrics.incNodeRequeued(stripe)
	s.requeued.Add(1)
}

func (s *Shared) incWorkerCommit() {
	s.cfg.metrics.incWorkerCommit()
	s.commits.Add(1)
}

func (s *Shared) incEnqueueTimeout() {
	s.cfg.metrics.incEnqueueTimeout()
	s.timeouts.Add(1)
}
