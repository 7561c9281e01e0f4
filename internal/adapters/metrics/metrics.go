// Package metrics implements ports.Metrics with Prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.trai.ch/locus/internal/core/ports"
)

var _ ports.Metrics = (*Recorder)(nil)

// Recorder counts engine events on its own registry.
type Recorder struct {
	registry    *prometheus.Registry
	queries     prometheus.Counter
	walks       prometheus.Counter
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	diagnostics prometheus.Counter
}

// New creates a Recorder with all counters registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "locus_queries_total",
			Help: "Total queries answered",
		}),
		walks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "locus_walks_total",
			Help: "Total root walks started",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "locus_cache_hits_total",
			Help: "Total queries served from a populated cache snapshot",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "locus_cache_misses_total",
			Help: "Total queries that rebuilt the cache snapshot",
		}),
		diagnostics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "locus_walk_diagnostics_total",
			Help: "Total directories skipped because they could not be read",
		}),
	}

	r.registry.MustRegister(r.queries, r.walks, r.cacheHits, r.cacheMisses, r.diagnostics)
	return r
}

// Registry exposes the underlying registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// QueryServed implements ports.Metrics.
func (r *Recorder) QueryServed() { r.queries.Inc() }

// WalkStarted implements ports.Metrics.
func (r *Recorder) WalkStarted() { r.walks.Inc() }

// CacheHit implements ports.Metrics.
func (r *Recorder) CacheHit() { r.cacheHits.Inc() }

// CacheMiss implements ports.Metrics.
func (r *Recorder) CacheMiss() { r.cacheMisses.Inc() }

// WalkDiagnostics implements ports.Metrics.
func (r *Recorder) WalkDiagnostics(n int) {
	if n > 0 {
		r.diagnostics.Add(float64(n))
	}
}
