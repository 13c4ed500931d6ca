// Package metrics exposes prometheus instrumentation for the file server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/webvisor/webvisor/pkg/logger"
)

// Registry bundles the file server's prometheus collectors behind a
// dedicated registry so each spawned server reports only its own traffic.
type Registry struct {
	registry *prometheus.Registry

	RequestsTotal  *prometheus.CounterVec
	BytesServed    prometheus.Counter
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter
}

// NewRegistry creates a registry with all collectors registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webvisor",
			Subsystem: "fileserver",
			Name:      "requests_total",
			Help:      "HTTP requests served, by method and status code.",
		}, []string{"method", "code"}),
		BytesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webvisor",
			Subsystem: "fileserver",
			Name:      "bytes_served_total",
			Help:      "Response body bytes written.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webvisor",
			Subsystem: "fileserver",
			Name:      "cache_hits_total",
			Help:      "File reads satisfied from the in-memory cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webvisor",
			Subsystem: "fileserver",
			Name:      "cache_misses_total",
			Help:      "File reads that went to disk.",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webvisor",
			Subsystem: "fileserver",
			Name:      "cache_evictions_total",
			Help:      "Cache entries dropped to stay within the size cap.",
		}),
	}

	reg.MustRegister(
		r.RequestsTotal,
		r.BytesServed,
		r.CacheHits,
		r.CacheMisses,
		r.CacheEvictions,
	)

	return r
}

// Handler returns the scrape handler for this registry.
func (r *Registry) Handler(log *logger.Logger) http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Timeout:           10 * time.Second,
		ErrorLog:          log.StdLogger(),
	})
}

// Gather exposes the underlying registry for tests.
func (r *Registry) Gather() prometheus.Gatherer {
	return r.registry
}
