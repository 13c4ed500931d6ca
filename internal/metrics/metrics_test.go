package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webvisor/webvisor/pkg/logger"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()

	r.RequestsTotal.WithLabelValues("GET", "200").Inc()
	r.BytesServed.Add(1024)
	r.CacheHits.Inc()
	r.CacheMisses.Inc()
	r.CacheEvictions.Inc()

	families, err := r.Gather().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["webvisor_fileserver_requests_total"])
	assert.True(t, names["webvisor_fileserver_bytes_served_total"])
	assert.True(t, names["webvisor_fileserver_cache_hits_total"])
}

func TestRegistry_IsolatedPerInstance(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()

	a.CacheHits.Inc()

	families, err := b.Gather().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "webvisor_fileserver_cache_hits_total" {
			for _, m := range f.GetMetric() {
				assert.Zero(t, m.GetCounter().GetValue())
			}
		}
	}
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.RequestsTotal.WithLabelValues("GET", "404").Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	r.Handler(logger.NewTestLogger()).ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "webvisor_fileserver_requests_total")
}
