package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRecorder(t *testing.T) {
	t.Parallel()
	m := NewInMemory()

	m.IncLinkCreated()
	m.IncLinkCreated()
	m.IncLinkDeleted()
	m.ObserveResolve("redirected", 5*time.Millisecond)
	m.IncClickTracked("recorded")
	m.IncClickTracked("failed")
	m.ObserveGatewayDispatch("grpc", "CreateLink", "ok", time.Millisecond)
	m.ObserveGatewayDispatch("rest", "CreateLink", "error", time.Millisecond)

	s := m.Snapshot()
	assert.EqualValues(t, 2, s.LinksCreated)
	assert.EqualValues(t, 1, s.LinksDeleted)
	assert.EqualValues(t, 1, s.Resolves)
	assert.Equal(t, (5 * time.Millisecond).Nanoseconds(), s.ResolveDurationTotalNs)
	assert.EqualValues(t, 1, s.ClicksTracked)
	assert.EqualValues(t, 1, s.ClicksFailed)
	assert.EqualValues(t, 2, s.GatewayDispatches)
	assert.EqualValues(t, 1, s.GatewayErrors)
}

func TestPrometheusRecorder(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)

	p.IncLinkCreated()
	p.IncRateLimited("bulk")
	p.IncRateLimited("bulk")
	p.ObserveHTTPRequest("GET", "/api/v1/url/{code}", 200, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.linkOps.WithLabelValues("create")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.rateLimited.WithLabelValues("bulk")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.httpRequests.WithLabelValues("GET", "/api/v1/url/{code}", "200")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
