package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkgate/linkgate/internal/metrics"
	"github.com/linkgate/linkgate/internal/model"
)

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) Ping(context.Context) error {
	return m.err
}

type stubSummary struct {
	summary model.ServiceSummary
	err     error
}

func (s stubSummary) Summary(context.Context) (model.ServiceSummary, error) {
	return s.summary, s.err
}

func TestHealthHandler_Healthz(t *testing.T) {
	h := NewHealthHandler("linkgate", nil, nil)

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp ProbeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHealthHandler_Readyz(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]HealthChecker
		wantStatus int
		wantBody   string
		wantChecks map[string]string
	}{
		{
			name:       "all healthy",
			checks:     map[string]HealthChecker{"postgres": &mockHealthChecker{}, "redis": &mockHealthChecker{}},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
			wantChecks: map[string]string{"postgres": "ok", "redis": "ok"},
		},
		{
			name:       "redis down",
			checks:     map[string]HealthChecker{"postgres": &mockHealthChecker{}, "redis": &mockHealthChecker{err: errors.New("connection refused")}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "unhealthy",
			wantChecks: map[string]string{"postgres": "ok", "redis": "error: connection refused"},
		},
		{
			name:       "unconfigured is not a failure",
			checks:     map[string]HealthChecker{"redis": nil},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
			wantChecks: map[string]string{"redis": "not configured"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("linkgate", nil, tt.checks)
			rec := httptest.NewRecorder()
			h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp ProbeResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantBody, resp.Status)
			assert.Equal(t, tt.wantChecks, resp.Checks)
		})
	}
}

func TestHealthHandler_Health(t *testing.T) {
	h := NewHealthHandler("linkgate", stubSummary{summary: model.ServiceSummary{TotalURLs: 4, ActiveURLs: 3, TotalClicks: 17}}, nil)
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "linkgate", body["service"])
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 4, stats["totalUrls"])
	assert.EqualValues(t, 17, stats["totalClicks"])

	h = NewHealthHandler("linkgate", stubSummary{err: errors.New("db down")}, nil)
	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsHandler(t *testing.T) {
	t.Run("prometheus", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		rec := metrics.NewPrometheus(reg)
		rec.IncQRGenerated()

		w := httptest.NewRecorder()
		NewMetricsHandler(reg, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "linkgate_qr_generated_total 1")
	})

	t.Run("snapshot fallback", func(t *testing.T) {
		rec := metrics.NewInMemory()
		rec.IncLinkCreated()

		w := httptest.NewRecorder()
		NewMetricsHandler(nil, rec).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Contains(t, w.Body.String(), `linkgate_link_operations_total{operation="create"} 1`)
	})

	t.Run("nothing configured", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewMetricsHandler(nil, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
