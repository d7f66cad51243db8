package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/linkgate/linkgate/internal/handler/dto"
	"github.com/linkgate/linkgate/internal/model"
)

// HealthChecker defines an interface for checking a dependency.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// SummaryProvider reports store-wide totals.
type SummaryProvider interface {
	Summary(ctx context.Context) (model.ServiceSummary, error)
}

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	service string
	summary SummaryProvider
	checks  map[string]HealthChecker
}

// NewHealthHandler creates a new HealthHandler. checks maps a dependency name
// to its checker; nil checkers are reported as not configured.
func NewHealthHandler(service string, summary SummaryProvider, checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{service: service, summary: summary, checks: checks}
}

// ProbeResponse is the body of the liveness and readiness probes.
type ProbeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health reports service status with store totals.
//
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := dto.HealthResponse{
		Status:    "healthy",
		Service:   h.service,
		Timestamp: time.Now().UTC(),
	}
	status := http.StatusOK
	if h.summary != nil {
		summary, err := h.summary.Summary(ctx)
		if err != nil {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		resp.Stats = summary
	}
	writeJSON(w, status, resp)
}

// Healthz is the liveness probe. No dependency checks.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ProbeResponse{Status: "ok"})
}

// Readyz checks every dependency and returns 200 only if all are healthy.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	healthy := true
	for name, checker := range h.checks {
		if checker == nil {
			checks[name] = "not configured"
			continue
		}
		if err := checker.Ping(ctx); err != nil {
			checks[name] = "error: " + err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	resp := ProbeResponse{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
