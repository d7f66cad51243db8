package handler

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/linkgate/linkgate/internal/metrics"
)

// NewMetricsHandler serves gatherer in Prometheus exposition format. Without
// a gatherer it falls back to the counters of snapshotter.
func NewMetricsHandler(gatherer prometheus.Gatherer, snapshotter metrics.Snapshotter) http.Handler {
	if gatherer != nil {
		return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return snapshotHandler{snapshotter: snapshotter}
}

type snapshotHandler struct {
	snapshotter metrics.Snapshotter
}

func (h snapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "linkgate_link_operations_total{operation=\"create\"} %d\n", snap.LinksCreated)
	writeMetric(w, "linkgate_link_operations_total{operation=\"update\"} %d\n", snap.LinksUpdated)
	writeMetric(w, "linkgate_link_operations_total{operation=\"delete\"} %d\n", snap.LinksDeleted)
	writeMetric(w, "linkgate_resolve_duration_seconds_count %d\n", snap.Resolves)
	writeMetric(w, "linkgate_resolve_duration_seconds_sum %.6f\n", float64(snap.ResolveDurationTotalNs)/1e9)
	writeMetric(w, "linkgate_clicks_tracked_total{status=\"recorded\"} %d\n", snap.ClicksTracked)
	writeMetric(w, "linkgate_clicks_tracked_total{status=\"failed\"} %d\n", snap.ClicksFailed)
	writeMetric(w, "linkgate_click_enrichment_failures_total %d\n", snap.EnrichmentFailures)
	writeMetric(w, "linkgate_qr_generated_total %d\n", snap.QRGenerated)
	writeMetric(w, "linkgate_rate_limited_total %d\n", snap.RateLimited)
	writeMetric(w, "linkgate_gateway_dispatches_total %d\n", snap.GatewayDispatches)
	writeMetric(w, "linkgate_gateway_errors_total %d\n", snap.GatewayErrors)
	writeMetric(w, "http_requests_total %d\n", snap.HTTPRequests)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
