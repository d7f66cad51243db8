package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	linkOps            *prometheus.CounterVec
	resolveDuration    *prometheus.HistogramVec
	clicksTracked      *prometheus.CounterVec
	enrichmentFailures *prometheus.CounterVec
	qrGenerated        prometheus.Counter
	rateLimited        *prometheus.CounterVec
	gatewayDuration    *prometheus.HistogramVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// NewPrometheus registers the application collectors on reg.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		linkOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "linkgate_link_operations_total",
			Help: "Link create, update and delete operations",
		}, []string{"operation"}),
		resolveDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linkgate_resolve_duration_seconds",
			Help:    "Short code resolve latency by outcome",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		clicksTracked: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "linkgate_clicks_tracked_total",
			Help: "Click events appended to the event log",
		}, []string{"status"}),
		enrichmentFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "linkgate_click_enrichment_failures_total",
			Help: "Geo and device lookups that failed or timed out",
		}, []string{"source"}),
		qrGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "linkgate_qr_generated_total",
			Help: "QR codes generated",
		}),
		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "linkgate_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}, []string{"rule"}),
		gatewayDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linkgate_gateway_dispatch_duration_seconds",
			Help:    "Gateway backend call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"protocol", "operation", "outcome"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (p *PrometheusRecorder) IncLinkCreated() { p.linkOps.WithLabelValues("create").Inc() }
func (p *PrometheusRecorder) IncLinkUpdated() { p.linkOps.WithLabelValues("update").Inc() }
func (p *PrometheusRecorder) IncLinkDeleted() { p.linkOps.WithLabelValues("delete").Inc() }

func (p *PrometheusRecorder) ObserveResolve(outcome string, duration time.Duration) {
	p.resolveDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncClickTracked(status string) {
	p.clicksTracked.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncEnrichmentFailure(source string) {
	p.enrichmentFailures.WithLabelValues(source).Inc()
}

func (p *PrometheusRecorder) IncQRGenerated() { p.qrGenerated.Inc() }

func (p *PrometheusRecorder) IncRateLimited(rule string) {
	p.rateLimited.WithLabelValues(rule).Inc()
}

func (p *PrometheusRecorder) ObserveGatewayDispatch(protocol, operation, outcome string, duration time.Duration) {
	p.gatewayDuration.WithLabelValues(protocol, operation, outcome).Observe(duration.Seconds())
}

// ObserveHTTPRequest records a request under its route pattern to keep label
// cardinality low.
func (p *PrometheusRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	p.httpRequests.WithLabelValues(method, route, code).Inc()
	p.httpDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
}
