package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	LinksCreated           uint64
	LinksUpdated           uint64
	LinksDeleted           uint64
	Resolves               uint64
	ResolveDurationTotalNs int64
	ClicksTracked          uint64
	ClicksFailed           uint64
	EnrichmentFailures     uint64
	QRGenerated            uint64
	RateLimited            uint64
	GatewayDispatches      uint64
	GatewayErrors          uint64
	HTTPRequests           uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	linksCreated           uint64
	linksUpdated           uint64
	linksDeleted           uint64
	resolves               uint64
	resolveDurationTotalNs int64
	clicksTracked          uint64
	clicksFailed           uint64
	enrichmentFailures     uint64
	qrGenerated            uint64
	rateLimited            uint64
	gatewayDispatches      uint64
	gatewayErrors          uint64
	httpRequests           uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		LinksCreated:           atomic.LoadUint64(&m.linksCreated),
		LinksUpdated:           atomic.LoadUint64(&m.linksUpdated),
		LinksDeleted:           atomic.LoadUint64(&m.linksDeleted),
		Resolves:               atomic.LoadUint64(&m.resolves),
		ResolveDurationTotalNs: atomic.LoadInt64(&m.resolveDurationTotalNs),
		ClicksTracked:          atomic.LoadUint64(&m.clicksTracked),
		ClicksFailed:           atomic.LoadUint64(&m.clicksFailed),
		EnrichmentFailures:     atomic.LoadUint64(&m.enrichmentFailures),
		QRGenerated:            atomic.LoadUint64(&m.qrGenerated),
		RateLimited:            atomic.LoadUint64(&m.rateLimited),
		GatewayDispatches:      atomic.LoadUint64(&m.gatewayDispatches),
		GatewayErrors:          atomic.LoadUint64(&m.gatewayErrors),
		HTTPRequests:           atomic.LoadUint64(&m.httpRequests),
	}
}

// IncLinkCreated increments link created counter.
func (m *InMemoryRecorder) IncLinkCreated() {
	atomic.AddUint64(&m.linksCreated, 1)
}

// IncLinkUpdated increments link updated counter.
func (m *InMemoryRecorder) IncLinkUpdated() {
	atomic.AddUint64(&m.linksUpdated, 1)
}

// IncLinkDeleted increments link deleted counter.
func (m *InMemoryRecorder) IncLinkDeleted() {
	atomic.AddUint64(&m.linksDeleted, 1)
}

// ObserveResolve records a resolve and its duration.
func (m *InMemoryRecorder) ObserveResolve(_ string, duration time.Duration) {
	atomic.AddUint64(&m.resolves, 1)
	atomic.AddInt64(&m.resolveDurationTotalNs, duration.Nanoseconds())
}

// IncClickTracked counts recorded and failed clicks separately.
func (m *InMemoryRecorder) IncClickTracked(status string) {
	if status == "recorded" {
		atomic.AddUint64(&m.clicksTracked, 1)
		return
	}
	atomic.AddUint64(&m.clicksFailed, 1)
}

// IncEnrichmentFailure increments the enrichment failure counter.
func (m *InMemoryRecorder) IncEnrichmentFailure(string) {
	atomic.AddUint64(&m.enrichmentFailures, 1)
}

// IncQRGenerated increments the QR counter.
func (m *InMemoryRecorder) IncQRGenerated() {
	atomic.AddUint64(&m.qrGenerated, 1)
}

// IncRateLimited increments the rejected request counter.
func (m *InMemoryRecorder) IncRateLimited(string) {
	atomic.AddUint64(&m.rateLimited, 1)
}

// ObserveGatewayDispatch counts dispatches and failed dispatches.
func (m *InMemoryRecorder) ObserveGatewayDispatch(_, _, outcome string, _ time.Duration) {
	atomic.AddUint64(&m.gatewayDispatches, 1)
	if outcome != "ok" {
		atomic.AddUint64(&m.gatewayErrors, 1)
	}
}

// ObserveHTTPRequest increments the request counter.
func (m *InMemoryRecorder) ObserveHTTPRequest(string, string, int, time.Duration) {
	atomic.AddUint64(&m.httpRequests, 1)
}
