// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory.
type Recorder interface {
	// Link management metrics
	IncLinkCreated()
	IncLinkUpdated()
	IncLinkDeleted()

	// Redirect metrics. outcome is "redirected", "not_found", "expired", "inactive" or "error".
	ObserveResolve(outcome string, duration time.Duration)

	// Click tracking metrics
	IncClickTracked(status string) // status: "recorded" or "failed"
	IncEnrichmentFailure(source string)

	IncQRGenerated()
	IncRateLimited(rule string)

	// Gateway metrics
	ObserveGatewayDispatch(protocol, operation, outcome string, duration time.Duration)

	ObserveHTTPRequest(method, route string, status int, duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
