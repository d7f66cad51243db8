package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncLinkCreated is a no-op.
func (n *NoopRecorder) IncLinkCreated() {}

// IncLinkUpdated is a no-op.
func (n *NoopRecorder) IncLinkUpdated() {}

// IncLinkDeleted is a no-op.
func (n *NoopRecorder) IncLinkDeleted() {}

// ObserveResolve is a no-op.
func (n *NoopRecorder) ObserveResolve(outcome string, duration time.Duration) {}

// IncClickTracked is a no-op.
func (n *NoopRecorder) IncClickTracked(status string) {}

// IncEnrichmentFailure is a no-op.
func (n *NoopRecorder) IncEnrichmentFailure(source string) {}

// IncQRGenerated is a no-op.
func (n *NoopRecorder) IncQRGenerated() {}

// IncRateLimited is a no-op.
func (n *NoopRecorder) IncRateLimited(rule string) {}

// ObserveGatewayDispatch is a no-op.
func (n *NoopRecorder) ObserveGatewayDispatch(protocol, operation, outcome string, duration time.Duration) {
}

// ObserveHTTPRequest is a no-op.
func (n *NoopRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {}
