// Package gateway forwards shorten and QR requests to the REST or gRPC
// backend chosen by the caller and normalizes what comes back.
package gateway

import (
	"log/slog"
	"strings"
	"time"
)

// ProtocolHeader selects the backend protocol.
const ProtocolHeader = "X-Protocol-Choice"

// Protocol is the transport used to reach the backend.
type Protocol int

const (
	ProtocolREST Protocol = iota
	ProtocolGRPC
)

func (p Protocol) String() string {
	switch p {
	case ProtocolREST:
		return "rest"
	case ProtocolGRPC:
		return "grpc"
	}
	return "unknown"
}

// ParseProtocol reads a protocol header value. Missing or unknown values
// select REST.
func ParseProtocol(v string) Protocol {
	if strings.EqualFold(strings.TrimSpace(v), "grpc") {
		return ProtocolGRPC
	}
	return ProtocolREST
}

// State is a step in the life of one gateway request.
type State int

const (
	StateReceived State = iota
	StateProtocolSelected
	StateDispatched
	StateSucceeded
	StateFailed
	StateResponseSent
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateProtocolSelected:
		return "protocol_selected"
	case StateDispatched:
		return "dispatched"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateResponseSent:
		return "response_sent"
	}
	return "unknown"
}

type transition struct {
	state State
	at    time.Duration
}

// trace records the states a request went through and when.
type trace struct {
	start time.Time
	steps []transition
}

func newTrace() *trace {
	t := &trace{start: time.Now()}
	t.enter(StateReceived)
	return t
}

func (t *trace) enter(s State) {
	t.steps = append(t.steps, transition{state: s, at: time.Since(t.start)})
}

// current returns the last state entered.
func (t *trace) current() State {
	return t.steps[len(t.steps)-1].state
}

func (t *trace) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(t.steps))
	for _, step := range t.steps {
		attrs = append(attrs, slog.Float64(step.state.String(), float64(step.at.Microseconds())/1000))
	}
	return slog.GroupValue(attrs...)
}
