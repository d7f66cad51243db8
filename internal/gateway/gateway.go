package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/linkgate/linkgate/internal/metrics"
	"github.com/linkgate/linkgate/internal/middleware"
	"github.com/linkgate/linkgate/internal/model"
)

// DefaultTimeout bounds one backend call.
const DefaultTimeout = 5 * time.Second

const maxPayloadSize = 1 << 20

// Config holds gateway settings.
type Config struct {
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics metrics.Recorder
}

// Gateway dispatches requests to the backend of the caller's protocol.
type Gateway struct {
	backends map[Protocol]Backend
	timeout  time.Duration
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// New creates a Gateway over a REST and a gRPC backend.
func New(rest, grpc Backend, cfg Config) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	return &Gateway{
		backends: map[Protocol]Backend{ProtocolREST: rest, ProtocolGRPC: grpc},
		timeout:  cfg.Timeout,
		logger:   cfg.Logger.With("component", "gateway"),
		metrics:  cfg.Metrics,
	}
}

// Routes registers the gateway endpoints.
func (g *Gateway) Routes(r chi.Router) {
	r.Post("/url", g.Shorten)
	r.Post("/qr", g.GenerateQR)
	r.Get("/health", Health)
}

// Health answers liveness probes.
func Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Shorten handles POST /url.
func (g *Gateway) Shorten(w http.ResponseWriter, r *http.Request) {
	var p ShortenPayload
	g.serve(w, r, "shorten", &p, func(ctx context.Context, b Backend) (Payload, error) {
		return b.Shorten(ctx, p)
	})
}

// GenerateQR handles POST /qr.
func (g *Gateway) GenerateQR(w http.ResponseWriter, r *http.Request) {
	var p QRPayload
	g.serve(w, r, "generate_qr", &p, func(ctx context.Context, b Backend) (Payload, error) {
		return b.GenerateQR(ctx, p)
	})
}

// serve decodes the body into payload, dispatches call to the selected
// backend and writes the merged response.
func (g *Gateway) serve(w http.ResponseWriter, r *http.Request, op string, payload any, call func(context.Context, Backend) (Payload, error)) {
	tr := newTrace()
	protocol := ParseProtocol(r.Header.Get(ProtocolHeader))
	w.Header().Set("X-Protocol", protocol.String())

	if err := decodeBody(r, payload); err != nil {
		tr.enter(StateFailed)
		g.writeFailure(w, protocol, 0, err)
		g.finish(r, tr, protocol, op)
		return
	}

	tr.enter(StateProtocolSelected)
	start := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), g.timeout)
	defer cancel()

	tr.enter(StateDispatched)
	result, err := call(ctx, g.backends[protocol])
	elapsed := time.Since(start)
	responseTime := float64(elapsed.Microseconds()) / 1000

	if err != nil {
		tr.enter(StateFailed)
		be := g.classify(ctx, err)
		g.metrics.ObserveGatewayDispatch(protocol.String(), op, "error", elapsed)
		g.logFailure(r, protocol, op, be)
		g.writeFailure(w, protocol, responseTime, be)
		g.finish(r, tr, protocol, op)
		return
	}

	tr.enter(StateSucceeded)
	g.metrics.ObserveGatewayDispatch(protocol.String(), op, "ok", elapsed)

	if result == nil {
		result = Payload{}
	}
	result["responseTime"] = responseTime
	result["protocol"] = protocol.String()
	writeJSON(w, http.StatusOK, result)
	g.finish(r, tr, protocol, op)
}

// classify attaches a status to err. A call that ran out of time is a
// gateway timeout whatever the backend reported.
func (g *Gateway) classify(ctx context.Context, err error) *BackendError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &BackendError{
			Status:  http.StatusGatewayTimeout,
			Kind:    "timeout",
			Message: "backend did not respond in time",
			Details: map[string]string{"timeout": g.timeout.String()},
			Err:     err,
		}
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be
	}
	return unclassified(err)
}

func (g *Gateway) logFailure(r *http.Request, protocol Protocol, op string, err *BackendError) {
	level := slog.LevelWarn
	if err.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	g.logger.Log(r.Context(), level, "gateway_dispatch_failed",
		"request_id", middleware.GetRequestID(r.Context()),
		"protocol", protocol.String(),
		"operation", op,
		"status_code", err.Status,
		"kind", err.Kind,
		"error", err,
	)
}

func (g *Gateway) finish(r *http.Request, tr *trace, protocol Protocol, op string) {
	outcome := tr.current()
	tr.enter(StateResponseSent)
	g.logger.Debug("gateway_request",
		"request_id", middleware.GetRequestID(r.Context()),
		"protocol", protocol.String(),
		"operation", op,
		"outcome", outcome.String(),
		"states", tr,
	)
}

// ErrorResponse is the gateway's error envelope.
type ErrorResponse struct {
	Error        string    `json:"error"`
	Kind         string    `json:"kind"`
	Details      any       `json:"details"`
	Protocol     string    `json:"protocol"`
	ResponseTime float64   `json:"responseTime"`
	Timestamp    time.Time `json:"timestamp"`
}

func (g *Gateway) writeFailure(w http.ResponseWriter, protocol Protocol, responseTime float64, err error) {
	var be *BackendError
	if !errors.As(err, &be) {
		be = unclassified(err)
	}
	writeJSON(w, be.Status, ErrorResponse{
		Error:        be.Message,
		Kind:         be.Kind,
		Details:      be.Details,
		Protocol:     protocol.String(),
		ResponseTime: responseTime,
		Timestamp:    time.Now().UTC(),
	})
}

// decodeBody reads a JSON object into v. An empty body leaves v zero so the
// backend reports the missing fields.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxPayloadSize)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return &BackendError{
		Status:  http.StatusBadRequest,
		Kind:    model.KindValidation.String(),
		Message: "request body must be a JSON object",
		Details: err.Error(),
		Err:     err,
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
