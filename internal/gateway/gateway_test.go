package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/linkgate/linkgate/internal/analytics"
	"github.com/linkgate/linkgate/internal/grpcapi"
	"github.com/linkgate/linkgate/internal/handler"
	"github.com/linkgate/linkgate/internal/metrics"
	"github.com/linkgate/linkgate/internal/qr"
	"github.com/linkgate/linkgate/internal/service"
	"github.com/linkgate/linkgate/internal/shortcode"
	"github.com/linkgate/linkgate/internal/store"
	"github.com/linkgate/linkgate/internal/testutil"
	"github.com/linkgate/linkgate/internal/tracker"
	"github.com/linkgate/linkgate/internal/validation"
)

type backends struct {
	rest Backend
	grpc Backend
}

// newBackends serves one link service over both protocols.
func newBackends(t *testing.T) backends {
	t.Helper()
	logger := testutil.DiscardLogger()

	gen, err := shortcode.NewGenerator(shortcode.DefaultLength)
	require.NoError(t, err)
	log := tracker.NewMemoryLog()
	st := store.NewMemory(gen, store.WithPurger(log))
	links := service.NewLinkService(st, tracker.New(log, tracker.Config{Logger: logger}), analytics.New(log),
		service.Config{BaseURL: "https://sho.rt", Logger: logger})
	qrs := qr.NewService(logger, nil)
	v := validation.New()

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		handler.NewLinkHandler(links, v, logger).Routes(r, handler.Limits{}, nil)
		handler.NewQRHandler(qrs, v, logger).Routes(r, handler.Limits{})
	})
	api := httptest.NewServer(r)
	t.Cleanup(api.Close)

	srv := grpcapi.NewServer(grpcapi.NewLinkServer(links, v, logger), grpcapi.NewQRServer(qrs, v, logger), logger)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := grpcapi.Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return backends{
		rest: NewRESTBackend(api.Client(), api.URL, api.URL),
		grpc: NewGRPCBackend(client, client),
	}
}

func newGateway(t *testing.T, rest, grpc Backend, cfg Config) http.Handler {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = testutil.DiscardLogger()
	}
	r := chi.NewRouter()
	New(rest, grpc, cfg).Routes(r)
	return r
}

func post(t *testing.T, h http.Handler, path, protocol, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if protocol != "" {
		req.Header.Set(ProtocolHeader, protocol)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestParseProtocol(t *testing.T) {
	t.Parallel()
	assert.Equal(t, ProtocolGRPC, ParseProtocol("grpc"))
	assert.Equal(t, ProtocolGRPC, ParseProtocol(" gRPC "))
	assert.Equal(t, ProtocolREST, ParseProtocol("rest"))
	assert.Equal(t, ProtocolREST, ParseProtocol(""))
	assert.Equal(t, ProtocolREST, ParseProtocol("soap"))
}

func TestGateway_ShortenOverBothProtocols(t *testing.T) {
	t.Parallel()
	b := newBackends(t)
	rec := metrics.NewInMemory()
	gw := newGateway(t, b.rest, b.grpc, Config{Metrics: rec})

	for _, protocol := range []string{"", "rest", "grpc", "GRPC"} {
		t.Run("protocol="+protocol, func(t *testing.T) {
			resp, body := post(t, gw, "/url", protocol, `{"url":"https://example.com/`+protocol+`"}`)
			require.Equal(t, http.StatusOK, resp.Code, body)

			want := ParseProtocol(protocol).String()
			assert.Equal(t, want, body["protocol"])
			assert.Equal(t, want, resp.Header().Get("X-Protocol"))
			assert.Regexp(t, `^[A-Za-z0-9_-]{6,8}$`, body["shortCode"])
			assert.Equal(t, "https://example.com/"+protocol, body["originalUrl"])
			assert.Contains(t, body, "urlId")
			assert.Contains(t, body, "shortUrl")
			assert.IsType(t, float64(0), body["responseTime"])
		})
	}
	assert.EqualValues(t, 4, rec.Snapshot().GatewayDispatches)
}

func TestGateway_QROverBothProtocols(t *testing.T) {
	t.Parallel()
	b := newBackends(t)
	gw := newGateway(t, b.rest, b.grpc, Config{})

	for _, protocol := range []string{"rest", "grpc"} {
		resp, body := post(t, gw, "/qr", protocol, `{"text":"https://sho.rt/demo","errorCorrection":"H"}`)
		require.Equal(t, http.StatusOK, resp.Code, body)
		assert.Equal(t, "https://sho.rt/demo", body["data"], protocol)
		assert.Equal(t, "H", body["errorCorrection"], protocol)
		assert.NotEmpty(t, body["qrId"], protocol)
		assert.NotEmpty(t, body["image"], protocol)
	}
}

func TestGateway_ErrorsAreNormalized(t *testing.T) {
	t.Parallel()
	b := newBackends(t)
	gw := newGateway(t, b.rest, b.grpc, Config{})

	resp, _ := post(t, gw, "/url", "rest", `{"url":"https://a.example","customCode":"demo"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		kind   string
		code   string
	}{
		{"duplicate alias", "/url", `{"url":"https://b.example","customCode":"demo"}`, http.StatusConflict, "conflict", "ALIAS_TAKEN"},
		{"missing url", "/url", `{}`, http.StatusBadRequest, "validation_error", "VALIDATION_FAILED"},
		{"invalid url", "/url", `{"url":"not a url"}`, http.StatusBadRequest, "validation_error", "INVALID_URL"},
		{"missing text", "/qr", `{}`, http.StatusBadRequest, "validation_error", "VALIDATION_FAILED"},
		{"text beyond symbol capacity", "/qr", `{"text":"` + strings.Repeat("a", 3000) + `"}`, http.StatusBadRequest, "validation_error", "VALIDATION_FAILED"},
	}

	for _, tt := range tests {
		for _, protocol := range []string{"rest", "grpc"} {
			t.Run(tt.name+"/"+protocol, func(t *testing.T) {
				resp, body := post(t, gw, tt.path, protocol, tt.body)
				assert.Equal(t, tt.status, resp.Code)
				assert.Equal(t, tt.kind, body["kind"])
				assert.Equal(t, protocol, body["protocol"])
				assert.NotEmpty(t, body["error"])
				assert.Contains(t, body, "timestamp")
				assert.Contains(t, body, "responseTime")

				details, ok := body["details"].(map[string]any)
				require.True(t, ok, "details: %v", body["details"])
				assert.Equal(t, tt.code, details["code"])
			})
		}
	}
}

type stubBackend struct {
	delay time.Duration
	err   error
}

func (s stubBackend) Shorten(ctx context.Context, _ ShortenPayload) (Payload, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return Payload{"shortCode": "stub123"}, nil
}

func (s stubBackend) GenerateQR(ctx context.Context, _ QRPayload) (Payload, error) {
	return s.Shorten(ctx, ShortenPayload{})
}

func TestGateway_TimeoutIs504(t *testing.T) {
	t.Parallel()
	rec := metrics.NewInMemory()
	slow := stubBackend{delay: time.Second}
	gw := newGateway(t, slow, slow, Config{Timeout: 20 * time.Millisecond, Metrics: rec})

	resp, body := post(t, gw, "/url", "grpc", `{"url":"https://example.com"}`)
	assert.Equal(t, http.StatusGatewayTimeout, resp.Code)
	assert.Equal(t, "timeout", body["kind"])
	assert.Equal(t, "grpc", body["protocol"])
	assert.EqualValues(t, 1, rec.Snapshot().GatewayErrors)
}

func TestGateway_UnclassifiedIs500(t *testing.T) {
	t.Parallel()
	broken := stubBackend{err: &net.OpError{Op: "dial", Err: assert.AnError}}
	gw := newGateway(t, broken, broken, Config{})

	resp, body := post(t, gw, "/qr", "", `{"text":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "internal", body["kind"])
	assert.Equal(t, "No details", body["details"])
	assert.NotContains(t, body["error"], "dial")
}

func TestGateway_UnreachableRESTBackend(t *testing.T) {
	t.Parallel()
	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()

	rest := NewRESTBackend(nil, url, url)
	gw := newGateway(t, rest, rest, Config{})

	resp, body := post(t, gw, "/url", "rest", `{"url":"https://example.com"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "internal", body["kind"])
}

func TestGateway_NonEnvelopeErrorBody(t *testing.T) {
	t.Parallel()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	t.Cleanup(api.Close)

	rest := NewRESTBackend(api.Client(), api.URL, api.URL)
	gw := newGateway(t, rest, rest, Config{})

	resp, body := post(t, gw, "/url", "rest", `{"url":"https://example.com"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "internal", body["kind"])
}

func TestGateway_MalformedBody(t *testing.T) {
	t.Parallel()
	gw := newGateway(t, stubBackend{}, stubBackend{}, Config{})

	resp, body := post(t, gw, "/url", "rest", `{"url":`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "validation_error", body["kind"])
}

func TestGateway_Health(t *testing.T) {
	t.Parallel()
	gw := newGateway(t, stubBackend{}, stubBackend{}, Config{})

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestTrace_RecordsTransitions(t *testing.T) {
	t.Parallel()
	tr := newTrace()
	tr.enter(StateProtocolSelected)
	tr.enter(StateDispatched)
	tr.enter(StateSucceeded)
	assert.Equal(t, StateSucceeded, tr.current())

	v := tr.LogValue()
	attrs := v.Group()
	require.Len(t, attrs, 4)
	assert.Equal(t, "received", attrs[0].Key)
	assert.Equal(t, "succeeded", attrs[3].Key)
}
