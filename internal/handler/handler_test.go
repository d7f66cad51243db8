package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkgate/linkgate/internal/analytics"
	"github.com/linkgate/linkgate/internal/metrics"
	"github.com/linkgate/linkgate/internal/model"
	"github.com/linkgate/linkgate/internal/qr"
	"github.com/linkgate/linkgate/internal/service"
	"github.com/linkgate/linkgate/internal/shortcode"
	"github.com/linkgate/linkgate/internal/store"
	"github.com/linkgate/linkgate/internal/testutil"
	"github.com/linkgate/linkgate/internal/tracker"
	"github.com/linkgate/linkgate/internal/validation"
)

type testServer struct {
	router  http.Handler
	svc     *service.LinkService
	metrics *metrics.InMemoryRecorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := testutil.DiscardLogger()

	gen, err := shortcode.NewGenerator(shortcode.DefaultLength)
	require.NoError(t, err)
	log := tracker.NewMemoryLog()
	st := store.NewMemory(gen, store.WithPurger(log))
	rec := metrics.NewInMemory()
	tr := tracker.New(log, tracker.Config{Device: tracker.UserAgentParser{}, Logger: logger, Metrics: rec})
	svc := service.NewLinkService(st, tr, analytics.New(log), service.Config{
		BaseURL: "https://sho.rt",
		Logger:  logger,
		Metrics: rec,
	})

	v := validation.New()
	links := NewLinkHandler(svc, v, logger)
	qrs := NewQRHandler(qr.NewService(logger, rec), v, logger)
	live := NewLiveHandler(svc, 20*time.Millisecond, nil, logger)
	health := NewHealthHandler("linkgate", svc, map[string]HealthChecker{"store": nil})

	r := chi.NewRouter()
	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)
	r.Get("/health", health.Health)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Method(http.MethodGet, "/metrics", NewMetricsHandler(nil, rec))
	r.Route("/api/v1", func(r chi.Router) {
		links.Routes(r, Limits{}, live)
		qrs.Routes(r, Limits{})
	})
	links.PublicRoutes(r)

	return &testServer{router: r, svc: svc, metrics: rec}
}

func (s *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = "203.0.113.50:40000"
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) shorten(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/url/shorten", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)
}

func TestShortenAndRedirect(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	created := s.shorten(t, map[string]any{"url": "https://example.com/landing"})
	code := created["shortCode"].(string)
	assert.Equal(t, "https://sho.rt/"+code, created["shortUrl"])
	assert.Equal(t, "https://example.com/landing", created["originalUrl"])
	assert.Equal(t, "active", created["status"])
	assert.NotEmpty(t, created["urlId"])

	rec := s.do(t, http.MethodGet, "/api/v1/url/"+code, nil)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "https://example.com/landing", rec.Header().Get("Location"))

	rec = s.do(t, http.MethodGet, "/"+code, nil)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/url/"+code+"?redirect=false", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "https://example.com/landing", body["originalUrl"])
	assert.EqualValues(t, 3, body["clickCount"])
}

func TestShorten_Errors(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	s.shorten(t, map[string]any{"url": "https://example.com", "customCode": "promo"})

	tests := []struct {
		name     string
		body     any
		status   int
		kind     string
		code     string
		hasField string
	}{
		{"malformed json", `{"url":`, http.StatusBadRequest, "validation_error", "VALIDATION_FAILED", ""},
		{"empty body", "", http.StatusBadRequest, "validation_error", "VALIDATION_FAILED", ""},
		{"missing url", map[string]any{}, http.StatusBadRequest, "validation_error", "VALIDATION_FAILED", "url"},
		{"bad alias", map[string]any{"url": "https://example.com", "customCode": "a b"}, http.StatusBadRequest, "validation_error", "VALIDATION_FAILED", "customCode"},
		{"bad scheme", map[string]any{"url": "ftp://example.com/file"}, http.StatusBadRequest, "validation_error", "INVALID_URL", ""},
		{"alias taken", map[string]any{"url": "https://example.org", "customCode": "promo"}, http.StatusConflict, "conflict", "ALIAS_TAKEN", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/url/shorten", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())

			body := decode(t, rec)
			assert.Equal(t, tt.kind, body["error"])
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["timestamp"])
			if tt.hasField != "" {
				fields, ok := body["fields"].([]any)
				require.True(t, ok)
				assert.Equal(t, tt.hasField, fields[0].(map[string]any)["field"])
			}
		})
	}
}

func TestRedirect_Errors(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/url/nope123", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["error"])

	expiresAt := time.Now().Add(50 * time.Millisecond).UTC()
	created := s.shorten(t, map[string]any{"url": "https://example.com", "expiresAt": expiresAt})
	time.Sleep(100 * time.Millisecond)

	rec = s.do(t, http.MethodGet, "/"+created["shortCode"].(string), nil)
	require.Equal(t, http.StatusGone, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "expired", body["error"])
	assert.Equal(t, "LINK_EXPIRED", body["code"])

	created = s.shorten(t, map[string]any{"url": "https://example.com"})
	code := created["shortCode"].(string)
	rec = s.do(t, http.MethodPut, "/api/v1/url/"+code, map[string]any{"isActive": false})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/"+code, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStatsAndAnalytics(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	created := s.shorten(t, map[string]any{"url": "https://example.com", "userId": "u1"})
	code := created["shortCode"].(string)

	for _, ip := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.1"} {
		req := httptest.NewRequest(http.MethodGet, "/"+code, nil)
		req.Header.Set("X-Forwarded-For", ip)
		req.Header.Set("Referer", "https://news.example.com/a")
		s.router.ServeHTTP(httptest.NewRecorder(), req)
	}

	rec := s.do(t, http.MethodGet, "/api/v1/url/"+code+"/stats?userId=u1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := decode(t, rec)["stats"].(map[string]any)
	assert.EqualValues(t, 3, stats["totalClicks"])
	assert.EqualValues(t, 2, stats["uniqueClicks"])
	referrers := stats["byReferrer"].([]any)
	assert.Equal(t, "news.example.com", referrers[0].(map[string]any)["key"])

	rec = s.do(t, http.MethodGet, "/api/v1/url/"+code+"/stats?userId=someone-else", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	today := time.Now().UTC().Format(time.DateOnly)
	rec = s.do(t, http.MethodGet, "/api/v1/url/"+code+"/analytics?startDate="+today+"&endDate="+today+"&granularity=hour", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats = decode(t, rec)["stats"].(map[string]any)
	assert.EqualValues(t, 3, stats["totalClicks"])
	assert.Equal(t, "hour", stats["granularity"])

	rec = s.do(t, http.MethodGet, "/api/v1/url/"+code+"/analytics?startDate=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/url/"+code+"/analytics?granularity=week", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBulk(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/url/bulk", map[string]any{
		"urls": []string{"https://a.example", "not a url", "https://b.example"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.EqualValues(t, 3, body["totalProcessed"])
	assert.EqualValues(t, 2, body["successful"])
	assert.EqualValues(t, 1, body["failed"])

	results := body["results"].([]any)
	failed := results[1].(map[string]any)
	assert.Equal(t, false, failed["success"])
	assert.Equal(t, "validation_error", failed["error"].(map[string]any)["kind"])

	rec = s.do(t, http.MethodPost, "/api/v1/url/bulk", map[string]any{"urls": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListUpdateDelete(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	for i := 0; i < 3; i++ {
		s.shorten(t, map[string]any{"url": "https://example.com", "userId": "owner"})
	}
	created := s.shorten(t, map[string]any{"url": "https://other.example", "userId": "other"})
	code := created["shortCode"].(string)

	rec := s.do(t, http.MethodGet, "/api/v1/url?userId=owner&size=2", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Len(t, body["urls"], 2)
	pagination := body["pagination"].(map[string]any)
	assert.EqualValues(t, 3, pagination["totalItems"])
	assert.Equal(t, true, pagination["hasNext"])

	rec = s.do(t, http.MethodGet, "/api/v1/url?page=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/v1/url?sortBy=color", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/v1/url?page=100000000000000000&size=100", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPut, "/api/v1/url/"+code, map[string]any{"userId": "owner", "originalUrl": "https://new.example"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/url/"+code, map[string]any{"userId": "other", "originalUrl": "https://new.example"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "https://new.example", decode(t, rec)["originalUrl"])

	rec = s.do(t, http.MethodPut, "/api/v1/url/"+code, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/url/"+code+"?userId=other", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, true, body["deleted"])
	assert.Equal(t, code, body["shortCode"])

	rec = s.do(t, http.MethodGet, "/"+code, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/nothing/here", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ROUTE_NOT_FOUND", decode(t, rec)["code"])

	rec = s.do(t, http.MethodPatch, "/api/v1/url/shorten", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, http.StatusGone, StatusFor(model.KindExpired))
	assert.Equal(t, http.StatusTooManyRequests, StatusFor(model.KindRateLimited))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(model.ErrorKind(99)))
}
