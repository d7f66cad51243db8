package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name           string
		allowedOrigins []string
		requestOrigin  string
		preflight      bool
		wantStatus     int
		wantHeader     string
	}{
		{
			name:          "no origins configured blocks all",
			requestOrigin: "https://testbed.example",
			wantStatus:    http.StatusOK,
		},
		{
			name:           "allowed origin gets header",
			allowedOrigins: []string{"https://testbed.example"},
			requestOrigin:  "https://testbed.example",
			wantStatus:     http.StatusOK,
			wantHeader:     "https://testbed.example",
		},
		{
			name:           "wildcard allows any origin",
			allowedOrigins: []string{"*"},
			requestOrigin:  "http://localhost:3000",
			wantStatus:     http.StatusOK,
			wantHeader:     "http://localhost:3000",
		},
		{
			name:           "subdomain pattern",
			allowedOrigins: []string{"*.testbed.example"},
			requestOrigin:  "https://ui.testbed.example",
			wantStatus:     http.StatusOK,
			wantHeader:     "https://ui.testbed.example",
		},
		{
			name:           "subdomain pattern rejects lookalike",
			allowedOrigins: []string{"*.testbed.example"},
			requestOrigin:  "https://eviltestbed.example",
			wantStatus:     http.StatusOK,
		},
		{
			name:           "disallowed origin blocked on preflight",
			allowedOrigins: []string{"https://testbed.example"},
			requestOrigin:  "https://evil.example",
			preflight:      true,
			wantStatus:     http.StatusForbidden,
		},
		{
			name:           "preflight returns no content",
			allowedOrigins: []string{"https://testbed.example"},
			requestOrigin:  "https://testbed.example",
			preflight:      true,
			wantStatus:     http.StatusNoContent,
			wantHeader:     "https://testbed.example",
		},
		{
			name:           "case insensitive origin match",
			allowedOrigins: []string{"HTTPS://TESTBED.EXAMPLE"},
			requestOrigin:  "https://testbed.example",
			wantStatus:     http.StatusOK,
			wantHeader:     "https://testbed.example",
		},
		{
			name:           "no origin header skips CORS",
			allowedOrigins: []string{"https://testbed.example"},
			wantStatus:     http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCORSConfig()
			cfg.AllowedOrigins = tt.allowedOrigins

			handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			method := http.MethodGet
			if tt.preflight {
				method = http.MethodOptions
			}
			req := httptest.NewRequest(method, "/", nil)
			if tt.requestOrigin != "" {
				req.Header.Set("Origin", tt.requestOrigin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantHeader)
			}
		})
	}
}

func TestCORSPreflightHeaders(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://testbed.example"}

	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/url", nil)
	req.Header.Set("Origin", "https://testbed.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "X-Protocol-Choice")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Error("Access-Control-Allow-Methods not set on preflight")
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got == "" {
		t.Error("Access-Control-Allow-Headers not set on preflight")
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("Access-Control-Max-Age = %q, want 86400", got)
	}
}

func TestOriginChecker(t *testing.T) {
	t.Parallel()

	if OriginChecker(nil) != nil {
		t.Fatal("expected nil checker without configured origins")
	}

	check := OriginChecker([]string{"https://app.example.com", "*.example.org"})
	tests := map[string]bool{
		"":                         true,
		"https://app.example.com":  true,
		"https://live.example.org": true,
		"https://evil.example.net": false,
		"https://example.org":      false,
	}
	for origin, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/url/abc/live", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		if got := check(req); got != want {
			t.Errorf("origin %q: got %v, want %v", origin, got, want)
		}
	}
}
