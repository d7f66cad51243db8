package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/linkgate/linkgate/internal/handler/dto"
	"github.com/linkgate/linkgate/internal/middleware"
	"github.com/linkgate/linkgate/internal/model"
)

const maxBackendBody = 4 << 20

// RESTBackend calls the link and QR services over HTTP.
type RESTBackend struct {
	client  *http.Client
	linkURL string
	qrURL   string
}

// NewRESTBackend creates a backend for the given service base URLs. The
// client's own timeout is left to the caller; the gateway bounds each call
// through its context.
func NewRESTBackend(client *http.Client, linkURL, qrURL string) *RESTBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &RESTBackend{
		client:  client,
		linkURL: strings.TrimRight(linkURL, "/"),
		qrURL:   strings.TrimRight(qrURL, "/"),
	}
}

var _ Backend = (*RESTBackend)(nil)

// Shorten posts to /api/v1/url/shorten.
func (b *RESTBackend) Shorten(ctx context.Context, p ShortenPayload) (Payload, error) {
	return b.post(ctx, b.linkURL+"/api/v1/url/shorten", dto.ShortenRequest{
		URL:        p.URL,
		CustomCode: p.CustomCode,
		ExpiresAt:  p.ExpiresAt,
		UserID:     p.UserID,
		Metadata:   p.Metadata,
	})
}

// GenerateQR posts to /api/v1/qr/generate.
func (b *RESTBackend) GenerateQR(ctx context.Context, p QRPayload) (Payload, error) {
	return b.post(ctx, b.qrURL+"/api/v1/qr/generate", dto.QRRequest{
		Data:            p.Text,
		Size:            p.Size,
		ErrorCorrection: p.ErrorCorrection,
	})
}

func (b *RESTBackend) post(ctx context.Context, url string, body any) (Payload, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id := middleware.GetRequestID(ctx); id != "" {
		req.Header.Set(middleware.RequestIDHeader, id)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBackendBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, restError(resp.StatusCode, data)
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, unclassified(fmt.Errorf("decode response: %w", err))
	}
	return p, nil
}

// restError turns a REST error envelope into a BackendError. Bodies that are
// not an envelope are unclassified.
func restError(status int, body []byte) *BackendError {
	var env dto.ErrorResponse
	if err := json.Unmarshal(body, &env); err != nil || env.Error == "" {
		return unclassified(fmt.Errorf("backend status %d", status))
	}
	return &BackendError{
		Status:  status,
		Kind:    model.ParseErrorKind(env.Error).String(),
		Message: env.Message,
		Details: errorDetails{Code: env.Code, Fields: env.Fields},
	}
}
