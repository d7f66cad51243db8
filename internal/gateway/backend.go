package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/linkgate/linkgate/internal/handler"
	"github.com/linkgate/linkgate/internal/model"
)

// ShortenPayload is the body of POST /url.
type ShortenPayload struct {
	URL        string         `json:"url"`
	CustomCode string         `json:"customCode,omitempty"`
	ExpiresAt  *time.Time     `json:"expiresAt,omitempty"`
	UserID     string         `json:"userId,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// QRPayload is the body of POST /qr.
type QRPayload struct {
	Text            string `json:"text"`
	Size            int    `json:"size,omitempty"`
	ErrorCorrection string `json:"errorCorrection,omitempty"`
}

// Payload is a backend response as a JSON object.
type Payload map[string]any

// Backend performs the gateway's operations over one protocol.
type Backend interface {
	Shorten(ctx context.Context, p ShortenPayload) (Payload, error)
	GenerateQR(ctx context.Context, p QRPayload) (Payload, error)
}

// BackendError is a backend failure in protocol-neutral form.
type BackendError struct {
	Status  int
	Kind    string
	Message string
	Details any
	Err     error
}

func (e *BackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return e.Kind + ": " + e.Message
}

func (e *BackendError) Unwrap() error { return e.Err }

// errorDetails is the details object of a classified backend error.
type errorDetails struct {
	Code   string             `json:"code"`
	Fields []model.FieldError `json:"fields,omitempty"`
}

// fromDomainError converts a typed error into a BackendError with the status
// the REST service would have used for it.
func fromDomainError(e *model.Error) *BackendError {
	return &BackendError{
		Status:  handler.StatusFor(e.Kind),
		Kind:    e.Kind.String(),
		Message: e.Message,
		Details: errorDetails{Code: e.Code, Fields: e.Fields},
		Err:     e.Err,
	}
}

// unclassified wraps a failure that carries no usable error shape.
func unclassified(err error) *BackendError {
	return &BackendError{
		Status:  http.StatusInternalServerError,
		Kind:    model.KindInternal.String(),
		Message: "backend request failed",
		Details: "No details",
		Err:     err,
	}
}

// toPayload re-encodes a typed response as a JSON object so both backends
// return the same shape.
func toPayload(v any) (Payload, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode backend response: %w", err)
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode backend response: %w", err)
	}
	return p, nil
}
