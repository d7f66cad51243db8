// Package handler provides the REST handlers of the link and QR service.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/linkgate/linkgate/internal/handler/dto"
	"github.com/linkgate/linkgate/internal/middleware"
	"github.com/linkgate/linkgate/internal/model"
	"github.com/linkgate/linkgate/internal/tracker"
)

// Limits holds per-route rate limit middleware. Nil entries disable limiting.
type Limits struct {
	Bulk func(http.Handler) http.Handler
	QR   func(http.Handler) http.Handler
}

func passthrough(next http.Handler) http.Handler { return next }

func orPassthrough(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw == nil {
		return passthrough
	}
	return mw
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind model.ErrorKind) int {
	switch kind {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindConflict:
		return http.StatusConflict
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindExpired:
		return http.StatusGone
	case model.KindForbidden:
		return http.StatusForbidden
	case model.KindRateLimited:
		return http.StatusTooManyRequests
	case model.KindInternal:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// NotFound handles unmatched routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, nil, model.ErrRouteNotFound)
}

// MethodNotAllowed handles 405 responses.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, dto.ErrorResponse{
		Error:     model.KindValidation.String(),
		Code:      "METHOD_NOT_ALLOWED",
		Message:   "method not allowed",
		Timestamp: time.Now().UTC(),
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes the error envelope for err. Internal errors are logged
// with their cause; the client only sees the generic message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := model.KindOf(err)
	status := StatusFor(kind)
	if errors.Is(err, model.ErrPayloadTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	if kind == model.KindInternal && logger != nil {
		logger.Error("request_failed", "error", err)
	}
	writeJSON(w, status, dto.NewErrorResponse(err, time.Now()))
}

// decodeJSON decodes a single JSON object from the request body.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return model.ErrPayloadTooLarge
		case errors.Is(err, io.EOF):
			return model.ErrValidation.WithMessage("request body is empty")
		default:
			return model.ErrValidation.WithMessage("invalid JSON body")
		}
	}
	if dec.More() {
		return model.ErrValidation.WithMessage("request body must contain a single JSON object")
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.ErrValidation.WithFields(model.FieldError{Field: key, Message: "must be an integer"})
	}
	return n, nil
}

// queryBool parses an optional boolean query parameter, defaulting to def.
func queryBool(r *http.Request, key string, def bool) bool {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

// userID reads the acting user from the userId query parameter or the
// X-User-ID header.
func userID(r *http.Request) string {
	if id := r.URL.Query().Get("userId"); id != "" {
		return id
	}
	return r.Header.Get("X-User-ID")
}

// clientInfo captures click metadata from the request.
func clientInfo(r *http.Request) tracker.ClientInfo {
	return tracker.ClientInfo{
		IP:          middleware.ClientIP(r),
		UserAgent:   r.UserAgent(),
		Referrer:    r.Referer(),
		CountryHint: r.Header.Get("CF-IPCountry"),
	}
}
