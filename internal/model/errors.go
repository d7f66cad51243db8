package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies an error for transport mapping.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindExpired
	KindForbidden
	KindRateLimited
)

// String returns the stable wire name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindValidation:
		return "validation_error"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindExpired:
		return "expired"
	case KindForbidden:
		return "forbidden"
	case KindRateLimited:
		return "rate_limited"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ParseErrorKind maps a wire name back to a kind. Unknown names map to KindInternal.
func ParseErrorKind(s string) ErrorKind {
	switch strings.ToLower(s) {
	case "validation_error":
		return KindValidation
	case "conflict":
		return KindConflict
	case "not_found":
		return KindNotFound
	case "expired":
		return KindExpired
	case "forbidden":
		return KindForbidden
	case "rate_limited":
		return KindRateLimited
	}
	return KindInternal
}

// FieldError describes a problem with a single input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a classified domain error. Two Errors match under errors.Is when
// their codes are equal, so sentinels keep matching after WithFields.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithFields returns a copy of e carrying per-field problems.
func (e *Error) WithFields(fields ...FieldError) *Error {
	c := *e
	c.Fields = append(append([]FieldError(nil), e.Fields...), fields...)
	return &c
}

// WithMessage returns a copy of e with a different human-readable message.
func (e *Error) WithMessage(msg string) *Error {
	c := *e
	c.Message = msg
	return &c
}

// Wrap returns a copy of e that wraps cause.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.Err = cause
	return &c
}

// Domain errors.
var (
	ErrValidation       = &Error{Kind: KindValidation, Code: "VALIDATION_FAILED", Message: "request validation failed"}
	ErrInvalidURL       = &Error{Kind: KindValidation, Code: "INVALID_URL", Message: "invalid url"}
	ErrURLTooLong       = &Error{Kind: KindValidation, Code: "URL_TOO_LONG", Message: "url exceeds maximum length"}
	ErrExpiresInPast    = &Error{Kind: KindValidation, Code: "EXPIRES_IN_PAST", Message: "expiry must be in the future"}
	ErrInvalidAlias     = &Error{Kind: KindValidation, Code: "INVALID_ALIAS", Message: "invalid custom code"}
	ErrAliasExists      = &Error{Kind: KindConflict, Code: "ALIAS_TAKEN", Message: "custom code already in use"}
	ErrLinkNotFound     = &Error{Kind: KindNotFound, Code: "LINK_NOT_FOUND", Message: "short link not found"}
	ErrLinkExpired      = &Error{Kind: KindExpired, Code: "LINK_EXPIRED", Message: "short link has expired"}
	ErrLinkInactive     = &Error{Kind: KindForbidden, Code: "LINK_INACTIVE", Message: "short link is not active"}
	ErrForbidden        = &Error{Kind: KindForbidden, Code: "FORBIDDEN", Message: "access denied"}
	ErrExhaustedRetries = &Error{Kind: KindInternal, Code: "EXHAUSTED_RETRIES", Message: "could not allocate a unique short code"}
	ErrRateLimited      = &Error{Kind: KindRateLimited, Code: "RATE_LIMITED", Message: "too many requests"}
	ErrQRNotFound       = &Error{Kind: KindNotFound, Code: "QR_NOT_FOUND", Message: "qr code not found"}
	ErrPayloadTooLarge  = &Error{Kind: KindValidation, Code: "PAYLOAD_TOO_LARGE", Message: "request body too large"}
	ErrRouteNotFound    = &Error{Kind: KindNotFound, Code: "ROUTE_NOT_FOUND", Message: "route not found"}
	ErrInternal         = &Error{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: "an internal error occurred"}
)

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// AsError returns err as a classified *Error, wrapping unclassified errors as internal.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal.Wrap(err)
}
