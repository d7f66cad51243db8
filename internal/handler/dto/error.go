package dto

import (
	"time"

	"github.com/linkgate/linkgate/internal/model"
)

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error     string             `json:"error"`
	Code      string             `json:"code"`
	Message   string             `json:"message"`
	Timestamp time.Time          `json:"timestamp"`
	Fields    []model.FieldError `json:"fields,omitempty"`
}

// NewErrorResponse builds the envelope for err. Unclassified errors are
// reported as internal without leaking their text.
func NewErrorResponse(err error, now time.Time) ErrorResponse {
	e := model.AsError(err)
	return ErrorResponse{
		Error:     e.Kind.String(),
		Code:      e.Code,
		Message:   e.Message,
		Timestamp: now.UTC(),
		Fields:    e.Fields,
	}
}
