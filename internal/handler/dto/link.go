// Package dto provides the request and response shapes shared by the REST and
// gRPC transports.
package dto

import (
	"strings"
	"time"

	"github.com/linkgate/linkgate/internal/model"
	"github.com/linkgate/linkgate/internal/service"
	"github.com/linkgate/linkgate/internal/store"
)

// ShortenRequest represents the request body for creating a link.
type ShortenRequest struct {
	URL        string         `json:"url" validate:"required,max=4096"`
	CustomCode string         `json:"customCode,omitempty" validate:"omitempty,alias"`
	ExpiresAt  *time.Time     `json:"expiresAt,omitempty"`
	UserID     string         `json:"userId,omitempty" validate:"max=128"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ToInput converts the request into service input.
func (r ShortenRequest) ToInput() service.ShortenInput {
	return service.ShortenInput{
		URL:        r.URL,
		CustomCode: r.CustomCode,
		ExpiresAt:  r.ExpiresAt,
		UserID:     r.UserID,
		Metadata:   r.Metadata,
	}
}

// LinkResponse represents a link in API responses.
type LinkResponse struct {
	URLID       string         `json:"urlId"`
	ShortURL    string         `json:"shortUrl"`
	ShortCode   string         `json:"shortCode"`
	OriginalURL string         `json:"originalUrl"`
	Status      string         `json:"status"`
	ClickCount  int64          `json:"clickCount"`
	ExpiresAt   *time.Time     `json:"expiresAt"`
	UserID      string         `json:"userId,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// ToLinkResponse converts a Link model to LinkResponse DTO.
func ToLinkResponse(link *model.Link, shortURL string) LinkResponse {
	return LinkResponse{
		URLID:       link.ID,
		ShortURL:    shortURL,
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		Status:      link.Status.String(),
		ClickCount:  link.ClickCount,
		ExpiresAt:   link.ExpiresAt,
		UserID:      link.OwnerID,
		Metadata:    link.Metadata,
		CreatedAt:   link.CreatedAt,
		UpdatedAt:   link.UpdatedAt,
	}
}

// ResolveRequest identifies a click. Client fields are optional.
type ResolveRequest struct {
	ShortCode   string `json:"shortCode" validate:"required"`
	ClientIP    string `json:"clientIp,omitempty"`
	UserAgent   string `json:"userAgent,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
	CountryHint string `json:"countryHint,omitempty"`
}

// ResolveResponse is returned instead of a redirect.
type ResolveResponse struct {
	OriginalURL string `json:"originalUrl"`
	ShortCode   string `json:"shortCode"`
	Status      string `json:"status"`
	ClickCount  int64  `json:"clickCount"`
}

// ToResolveResponse converts a resolved link.
func ToResolveResponse(link *model.Link) ResolveResponse {
	return ResolveResponse{
		OriginalURL: link.OriginalURL,
		ShortCode:   link.ShortCode,
		Status:      link.Status.String(),
		ClickCount:  link.ClickCount,
	}
}

// BulkRequest represents a bulk shorten call.
type BulkRequest struct {
	URLs      []string   `json:"urls" validate:"required,min=1,max=100"`
	UserID    string     `json:"userId,omitempty" validate:"max=128"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// ToInput converts the request into service input.
func (r BulkRequest) ToInput() service.BulkInput {
	return service.BulkInput{URLs: r.URLs, UserID: r.UserID, ExpiresAt: r.ExpiresAt}
}

// StatsRequest selects a link and an optional window.
type StatsRequest struct {
	ShortCode   string `json:"shortCode" validate:"required"`
	UserID      string `json:"userId,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	Granularity string `json:"granularity,omitempty" validate:"omitempty,oneof=hour day"`
}

// ToInput parses dates and granularity. A date without a time covers the
// whole day on the end bound.
func (r StatsRequest) ToInput() (service.AnalyticsInput, error) {
	in := service.AnalyticsInput{UserID: r.UserID}

	var fields []model.FieldError
	start, err := parseDate(r.StartDate, false)
	if err != nil {
		fields = append(fields, model.FieldError{Field: "startDate", Message: "must be RFC 3339 or YYYY-MM-DD"})
	}
	end, err := parseDate(r.EndDate, true)
	if err != nil {
		fields = append(fields, model.FieldError{Field: "endDate", Message: "must be RFC 3339 or YYYY-MM-DD"})
	}
	gran, ok := model.ParseGranularity(r.Granularity)
	if !ok {
		fields = append(fields, model.FieldError{Field: "granularity", Message: "must be one of: hour day"})
	}
	if len(fields) > 0 {
		return in, model.ErrValidation.WithFields(fields...)
	}

	in.Start, in.End, in.Granularity = start, end, gran
	return in, nil
}

func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// StatsResponse pairs a link with its statistics.
type StatsResponse struct {
	Link  LinkResponse     `json:"link"`
	Stats *model.LinkStats `json:"stats"`
}

// ListRequest represents list query parameters.
type ListRequest struct {
	Page      int    `json:"page,omitempty" validate:"gte=0,lte=1000000"`
	Size      int    `json:"size,omitempty" validate:"gte=0,lte=100"`
	UserID    string `json:"userId,omitempty"`
	SortBy    string `json:"sortBy,omitempty" validate:"omitempty,oneof=createdAt updatedAt clickCount expiresAt"`
	SortOrder string `json:"sortOrder,omitempty" validate:"omitempty,oneof=asc desc"`
	Status    string `json:"status,omitempty" validate:"omitempty,oneof=active inactive expired blocked"`
}

// ToQuery converts the request into a store query. Newest first by default.
func (r ListRequest) ToQuery() (store.ListQuery, error) {
	sortBy, ok := store.ParseSortField(r.SortBy)
	if !ok {
		return store.ListQuery{}, model.ErrValidation.WithFields(model.FieldError{Field: "sortBy", Message: "unknown sort field"})
	}
	q := store.ListQuery{
		OwnerID:   r.UserID,
		Page:      r.Page,
		Size:      r.Size,
		SortBy:    sortBy,
		Ascending: strings.EqualFold(r.SortOrder, "asc"),
	}
	if r.Status != "" {
		status, err := model.ParseLinkStatus(r.Status)
		if err != nil {
			return store.ListQuery{}, model.ErrValidation.WithFields(model.FieldError{Field: "status", Message: "unknown status"})
		}
		q.Status = &status
	}
	return q.Normalize(), nil
}

// ListResponse represents a page of links.
type ListResponse struct {
	URLs       []LinkResponse   `json:"urls"`
	Pagination model.Pagination `json:"pagination"`
}

// ToListResponse converts a store page.
func ToListResponse(result *store.ListResult, shortURL func(*model.Link) string) ListResponse {
	urls := make([]LinkResponse, len(result.Links))
	for i, link := range result.Links {
		urls[i] = ToLinkResponse(link, shortURL(link))
	}
	return ListResponse{URLs: urls, Pagination: result.Pagination}
}

// UpdateRequest represents a partial link update. Status wins over isActive
// when both are given.
type UpdateRequest struct {
	ShortCode   string         `json:"shortCode,omitempty"`
	UserID      string         `json:"userId,omitempty"`
	OriginalURL *string        `json:"originalUrl,omitempty" validate:"omitempty,max=4096"`
	ExpiresAt   *time.Time     `json:"expiresAt,omitempty"`
	ClearExpiry bool           `json:"clearExpiry,omitempty"`
	IsActive    *bool          `json:"isActive,omitempty"`
	Status      *string        `json:"status,omitempty" validate:"omitempty,oneof=active inactive blocked"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ToParams converts the request into store update params.
func (r UpdateRequest) ToParams() (store.UpdateParams, error) {
	p := store.UpdateParams{
		OriginalURL: r.OriginalURL,
		ExpiresAt:   r.ExpiresAt,
		ClearExpiry: r.ClearExpiry,
		Metadata:    r.Metadata,
	}
	if r.ClearExpiry && r.ExpiresAt != nil {
		return p, model.ErrValidation.WithFields(model.FieldError{Field: "clearExpiry", Message: "cannot be combined with expiresAt"})
	}

	switch {
	case r.Status != nil:
		status, err := model.ParseLinkStatus(*r.Status)
		if err != nil {
			return p, model.ErrValidation.WithFields(model.FieldError{Field: "status", Message: "unknown status"})
		}
		p.Status = &status
	case r.IsActive != nil:
		status := model.LinkStatusInactive
		if *r.IsActive {
			status = model.LinkStatusActive
		}
		p.Status = &status
	}
	return p, nil
}

// DeleteRequest identifies a link to delete.
type DeleteRequest struct {
	ShortCode string `json:"shortCode" validate:"required"`
	UserID    string `json:"userId,omitempty"`
}

// DeleteResponse confirms a deletion.
type DeleteResponse struct {
	Deleted   bool   `json:"deleted"`
	ShortCode string `json:"shortCode"`
}

// HealthResponse is the service health body.
type HealthResponse struct {
	Status    string               `json:"status"`
	Service   string               `json:"service"`
	Timestamp time.Time            `json:"timestamp"`
	Stats     model.ServiceSummary `json:"stats"`
}
