// Package model defines domain entities for the application.
package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"strings"
	"time"
)

// MaxOriginalURLLength is the maximum accepted length of an original URL.
const MaxOriginalURLLength = 4096

// LinkStatus is the lifecycle state of a link.
type LinkStatus int

const (
	LinkStatusActive LinkStatus = iota
	LinkStatusInactive
	LinkStatusExpired
	LinkStatusBlocked
)

// String returns the wire name of the status.
func (s LinkStatus) String() string {
	switch s {
	case LinkStatusActive:
		return "active"
	case LinkStatusInactive:
		return "inactive"
	case LinkStatusExpired:
		return "expired"
	case LinkStatusBlocked:
		return "blocked"
	}
	return fmt.Sprintf("LinkStatus(%d)", int(s))
}

// ParseLinkStatus converts a wire name into a LinkStatus.
func ParseLinkStatus(s string) (LinkStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return LinkStatusActive, nil
	case "inactive":
		return LinkStatusInactive, nil
	case "expired":
		return LinkStatusExpired, nil
	case "blocked":
		return LinkStatusBlocked, nil
	}
	return 0, fmt.Errorf("unknown link status %q", s)
}

// MarshalJSON encodes the status as its wire name.
func (s LinkStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status from its wire name.
func (s *LinkStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseLinkStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Link represents a shortened URL entity.
type Link struct {
	ID          string         `json:"urlId"`
	ShortCode   string         `json:"shortCode"`
	OriginalURL string         `json:"originalUrl"`
	Status      LinkStatus     `json:"status"`
	ExpiresAt   *time.Time     `json:"expiresAt,omitempty"`
	ClickCount  int64          `json:"clickCount"`
	OwnerID     string         `json:"userId,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// IsExpiredAt reports whether the link's expiry has passed at now.
func (l *Link) IsExpiredAt(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// EffectiveStatus returns the status a reader should observe at now.
// An active link whose expiry has passed reads as expired.
func (l *Link) EffectiveStatus(now time.Time) LinkStatus {
	if l.Status == LinkStatusActive && l.IsExpiredAt(now) {
		return LinkStatusExpired
	}
	return l.Status
}

// Clone returns a copy that shares no mutable state with l.
func (l *Link) Clone() *Link {
	if l == nil {
		return nil
	}
	c := *l
	if l.ExpiresAt != nil {
		t := *l.ExpiresAt
		c.ExpiresAt = &t
	}
	c.Metadata = maps.Clone(l.Metadata)
	return &c
}

// ValidateOriginalURL checks that raw is an absolute http(s) URL within length limits.
func ValidateOriginalURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ErrInvalidURL.WithFields(FieldError{Field: "url", Message: "url is required"})
	}
	if len(raw) > MaxOriginalURLLength {
		return ErrURLTooLong.WithFields(FieldError{
			Field:   "url",
			Message: fmt.Sprintf("url must be at most %d characters", MaxOriginalURLLength),
		})
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL.WithFields(FieldError{Field: "url", Message: "url must be a valid URL"})
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidURL.WithFields(FieldError{Field: "url", Message: "url must use http or https"})
	}
	if parsed.Host == "" {
		return ErrInvalidURL.WithFields(FieldError{Field: "url", Message: "url must have a host"})
	}
	return nil
}

// ValidateExpiry checks that an optional expiry lies strictly after now.
func ValidateExpiry(expiresAt *time.Time, now time.Time) error {
	if expiresAt != nil && !expiresAt.After(now) {
		return ErrExpiresInPast.WithFields(FieldError{Field: "expiresAt", Message: "expiresAt must be in the future"})
	}
	return nil
}

// Pagination describes a page of a larger result set.
type Pagination struct {
	Page        int  `json:"page"`
	Size        int  `json:"size"`
	TotalItems  int  `json:"totalItems"`
	TotalPages  int  `json:"totalPages"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
}

// NewPagination computes page metadata for total items split into pages of size.
func NewPagination(page, size, total int) Pagination {
	totalPages := 0
	if size > 0 {
		totalPages = (total + size - 1) / size
	}
	return Pagination{
		Page:        page,
		Size:        size,
		TotalItems:  total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}

// ServiceSummary holds store-wide totals for the health endpoint.
type ServiceSummary struct {
	TotalURLs   int64 `json:"totalUrls"`
	ActiveURLs  int64 `json:"activeUrls"`
	TotalClicks int64 `json:"totalClicks"`
}
