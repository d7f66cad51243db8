// Package store owns link records and their lifecycle.
package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linkgate/linkgate/internal/model"
	"github.com/linkgate/linkgate/internal/shortcode"
)

const (
	// DefaultMaxRetries bounds generated-code collision retries.
	DefaultMaxRetries = 5

	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPage keeps Offset well inside int range.
	MaxPage = 1_000_000
)

// LinkStore is the authoritative mapping from short code to link.
type LinkStore interface {
	Create(ctx context.Context, p CreateParams) (*model.Link, error)
	Find(ctx context.Context, code string) (*model.Link, error)
	Resolve(ctx context.Context, code string) (*model.Link, error)
	Update(ctx context.Context, code string, p UpdateParams) (*model.Link, error)
	Delete(ctx context.Context, code string) (*model.Link, error)
	List(ctx context.Context, q ListQuery) (*ListResult, error)
	Summary(ctx context.Context) (model.ServiceSummary, error)
}

// ClickPurger removes every click event recorded for a link.
type ClickPurger interface {
	Purge(ctx context.Context, linkID string) error
}

// CreateParams defines input for creating a link.
type CreateParams struct {
	OriginalURL string
	CustomCode  string
	ExpiresAt   *time.Time
	OwnerID     string
	Metadata    map[string]any
}

// UpdateParams defines a partial update. Nil fields are left unchanged.
type UpdateParams struct {
	OriginalURL *string
	ExpiresAt   *time.Time
	ClearExpiry bool
	Status      *model.LinkStatus
	Metadata    map[string]any
}

// IsEmpty reports whether the update would change nothing.
func (p UpdateParams) IsEmpty() bool {
	return p.OriginalURL == nil && p.ExpiresAt == nil && !p.ClearExpiry && p.Status == nil && p.Metadata == nil
}

// SortField names a sortable link column.
type SortField string

const (
	SortByCreatedAt  SortField = "createdAt"
	SortByUpdatedAt  SortField = "updatedAt"
	SortByClickCount SortField = "clickCount"
	SortByExpiresAt  SortField = "expiresAt"
)

// ParseSortField returns the field for s, defaulting to creation time.
func ParseSortField(s string) (SortField, bool) {
	switch SortField(s) {
	case SortByCreatedAt, "":
		return SortByCreatedAt, true
	case SortByUpdatedAt:
		return SortByUpdatedAt, true
	case SortByClickCount:
		return SortByClickCount, true
	case SortByExpiresAt:
		return SortByExpiresAt, true
	}
	return SortByCreatedAt, false
}

// ListQuery filters and pages links.
type ListQuery struct {
	OwnerID   string
	Status    *model.LinkStatus
	Page      int
	Size      int
	SortBy    SortField
	Ascending bool
}

// Normalize fills defaults and clamps the page size.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.Size < 1 {
		q.Size = DefaultPageSize
	}
	if q.Size > MaxPageSize {
		q.Size = MaxPageSize
	}
	if q.SortBy == "" {
		q.SortBy = SortByCreatedAt
	}
	return q
}

// Offset returns the index of the first item of the page.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Size
}

// ListResult is one page of links.
type ListResult struct {
	Links      []*model.Link
	Pagination model.Pagination
}

func newLinkID() string {
	return ulid.Make().String()
}

func validateCreate(p CreateParams, now time.Time) error {
	if err := model.ValidateOriginalURL(p.OriginalURL); err != nil {
		return err
	}
	if err := model.ValidateExpiry(p.ExpiresAt, now); err != nil {
		return err
	}
	if p.CustomCode != "" {
		if err := shortcode.ValidateAlias(p.CustomCode); err != nil {
			return err
		}
	}
	return nil
}

func newLink(p CreateParams, code string, now time.Time) *model.Link {
	link := &model.Link{
		ID:          newLinkID(),
		ShortCode:   code,
		OriginalURL: p.OriginalURL,
		Status:      model.LinkStatusActive,
		OwnerID:     p.OwnerID,
		Metadata:    maps.Clone(p.Metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.ExpiresAt != nil {
		t := p.ExpiresAt.UTC()
		link.ExpiresAt = &t
	}
	return link
}

// insertFunc atomically inserts a link under code, returning ErrAliasExists
// when the code is already taken.
type insertFunc func(ctx context.Context, code string) (*model.Link, error)

// createWithRetry inserts under the custom code, or under generated codes
// until one is free or retries run out.
func createWithRetry(ctx context.Context, gen shortcode.Source, maxRetries int, custom string, insert insertFunc) (*model.Link, error) {
	if custom != "" {
		return insert(ctx, custom)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		code, err := gen.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate short code: %w", err)
		}
		if shortcode.ReservedAliases[strings.ToLower(code)] {
			continue
		}
		link, err := insert(ctx, code)
		if errors.Is(err, model.ErrAliasExists) {
			continue
		}
		return link, err
	}
	return nil, model.ErrExhaustedRetries
}

// applyUpdate validates p and applies it to link in place.
func applyUpdate(link *model.Link, p UpdateParams, now time.Time) error {
	if p.OriginalURL != nil {
		if err := model.ValidateOriginalURL(*p.OriginalURL); err != nil {
			return err
		}
	}
	if err := model.ValidateExpiry(p.ExpiresAt, now); err != nil {
		return err
	}
	if p.Status != nil {
		switch *p.Status {
		case model.LinkStatusActive, model.LinkStatusInactive, model.LinkStatusBlocked:
		case model.LinkStatusExpired:
			return model.ErrValidation.WithFields(model.FieldError{
				Field:   "status",
				Message: "status cannot be set to expired",
			})
		default:
			return model.ErrValidation.WithFields(model.FieldError{Field: "status", Message: "unknown status"})
		}
	}

	if p.OriginalURL != nil {
		link.OriginalURL = *p.OriginalURL
	}
	if p.ClearExpiry {
		link.ExpiresAt = nil
	}
	if p.ExpiresAt != nil {
		t := p.ExpiresAt.UTC()
		link.ExpiresAt = &t
	}
	if p.Status != nil {
		link.Status = *p.Status
	}
	if p.Metadata != nil {
		link.Metadata = maps.Clone(p.Metadata)
	}

	// A lapsed link whose expiry was pushed out or cleared becomes active again.
	if link.Status == model.LinkStatusExpired && !link.IsExpiredAt(now) {
		link.Status = model.LinkStatusActive
	}
	link.UpdatedAt = now
	return nil
}

// resolveLink applies lazy expiry and the click increment to link.
func resolveLink(link *model.Link, now time.Time) error {
	if link.Status == model.LinkStatusActive && link.IsExpiredAt(now) {
		link.Status = model.LinkStatusExpired
		link.UpdatedAt = now
	}

	switch link.Status {
	case model.LinkStatusActive:
		link.ClickCount++
		return nil
	case model.LinkStatusExpired:
		return model.ErrLinkExpired
	case model.LinkStatusInactive, model.LinkStatusBlocked:
		return model.ErrLinkInactive
	}
	return fmt.Errorf("resolve %s: unknown status %d", link.ShortCode, link.Status)
}

// sortLinks orders links by field with the link id as tie-break.
func sortLinks(links []*model.Link, field SortField, ascending bool) {
	less := func(a, b *model.Link) int {
		switch field {
		case SortByUpdatedAt:
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case SortByClickCount:
			switch {
			case a.ClickCount < b.ClickCount:
				return -1
			case a.ClickCount > b.ClickCount:
				return 1
			}
			return 0
		case SortByExpiresAt:
			return compareExpiry(a.ExpiresAt, b.ExpiresAt)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}

	sort.SliceStable(links, func(i, j int) bool {
		c := less(links[i], links[j])
		if c == 0 {
			c = strings.Compare(links[i].ID, links[j].ID)
		}
		if ascending {
			return c < 0
		}
		return c > 0
	})
}

// compareExpiry orders links without expiry after those with one.
func compareExpiry(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Compare(*b)
}
