// Package service provides business logic for the application.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/linkgate/linkgate/internal/analytics"
	"github.com/linkgate/linkgate/internal/metrics"
	"github.com/linkgate/linkgate/internal/model"
	"github.com/linkgate/linkgate/internal/store"
	"github.com/linkgate/linkgate/internal/tracker"
)

// Bulk size bounds.
const (
	MinBulkItems = 1
	MaxBulkItems = 100
)

// ClickRecorder records a click after a successful resolution.
type ClickRecorder interface {
	Record(ctx context.Context, link *model.Link, info tracker.ClientInfo) (*model.ClickEvent, error)
}

// StatsReader aggregates click events.
type StatsReader interface {
	Stats(ctx context.Context, link *model.Link, q analytics.Query) (*model.LinkStats, error)
}

// Config holds optional LinkService settings.
type Config struct {
	BaseURL string
	Logger  *slog.Logger
	Metrics metrics.Recorder
}

// LinkService handles link business logic.
type LinkService struct {
	store   store.LinkStore
	clicks  ClickRecorder
	stats   StatsReader
	baseURL string
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewLinkService creates a new LinkService.
func NewLinkService(st store.LinkStore, clicks ClickRecorder, stats StatsReader, cfg Config) *LinkService {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &LinkService{
		store:   st,
		clicks:  clicks,
		stats:   stats,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  cfg.Logger.With("component", "link_service"),
		metrics: cfg.Metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ShortenInput defines input for creating a link.
type ShortenInput struct {
	URL        string
	CustomCode string
	ExpiresAt  *time.Time
	UserID     string
	Metadata   map[string]any
}

// Shorten creates a new short link.
func (s *LinkService) Shorten(ctx context.Context, in ShortenInput) (*model.Link, error) {
	link, err := s.store.Create(ctx, store.CreateParams{
		OriginalURL: strings.TrimSpace(in.URL),
		CustomCode:  in.CustomCode,
		ExpiresAt:   in.ExpiresAt,
		OwnerID:     in.UserID,
		Metadata:    in.Metadata,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncLinkCreated()
	s.logger.Info("link_created",
		"link_id", link.ID,
		"short_code", link.ShortCode,
		"custom", in.CustomCode != "",
	)
	return link, nil
}

// Resolve resolves a short code and records the click. Tracking runs on a
// context detached from the caller so a client disconnect cannot drop a click
// whose count was already incremented.
func (s *LinkService) Resolve(ctx context.Context, code string, info tracker.ClientInfo) (*model.Link, error) {
	start := time.Now()
	link, err := s.store.Resolve(ctx, code)
	s.metrics.ObserveResolve(resolveOutcome(err), time.Since(start))
	if err != nil {
		return nil, err
	}

	if s.clicks != nil {
		if _, err := s.clicks.Record(context.WithoutCancel(ctx), link, info); err != nil {
			s.logger.Error("click_tracking_failed",
				"link_id", link.ID,
				"short_code", link.ShortCode,
				"error", err,
			)
		}
	}
	return link, nil
}

func resolveOutcome(err error) string {
	if err == nil {
		return "redirected"
	}
	switch model.KindOf(err) {
	case model.KindNotFound:
		return "not_found"
	case model.KindExpired:
		return "expired"
	case model.KindForbidden:
		return "inactive"
	case model.KindInternal, model.KindValidation, model.KindConflict, model.KindRateLimited:
	}
	return "error"
}

// Find returns a link without counting a click.
func (s *LinkService) Find(ctx context.Context, code string) (*model.Link, error) {
	return s.store.Find(ctx, code)
}

// LinkReport pairs a link with its aggregated click statistics.
type LinkReport struct {
	Link  *model.Link
	Stats *model.LinkStats
}

// GetStats returns lifetime statistics of a link.
func (s *LinkService) GetStats(ctx context.Context, code, userID string) (*LinkReport, error) {
	return s.GetAnalytics(ctx, code, AnalyticsInput{UserID: userID})
}

// AnalyticsInput selects the window of an analytics report.
type AnalyticsInput struct {
	Start       *time.Time
	End         *time.Time
	Granularity model.Granularity
	UserID      string
}

// GetAnalytics returns statistics of a link within a window.
func (s *LinkService) GetAnalytics(ctx context.Context, code string, in AnalyticsInput) (*LinkReport, error) {
	link, err := s.store.Find(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := authorize(link, in.UserID); err != nil {
		return nil, err
	}

	stats, err := s.stats.Stats(ctx, link, analytics.Query{
		Start:       in.Start,
		End:         in.End,
		Granularity: in.Granularity,
	})
	if err != nil {
		return nil, err
	}
	return &LinkReport{Link: link, Stats: stats}, nil
}

// List returns one page of links.
func (s *LinkService) List(ctx context.Context, q store.ListQuery) (*store.ListResult, error) {
	return s.store.List(ctx, q.Normalize())
}

// Update applies a partial update to a link owned by userID.
func (s *LinkService) Update(ctx context.Context, code, userID string, p store.UpdateParams) (*model.Link, error) {
	if p.IsEmpty() {
		return nil, model.ErrValidation.WithMessage("no fields to update")
	}
	if err := s.checkOwner(ctx, code, userID); err != nil {
		return nil, err
	}

	link, err := s.store.Update(ctx, code, p)
	if err != nil {
		return nil, err
	}

	s.metrics.IncLinkUpdated()
	s.logger.Info("link_updated", "link_id", link.ID, "short_code", link.ShortCode)
	return link, nil
}

// Delete removes a link owned by userID together with its click events.
func (s *LinkService) Delete(ctx context.Context, code, userID string) (*model.Link, error) {
	if err := s.checkOwner(ctx, code, userID); err != nil {
		return nil, err
	}

	link, err := s.store.Delete(ctx, code)
	if err != nil {
		return nil, err
	}

	s.metrics.IncLinkDeleted()
	s.logger.Info("link_deleted", "link_id", link.ID, "short_code", link.ShortCode)
	return link, nil
}

// Summary returns service-wide totals.
func (s *LinkService) Summary(ctx context.Context) (model.ServiceSummary, error) {
	return s.store.Summary(ctx)
}

// ShortURL returns the public URL of a link.
func (s *LinkService) ShortURL(link *model.Link) string {
	return s.baseURL + "/" + link.ShortCode
}

// BaseURL returns the configured base URL.
func (s *LinkService) BaseURL() string {
	return s.baseURL
}

func (s *LinkService) checkOwner(ctx context.Context, code, userID string) error {
	if userID == "" {
		return nil
	}
	link, err := s.store.Find(ctx, code)
	if err != nil {
		return err
	}
	return authorize(link, userID)
}

// authorize rejects a caller that names a user other than the link owner.
// Unowned links and anonymous callers are always allowed.
func authorize(link *model.Link, userID string) error {
	if userID == "" || link.OwnerID == "" || link.OwnerID == userID {
		return nil
	}
	return model.ErrForbidden
}

// BulkInput defines a batch of URLs sharing owner and expiry.
type BulkInput struct {
	URLs      []string
	UserID    string
	ExpiresAt *time.Time
}

// ItemError is the inline error of a failed bulk item.
type ItemError struct {
	Kind    string             `json:"kind"`
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Fields  []model.FieldError `json:"fields,omitempty"`
}

// BulkItem is the outcome of one bulk entry.
type BulkItem struct {
	OriginalURL string     `json:"originalUrl"`
	Success     bool       `json:"success"`
	ShortURL    string     `json:"shortUrl,omitempty"`
	ShortCode   string     `json:"shortCode,omitempty"`
	URLID       string     `json:"urlId,omitempty"`
	Error       *ItemError `json:"error,omitempty"`
}

// BulkResult summarizes a bulk shorten call.
type BulkResult struct {
	BatchID        string     `json:"batchId"`
	Results        []BulkItem `json:"results"`
	TotalProcessed int        `json:"totalProcessed"`
	Successful     int        `json:"successful"`
	Failed         int        `json:"failed"`
	ProcessedAt    time.Time  `json:"processedAt"`
}

// BulkShorten shortens every URL independently. Item failures are reported
// inline; only a structurally invalid batch fails the call.
func (s *LinkService) BulkShorten(ctx context.Context, in BulkInput) (*BulkResult, error) {
	if n := len(in.URLs); n < MinBulkItems || n > MaxBulkItems {
		return nil, model.ErrValidation.
			WithMessage("urls must contain between 1 and 100 items").
			WithFields(model.FieldError{Field: "urls", Message: "must contain between 1 and 100 items"})
	}

	result := &BulkResult{
		BatchID: uuid.NewString(),
		Results: make([]BulkItem, 0, len(in.URLs)),
	}

	for _, raw := range in.URLs {
		item := BulkItem{OriginalURL: raw}
		link, err := s.Shorten(ctx, ShortenInput{URL: raw, UserID: in.UserID, ExpiresAt: in.ExpiresAt})
		if err != nil {
			item.Error = itemError(err)
			result.Failed++
		} else {
			item.Success = true
			item.ShortURL = s.ShortURL(link)
			item.ShortCode = link.ShortCode
			item.URLID = link.ID
			result.Successful++
		}
		result.Results = append(result.Results, item)
	}

	result.TotalProcessed = len(result.Results)
	result.ProcessedAt = s.now()
	s.logger.Info("bulk_shortened",
		"batch_id", result.BatchID,
		"successful", result.Successful,
		"failed", result.Failed,
	)
	return result, nil
}

func itemError(err error) *ItemError {
	e := model.AsError(err)
	return &ItemError{
		Kind:    e.Kind.String(),
		Code:    e.Code,
		Message: e.Message,
		Fields:  e.Fields,
	}
}
