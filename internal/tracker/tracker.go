// Package tracker records click events for resolved links.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linkgate/linkgate/internal/metrics"
	"github.com/linkgate/linkgate/internal/model"
)

// DefaultEnrichTimeout bounds each geo or device lookup.
const DefaultEnrichTimeout = 250 * time.Millisecond

// ClientInfo is the request metadata captured for a click.
type ClientInfo struct {
	IP          string
	UserAgent   string
	Referrer    string
	CountryHint string
}

// Location is the result of a geo lookup.
type Location struct {
	Country string
	City    string
}

// Device is the result of parsing a user agent.
type Device struct {
	Type    string
	Browser string
	OS      string
}

// GeoLocator resolves an IP address to a location.
type GeoLocator interface {
	Locate(ctx context.Context, ip string) (Location, error)
}

// DeviceParser classifies a user agent.
type DeviceParser interface {
	Parse(ctx context.Context, userAgent string) (Device, error)
}

// EventLog is an append-only, per-link store of click events.
type EventLog interface {
	Append(ctx context.Context, event *model.ClickEvent) error
	Events(ctx context.Context, linkID string) ([]model.ClickEvent, error)
	Purge(ctx context.Context, linkID string) error
}

// Config holds tracker collaborators. Nil collaborators disable that enrichment.
type Config struct {
	Geo           GeoLocator
	Device        DeviceParser
	EnrichTimeout time.Duration
	Logger        *slog.Logger
	Metrics       metrics.Recorder
}

// Tracker enriches and appends click events.
type Tracker struct {
	log     EventLog
	geo     GeoLocator
	device  DeviceParser
	timeout time.Duration
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// New creates a Tracker writing to log.
func New(log EventLog, cfg Config) *Tracker {
	if cfg.EnrichTimeout <= 0 {
		cfg.EnrichTimeout = DefaultEnrichTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	return &Tracker{
		log:     log,
		geo:     cfg.Geo,
		device:  cfg.Device,
		timeout: cfg.EnrichTimeout,
		logger:  cfg.Logger.With("component", "tracker"),
		metrics: cfg.Metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Record builds a click event for link and appends it. Enrichment failures
// leave the affected fields empty and never fail the click.
func (t *Tracker) Record(ctx context.Context, link *model.Link, info ClientInfo) (*model.ClickEvent, error) {
	event := &model.ClickEvent{
		ID:        uuid.NewString(),
		LinkID:    link.ID,
		ShortCode: link.ShortCode,
		ClientIP:  info.IP,
		Referrer:  SanitizeReferrer(info.Referrer),
		UserAgent: TruncateUserAgent(info.UserAgent),
		Timestamp: t.now(),
	}

	loc, dev := t.enrich(ctx, info)
	event.Country = loc.Country
	event.City = loc.City
	event.DeviceType = dev.Type
	event.Browser = dev.Browser
	event.OS = dev.OS
	if event.Country == "" {
		event.Country = ExtractCountryCode(info.CountryHint)
	}

	if err := t.log.Append(ctx, event); err != nil {
		t.metrics.IncClickTracked("failed")
		return nil, fmt.Errorf("append click event: %w", err)
	}
	t.metrics.IncClickTracked("recorded")
	return event, nil
}

// Events returns the recorded events of a link.
func (t *Tracker) Events(ctx context.Context, linkID string) ([]model.ClickEvent, error) {
	return t.log.Events(ctx, linkID)
}

// enrich runs the geo and device lookups concurrently.
func (t *Tracker) enrich(ctx context.Context, info ClientInfo) (Location, Device) {
	var (
		wg  sync.WaitGroup
		loc Location
		dev Device
	)

	if t.geo != nil && info.IP != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := bounded(ctx, t.timeout, func(ctx context.Context) (Location, error) {
				return t.geo.Locate(ctx, info.IP)
			})
			if err != nil {
				t.enrichmentFailed("geo", err)
				return
			}
			loc = result
		}()
	}

	if t.device != nil && info.UserAgent != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := bounded(ctx, t.timeout, func(ctx context.Context) (Device, error) {
				return t.device.Parse(ctx, info.UserAgent)
			})
			if err != nil {
				t.enrichmentFailed("device", err)
				return
			}
			dev = result
		}()
	}

	wg.Wait()
	return loc, dev
}

func (t *Tracker) enrichmentFailed(source string, err error) {
	t.metrics.IncEnrichmentFailure(source)
	t.logger.Debug("enrichment_failed", "source", source, "error", err)
}

// bounded runs fn with a deadline and returns when either fn finishes or the
// deadline passes, even if fn ignores its context.
func bounded[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
