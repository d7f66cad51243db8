// Package analytics computes click statistics from the event log.
package analytics

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/linkgate/linkgate/internal/model"
	"github.com/linkgate/linkgate/internal/tracker"
)

const unknownKey = "unknown"

// EventSource reads the click events of a link.
type EventSource interface {
	Events(ctx context.Context, linkID string) ([]model.ClickEvent, error)
}

// Query selects the window and bucket width of an aggregate.
type Query struct {
	Start       *time.Time
	End         *time.Time
	Granularity model.Granularity
}

// Contains reports whether t falls inside the inclusive window.
func (q Query) Contains(t time.Time) bool {
	if q.Start != nil && t.Before(*q.Start) {
		return false
	}
	if q.End != nil && t.After(*q.End) {
		return false
	}
	return true
}

// Aggregator computes LinkStats on demand. It never mutates the event log.
type Aggregator struct {
	events EventSource
}

// New creates an Aggregator reading from events.
func New(events EventSource) *Aggregator {
	return &Aggregator{events: events}
}

// Stats aggregates every event of link inside q.
func (a *Aggregator) Stats(ctx context.Context, link *model.Link, q Query) (*model.LinkStats, error) {
	if q.Start != nil && q.End != nil && q.End.Before(*q.Start) {
		return nil, model.ErrValidation.
			WithMessage("endDate must not be before startDate").
			WithFields(model.FieldError{Field: "endDate", Message: "must not be before startDate"})
	}

	events, err := a.events.Events(ctx, link.ID)
	if err != nil {
		return nil, model.ErrInternal.Wrap(fmt.Errorf("read click events: %w", err))
	}

	stats := Aggregate(events, q)
	stats.LinkID = link.ID
	stats.ShortCode = link.ShortCode
	return stats, nil
}

// Aggregate filters events to q's window and groups them. The result is
// deterministic for a given input.
func Aggregate(events []model.ClickEvent, q Query) *model.LinkStats {
	if q.Granularity == "" {
		q.Granularity = model.GranularityDay
	}

	var (
		total     int64
		ips       = make(map[string]struct{})
		geography = make(map[string]int64)
		devices   = make(map[string]int64)
		browsers  = make(map[string]int64)
		referrers = make(map[string]int64)
		buckets   = make(map[string]int64)
	)

	for i := range events {
		e := &events[i]
		if !q.Contains(e.Timestamp) {
			continue
		}
		total++
		ips[e.ClientIP] = struct{}{}
		geography[geographyKey(e)]++
		devices[orUnknown(e.DeviceType)]++
		browsers[orUnknown(e.Browser)]++
		referrers[tracker.ReferrerDomain(e.Referrer)]++
		buckets[q.Granularity.Truncate(e.Timestamp).Format(q.Granularity.Layout())]++
	}

	byTime := groups(buckets, total)
	slices.SortFunc(byTime, func(a, b model.Group) int { return strings.Compare(a.Key, b.Key) })

	return &model.LinkStats{
		TotalClicks:  total,
		UniqueClicks: int64(len(ips)),
		ByGeography:  ranked(geography, total),
		ByDevice:     ranked(devices, total),
		ByBrowser:    ranked(browsers, total),
		ByReferrer:   ranked(referrers, total),
		ByTime:       byTime,
		Granularity:  q.Granularity,
		Period:       model.Period{Start: q.Start, End: q.End},
	}
}

func geographyKey(e *model.ClickEvent) string {
	switch {
	case e.Country != "" && e.City != "":
		return e.Country + "-" + e.City
	case e.Country != "":
		return e.Country
	default:
		return unknownKey
	}
}

func orUnknown(s string) string {
	if s == "" {
		return unknownKey
	}
	return s
}

// ranked orders groups by count descending, then key ascending.
func ranked(counts map[string]int64, total int64) []model.Group {
	out := groups(counts, total)
	slices.SortFunc(out, func(a, b model.Group) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	return out
}

func groups(counts map[string]int64, total int64) []model.Group {
	out := make([]model.Group, 0, len(counts))
	if total == 0 {
		return out
	}
	for key, count := range counts {
		out = append(out, model.Group{
			Key:        key,
			Count:      count,
			Percentage: percentage(count, total),
		})
	}
	return out
}

// percentage is rounded to two decimals.
func percentage(count, total int64) float64 {
	return math.Round(float64(count)/float64(total)*10000) / 100
}
