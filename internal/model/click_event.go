package model

import "time"

// ClickEvent is one recorded resolution of a short link.
type ClickEvent struct {
	ID         string    `json:"clickId"`
	LinkID     string    `json:"urlId"`
	ShortCode  string    `json:"shortCode"`
	ClientIP   string    `json:"clientIp"`
	Country    string    `json:"country,omitempty"`
	City       string    `json:"city,omitempty"`
	DeviceType string    `json:"deviceType,omitempty"`
	Browser    string    `json:"browser,omitempty"`
	OS         string    `json:"os,omitempty"`
	Referrer   string    `json:"referrer,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Granularity is the width of a time bucket in analytics.
type Granularity string

const (
	GranularityHour Granularity = "hour"
	GranularityDay  Granularity = "day"
)

// ParseGranularity returns the granularity for s, defaulting to daily buckets.
func ParseGranularity(s string) (Granularity, bool) {
	switch Granularity(s) {
	case GranularityHour:
		return GranularityHour, true
	case GranularityDay, "":
		return GranularityDay, true
	}
	return GranularityDay, false
}

// Layout returns the time format used as the bucket key.
func (g Granularity) Layout() string {
	if g == GranularityHour {
		return "2006-01-02T15:00"
	}
	return "2006-01-02"
}

// Truncate returns the start of the bucket containing t, in UTC.
func (g Granularity) Truncate(t time.Time) time.Time {
	t = t.UTC()
	if g == GranularityHour {
		return t.Truncate(time.Hour)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Group is a single (key, count, percentage) row of an analytics breakdown.
type Group struct {
	Key        string  `json:"key"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Period is the inclusive time window an aggregate covers. Nil bounds are open.
type Period struct {
	Start *time.Time `json:"startDate,omitempty"`
	End   *time.Time `json:"endDate,omitempty"`
}

// LinkStats is the aggregate view of a link's click events.
type LinkStats struct {
	LinkID       string      `json:"urlId"`
	ShortCode    string      `json:"shortCode"`
	TotalClicks  int64       `json:"totalClicks"`
	UniqueClicks int64       `json:"uniqueClicks"`
	ByGeography  []Group     `json:"byGeography"`
	ByDevice     []Group     `json:"byDevice"`
	ByBrowser    []Group     `json:"byBrowser"`
	ByReferrer   []Group     `json:"byReferrer"`
	ByTime       []Group     `json:"byTime"`
	Granularity  Granularity `json:"granularity"`
	Period       Period      `json:"period"`
}
