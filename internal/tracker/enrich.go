package tracker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/mssola/useragent"
	"github.com/oschwald/geoip2-golang"
)

// ErrUnroutableIP is returned for addresses that cannot be geolocated.
var ErrUnroutableIP = errors.New("ip address is not publicly routable")

// GeoIP locates addresses with a MaxMind GeoIP2/GeoLite2 City database.
type GeoIP struct {
	reader *geoip2.Reader
}

// OpenGeoIP opens the database at path.
func OpenGeoIP(path string) (*GeoIP, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &GeoIP{reader: reader}, nil
}

// Locate returns the country ISO code and English city name of ip.
func (g *GeoIP) Locate(_ context.Context, ip string) (Location, error) {
	parsed := parseIP(ip)
	if parsed == nil {
		return Location{}, fmt.Errorf("invalid ip %q", ip)
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return Location{}, ErrUnroutableIP
	}

	record, err := g.reader.City(parsed)
	if err != nil {
		return Location{}, fmt.Errorf("geoip lookup: %w", err)
	}
	return Location{
		Country: record.Country.IsoCode,
		City:    record.City.Names["en"],
	}, nil
}

// Close releases the database.
func (g *GeoIP) Close() error {
	return g.reader.Close()
}

// parseIP accepts a bare address or host:port.
func parseIP(raw string) net.IP {
	raw = strings.TrimSpace(raw)
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	return net.ParseIP(raw)
}

// UserAgentParser classifies user agents with mssola/useragent.
type UserAgentParser struct{}

// Parse returns device type, browser and OS for ua.
func (UserAgentParser) Parse(_ context.Context, ua string) (Device, error) {
	parsed := useragent.New(ua)
	browser, _ := parsed.Browser()
	return Device{
		Type:    deviceType(parsed, ua),
		Browser: browser,
		OS:      parsed.OS(),
	}, nil
}

func deviceType(parsed *useragent.UserAgent, raw string) string {
	switch {
	case parsed.Bot():
		return "bot"
	case strings.Contains(raw, "iPad") || strings.Contains(strings.ToLower(raw), "tablet"):
		return "tablet"
	case parsed.Mobile():
		return "mobile"
	default:
		return "desktop"
	}
}

// NoopLocator is used when no GeoIP database is configured.
type NoopLocator struct{}

// Locate always returns an empty location.
func (NoopLocator) Locate(context.Context, string) (Location, error) {
	return Location{}, nil
}
