package tracker

import (
	"net/url"
	"strings"
)

const maxMetaLength = 500

// SanitizeReferrer keeps scheme, host and path of a referrer and truncates it.
func SanitizeReferrer(ref string) string {
	if ref == "" {
		return ""
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}

	parsed.RawQuery = ""
	parsed.Fragment = ""
	parsed.User = nil

	sanitized := parsed.String()
	if len(sanitized) > maxMetaLength {
		return sanitized[:maxMetaLength]
	}
	return sanitized
}

// TruncateUserAgent truncates a user agent to the stored maximum.
func TruncateUserAgent(ua string) string {
	if len(ua) > maxMetaLength {
		return ua[:maxMetaLength]
	}
	return ua
}

// ExtractCountryCode normalizes a two-letter country hint such as CF-IPCountry.
// Cloudflare's XX (unknown) and T1 (Tor) markers are ignored.
func ExtractCountryCode(hint string) string {
	if len(hint) != 2 {
		return ""
	}
	code := strings.ToUpper(hint)
	if code == "XX" || code == "T1" {
		return ""
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return ""
		}
	}
	return code
}

// ReferrerDomain returns the host of a referrer, "(direct)" when there is
// none, or "(unknown)" when it cannot be parsed.
func ReferrerDomain(ref string) string {
	if ref == "" {
		return "(direct)"
	}

	parsed, err := url.Parse(ref)
	if err != nil || parsed.Host == "" {
		return "(unknown)"
	}
	return strings.ToLower(parsed.Hostname())
}
