package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the originating client address of r. Proxy headers are
// checked in order CF-Connecting-IP, X-Forwarded-For (first hop), X-Real-IP,
// then the connection's remote address with its port removed.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	return HostOnly(r.RemoteAddr)
}

// HostOnly strips the port from a host:port address.
func HostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
