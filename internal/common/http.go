package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller address. Behind chi's RealIP middleware
// RemoteAddr already holds the forwarded address; the headers are read
// for handlers mounted without it.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if ip := r.Header.Get("X-Real-IP"); validIP(ip) {
		return strings.TrimSpace(ip)
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if validIP(first) {
			return strings.TrimSpace(first)
		}
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func validIP(s string) bool {
	return net.ParseIP(strings.TrimSpace(s)) != nil
}
