package gateapi

import (
	"net"
	"net/http"
	"strings"
)

// Header names the edge sets on every proxied request. The principal is
// externally authenticated; the API trusts these headers the way it trusts
// proxy headers, gated by config.
const (
	HeaderPrincipal   = "X-Gate-Principal"
	HeaderFingerprint = "X-Gate-Device"
	HeaderAdminToken  = "X-Gate-Admin-Token"
)

// principalFrom extracts the edge-authenticated principal.
func principalFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderPrincipal))
}

// bearerToken extracts an "Authorization: Bearer <token>" value.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// clientIP resolves the caller address. X-Forwarded-For is honored only
// when trustProxy is set; otherwise the socket address wins.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if net.ParseIP(first) != nil {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
