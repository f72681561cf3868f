package httpkit

import (
	"net/http"
	"strings"
)

const unknownClient = "unknown"

// ClientKey derives the rate-limit identity of a request from proxy headers.
// X-Real-IP is set by our own edge proxy and wins; the hosting platform header
// comes next; the first X-Forwarded-For hop is the last resort.
// Requests carrying none of them get "unknown", which RateLimit does not limit.
func ClientKey(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := firstHop(r.Header.Get("X-Vercel-Forwarded-For")); ip != "" {
		return ip
	}
	if ip := firstHop(r.Header.Get("X-Forwarded-For")); ip != "" {
		return ip
	}
	return unknownClient
}

func firstHop(header string) string {
	if header == "" {
		return ""
	}
	first, _, _ := strings.Cut(header, ",")
	return strings.TrimSpace(first)
}
