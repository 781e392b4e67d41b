package util

import (
	"net/http"
	"strings"
)

// RequestIsSecure reports whether the request arrived over HTTPS, either
// directly or via a TLS-terminating proxy.
func RequestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}

// RequestOrigin returns the scheme://host origin of the live request.
// Ceremony engines derive the relying-party origin from here rather than
// from client-supplied data.
func RequestOrigin(r *http.Request) string {
	scheme := "http"
	if RequestIsSecure(r) {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// RequestHostname returns the request host with any port stripped.
func RequestHostname(r *http.Request) string {
	host := r.Host
	if i := strings.LastIndex(host, ":"); i != -1 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
}
