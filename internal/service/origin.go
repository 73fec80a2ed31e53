package service

import (
	"net/url"
	"strings"
)

// OriginAllowed reports whether a request origin may call a chatbot's
// endpoint. Allow-list entries are hostnames and match three ways:
// exact host, "*.suffix" wildcard, or trailing ".suffix". An empty allow
// list permits every origin. In dev mode, unset and loopback origins are
// permitted unconditionally.
func OriginAllowed(origin string, allowed []string, devMode bool) bool {
	host := originHost(origin)

	if devMode && (host == "" || isLoopback(host)) {
		return true
	}

	if len(allowed) == 0 {
		return true
	}

	if host == "" {
		return false
	}

	for _, entry := range allowed {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}

		if suffix, ok := strings.CutPrefix(entry, "*."); ok {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return true
			}
			continue
		}

		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}

	return false
}

// originHost extracts the lowercase hostname from an Origin header value.
// Bare hostnames are accepted as well as full origins.
func originHost(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" || origin == "null" {
		return ""
	}

	if strings.Contains(origin, "://") {
		u, err := url.Parse(origin)
		if err != nil {
			return ""
		}
		return strings.ToLower(u.Hostname())
	}

	host := origin
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return strings.ToLower(host)
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
