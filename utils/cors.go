package utils

import (
	"net/url"
	"strings"
)

// IsAllowedOrigin checks whether an Origin header value should be
// trusted. Configured site origins are matched exactly; localhost on any
// port is always allowed for development.
func IsAllowedOrigin(origin string, allowed []string) bool {
	if origin == "" {
		return false
	}

	for _, a := range allowed {
		if strings.EqualFold(strings.TrimRight(a, "/"), strings.TrimRight(origin, "/")) {
			return true
		}
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}

	hostname := parsed.Hostname()
	return hostname == "localhost" || hostname == "127.0.0.1"
}
