package chat

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// originChecker allows everything when the list is empty or contains "*". Requests without
// an Origin header come from non-browser clients and are let through.
func originChecker(origins []string, logger *slog.Logger) func(*http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if normalized, ok := normalizeOrigin(o); ok {
			allowed[normalized] = struct{}{}
		} else if o != "" {
			logger.Warn("ignoring invalid origin in configuration", "origin", o)
		}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		header := r.Header.Get("Origin")
		if header == "" {
			return true
		}
		if normalized, ok := normalizeOrigin(header); ok {
			if _, found := allowed[normalized]; found {
				return true
			}
		}
		logger.Warn("blocked websocket from disallowed origin", "origin", header)
		return false
	}
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
