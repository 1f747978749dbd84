package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// OriginPolicy decides which browser origins may open a websocket. "*" allows every origin.
// Requests without an Origin header come from non-browser clients and are allowed.
type OriginPolicy struct {
	logger   *slog.Logger
	allowed  map[string]struct{}
	allowAll bool
}

func NewOriginPolicy(logger *slog.Logger, origins []string) *OriginPolicy {
	policy := &OriginPolicy{
		logger:  logger.With("component", "origin_policy"),
		allowed: make(map[string]struct{}, len(origins)),
	}

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}

		if trimmed == "*" {
			policy.allowAll = true
			continue
		}

		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			policy.logger.Warn("ignoring invalid origin in configuration", "origin", origin)
			continue
		}

		policy.allowed[normalized] = struct{}{}
	}

	return policy
}

// normalizeOrigin reduces an origin to lowercase scheme://host[:port].
func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}

	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// Check is used as the upgrader's CheckOrigin.
func (that *OriginPolicy) Check(req *http.Request) bool {
	origin := req.Header.Get("Origin")
	if origin == "" || that.allowAll {
		return true
	}

	normalized, ok := normalizeOrigin(origin)
	if ok {
		if _, exists := that.allowed[normalized]; exists {
			return true
		}
	}

	that.logger.Warn("blocked websocket connection from disallowed origin", "origin", origin)

	return false
}
