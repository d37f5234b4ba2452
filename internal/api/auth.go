package api

import (
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strings"

	"waitline/internal/config"
)

// HTTPAuth provides API-key auth and per-key rate limiting.
type HTTPAuth struct {
	cfg     config.APIConfig
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{cfg: cfg, limiter: newRateLimiter(&cfg)}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Health stays reachable for probes regardless of auth settings.
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.Enabled {
			if err := a.checkAuth(r); err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
		}

		if err := a.checkRateLimit(r); err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) headerName() string {
	header := strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderAPIKey))
	if header == "" {
		header = "x-api-key"
	}
	return header
}

func (a *HTTPAuth) checkAuth(r *http.Request) error {
	apiKey := strings.TrimSpace(r.Header.Get(a.headerName()))
	if apiKey == "" {
		return fmt.Errorf("missing api key header")
	}

	// Scan every configured key so lookup time does not leak which key
	// prefix matched.
	matched := false
	for _, k := range a.cfg.Auth.APIKeys {
		if subtle.ConstantTimeCompare([]byte(k.Key), []byte(apiKey)) == 1 {
			matched = true
		}
	}
	if !matched {
		return fmt.Errorf("invalid api key")
	}
	return nil
}

func (a *HTTPAuth) checkRateLimit(r *http.Request) error {
	if a.cfg.RateLimit.RPS <= 0 {
		return nil
	}

	lim := a.limiter.getLimiter(a.clientKey(r))
	if !lim.Allow() {
		return fmt.Errorf("rate limit exceeded")
	}
	return nil
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.headerName())); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}
