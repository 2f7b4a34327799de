package middleware

import (
	"net/http"
	"time"

	"github.com/BradenHooton/portal/internal/auth"
	pkghttp "github.com/BradenHooton/portal/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	IPConfig          *pkghttp.IPConfig
}

// DefaultChatRateLimit returns the limit applied to the advisory chat.
func DefaultChatRateLimit(ipConfig *pkghttp.IPConfig) RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 20, IPConfig: ipConfig}
}

// DefaultSubmissionRateLimit returns the limit applied to request submission
// and PIN verification.
func DefaultSubmissionRateLimit(ipConfig *pkghttp.IPConfig) RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 10, IPConfig: ipConfig}
}

// RateLimitByIP limits requests per client IP. Forwarded headers are only
// trusted from the configured proxies.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return "ip:" + pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(limitExceeded),
	)
}

// RateLimitByViewer limits requests per signed-in user, falling back to the
// client IP when no viewer is present. Must run after auth.RequireViewer.
func RateLimitByViewer(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if viewer, ok := auth.GetViewer(r); ok {
				return "uid:" + viewer.UID, nil
			}
			return "ip:" + pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(limitExceeded),
	)
}

func limitExceeded(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteTooManyRequests(w, "rate limit exceeded")
}
