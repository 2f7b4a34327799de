package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/portal/internal/auth"
	"github.com/BradenHooton/portal/internal/models"
	pkghttp "github.com/BradenHooton/portal/pkg/http"
	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitByIP_Returns429AfterLimit(t *testing.T) {
	handler := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 3})(okHandler())

	var codes []int
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{200, 200, 200, 429}, codes)
}

func TestRateLimitByIP_IgnoresSpoofedForwardedFor(t *testing.T) {
	handler := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 1, IPConfig: &pkghttp.IPConfig{}})(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "203.0.113.7:5000"
	first.Header.Set("X-Forwarded-For", "198.51.100.1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, first)
	assert.Equal(t, http.StatusOK, w.Code)

	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.RemoteAddr = "203.0.113.7:5001"
	second.Header.Set("X-Forwarded-For", "198.51.100.2")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, second)
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "untrusted peer cannot pick a new bucket")
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
}

func TestRateLimitByViewer_IsolatesUserBuckets(t *testing.T) {
	handler := RateLimitByViewer(RateLimitConfig{RequestsPerMinute: 1})(okHandler())

	send := func(uid string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/requests", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		req = req.WithContext(auth.ContextWithViewer(req.Context(), models.Viewer{UID: uid, Role: models.RoleStudent}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("u1"))
	assert.Equal(t, http.StatusOK, send("u2"), "same IP, different user")
	assert.Equal(t, http.StatusTooManyRequests, send("u1"))
}
