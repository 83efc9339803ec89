package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/homegrubhub/homegrubhub-be/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterKeysByUserThenIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	assert.Equal(t, "ip:203.0.113.9", clientKey(req))

	req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{UserID: "u1"}))
	assert.Equal(t, "user:u1", clientKey(req))
}

func TestRateLimiterForgetsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	first := rl.limiter("ip:a")
	assert.Same(t, first, rl.limiter("ip:a"))
	rl.limiter("ip:b")
	assert.Len(t, rl.visitors, 2)

	now = now.Add(visitorIdle + 2*time.Minute)
	rl.limiter("ip:b")
	assert.Len(t, rl.visitors, 1)
	assert.NotSame(t, first, rl.limiter("ip:a"))
}

func TestRateLimiterSeparatesClients(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	post := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusNoContent, post("198.51.100.1:1"))
	assert.Equal(t, http.StatusTooManyRequests, post("198.51.100.1:2"))
	assert.Equal(t, http.StatusNoContent, post("198.51.100.2:1"))
}
