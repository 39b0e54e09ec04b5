package httpmiddleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newRateLimited(t *testing.T, cfg RateLimitConfig) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return RateLimit(ctx, cfg)(okHandler())
}

func hit(h http.Handler, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_Budget(t *testing.T) {
	h := newRateLimited(t, RateLimitConfig{Max: 3, Window: time.Minute})

	for i, want := range []string{"2", "1", "0"} {
		w := hit(h, nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, want, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}

	w := hit(h, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusTooManyRequests, body.Code)
	assert.Equal(t, "rate limit exceeded", body.Message)
}

func TestRateLimit_Keys(t *testing.T) {
	tests := []struct {
		name     string
		keyFunc  func(*http.Request) string
		first    func(*http.Request)
		sameKey  func(*http.Request)
		otherKey func(*http.Request)
	}{
		{
			name:     "peer address",
			first:    func(r *http.Request) { r.RemoteAddr = "10.0.0.1:1234" },
			sameKey:  func(r *http.Request) { r.RemoteAddr = "10.0.0.1:5678" },
			otherKey: func(r *http.Request) { r.RemoteAddr = "10.0.0.2:1234" },
		},
		{
			name:     "forwarded for",
			first:    func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18") },
			sameKey:  func(r *http.Request) { r.RemoteAddr = "10.9.9.9:1"; r.Header.Set("X-Forwarded-For", "203.0.113.50") },
			otherKey: func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.51") },
		},
		{
			name:     "api key",
			keyFunc:  CredentialOrIP(func(r *http.Request) string { return r.Header.Get("api_key") }),
			first:    func(r *http.Request) { r.Header.Set("api_key", "key-a") },
			sameKey:  func(r *http.Request) { r.RemoteAddr = "10.9.9.9:1"; r.Header.Set("api_key", "key-a") },
			otherKey: func(r *http.Request) { r.Header.Set("api_key", "key-b") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRateLimited(t, RateLimitConfig{Max: 1, Window: time.Minute, KeyFunc: tt.keyFunc})

			assert.Equal(t, http.StatusOK, hit(h, tt.first).Code)
			assert.Equal(t, http.StatusTooManyRequests, hit(h, tt.sameKey).Code)
			assert.Equal(t, http.StatusOK, hit(h, tt.otherKey).Code)
		})
	}
}

func TestCredentialOrIP(t *testing.T) {
	key := CredentialOrIP(func(r *http.Request) string { return r.Header.Get("api_key") })

	anon := httptest.NewRequest(http.MethodGet, "/", nil)
	anon.RemoteAddr = "10.0.0.7:80"
	assert.Equal(t, "ip:10.0.0.7", key(anon))

	authed := httptest.NewRequest(http.MethodGet, "/", nil)
	authed.Header.Set("api_key", "secret")
	got := key(authed)
	assert.Regexp(t, `^key:[0-9a-f]{16}$`, got)
	assert.NotContains(t, got, "secret")
}

func TestLimiter_WindowSlides(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	_, _, ok := l.take("k", start)
	require.True(t, ok)
	_, _, ok = l.take("k", start.Add(time.Second))
	require.True(t, ok)
	_, _, ok = l.take("k", start.Add(2*time.Second))
	require.False(t, ok)

	// Halfway through the next window half of the previous count remains.
	_, _, ok = l.take("k", start.Add(90*time.Second))
	assert.True(t, ok)
	_, _, ok = l.take("k", start.Add(90*time.Second))
	assert.False(t, ok)

	// Two idle windows reset the budget.
	_, _, ok = l.take("k", start.Add(5*time.Minute))
	assert.True(t, ok)
}

func TestLimiter_Evict(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	now := time.Now()
	l.take("old", now.Add(-5*time.Minute))
	l.take("fresh", now)

	l.evict(now)

	assert.Equal(t, 1, l.len())
}
