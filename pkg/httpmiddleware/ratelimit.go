package httpmiddleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window limiter.
type RateLimitConfig struct {
	// Max requests allowed per Window for one key.
	Max    int
	Window time.Duration
	// KeyFunc extracts the limiter key. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
}

// window approximates a sliding window from two fixed windows: the previous
// window's count is weighted by how much of it still overlaps.
type window struct {
	start time.Time
	curr  float64
	prev  float64
}

func (w *window) advance(now time.Time, size time.Duration) {
	elapsed := now.Sub(w.start)
	switch {
	case elapsed < size:
		return
	case elapsed < 2*size:
		w.prev = w.curr
	default:
		w.prev = 0
	}
	w.curr = 0
	w.start = now.Truncate(size)
}

func (w *window) estimate(now time.Time, size time.Duration) float64 {
	overlap := 1 - now.Sub(w.start).Seconds()/size.Seconds()
	return w.prev*math.Max(overlap, 0) + w.curr
}

type limiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	windows map[string]*window
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	return &limiter{cfg: cfg, windows: make(map[string]*window)}
}

// take consumes one request for key if the budget allows it.
func (l *limiter) take(key string, now time.Time) (remaining int, reset time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, found := l.windows[key]
	if !found {
		w = &window{start: now.Truncate(l.cfg.Window)}
		l.windows[key] = w
	}
	w.advance(now, l.cfg.Window)
	reset = w.start.Add(l.cfg.Window)

	used := w.estimate(now, l.cfg.Window)
	if used >= float64(l.cfg.Max) {
		return 0, reset, false
	}
	w.curr++
	return max(l.cfg.Max-int(math.Ceil(used+1)), 0), reset, true
}

// evict drops keys idle for two full windows.
func (l *limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, w := range l.windows {
		if now.Sub(w.start) >= 2*l.cfg.Window {
			delete(l.windows, key)
		}
	}
}

func (l *limiter) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// RateLimit enforces cfg per key and answers 429 with Retry-After once the
// budget is spent. Every response carries the X-RateLimit-* headers.
// Idle keys are evicted in the background until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go func() {
		ticker := time.NewTicker(2 * cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.evict(now)
			}
		}
	}()
	return l.middleware
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, reset, ok := l.take(l.cfg.KeyFunc(r), time.Now())

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !ok {
			wait := max(time.Until(reset), 0)
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP keys requests by the first X-Forwarded-For hop, then X-Real-IP,
// then the peer address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// CredentialOrIP keys authenticated requests by a digest of their API key so
// that clients behind one NAT do not share a budget. Anonymous requests fall
// back to ClientIP.
func CredentialOrIP(extract func(*http.Request) string) func(*http.Request) string {
	return func(r *http.Request) string {
		raw := extract(r)
		if raw == "" {
			return "ip:" + ClientIP(r)
		}
		sum := sha256.Sum256([]byte(raw))
		return "key:" + hex.EncodeToString(sum[:8])
	}
}
