// Package health serves liveness and readiness probes backed by periodic
// background checks.
//
// A check flips to unhealthy only after failureThreshold consecutive failures
// and back to healthy after successThreshold consecutive passes, so a single
// slow ping to a dependency does not take the instance out of rotation.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

// Probe selects which endpoint a check contributes to.
type Probe int

const (
	// Liveness checks decide whether the process should be restarted.
	Liveness Probe = iota
	// Readiness checks decide whether the instance receives traffic.
	Readiness
)

func (p Probe) String() string {
	if p == Liveness {
		return "liveness"
	}
	return "readiness"
}

// CheckFunc returns nil when the checked dependency is healthy.
type CheckFunc func(ctx context.Context) error

// Option tunes a single check.
type Option func(*check)

// WithTimeout bounds one check execution. Default 5s.
func WithTimeout(d time.Duration) Option {
	return func(c *check) { c.timeout = d }
}

// WithFailureThreshold sets how many consecutive failures mark the check
// unhealthy. Default 3.
func WithFailureThreshold(n int) Option {
	return func(c *check) { c.failureThreshold = n }
}

// WithSuccessThreshold sets how many consecutive passes mark the check
// healthy again. Default 1.
func WithSuccessThreshold(n int) Option {
	return func(c *check) { c.successThreshold = n }
}

// check is executed by exactly one goroutine; the counters are owned by it.
// healthy and lastErr are read concurrently by the HTTP handlers.
type check struct {
	name             string
	probe            Probe
	fn               CheckFunc
	timeout          time.Duration
	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails int
	oks   int
}

func (c *check) err() error {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// run executes the check once and reports whether its health flipped.
func (c *check) run(ctx context.Context) (changed bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	c.lastErr.Store(&err)

	was := c.healthy.Load()
	if err != nil {
		c.oks = 0
		c.fails++
		if c.fails >= c.failureThreshold {
			c.healthy.Store(false)
		}
	} else {
		c.fails = 0
		c.oks++
		if c.oks >= c.successThreshold {
			c.healthy.Store(true)
		}
	}
	return was != c.healthy.Load()
}

// Health owns the registered checks and serves their aggregate state.
type Health struct {
	lg    *zap.Logger
	ready atomic.Bool

	mu     sync.RWMutex
	checks []*check
	cancel context.CancelFunc
}

// New creates a Health that logs check transitions to lg. The instance
// starts not ready; call SetReady(true) once initialization completes.
func New(lg *zap.Logger) *Health {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Health{lg: lg}
}

// Register adds a check to probe. Checks start healthy. Register must be
// called before Start.
func (h *Health) Register(probe Probe, name string, fn CheckFunc, opts ...Option) {
	c := &check{
		name:             name,
		probe:            probe,
		fn:               fn,
		timeout:          5 * time.Second,
		failureThreshold: 3,
		successThreshold: 1,
	}
	for _, o := range opts {
		o(c)
	}
	c.healthy.Store(true)

	h.mu.Lock()
	h.checks = append(h.checks, c)
	h.mu.Unlock()
}

// Start runs every registered check immediately and then every interval
// until Stop is called or ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := slices.Clone(h.checks)
	h.mu.Unlock()

	for _, c := range checks {
		go h.loop(ctx, c, interval)
	}
}

func (h *Health) loop(ctx context.Context, c *check, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if c.run(ctx) {
			lg := h.lg.With(zap.String("check", c.name), zap.Stringer("probe", c.probe))
			if c.healthy.Load() {
				lg.Info("Health check recovered")
			} else {
				lg.Warn("Health check failing", zap.Error(c.err()))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop cancels the background checks. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady toggles the manual readiness gate, used during startup and to
// drain traffic on shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the gate is open and every readiness check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	for _, c := range h.snapshot(Readiness) {
		if !c.healthy.Load() {
			return false
		}
	}
	return true
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.snapshot(Liveness), "")
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	gate := ""
	if !h.ready.Load() {
		gate = "service is not ready"
	}
	writeStatus(w, h.snapshot(Readiness), gate)
}

func (h *Health) snapshot(probe Probe) []*check {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*check, 0, len(h.checks))
	for _, c := range h.checks {
		if c.probe == probe {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b *check) int {
		switch {
		case a.name < b.name:
			return -1
		case a.name > b.name:
			return 1
		}
		return 0
	})
	return out
}

// writeStatus renders {"status":..., "checks":{name: "ok"|error}}. Unhealthy
// checks or a closed gate yield 503.
func writeStatus(w http.ResponseWriter, checks []*check, gate string) {
	status := http.StatusOK
	if gate != "" {
		status = http.StatusServiceUnavailable
	}
	for _, c := range checks {
		if !c.healthy.Load() {
			status = http.StatusServiceUnavailable
		}
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	if status == http.StatusOK {
		e.Str("ok")
	} else {
		e.Str("unhealthy")
	}
	if len(checks) > 0 || gate != "" {
		e.FieldStart("checks")
		e.ObjStart()
		if gate != "" {
			e.FieldStart("_readiness")
			e.Str(gate)
		}
		for _, c := range checks {
			e.FieldStart(c.name)
			switch err := c.err(); {
			case c.healthy.Load():
				e.Str("ok")
			case err != nil:
				e.Str(err.Error())
			default:
				e.Str("check is unhealthy")
			}
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	// The status line is already sent; a failed write means the client left.
	_, _ = w.Write(e.Bytes())
}
