// Package health serves liveness and readiness probes.
//
// Every registered check is polled in the background. A check flips to
// unhealthy only after FailureThreshold consecutive failures and back to
// healthy after SuccessThreshold consecutive successes, so a single slow
// ping does not take the pod out of rotation.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Check reports nil when the checked component is usable.
type Check func(ctx context.Context) error

// Probe selects which endpoint a check contributes to.
type Probe int

const (
	Liveness Probe = iota + 1
	Readiness
)

func (p Probe) String() string {
	switch p {
	case Liveness:
		return "liveness"
	case Readiness:
		return "readiness"
	default:
		return "unknown"
	}
}

// Option tunes a registered check.
type Option func(*probeCheck)

// WithTimeout bounds a single run of the check. Default 5s.
func WithTimeout(d time.Duration) Option {
	return func(c *probeCheck) { c.timeout = d }
}

// WithThresholds sets how many consecutive failures mark the check
// unhealthy and how many successes recover it. Default 3 and 1.
func WithThresholds(failures, successes int) Option {
	return func(c *probeCheck) {
		if failures > 0 {
			c.failureThreshold = failures
		}
		if successes > 0 {
			c.successThreshold = successes
		}
	}
}

type probeCheck struct {
	name             string
	probe            Probe
	fn               Check
	timeout          time.Duration
	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[string]

	// Owned by the polling goroutine.
	fails     int
	successes int
}

// poll runs the check once and reports whether the health state flipped.
func (c *probeCheck) poll(ctx context.Context) (changed bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	was := c.healthy.Load()
	if err := c.fn(ctx); err != nil {
		msg := err.Error()
		c.lastErr.Store(&msg)
		c.successes = 0
		c.fails++
		if c.fails >= c.failureThreshold {
			c.healthy.Store(false)
		}
	} else {
		c.lastErr.Store(nil)
		c.fails = 0
		c.successes++
		if c.successes >= c.successThreshold {
			c.healthy.Store(true)
		}
	}
	return was != c.healthy.Load()
}

// failure returns the reason the check is unhealthy, or "" when it is not.
func (c *probeCheck) failure() string {
	if c.healthy.Load() {
		return ""
	}
	if msg := c.lastErr.Load(); msg != nil {
		return *msg
	}
	return "check is unhealthy"
}

// Health aggregates probe checks. Readiness additionally requires the
// service to be marked ready with SetReady.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks []*probeCheck
}

// New returns a Health that is live and not yet ready.
func New() *Health {
	return &Health{}
}

// Register adds a check to probe. Checks start healthy. Register must be
// called before Run.
func (h *Health) Register(probe Probe, name string, fn Check, opts ...Option) {
	c := &probeCheck{
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

// Run polls every check each interval until ctx is done. It always returns
// nil after cancellation so it can share an errgroup with the server.
func (h *Health) Run(ctx context.Context, interval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range h.snapshot() {
		g.Go(func() error {
			watch(ctx, c, interval)
			return nil
		})
	}
	return g.Wait()
}

func watch(ctx context.Context, c *probeCheck, interval time.Duration) {
	lg := zctx.From(ctx).With(
		zap.String("check", c.name),
		zap.Stringer("probe", c.probe),
	)
	report := func() {
		if !c.poll(ctx) || ctx.Err() != nil {
			return
		}
		if reason := c.failure(); reason != "" {
			lg.Warn("Health check failing", zap.String("reason", reason))
		} else {
			lg.Info("Health check recovered")
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	report()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report()
		}
	}
}

// SetReady marks the service ready or draining.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Ready reports whether readiness would currently answer 200.
func (h *Health) Ready() bool {
	return len(h.failures(Readiness)) == 0
}

func (h *Health) snapshot() []*probeCheck {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*probeCheck(nil), h.checks...)
}

func (h *Health) failures(probe Probe) map[string]string {
	out := make(map[string]string)
	for _, c := range h.snapshot() {
		if c.probe != probe {
			continue
		}
		if reason := c.failure(); reason != "" {
			out[c.name] = reason
		}
	}
	if probe == Readiness && !h.ready.Load() {
		out["_readiness"] = "service is not ready"
	}
	return out
}

// Handler serves the given probe: 200 {"status":"ok"} or
// 503 {"status":"unhealthy","checks":{name: reason}}.
func (h *Health) Handler(probe Probe) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, h.failures(probe))
	})
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	status, code := "ok", http.StatusOK
	if len(failures) > 0 {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	sort.Strings(names)

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(status) })
		if len(names) == 0 {
			return
		}
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, name := range names {
					e.Field(name, func(e *jx.Encoder) { e.Str(failures[name]) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
