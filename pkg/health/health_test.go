package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type probeBody struct {
	Status string
	Checks map[string]string
}

func probe(t *testing.T, h *Health, p Probe) (int, probeBody) {
	t.Helper()

	w := httptest.NewRecorder()
	h.Handler(p).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body probeBody
	err := jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			s, err := d.Str()
			body.Status = s
			return err
		case "checks":
			body.Checks = map[string]string{}
			return d.Obj(func(d *jx.Decoder, name string) error {
				s, err := d.Str()
				body.Checks[name] = s
				return err
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)
	return w.Code, body
}

func failing(msg string) Check {
	return func(context.Context) error { return errors.New(msg) }
}

func passing() Check {
	return func(context.Context) error { return nil }
}

func only(h *Health, name string) *probeCheck {
	for _, c := range h.snapshot() {
		if c.name == name {
			return c
		}
	}
	return nil
}

func TestLiveness(t *testing.T) {
	h := New()
	h.Register(Liveness, "goroutines", passing())
	h.Register(Liveness, "db", failing("connection refused"))

	// Checks start healthy.
	code, body := probe(t, h, Liveness)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Empty(t, body.Checks)

	db := only(h, "db")
	ctx := context.Background()
	assert.False(t, db.poll(ctx))
	assert.False(t, db.poll(ctx))
	code, _ = probe(t, h, Liveness)
	assert.Equal(t, http.StatusOK, code, "two failures are below the threshold")

	assert.True(t, db.poll(ctx))
	code, body = probe(t, h, Liveness)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, map[string]string{"db": "connection refused"}, body.Checks)
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name   string
		ready  bool
		check  Check
		code   int
		checks map[string]string
	}{
		{
			name:  "ready and passing",
			ready: true,
			check: passing(),
			code:  http.StatusOK,
		},
		{
			name:   "not marked ready",
			ready:  false,
			check:  passing(),
			code:   http.StatusServiceUnavailable,
			checks: map[string]string{"_readiness": "service is not ready"},
		},
		{
			name:   "check failing",
			ready:  true,
			check:  failing("pool closed"),
			code:   http.StatusServiceUnavailable,
			checks: map[string]string{"postgres": "pool closed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			h.Register(Readiness, "postgres", tt.check, WithThresholds(1, 1))
			h.Register(Liveness, "ignored", failing("liveness only"), WithThresholds(1, 1))
			for _, c := range h.snapshot() {
				c.poll(context.Background())
			}
			h.SetReady(tt.ready)

			code, body := probe(t, h, Readiness)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.checks, body.Checks)
			assert.Equal(t, tt.code == http.StatusOK, h.Ready())
		})
	}
}

func TestReadiness_Draining(t *testing.T) {
	h := New()
	h.SetReady(true)
	assert.True(t, h.Ready())

	h.SetReady(false)
	code, body := probe(t, h, Readiness)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "_readiness")
}

func TestPoll_Recovery(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)

	h := New()
	h.Register(Readiness, "cache", func(context.Context) error {
		if fail.Load() {
			return errors.New("cold")
		}
		return nil
	}, WithThresholds(1, 2))
	h.SetReady(true)
	c := only(h, "cache")
	ctx := context.Background()

	assert.True(t, c.poll(ctx))
	assert.False(t, h.Ready())

	fail.Store(false)
	assert.False(t, c.poll(ctx), "one success is below the threshold")
	assert.False(t, h.Ready())
	assert.True(t, c.poll(ctx))
	assert.True(t, h.Ready())
}

func TestPoll_Timeout(t *testing.T) {
	h := New()
	h.Register(Liveness, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithTimeout(10*time.Millisecond), WithThresholds(1, 1))

	c := only(h, "slow")
	assert.True(t, c.poll(context.Background()))
	assert.Contains(t, c.failure(), "deadline exceeded")
}

func TestRun(t *testing.T) {
	var calls atomic.Int32
	h := New()
	h.Register(Liveness, "counter", func(context.Context) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("health checks did not stop")
	}
}

func TestConcurrentProbes(t *testing.T) {
	h := New()
	h.Register(Readiness, "flaky", func(context.Context) error {
		return errors.New("flaky")
	}, WithThresholds(1, 1))
	h.SetReady(true)
	c := only(h, "flaky")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 100 {
			c.poll(context.Background())
		}
	}()
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				probe(t, h, Readiness)
				h.Ready()
			}
		}()
	}
	wg.Wait()
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, PingCheck(pingerFunc(func(context.Context) error { return nil }))(ctx))
	err := PingCheck(pingerFunc(func(context.Context) error { return errors.New("refused") }))(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")

	assert.NoError(t, GoroutineLimit(1_000_000)(ctx))
	assert.Error(t, GoroutineLimit(0)(ctx))

	n := 3
	sessions := CountLimit("session", 5, func() int { return n })
	assert.NoError(t, sessions(ctx))
	n = 6
	assert.EqualError(t, sessions(ctx), "session count 6 exceeds 5")
}

func TestProbeString(t *testing.T) {
	assert.Equal(t, "liveness", Liveness.String())
	assert.Equal(t, "readiness", Readiness.String())
	assert.Equal(t, "unknown", Probe(0).String())
}
