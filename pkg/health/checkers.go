package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck reports the result of p.Ping.
func PingCheck(p Pinger) Check {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// GoroutineLimit fails when more than limit goroutines are running, which
// usually means something leaks.
func GoroutineLimit(limit int) Check {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("goroutine count %d exceeds %d", n, limit)
		}
		return nil
	}
}

// CountLimit fails when count() exceeds limit. It guards in-memory state
// such as open cart sessions.
func CountLimit(what string, limit int, count func() int) Check {
	return func(context.Context) error {
		if n := count(); n > limit {
			return errors.Errorf("%s count %d exceeds %d", what, n, limit)
		}
		return nil
	}
}
