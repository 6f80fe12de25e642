package cart

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// NoticeKind classifies a notice for display.
type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a short user-facing message produced by a cart action.
type Notice struct {
	Kind    NoticeKind
	Message string
	At      time.Time
}

// Notifier receives notices emitted by the cart service.
type Notifier interface {
	Notify(ctx context.Context, sessionID string, n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, sessionID string, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, sessionID string, n Notice) {
	f(ctx, sessionID, n)
}

// LogNotifier writes notices to the logger carried by the context.
var LogNotifier Notifier = NotifierFunc(func(ctx context.Context, sessionID string, n Notice) {
	zctx.From(ctx).Debug("Cart notice",
		zap.String("session_id", sessionID),
		zap.String("kind", string(n.Kind)),
		zap.String("message", n.Message),
	)
})

// Fanout delivers every notice to all of the given notifiers in order.
func Fanout(notifiers ...Notifier) Notifier {
	return NotifierFunc(func(ctx context.Context, sessionID string, n Notice) {
		for _, nt := range notifiers {
			nt.Notify(ctx, sessionID, n)
		}
	})
}
