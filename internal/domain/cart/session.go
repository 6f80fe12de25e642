package cart

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/pricing"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

// State is the mutable part of a session: the ledger and the promotion
// currently applied to it.
type State struct {
	Ledger  Ledger
	Applied *promotion.Promotion
}

// Pricing derives the current snapshot. It is recomputed on every call so a
// cart mutation is always reflected in the discount.
func (s *State) Pricing() pricing.Snapshot {
	return pricing.Compute(s.Ledger.Subtotal(), s.Applied)
}

// View is an immutable copy of a session's state.
type View struct {
	SessionID  string
	Items      []Item
	TotalItems int
	Applied    *promotion.Promotion
	Pricing    pricing.Snapshot
}

// Session is one shopper's cart. All access goes through Update or View so
// concurrent requests for the same session are serialized.
type Session struct {
	ID string

	mu      sync.Mutex
	state   State
	notices []Notice
	touched time.Time
}

// Update runs fn with exclusive access to the session state.
func (s *Session) Update(fn func(st *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.state)
}

// View returns a copy of the current state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		SessionID:  s.ID,
		Items:      s.state.Ledger.Items(),
		TotalItems: s.state.Ledger.TotalItems(),
		Pricing:    s.state.Pricing(),
	}
	if s.state.Applied != nil {
		applied := *s.state.Applied
		v.Applied = &applied
	}
	return v
}

func (s *Session) push(n Notice) {
	s.mu.Lock()
	s.notices = append(s.notices, n)
	s.mu.Unlock()
}

func (s *Session) drain() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

// Sessions is the in-memory registry of carts keyed by session id. Idle
// sessions are dropped by the cleanup loop started with Run.
type Sessions struct {
	mu   sync.Mutex
	byID map[string]*Session
	ttl  time.Duration
	now  func() time.Time
}

// NewSessions creates a registry that forgets sessions idle for longer than
// ttl. A non-positive ttl disables expiry.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		byID: make(map[string]*Session),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Get returns the session for id, creating an empty one if needed.
func (s *Sessions) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		sess = &Session{ID: id}
		s.byID[id] = sess
	}
	sess.touched = s.now()
	return sess
}

// Lookup returns an existing session without creating one.
func (s *Sessions) Lookup(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	return sess, ok
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Notify queues n on the session so the next Drain returns it.
func (s *Sessions) Notify(_ context.Context, sessionID string, n Notice) {
	s.Get(sessionID).push(n)
}

// Drain returns and forgets all notices queued for the session.
func (s *Sessions) Drain(sessionID string) []Notice {
	sess, ok := s.Lookup(sessionID)
	if !ok {
		return nil
	}
	return sess.drain()
}

// Expire drops sessions idle for longer than the ttl and returns how many
// were removed.
func (s *Sessions) Expire() int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := s.now().Add(-s.ttl)
	var n int
	for id, sess := range s.byID {
		if sess.touched.Before(deadline) {
			delete(s.byID, id)
			n++
		}
	}
	return n
}

// Run expires idle sessions every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) error {
	lg := zctx.From(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Expire(); n > 0 {
				lg.Debug("Expired idle sessions",
					zap.Int("count", n),
					zap.Int("remaining", s.Len()),
				)
			}
		}
	}
}
