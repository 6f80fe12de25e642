package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSessions_GetCreatesOnce(t *testing.T) {
	s := NewSessions(time.Hour)

	a := s.Get("a")
	assert.Same(t, a, s.Get("a"))
	assert.NotSame(t, a, s.Get("b"))
	assert.Equal(t, 2, s.Len())

	_, ok := s.Lookup("c")
	assert.False(t, ok)
}

func TestSessions_Expire(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	s := NewSessions(30 * time.Minute)
	s.now = func() time.Time { return now }

	s.Get("old")
	now = now.Add(20 * time.Minute)
	s.Get("fresh")
	now = now.Add(15 * time.Minute)

	assert.Equal(t, 1, s.Expire())
	_, ok := s.Lookup("old")
	assert.False(t, ok)
	_, ok = s.Lookup("fresh")
	assert.True(t, ok)
}

func TestSessions_ExpireDisabled(t *testing.T) {
	s := NewSessions(0)
	s.Get("a")
	assert.Zero(t, s.Expire())
	assert.Equal(t, 1, s.Len())
}

func TestSessions_RunStopsOnCancel(t *testing.T) {
	s := NewSessions(time.Nanosecond)
	s.Get("a")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, time.Millisecond) }()

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop")
	}
}

func TestSessions_NotifyAndDrain(t *testing.T) {
	s := NewSessions(time.Hour)
	ctx := context.Background()

	assert.Nil(t, s.Drain("nobody"))

	s.Notify(ctx, "a", Notice{Kind: NoticeInfo, Message: "one"})
	s.Notify(ctx, "a", Notice{Kind: NoticeError, Message: "two"})

	got := s.Drain("a")
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Message)
	assert.Equal(t, "two", got[1].Message)
	assert.Empty(t, s.Drain("a"))
}

func TestSession_ConcurrentUpdates(t *testing.T) {
	s := NewSessions(time.Hour)
	sess := s.Get("a")

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sess.Update(func(st *State) error {
				st.Ledger.Add(Item{ProductID: "p1", UnitPrice: d("2")})
				return nil
			})
		}()
	}
	wg.Wait()

	view := sess.View()
	require.Len(t, view.Items, 1)
	assert.Equal(t, 50, view.TotalItems)
	assert.True(t, d("100").Equal(view.Pricing.Subtotal))
}

func TestSession_ViewIsDetached(t *testing.T) {
	s := NewSessions(time.Hour)
	sess := s.Get("a")
	_ = sess.Update(func(st *State) error {
		st.Ledger.Add(Item{ProductID: "p1", UnitPrice: d("2")})
		return nil
	})

	view := sess.View()
	view.Items[0].Quantity = 9

	assert.Equal(t, 1, sess.View().TotalItems)
}
