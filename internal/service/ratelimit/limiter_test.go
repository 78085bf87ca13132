package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(capacity, refill float64) (*Limiter, *clock) {
	c := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(capacity, refill)
	l.now = c.now
	return l, c
}

func TestAllow_BurstThenRefill(t *testing.T) {
	l, c := newTestLimiter(2, 0.5)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "keys are independent")

	assert.Equal(t, 2*time.Second, l.RetryAfter("a"))
	c.advance(2 * time.Second)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
}

func TestAllow_CapsAtCapacity(t *testing.T) {
	l, c := newTestLimiter(1, 1)
	assert.True(t, l.Allow("a"))
	c.advance(time.Hour)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
}

func TestSweep(t *testing.T) {
	l, c := newTestLimiter(1, 1)
	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 0, l.Sweep(time.Minute))

	c.advance(2 * time.Minute)
	assert.Equal(t, 2, l.Sweep(time.Minute))
	assert.Equal(t, time.Duration(0), l.RetryAfter("a"))
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

func TestStart_SweepsIdleBucketsUntilStopped(t *testing.T) {
	l := New(1, 1000, WithSweep(5*time.Millisecond, 0))
	require.NoError(t, l.Start(context.Background()))
	require.NoError(t, l.Start(context.Background()), "second start is a no-op")

	assert.True(t, l.Allow("10.0.0.1"))
	assert.Eventually(t, func() bool { return l.size() == 0 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, l.Stop(ctx))
	require.NoError(t, l.Stop(ctx))

	assert.True(t, l.Allow("10.0.0.2"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, l.size(), "no sweeping after stop")
}
