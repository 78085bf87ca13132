package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	defaultSweepEvery = time.Minute
	defaultSweepIdle  = 10 * time.Minute
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a keyed token bucket. All keys share one capacity and refill rate.
type Limiter struct {
	mu       sync.Mutex
	m        map[string]*bucket
	capacity float64
	refill   float64 // tokens per second
	now      func() time.Time

	sweepEvery time.Duration
	sweepIdle  time.Duration
	cancel     context.CancelFunc
	done       chan struct{}
}

type Option func(*Limiter)

// WithSweep sets how often idle buckets are dropped and how long a full bucket must sit unused.
func WithSweep(every, idle time.Duration) Option {
	return func(l *Limiter) {
		if every > 0 {
			l.sweepEvery = every
		}
		if idle >= 0 {
			l.sweepIdle = idle
		}
	}
}

// New creates a limiter allowing bursts of capacity and refillPerSec sustained requests.
func New(capacity, refillPerSec float64, opts ...Option) *Limiter {
	l := &Limiter{
		m:          make(map[string]*bucket),
		capacity:   capacity,
		refill:     refillPerSec,
		now:        time.Now,
		sweepEvery: defaultSweepEvery,
		sweepIdle:  defaultSweepIdle,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Start runs the idle sweep in the background until Stop is called or ctx ends.
func (l *Limiter) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.sweepLoop(ctx, l.done)
	return nil
}

// Stop halts the sweep and waits for it to exit.
func (l *Limiter) Stop(ctx context.Context) error {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) sweepLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(l.sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Sweep(l.sweepIdle)
		}
	}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(l.capacity, b.tokens+elapsed*l.refill)
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RetryAfter is the wait until key regains one token.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.m[key]
	if !ok || b.tokens >= 1 || l.refill <= 0 {
		return 0
	}
	return time.Duration((1 - b.tokens) / l.refill * float64(time.Second))
}

// Sweep drops buckets that have been full for at least idle.
func (l *Limiter) Sweep(idle time.Duration) int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	dropped := 0
	for k, b := range l.m {
		full := b.tokens+now.Sub(b.last).Seconds()*l.refill >= l.capacity
		if full && now.Sub(b.last) >= idle {
			delete(l.m, k)
			dropped++
		}
	}
	return dropped
}
