// Package ratelimit provides fixed-window request limiting keyed by client identity.
//
// WindowLimiter keeps its counters in process memory. It is a best-effort,
// single-process guard: every API instance enforces its own budget, so N
// instances behind a load balancer admit up to N times the configured limit.
// RedisLimiter implements the same Limiter interface on shared counters for
// multi-instance deployments.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether a client may proceed.
type Limiter interface {
	Allow(ctx context.Context, clientKey string) (bool, error)
}

type window struct {
	count   int
	resetAt time.Time
}

// WindowLimiter is a mutex-guarded map of per-client fixed windows.
type WindowLimiter struct {
	mu            sync.Mutex
	windows       map[string]*window
	limit         int
	duration      time.Duration
	sweepInterval time.Duration
	lastSweep     time.Time
	now           func() time.Time
}

// Option customizes a WindowLimiter.
type Option func(*WindowLimiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *WindowLimiter) {
		l.now = now
	}
}

// WithSweepInterval sets how often expired windows are purged.
func WithSweepInterval(d time.Duration) Option {
	return func(l *WindowLimiter) {
		if d > 0 {
			l.sweepInterval = d
		}
	}
}

// NewWindowLimiter allows limit calls per client per window.
func NewWindowLimiter(limit int, duration time.Duration, opts ...Option) *WindowLimiter {
	l := &WindowLimiter{
		windows:       make(map[string]*window),
		limit:         limit,
		duration:      duration,
		sweepInterval: 5 * time.Minute,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// Allow never returns an error; the signature matches Limiter.
func (l *WindowLimiter) Allow(_ context.Context, clientKey string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.maybeSweep(now)

	w, ok := l.windows[clientKey]
	if !ok || now.After(w.resetAt) {
		l.windows[clientKey] = &window{count: 1, resetAt: now.Add(l.duration)}
		return true, nil
	}

	if w.count >= l.limit {
		return false, nil
	}

	w.count++
	return true, nil
}

// Len returns the number of tracked clients.
func (l *WindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// maybeSweep must be called with l.mu held.
func (l *WindowLimiter) maybeSweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.sweepInterval {
		return
	}
	l.lastSweep = now

	for key, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, key)
		}
	}
}

var _ Limiter = (*WindowLimiter)(nil)
