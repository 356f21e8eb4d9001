package ratelimit

import (
	"sync"
	"time"
)

const sweepInterval = 60 * time.Second

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter is a process-local fixed-window throttle. It is a soft abuse guard,
// not a security boundary: the real boundary is the authorization evaluator
// and the data store. Not linearizable across process instances.
type Limiter struct {
	mu        sync.Mutex
	entries   map[string]*entry
	lastSweep time.Time
	now       func() time.Time
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock injects a clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New constructs a Limiter.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// Allow records an attempt under key and reports whether it is within the
// window's budget. The first call in a window (or after expiry) resets the
// counter; a denied call does not increment.
func (l *Limiter) Allow(key string, maxRequests int, window time.Duration) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeSweep(now)

	e, ok := l.entries[key]
	if !ok || e.resetAt.Before(now) {
		l.entries[key] = &entry{count: 1, resetAt: now.Add(window)}
		return true
	}
	if e.count >= maxRequests {
		return false
	}
	e.count++
	return true
}

// RetryAfter returns how long until the key's window resets. Zero when the
// key has no live entry.
func (l *Limiter) RetryAfter(key string) time.Duration {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || e.resetAt.Before(now) {
		return 0
	}
	return e.resetAt.Sub(now)
}

// maybeSweep drops expired entries at most once per sweepInterval, amortised
// over calls so no background goroutine is needed. Caller holds the lock.
func (l *Limiter) maybeSweep(now time.Time) {
	if now.Sub(l.lastSweep) <= sweepInterval {
		return
	}
	for key, e := range l.entries {
		if e.resetAt.Before(now) {
			delete(l.entries, key)
		}
	}
	l.lastSweep = now
}

// Len reports the number of live entries, for tests and metrics.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
