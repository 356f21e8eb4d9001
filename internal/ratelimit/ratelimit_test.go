package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestAllowFixedWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := New(WithClock(clock.Now))
	window := time.Minute

	// t=0,1,2: three calls allowed.
	assert.True(t, limiter.Allow("guidance:u1", 3, window))
	clock.Advance(time.Second)
	assert.True(t, limiter.Allow("guidance:u1", 3, window))
	clock.Advance(time.Second)
	assert.True(t, limiter.Allow("guidance:u1", 3, window))

	// t=3: over budget, denied without incrementing.
	clock.Advance(time.Second)
	assert.False(t, limiter.Allow("guidance:u1", 3, window))
	assert.False(t, limiter.Allow("guidance:u1", 3, window))

	// t=W+1 relative to first call: window expired, allowed again.
	clock.Advance(window)
	assert.True(t, limiter.Allow("guidance:u1", 3, window))
}

func TestAllowKeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	limiter := New(WithClock(clock.Now))

	assert.True(t, limiter.Allow("bayat:u1", 1, time.Hour))
	assert.False(t, limiter.Allow("bayat:u1", 1, time.Hour))
	assert.True(t, limiter.Allow("bayat:u2", 1, time.Hour))
	assert.True(t, limiter.Allow("guidance:u1", 1, time.Hour))
}

func TestRetryAfter(t *testing.T) {
	clock := newFakeClock()
	limiter := New(WithClock(clock.Now))

	assert.Zero(t, limiter.RetryAfter("enroll:u1"))
	limiter.Allow("enroll:u1", 1, time.Minute)
	clock.Advance(10 * time.Second)
	assert.Equal(t, 50*time.Second, limiter.RetryAfter("enroll:u1"))

	clock.Advance(time.Minute)
	assert.Zero(t, limiter.RetryAfter("enroll:u1"))
}

func TestPassiveSweepBoundsEntries(t *testing.T) {
	clock := newFakeClock()
	limiter := New(WithClock(clock.Now))

	for i := 0; i < 50; i++ {
		limiter.Allow(fmt.Sprintf("k%d", i), 5, time.Second)
	}
	assert.Equal(t, 50, limiter.Len())

	// All entries expire; the next call past the sweep interval collects them.
	clock.Advance(2 * time.Minute)
	limiter.Allow("fresh", 5, time.Second)
	assert.Equal(t, 1, limiter.Len())
}

func TestConcurrentAllowNeverExceedsBudget(t *testing.T) {
	limiter := New()
	const max = 10

	var wg sync.WaitGroup
	allowed := make(chan struct{}, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("shared", max, time.Hour) {
				allowed <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for range allowed {
		count++
	}
	assert.Equal(t, max, count)
}
