package admission

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
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

func TestRateLimiter_DeniesAfterLimit(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(3, time.Minute, nil, WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow(42), "request %d should pass", i+1)
		clock.Advance(10 * time.Second)
	}

	assert.False(t, rl.Allow(42))
	assert.Equal(t, 0, rl.Remaining(42))
}

func TestRateLimiter_ReplenishesOneAtATime(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(2, time.Minute, nil, WithClock(clock.Now))

	assert.True(t, rl.Allow(1))
	clock.Advance(20 * time.Second)
	assert.True(t, rl.Allow(1))
	assert.False(t, rl.Allow(1))

	// the earliest request leaves the window, the second one is still inside
	clock.Advance(40*time.Second + time.Millisecond)
	assert.True(t, rl.Allow(1))
	assert.False(t, rl.Allow(1))
}

func TestRateLimiter_DeniedRequestsAreNotRecorded(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(1, time.Minute, nil, WithClock(clock.Now))

	assert.True(t, rl.Allow(7))
	for i := 0; i < 5; i++ {
		clock.Advance(10 * time.Second)
		assert.False(t, rl.Allow(7))
	}

	// only the single allowed request occupies the window
	clock.Advance(10*time.Second + time.Millisecond)
	assert.True(t, rl.Allow(7))
}

func TestRateLimiter_ExemptUsersAlwaysPass(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour, []int64{99})

	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow(99))
	}
	assert.True(t, rl.IsExempt(99))
	assert.False(t, rl.IsExempt(100))
}

func TestRateLimiter_UsersAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour, nil)

	assert.True(t, rl.Allow(1))
	assert.True(t, rl.Allow(2))
	assert.False(t, rl.Allow(1))
	assert.False(t, rl.Allow(2))
}

func TestRateLimiter_Sweep(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(5, time.Minute, nil, WithClock(clock.Now))

	rl.Allow(1)
	rl.Allow(2)
	clock.Advance(30 * time.Second)
	rl.Allow(2)

	clock.Advance(31 * time.Second)
	assert.Equal(t, 1, rl.Sweep())
	assert.Equal(t, 4, rl.Remaining(2))
	assert.Equal(t, 5, rl.Remaining(1))

	// a swept user starts fresh
	assert.True(t, rl.Allow(1))
}

func TestRateLimiter_ConcurrentAllowRespectsLimit(t *testing.T) {
	rl := NewRateLimiter(10, time.Hour, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow(5) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
			if i%10 == 0 {
				rl.Sweep()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
}
