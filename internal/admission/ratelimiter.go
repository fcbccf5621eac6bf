package admission

import (
	"sync"
	"time"
)

// RateLimiter is a per-user sliding-window limiter. Exempt users always pass.
type RateLimiter struct {
	limit    int
	interval time.Duration
	exempt   map[int64]struct{}
	now      func() time.Time

	mu      sync.Mutex
	records map[int64]*rateRecord
}

// rateRecord holds the timestamps of allowed requests inside the window, oldest first
type rateRecord struct {
	mu    sync.Mutex
	times []time.Time
	// swept is set once the record has been removed from the table
	swept bool
}

type Option func(*RateLimiter)

// WithClock overrides time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(rl *RateLimiter) {
		if now != nil {
			rl.now = now
		}
	}
}

func NewRateLimiter(limit int, interval time.Duration, exemptUserIDs []int64, opts ...Option) *RateLimiter {
	rl := &RateLimiter{
		limit:    limit,
		interval: interval,
		exempt:   make(map[int64]struct{}, len(exemptUserIDs)),
		now:      time.Now,
		records:  make(map[int64]*rateRecord),
	}
	for _, id := range exemptUserIDs {
		rl.exempt[id] = struct{}{}
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// IsExempt reports whether userID bypasses admission control
func (rl *RateLimiter) IsExempt(userID int64) bool {
	_, ok := rl.exempt[userID]
	return ok
}

// Allow prunes timestamps older than now-interval and records now only when
// the remaining count is below the limit.
func (rl *RateLimiter) Allow(userID int64) bool {
	if rl.IsExempt(userID) {
		return true
	}

	rec := rl.lockedRecord(userID)
	defer rec.mu.Unlock()

	now := rl.now()
	rec.prune(now.Add(-rl.interval))

	if len(rec.times) >= rl.limit {
		return false
	}
	rec.times = append(rec.times, now)
	return true
}

// Remaining returns how many requests userID may still make in the current window
func (rl *RateLimiter) Remaining(userID int64) int {
	if rl.IsExempt(userID) {
		return rl.limit
	}

	rl.mu.Lock()
	rec, ok := rl.records[userID]
	rl.mu.Unlock()
	if !ok {
		return rl.limit
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.prune(rl.now().Add(-rl.interval))
	return rl.limit - len(rec.times)
}

// Sweep drops records whose every timestamp has left the window
func (rl *RateLimiter) Sweep() int {
	cutoff := rl.now().Add(-rl.interval)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for userID, rec := range rl.records {
		rec.mu.Lock()
		rec.prune(cutoff)
		if len(rec.times) == 0 {
			rec.swept = true
			delete(rl.records, userID)
			removed++
		}
		rec.mu.Unlock()
	}
	return removed
}

// lockedRecord returns the live record for userID with its mutex held
func (rl *RateLimiter) lockedRecord(userID int64) *rateRecord {
	for {
		rl.mu.Lock()
		rec, ok := rl.records[userID]
		if !ok {
			rec = &rateRecord{}
			rl.records[userID] = rec
		}
		rl.mu.Unlock()

		rec.mu.Lock()
		if !rec.swept {
			return rec
		}
		rec.mu.Unlock()
	}
}

// prune keeps timestamps strictly after cutoff
func (r *rateRecord) prune(cutoff time.Time) {
	i := 0
	for i < len(r.times) && !r.times[i].After(cutoff) {
		i++
	}
	if i > 0 {
		r.times = append(r.times[:0], r.times[i:]...)
	}
}
