// Package ratelimit provides a small injectable rate limiter used to
// throttle outbound email. Callers depend on the Limiter interface so
// decision logic under test never touches wall-clock timers.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter reports whether an action identified by key may proceed
type Limiter interface {
	Allow(key string) bool
}

// FixedWindow is an in-memory fixed-window counter. Expired windows are
// dropped lazily on access, so no background cleanup goroutine is needed.
type FixedWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	counts map[string]*windowCount
}

type windowCount struct {
	start time.Time
	n     int
}

// NewFixedWindow creates a limiter allowing limit actions per window
func NewFixedWindow(limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{
		limit:  limit,
		window: window,
		now:    time.Now,
		counts: make(map[string]*windowCount),
	}
}

// NewFixedWindowWithClock creates a limiter with an injected clock for tests
func NewFixedWindowWithClock(limit int, window time.Duration, now func() time.Time) *FixedWindow {
	l := NewFixedWindow(limit, window)
	l.now = now
	return l
}

// Allow increments the counter for key and reports whether the action is
// within the configured limit for the current window.
func (l *FixedWindow) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	wc, ok := l.counts[key]
	if !ok || now.Sub(wc.start) >= l.window {
		l.counts[key] = &windowCount{start: now, n: 1}
		l.evictExpired(now)
		return l.limit >= 1
	}

	if wc.n >= l.limit {
		return false
	}
	wc.n++
	return true
}

// Remaining returns how many actions are left for key in the current window
func (l *FixedWindow) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	wc, ok := l.counts[key]
	if !ok || l.now().Sub(wc.start) >= l.window {
		return l.limit
	}
	remaining := l.limit - wc.n
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset clears the counter for key
func (l *FixedWindow) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counts, key)
}

func (l *FixedWindow) evictExpired(now time.Time) {
	for key, wc := range l.counts {
		if now.Sub(wc.start) >= l.window {
			delete(l.counts, key)
		}
	}
}
