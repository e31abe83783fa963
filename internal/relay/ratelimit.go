package relay

import (
	"sync"
	"time"
)

// Default throttle parameters: eight messages per three second window.
const (
	DefaultWindow      = 3 * time.Second
	DefaultMaxMessages = 8
)

// RateLimiter throttles each session with a counter that resets once the
// window has elapsed since it was last reset. A client can therefore get up to
// twice the limit through around a window boundary; that approximation is the
// intended behavior.
type RateLimiter struct {
	window time.Duration
	limit  int
	now    func() time.Time
}

// NewRateLimiter returns a limiter allowing limit messages per window.
// Non-positive arguments fall back to the defaults.
func NewRateLimiter(window time.Duration, limit int) *RateLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if limit <= 0 {
		limit = DefaultMaxMessages
	}
	return &RateLimiter{window: window, limit: limit, now: time.Now}
}

// Allow records one message for s and reports whether it is within the
// limit. The session's counter advances on every call, denied or not.
func (l *RateLimiter) Allow(s *Session) bool {
	return s.throttle.hit(l.now(), l.window, l.limit)
}

// Window returns the throttle window.
func (l *RateLimiter) Window() time.Duration { return l.window }

// Max returns the number of messages allowed per window.
func (l *RateLimiter) Max() int { return l.limit }

type throttle struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
}

func (t *throttle) hit(now time.Time, window time.Duration, limit int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.windowStart) > window {
		t.count = 0
		t.windowStart = now
	}
	t.count++
	return t.count <= limit
}
