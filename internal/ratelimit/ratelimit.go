// Package ratelimit provides keyed fixed-window request limiters.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the structured outcome of a limit check. Rejections carry the
// window reset time so callers can render a wait message instead of an error.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"resetTime"`
}

type entry struct {
	count       int
	windowStart time.Time
}

// Limiter is a fixed-window rate limiter keyed by string (user id or service
// name). Windows reset lazily on the first check after the window elapses;
// Sweep bounds memory by dropping stale entries.
type Limiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string]*entry
	now     func() time.Time
}

// New creates a Limiter allowing max requests per window.
func New(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:     max,
		window:  window,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// SetClock replaces the limiter's clock. Intended for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Check records a request attempt for key and returns the decision.
// The (max+1)th call inside one window is rejected with Remaining 0.
func (l *Limiter) Check(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || now.Sub(e.windowStart) >= l.window {
		e = &entry{windowStart: now}
		l.entries[key] = e
	}

	reset := e.windowStart.Add(l.window)
	if e.count >= l.max {
		return Decision{Allowed: false, Remaining: 0, ResetTime: reset}
	}
	e.count++
	return Decision{Allowed: true, Remaining: l.max - e.count, ResetTime: reset}
}

// Peek reports the current decision for key without consuming a request.
func (l *Limiter) Peek(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || now.Sub(e.windowStart) >= l.window {
		return Decision{Allowed: true, Remaining: l.max, ResetTime: now.Add(l.window)}
	}
	reset := e.windowStart.Add(l.window)
	return Decision{
		Allowed:   e.count < l.max,
		Remaining: max(0, l.max-e.count),
		ResetTime: reset,
	}
}

// Sweep removes entries whose window has fully elapsed as of now and returns
// the number removed. Not required for correctness, only to bound memory.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, e := range l.entries {
		if now.Sub(e.windowStart) >= l.window {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
