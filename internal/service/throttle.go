package service

import (
	"context"
	"sync"
	"time"
)

// NoopThrottle is the default throttle: no lockout policy at all. Brute-force
// protection is deliberately pluggable rather than baked into the core.
type NoopThrottle struct{}

func (NoopThrottle) Allow(context.Context, string) bool    { return true }
func (NoopThrottle) RecordFailure(context.Context, string) {}
func (NoopThrottle) Reset(context.Context, string)         {}

// MemoryThrottle counts failed attempts per subject in a fixed window.
// Single-process only; multi-instance deployments should use the Redis-backed
// attempt cache instead.
type MemoryThrottle struct {
	mu       sync.Mutex
	attempts map[string]*attemptInfo

	maxAttempts int
	window      time.Duration
}

type attemptInfo struct {
	count   int
	firstAt time.Time
}

// NewMemoryThrottle constructs a MemoryThrottle and starts its cleanup loop.
func NewMemoryThrottle(maxAttempts int, window time.Duration) *MemoryThrottle {
	t := &MemoryThrottle{
		attempts:    make(map[string]*attemptInfo),
		maxAttempts: maxAttempts,
		window:      window,
	}
	go t.cleanup()
	return t
}

// Allow reports whether the subject is under the attempt limit.
func (t *MemoryThrottle) Allow(_ context.Context, subject string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	info, exists := t.attempts[subject]
	if !exists {
		return true
	}
	if time.Since(info.firstAt) > t.window {
		delete(t.attempts, subject)
		return true
	}
	return info.count < t.maxAttempts
}

// RecordFailure counts one failed attempt, starting a new window if the
// previous one lapsed.
func (t *MemoryThrottle) RecordFailure(_ context.Context, subject string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	info, exists := t.attempts[subject]
	if !exists || now.Sub(info.firstAt) > t.window {
		t.attempts[subject] = &attemptInfo{count: 1, firstAt: now}
		return
	}
	info.count++
}

// Reset clears the subject's window after a successful login.
func (t *MemoryThrottle) Reset(_ context.Context, subject string) {
	t.mu.Lock()
	delete(t.attempts, subject)
	t.mu.Unlock()
}

func (t *MemoryThrottle) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	for range ticker.C {
		t.mu.Lock()
		now := time.Now()
		for subject, info := range t.attempts {
			if now.Sub(info.firstAt) > t.window {
				delete(t.attempts, subject)
			}
		}
		t.mu.Unlock()
	}
}
