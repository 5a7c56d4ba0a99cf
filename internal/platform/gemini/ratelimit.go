package gemini

import (
	"context"
	"sync"
	"time"
)

// rateLimiter gates outbound API calls to a fixed number per sliding
// one-minute window. Callers block in Wait until a slot frees or their
// context ends.
type rateLimiter struct {
	mu        sync.Mutex
	callTimes []time.Time
	perMinute int

	// now is swappable for deterministic tests.
	now func() time.Time
}

func newRateLimiter(perMinute int) *rateLimiter {
	return &rateLimiter{
		perMinute: perMinute,
		now:       time.Now,
	}
}

// tryAcquire claims a call slot if one is free in the current window.
func (l *rateLimiter) tryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-time.Minute)
	kept := l.callTimes[:0]
	for _, t := range l.callTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.callTimes = kept

	if len(l.callTimes) >= l.perMinute {
		return false
	}
	l.callTimes = append(l.callTimes, l.now())
	return true
}

// Wait blocks until a call slot is available or ctx is done.
func (l *rateLimiter) Wait(ctx context.Context) error {
	for {
		if l.tryAcquire() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
