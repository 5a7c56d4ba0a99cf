package gemini

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterWindow(t *testing.T) {
	t.Parallel()

	l := newRateLimiter(2)
	now := time.Now()
	l.now = func() time.Time { return now }

	assert.True(t, l.tryAcquire())
	assert.True(t, l.tryAcquire())
	assert.False(t, l.tryAcquire(), "window exhausted")

	// Slots free as old calls slide out of the window.
	now = now.Add(61 * time.Second)
	assert.True(t, l.tryAcquire())
}

func TestRateLimiterWaitRespectsContext(t *testing.T) {
	t.Parallel()

	l := newRateLimiter(1)
	require.True(t, l.tryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiterWaitImmediateWhenFree(t *testing.T) {
	t.Parallel()

	l := newRateLimiter(5)
	assert.NoError(t, l.Wait(context.Background()))
}
