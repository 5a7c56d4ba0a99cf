package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/ewhitley/certscan-api/internal/domain"
)

// RetryPolicy is the bounded retry loop wrapped around external
// structured-extraction calls. Only errors classified as
// domain.ErrTransientExtraction are retried; everything else returns
// immediately. Exhausting the attempt budget yields a terminal failure for
// the job. Keeping the policy as its own type keeps the retry behavior
// auditable and testable independent of the call site.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay seeds the exponential backoff between attempts.
	BaseDelay time.Duration

	// AttemptTimeout bounds each individual attempt. Zero means no
	// per-attempt bound beyond the caller's context.
	AttemptTimeout time.Duration

	// Jitter draws the backoff multiplier, in [0.5, 1.0). Defaults to
	// math/rand; swappable for deterministic tests.
	Jitter func() float64
}

// DefaultRetryPolicy returns the policy used for Gemini calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    4,
		BaseDelay:      2 * time.Second,
		AttemptTimeout: 60 * time.Second,
	}
}

// Do runs fn under the policy. The returned error is the last attempt's
// error, still classifiable with errors.Is; on budget exhaustion it is
// additionally annotated with the attempt count.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, op string, fn func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	baseDelay := p.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	jitter := p.Jitter
	if jitter == nil {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		jitter = func() float64 { return 0.5 + rng.Float64()*0.5 }
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if p.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}
		err = fn(attemptCtx)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			return nil
		}

		if !errors.Is(err, domain.ErrTransientExtraction) {
			return err
		}

		if attempt == maxAttempts {
			logger.Warn("retry budget exhausted",
				"operation", op,
				"attempts", attempt,
				"error", err)
			return fmt.Errorf("retry budget exhausted after %d attempts: %w", attempt, err)
		}

		delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt-1)) * jitter())
		logger.Info("transient failure, retrying after delay",
			"operation", op,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"delay", delay,
			"error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%w: cancelled during retry delay: %v", domain.ErrTransientExtraction, ctx.Err())
		}
	}

	return err
}
