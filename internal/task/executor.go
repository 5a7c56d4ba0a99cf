package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ewhitley/certscan-api/internal/cache"
	"github.com/ewhitley/certscan-api/internal/domain"
	"github.com/ewhitley/certscan-api/internal/extraction"
	"github.com/ewhitley/certscan-api/internal/metrics"
	"github.com/ewhitley/certscan-api/internal/status"
)

// Pipeline stage names used in progress markers and latency metrics.
const (
	StageFetch      = "fetch"
	StageText       = "extract_text"
	StageStructured = "extract_structured"
	StageValidate   = "validate"
)

// ExecutorConfig holds the per-job budgets.
type ExecutorConfig struct {
	// JobTimeout is the whole-job wall-clock budget. Exceeding it aborts
	// in-flight external calls, releases the claim, and fails the job with
	// a timeout kind.
	JobTimeout time.Duration

	// CacheTTL is how long committed results stay cached.
	CacheTTL time.Duration
}

// Executor runs the extraction pipeline for one dequeued item: fetch bytes,
// extract text, extract the structured record, validate it, then commit the
// result and the terminal status.
type Executor struct {
	files   extraction.FileStore
	text    extraction.TextExtractor
	llm     extraction.StructuredExtractor
	retry   extraction.RetryPolicy
	cache   *cache.Manager
	tracker *status.Tracker
	metrics *metrics.Registry
	cfg     ExecutorConfig
	logger  *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(
	files extraction.FileStore,
	text extraction.TextExtractor,
	llm extraction.StructuredExtractor,
	retry extraction.RetryPolicy,
	cacheManager *cache.Manager,
	tracker *status.Tracker,
	registry *metrics.Registry,
	cfg ExecutorConfig,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		files:   files,
		text:    text,
		llm:     llm,
		retry:   retry,
		cache:   cacheManager,
		tracker: tracker,
		metrics: registry,
		cfg:     cfg,
		logger:  logger,
	}
}

// Process executes the pipeline for item. It always leaves the request in a
// terminal state and, unless the result was committed, releases the
// request's claim so the fingerprint becomes reclaimable.
func (e *Executor) Process(ctx context.Context, item *Item) {
	req := item.Request
	logger := e.logger.With(
		"request_id", req.RequestID,
		"fingerprint", req.Fingerprint,
	)

	jobCtx, cancel := context.WithTimeout(ctx, e.cfg.JobTimeout)
	defer cancel()

	logger.Info("processing request",
		"priority", req.Priority,
		"queued_for", time.Since(item.EnqueuedAt))

	e.tracker.Advance(jobCtx, req.RequestID, domain.StateProcessing, status.Detail{
		Progress: StageFetch,
	})

	data, err := runStage(e, jobCtx, req, StageFetch, func(ctx context.Context) ([]byte, error) {
		return e.files.Fetch(ctx, req.FileReference)
	})
	if err != nil {
		e.finishFailure(item, err, logger)
		return
	}

	text, err := runStage(e, jobCtx, req, StageText, func(ctx context.Context) (string, error) {
		return e.text.ExtractText(ctx, data)
	})
	if err != nil {
		e.finishFailure(item, err, logger)
		return
	}

	cert, err := runStage(e, jobCtx, req, StageStructured, func(ctx context.Context) (*domain.Certificate, error) {
		var out *domain.Certificate
		retryErr := e.retry.Do(ctx, logger, StageStructured, func(attemptCtx context.Context) error {
			var callErr error
			out, callErr = e.llm.Extract(attemptCtx, text)
			return callErr
		})
		return out, retryErr
	})
	if err != nil {
		e.finishFailure(item, err, logger)
		return
	}

	if _, err = runStage(e, jobCtx, req, StageValidate, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, cert.Validate()
	}); err != nil {
		e.finishFailure(item, err, logger)
		return
	}

	e.finishSuccess(item, cert, logger)
}

// runStage wraps one pipeline stage with the cancellation check, the timeout
// classification, and latency recording.
func runStage[T any](
	e *Executor,
	ctx context.Context,
	req *domain.ProcessingRequest,
	stage string,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var zero T

	if e.tracker.Cancelled(ctx, req.RequestID) {
		return zero, fmt.Errorf("%w: before stage %s", domain.ErrCancelled, stage)
	}
	if ctx.Err() != nil {
		return zero, fmt.Errorf("%w: job budget exceeded before stage %s", domain.ErrTimeout, stage)
	}

	e.tracker.Advance(ctx, req.RequestID, domain.StateProcessing, status.Detail{Progress: stage})

	start := time.Now()
	out, err := fn(ctx)
	e.metrics.ObserveStage(stage, time.Since(start))

	if err != nil {
		// The job-level deadline takes precedence over whatever the stage
		// reported: the slot's kill switch fired mid-call.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w: stage %s exceeded job budget: %v", domain.ErrTimeout, stage, err)
		}
		return zero, fmt.Errorf("stage %s: %w", stage, err)
	}
	return out, nil
}

// finishSuccess commits the result and marks the request completed. Cleanup
// runs on a fresh context so a spent job budget cannot strand the terminal
// write.
func (e *Executor) finishSuccess(item *Item, cert *domain.Certificate, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req := item.Request

	payload, err := json.Marshal(cert)
	if err != nil {
		e.finishFailure(item, fmt.Errorf("marshaling result: %w", err), logger)
		return
	}

	// Commit even for unclaimed (degraded-mode) items: overwriting an entry
	// is idempotent and merely refreshes its TTL.
	if err := e.cache.Commit(ctx, req.Fingerprint, payload, e.cfg.CacheTTL); err != nil {
		logger.Warn("result cache commit failed, serving uncached",
			"error", err)
	}

	e.tracker.Advance(ctx, req.RequestID, domain.StateCompleted, status.Detail{
		ResultRef: string(req.Fingerprint),
	})
	e.metrics.Inc(ctx, metrics.CounterCompleted)

	logger.Info("request completed",
		"confidence_score", cert.ConfidenceScore)
}

// finishFailure releases the claim and marks the request failed with its
// classified kind.
func (e *Executor) finishFailure(item *Item, jobErr error, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req := item.Request
	kind := domain.KindOf(jobErr)

	if item.Claimed {
		if err := e.cache.Release(ctx, req.Fingerprint); err != nil {
			logger.Warn("claim release failed, lease will lapse on its own",
				"error", err)
		}
	}

	e.tracker.Advance(ctx, req.RequestID, domain.StateFailed, status.Detail{
		ErrorKind:   kind,
		ErrorDetail: jobErr.Error(),
	})
	e.metrics.Inc(ctx, metrics.CounterFailed)

	logger.Error("request failed",
		"error_kind", kind,
		"error", jobErr)
}
