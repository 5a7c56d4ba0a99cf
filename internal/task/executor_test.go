package task

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewhitley/certscan-api/internal/cache"
	"github.com/ewhitley/certscan-api/internal/domain"
	"github.com/ewhitley/certscan-api/internal/extraction"
	"github.com/ewhitley/certscan-api/internal/kv"
	"github.com/ewhitley/certscan-api/internal/metrics"
	"github.com/ewhitley/certscan-api/internal/mocks"
	"github.com/ewhitley/certscan-api/internal/status"
	"github.com/ewhitley/certscan-api/internal/testutils"
)

type executorHarness struct {
	store   *kv.MemoryStore
	cache   *cache.Manager
	tracker *status.Tracker
	files   *mocks.MockFileStore
	text    *mocks.MockTextExtractor
	llm     *mocks.MockStructuredExtractor
	exec    *Executor
}

func newExecutorHarness(t *testing.T, cfg ExecutorConfig) *executorHarness {
	t.Helper()
	logger, _ := testutils.NewTestLogger()

	if cfg.JobTimeout == 0 {
		cfg.JobTimeout = 5 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}

	store := kv.NewMemoryStore()
	cacheManager := cache.NewManager(store, logger)
	tracker := status.NewTracker(store, status.Config{
		ActiveTTL:         time.Hour,
		TerminalRetention: time.Hour,
	}, logger)

	h := &executorHarness{
		store:   store,
		cache:   cacheManager,
		tracker: tracker,
		files:   &mocks.MockFileStore{Data: []byte("certificate text")},
		text:    &mocks.MockTextExtractor{},
		llm:     &mocks.MockStructuredExtractor{Cert: testutils.Certificate()},
	}

	retry := extraction.RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Jitter:      func() float64 { return 0.5 },
	}
	h.exec = NewExecutor(
		h.files, h.text, h.llm, retry,
		cacheManager, tracker,
		metrics.NewRegistry(store, logger),
		cfg, logger,
	)
	return h
}

// admit registers the request the way admission does: status record plus
// claim.
func (h *executorHarness) admit(t *testing.T, req *domain.ProcessingRequest) *Item {
	t.Helper()
	ctx := context.Background()
	h.tracker.Create(ctx, req.RequestID, req.Fingerprint)
	claim, err := h.cache.TryClaim(ctx, req.Fingerprint, req.RequestID, time.Minute)
	require.NoError(t, err)
	require.True(t, claim.Claimed)
	return &Item{Request: req, EnqueuedAt: time.Now(), Claimed: true}
}

func TestExecutorSuccess(t *testing.T) {
	t.Parallel()

	h := newExecutorHarness(t, ExecutorConfig{})
	req := testutils.Request(t, "happy", 3)
	item := h.admit(t, req)

	h.exec.Process(context.Background(), item)

	ctx := context.Background()
	rec, err := h.tracker.Read(ctx, req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, rec.State)
	assert.Equal(t, string(req.Fingerprint), rec.ResultRef)

	entry, err := h.cache.Lookup(ctx, req.Fingerprint)
	require.NoError(t, err)

	var cert domain.Certificate
	require.NoError(t, json.Unmarshal(entry.Payload, &cert))
	assert.Equal(t, "Acme Construction LLC", cert.InsuredName)

	// The claim is cleared at commit, so the fingerprint is reclaimable.
	claim, err := h.cache.TryClaim(ctx, req.Fingerprint, req.RequestID, time.Minute)
	require.NoError(t, err)
	assert.True(t, claim.Claimed)
}

func TestExecutorPermanentFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	h := newExecutorHarness(t, ExecutorConfig{})
	h.llm.Err = fmt.Errorf("%w: unparseable model response", domain.ErrPermanentExtraction)

	req := testutils.Request(t, "bad-doc", 3)
	item := h.admit(t, req)
	h.exec.Process(context.Background(), item)

	assert.Equal(t, 1, h.llm.ExtractCount())

	ctx := context.Background()
	rec, err := h.tracker.Read(ctx, req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, rec.State)
	assert.Equal(t, domain.KindPermanentExtraction, rec.ErrorKind)

	// No result committed, claim released.
	_, err = h.cache.Lookup(ctx, req.Fingerprint)
	assert.ErrorIs(t, err, cache.ErrMiss)
	claim, err := h.cache.TryClaim(ctx, req.Fingerprint, req.RequestID, time.Minute)
	require.NoError(t, err)
	assert.True(t, claim.Claimed)
}

func TestExecutorRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	h := newExecutorHarness(t, ExecutorConfig{})
	calls := 0
	h.llm.ExtractFn = func(ctx context.Context, text string) (*domain.Certificate, error) {
		calls++
		if calls < 3 {
			return nil, fmt.Errorf("%w: rate limited", domain.ErrTransientExtraction)
		}
		return testutils.Certificate(), nil
	}

	req := testutils.Request(t, "flaky", 3)
	item := h.admit(t, req)
	h.exec.Process(context.Background(), item)

	assert.Equal(t, 3, calls)

	rec, err := h.tracker.Read(context.Background(), req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, rec.State)
}

func TestExecutorRetryBudgetExhaustion(t *testing.T) {
	t.Parallel()

	h := newExecutorHarness(t, ExecutorConfig{})
	h.llm.Err = fmt.Errorf("%w: upstream 503", domain.ErrTransientExtraction)

	req := testutils.Request(t, "down", 3)
	item := h.admit(t, req)
	h.exec.Process(context.Background(), item)

	assert.Equal(t, 3, h.llm.ExtractCount())

	rec, err := h.tracker.Read(context.Background(), req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, rec.State)
	assert.Equal(t, domain.KindTransientExtraction, rec.ErrorKind)
	assert.Contains(t, rec.ErrorDetail, "retry budget exhausted")
}

func TestExecutorCancellation(t *testing.T) {
	t.Parallel()

	h := newExecutorHarness(t, ExecutorConfig{})
	req := testutils.Request(t, "cancelled", 3)
	item := h.admit(t, req)

	ctx := context.Background()
	require.NoError(t, h.tracker.Cancel(ctx, req.RequestID))

	h.exec.Process(ctx, item)

	assert.Equal(t, 0, h.llm.ExtractCount(), "cancelled job must not call the extractor")
	assert.Equal(t, 0, h.files.FetchCount(), "cancelled job must not fetch the document")

	rec, err := h.tracker.Read(ctx, req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, rec.State)
	assert.Equal(t, domain.KindCancelled, rec.ErrorKind)
}

func TestExecutorJobTimeout(t *testing.T) {
	t.Parallel()

	h := newExecutorHarness(t, ExecutorConfig{JobTimeout: 30 * time.Millisecond})
	h.files.FetchFn = func(ctx context.Context, ref string) ([]byte, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return []byte("too late"), nil
		}
	}

	req := testutils.Request(t, "slow", 3)
	item := h.admit(t, req)
	h.exec.Process(context.Background(), item)

	rec, err := h.tracker.Read(context.Background(), req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, rec.State)
	assert.Equal(t, domain.KindTimeout, rec.ErrorKind)

	// The slot frees and the claim is released despite the overrun.
	claim, err := h.cache.TryClaim(context.Background(), req.Fingerprint, req.RequestID, time.Minute)
	require.NoError(t, err)
	assert.True(t, claim.Claimed)
}
