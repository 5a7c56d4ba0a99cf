package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewhitley/certscan-api/internal/cache"
	"github.com/ewhitley/certscan-api/internal/domain"
	"github.com/ewhitley/certscan-api/internal/fingerprint"
	"github.com/ewhitley/certscan-api/internal/kv"
	"github.com/ewhitley/certscan-api/internal/metrics"
	"github.com/ewhitley/certscan-api/internal/mocks"
	"github.com/ewhitley/certscan-api/internal/status"
	"github.com/ewhitley/certscan-api/internal/task"
	"github.com/ewhitley/certscan-api/internal/testutils"
)

type admissionHarness struct {
	svc        *AdmissionService
	store      kv.Store
	files      *mocks.MockFileStore
	cache      *cache.Manager
	tracker    *status.Tracker
	dispatcher *task.Dispatcher
}

func newAdmissionHarness(t *testing.T, store kv.Store, queueCapacity int) *admissionHarness {
	t.Helper()
	logger, _ := testutils.NewTestLogger()

	files := &mocks.MockFileStore{Data: []byte("certificate document body")}
	cacheManager := cache.NewManager(store, logger)
	tracker := status.NewTracker(store, status.Config{
		ActiveTTL:         time.Hour,
		TerminalRetention: time.Hour,
	}, logger)
	dispatcher := task.NewDispatcher(queueCapacity, logger)
	pool := task.NewPool(dispatcher, task.PoolConfig{WorkerCount: 2},
		func(context.Context, *task.Item) {}, logger)

	svc := NewAdmissionService(
		files, cacheManager, tracker, dispatcher, pool,
		metrics.NewRegistry(store, logger),
		AdmissionConfig{
			MaxFileSizeBytes:   1024,
			ClaimLease:         time.Minute,
			MirrorPollInterval: 10 * time.Millisecond,
			MirrorTimeout:      2 * time.Second,
			NominalJobSeconds:  30,
		},
		logger,
	)

	return &admissionHarness{
		svc:        svc,
		store:      store,
		files:      files,
		cache:      cacheManager,
		tracker:    tracker,
		dispatcher: dispatcher,
	}
}

func TestSubmitValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newAdmissionHarness(t, kv.NewMemoryStore(), 10)

	_, err := h.svc.Submit(ctx, "", 3)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.svc.Submit(ctx, "uploads/cert.txt", 9)
	assert.ErrorIs(t, err, domain.ErrValidation)

	h.files.Size = 4096 // over the 1KB harness limit
	_, err = h.svc.Submit(ctx, "uploads/huge.txt", 3)
	assert.ErrorIs(t, err, domain.ErrFileTooLarge)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, h.dispatcher.Depth(), "rejected submissions never reach the queue")
}

func TestSubmitZeroPriorityDefaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newAdmissionHarness(t, kv.NewMemoryStore(), 10)

	res, err := h.svc.Submit(ctx, "uploads/cert.txt", 0)
	require.NoError(t, err)
	assert.Equal(t, domain.StateQueued, res.State)
}

func TestSubmitQueuesAndClaims(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newAdmissionHarness(t, kv.NewMemoryStore(), 10)

	res, err := h.svc.Submit(ctx, "uploads/cert.txt", 2)
	require.NoError(t, err)
	assert.Equal(t, domain.StateQueued, res.State)
	assert.Positive(t, res.EstimatedWaitSeconds)
	assert.Equal(t, 1, h.dispatcher.Depth())

	item, err := h.dispatcher.Dequeue(ctx)
	require.NoError(t, err)
	assert.True(t, item.Claimed)
	assert.Equal(t, res.RequestID, item.Request.RequestID)
	assert.Equal(t, 2, item.Request.Priority)

	rec, err := h.tracker.Read(ctx, res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateQueued, rec.State)
}

func TestSubmitCacheHitShortCircuits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newAdmissionHarness(t, kv.NewMemoryStore(), 10)

	fp := fingerprint.Compute(h.files.Data)
	payload, _ := json.Marshal(testutils.Certificate())
	require.NoError(t, h.cache.Commit(ctx, fp, payload, time.Hour))

	res, err := h.svc.Submit(ctx, "uploads/cert.txt", 3)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, res.State)
	assert.Equal(t, 0, h.dispatcher.Depth(), "cache hits never enter the pipeline")

	// The result resolves immediately through Status.
	sr, err := h.svc.Status(ctx, res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, sr.Record.State)
	assert.JSONEq(t, string(payload), string(sr.Result))
}

func TestSubmitQueueFullLeavesNoTrace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newAdmissionHarness(t, kv.NewMemoryStore(), 1)

	_, err := h.svc.Submit(ctx, "uploads/first.txt", 3)
	require.NoError(t, err)

	h.files.Data = []byte("a different document")
	_, err = h.svc.Submit(ctx, "uploads/second.txt", 3)
	assert.ErrorIs(t, err, domain.ErrResourceExhausted)

	// The rejected submission's claim is released so a retry can win it.
	fp := fingerprint.Compute(h.files.Data)
	claim, err := h.cache.TryClaim(ctx, fp, uuid.New(), time.Minute)
	require.NoError(t, err)
	assert.True(t, claim.Claimed)
}

func TestSubmitDeduplicatesInFlightFingerprint(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newAdmissionHarness(t, kv.NewMemoryStore(), 10)

	// First submission claims the fingerprint and owns the pipeline run.
	owner, err := h.svc.Submit(ctx, "uploads/cert.txt", 3)
	require.NoError(t, err)

	// Identical bytes under a different name join the in-flight run.
	dup, err := h.svc.Submit(ctx, "uploads/cert-copy.txt", 3)
	require.NoError(t, err)
	assert.Equal(t, domain.StateQueued, dup.State)
	assert.NotEqual(t, owner.RequestID, dup.RequestID)
	assert.Equal(t, 1, h.dispatcher.Depth(), "the duplicate must not enqueue a second job")

	// The owner completes; the duplicate mirrors its outcome.
	h.tracker.Advance(ctx, owner.RequestID, domain.StateCompleted, status.Detail{
		ResultRef: "mirror-ref",
	})

	require.Eventually(t, func() bool {
		rec, readErr := h.tracker.Read(ctx, dup.RequestID)
		return readErr == nil && rec.State == domain.StateCompleted
	}, 2*time.Second, 10*time.Millisecond)

	rec, err := h.tracker.Read(ctx, dup.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "mirror-ref", rec.ResultRef)

	h.svc.Shutdown()
}

func TestSubmitDegradedModeStillAdmits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newAdmissionHarness(t, &mocks.FailingStore{Err: errors.New("connection refused")}, 10)

	res, err := h.svc.Submit(ctx, "uploads/cert.txt", 3)
	require.NoError(t, err)
	assert.Equal(t, domain.StateQueued, res.State)

	item, err := h.dispatcher.Dequeue(ctx)
	require.NoError(t, err)
	assert.False(t, item.Claimed, "degraded-mode items run direct, without dedup")

	// Status answers from the local mirror while the store is down.
	sr, err := h.svc.Status(ctx, res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateQueued, sr.Record.State)
}

func TestStatusUnknownRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newAdmissionHarness(t, kv.NewMemoryStore(), 10)

	_, err := h.svc.Status(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStatusCompletedWithEvictedResult(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newAdmissionHarness(t, kv.NewMemoryStore(), 10)

	id := uuid.New()
	h.tracker.Create(ctx, id, testutils.Fingerprint("evicted"))
	h.tracker.Advance(ctx, id, domain.StateCompleted, status.Detail{
		ResultRef: string(testutils.Fingerprint("evicted")),
	})

	// The record answers even though the cached payload is gone.
	sr, err := h.svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, sr.Record.State)
	assert.Nil(t, sr.Result)
}

func TestCancelFlagsRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newAdmissionHarness(t, kv.NewMemoryStore(), 10)

	res, err := h.svc.Submit(ctx, "uploads/cert.txt", 3)
	require.NoError(t, err)

	require.NoError(t, h.svc.Cancel(ctx, res.RequestID))
	assert.True(t, h.tracker.Cancelled(ctx, res.RequestID))

	assert.ErrorIs(t, h.svc.Cancel(ctx, uuid.New()), domain.ErrNotFound)
}

func TestHealthReport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	h := newAdmissionHarness(t, kv.NewMemoryStore(), 10)
	report := h.svc.Health(ctx)
	assert.Equal(t, "healthy", report.Status)
	assert.Equal(t, "connected", report.CacheStore)
	assert.Equal(t, 10, report.QueueCapacity)
	assert.Equal(t, 2, report.WorkerCount)

	degraded := newAdmissionHarness(t, &mocks.FailingStore{Err: errors.New("down")}, 10)
	report = degraded.svc.Health(ctx)
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, "disconnected", report.CacheStore)
}
