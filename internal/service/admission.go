package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ewhitley/certscan-api/internal/cache"
	"github.com/ewhitley/certscan-api/internal/domain"
	"github.com/ewhitley/certscan-api/internal/extraction"
	"github.com/ewhitley/certscan-api/internal/fingerprint"
	"github.com/ewhitley/certscan-api/internal/metrics"
	"github.com/ewhitley/certscan-api/internal/status"
	"github.com/ewhitley/certscan-api/internal/task"
)

// AdmissionConfig holds the gateway's limits and timing knobs.
type AdmissionConfig struct {
	// MaxFileSizeBytes bounds accepted documents; larger submissions are
	// rejected before any pipeline interaction.
	MaxFileSizeBytes int64

	// ClaimLease is the dedup claim lease duration. It must comfortably
	// exceed the job wall-clock budget.
	ClaimLease time.Duration

	// MirrorPollInterval is how often a deduplicated request polls its
	// claim owner's record.
	MirrorPollInterval time.Duration

	// MirrorTimeout bounds how long a deduplicated request waits for its
	// owner before failing with a timeout kind.
	MirrorTimeout time.Duration

	// NominalJobSeconds seeds the estimated-wait hint returned at
	// submission.
	NominalJobSeconds int
}

// SubmitResult is the immediate answer to a submission: the request ID and
// whether it is queued or already completed from cache.
type SubmitResult struct {
	RequestID            uuid.UUID
	State                domain.State
	EstimatedWaitSeconds int
}

// StatusResult pairs a status record with its resolved result payload, when
// the record is completed and the cached result is still available.
type StatusResult struct {
	Record *domain.StatusRecord
	Result json.RawMessage
}

// HealthReport is the cheap, side-effect-free liveness view.
type HealthReport struct {
	Status        string `json:"status"`
	CacheStore    string `json:"cache_store"`
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	BusyWorkers   int    `json:"busy_workers"`
	WorkerCount   int    `json:"worker_count"`
}

// AdmissionService composes fingerprinting, caching, claiming, dispatch and
// status tracking into the request/response contract.
type AdmissionService struct {
	files      extraction.FileStore
	cache      *cache.Manager
	tracker    *status.Tracker
	dispatcher *task.Dispatcher
	pool       *task.Pool
	metrics    *metrics.Registry
	cfg        AdmissionConfig
	logger     *slog.Logger

	mirrors sync.WaitGroup
}

// NewAdmissionService creates an AdmissionService.
func NewAdmissionService(
	files extraction.FileStore,
	cacheManager *cache.Manager,
	tracker *status.Tracker,
	dispatcher *task.Dispatcher,
	pool *task.Pool,
	registry *metrics.Registry,
	cfg AdmissionConfig,
	logger *slog.Logger,
) *AdmissionService {
	return &AdmissionService{
		files:      files,
		cache:      cacheManager,
		tracker:    tracker,
		dispatcher: dispatcher,
		pool:       pool,
		metrics:    registry,
		cfg:        cfg,
		logger:     logger,
	}
}

// Submit admits one document for processing. It returns immediately in all
// non-rejected cases; pipeline completion is observed via Status polling.
// Rejections are domain.ErrValidation (bad input) or
// domain.ErrResourceExhausted (queue full).
func (s *AdmissionService) Submit(ctx context.Context, fileRef string, priority int) (*SubmitResult, error) {
	if priority == 0 {
		priority = domain.PriorityDefault
	}
	if fileRef == "" {
		return nil, fmt.Errorf("%w: file reference is required", domain.ErrValidation)
	}
	if priority < domain.PriorityHighest || priority > domain.PriorityLowest {
		return nil, fmt.Errorf("%w: priority must be between %d and %d",
			domain.ErrValidation, domain.PriorityHighest, domain.PriorityLowest)
	}

	size, err := s.files.Stat(ctx, fileRef)
	if err != nil {
		return nil, err
	}
	if size > s.cfg.MaxFileSizeBytes {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d bytes",
			domain.ErrFileTooLarge, size, s.cfg.MaxFileSizeBytes)
	}

	data, err := s.files.Fetch(ctx, fileRef)
	if err != nil {
		return nil, err
	}
	fp := fingerprint.Compute(data)

	req, err := domain.NewProcessingRequest(fp, fileRef, priority)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	logger := s.logger.With(
		"request_id", req.RequestID,
		"fingerprint", fp,
		"priority", priority,
	)
	s.metrics.Inc(ctx, metrics.CounterSubmissions)
	s.tracker.Create(ctx, req.RequestID, fp)

	// Cache hit short-circuits the pipeline entirely.
	entry, err := s.cache.Lookup(ctx, fp)
	switch {
	case err == nil:
		s.metrics.Inc(ctx, metrics.CounterCacheHits)
		s.tracker.Advance(ctx, req.RequestID, domain.StateCompleted, status.Detail{
			ResultRef: string(entry.Fingerprint),
		})
		logger.Info("submission served from cache")
		return &SubmitResult{RequestID: req.RequestID, State: domain.StateCompleted}, nil

	case errors.Is(err, cache.ErrMiss):
		s.metrics.Inc(ctx, metrics.CounterCacheMisses)

	case errors.Is(err, domain.ErrCacheUnavailable):
		// Degraded mode: no dedup, no caching, but the request still runs.
		logger.Warn("cache store unavailable, admitting in degraded direct mode", "error", err)
		return s.enqueue(ctx, req, false, logger)

	default:
		s.tracker.Discard(ctx, req.RequestID)
		return nil, err
	}

	claim, err := s.cache.TryClaim(ctx, fp, req.RequestID, s.cfg.ClaimLease)
	if errors.Is(err, domain.ErrCacheUnavailable) {
		logger.Warn("claim unavailable, admitting in degraded direct mode", "error", err)
		return s.enqueue(ctx, req, false, logger)
	}
	if err != nil {
		s.tracker.Discard(ctx, req.RequestID)
		return nil, err
	}

	if !claim.Claimed {
		// Another request owns this fingerprint. Mirror its outcome instead
		// of re-running the pipeline.
		s.metrics.Inc(ctx, metrics.CounterDedupJoins)
		s.tracker.Advance(ctx, req.RequestID, domain.StateQueued, status.Detail{})

		s.mirrors.Add(1)
		go s.mirrorOwner(req.RequestID, claim.Owner, logger)

		logger.Info("submission deduplicated against in-flight request",
			"owner_request_id", claim.Owner)
		return &SubmitResult{
			RequestID:            req.RequestID,
			State:                domain.StateQueued,
			EstimatedWaitSeconds: s.estimatedWait(),
		}, nil
	}

	return s.enqueue(ctx, req, true, logger)
}

// Status returns the record for a request, resolving the cached result
// payload for completed records when it is still available.
func (s *AdmissionService) Status(ctx context.Context, requestID uuid.UUID) (*StatusResult, error) {
	rec, err := s.tracker.Read(ctx, requestID)
	if err != nil {
		return nil, err
	}

	res := &StatusResult{Record: rec}
	if rec.State == domain.StateCompleted && rec.ResultRef != "" {
		entry, lookupErr := s.cache.Lookup(ctx, domain.Fingerprint(rec.ResultRef))
		if lookupErr == nil {
			res.Result = entry.Payload
		} else {
			// Evicted or store down: the record still answers, result
			// payload is just unavailable.
			s.logger.Debug("completed result not resolvable",
				"request_id", requestID,
				"result_ref", rec.ResultRef,
				"error", lookupErr)
		}
	}
	return res, nil
}

// Cancel flags a request for administrative cancellation.
func (s *AdmissionService) Cancel(ctx context.Context, requestID uuid.UUID) error {
	return s.tracker.Cancel(ctx, requestID)
}

// Health reports liveness. It performs a single cheap store ping and reads
// in-process gauges; it never touches the pipeline.
func (s *AdmissionService) Health(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:        "healthy",
		CacheStore:    "connected",
		QueueDepth:    s.dispatcher.Depth(),
		QueueCapacity: s.dispatcher.Capacity(),
		BusyWorkers:   s.pool.Busy(),
		WorkerCount:   s.pool.Size(),
	}
	if err := s.cache.Ping(ctx); err != nil {
		report.Status = "degraded"
		report.CacheStore = "disconnected"
	}
	return report
}

// Shutdown waits for in-flight mirror watchers to finish.
func (s *AdmissionService) Shutdown() {
	s.mirrors.Wait()
}

// enqueue hands the request to the dispatcher, rolling back the status
// record and any claim on queue-full so rejected submissions leave no trace.
func (s *AdmissionService) enqueue(
	ctx context.Context,
	req *domain.ProcessingRequest,
	claimed bool,
	logger *slog.Logger,
) (*SubmitResult, error) {
	item := &task.Item{Request: req, Claimed: claimed}
	if err := s.dispatcher.Enqueue(item); err != nil {
		s.tracker.Discard(ctx, req.RequestID)
		if claimed {
			if relErr := s.cache.Release(ctx, req.Fingerprint); relErr != nil {
				logger.Warn("failed to release claim after queue rejection", "error", relErr)
			}
		}
		if errors.Is(err, task.ErrQueueFull) {
			s.metrics.Inc(ctx, metrics.CounterQueueRejections)
			logger.Warn("submission rejected, queue at capacity")
			return nil, fmt.Errorf("%w: queue at capacity, retry later", domain.ErrResourceExhausted)
		}
		return nil, err
	}

	logger.Info("submission queued",
		"claimed", claimed,
		"queue_depth", s.dispatcher.Depth())
	return &SubmitResult{
		RequestID:            req.RequestID,
		State:                domain.StateQueued,
		EstimatedWaitSeconds: s.estimatedWait(),
	}, nil
}

// mirrorOwner polls the claim owner's record until it reaches a terminal
// state, then copies the outcome under this request's ID. An owner that
// never terminates within the mirror timeout fails this request with a
// timeout kind.
func (s *AdmissionService) mirrorOwner(requestID, owner uuid.UUID, logger *slog.Logger) {
	defer s.mirrors.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.MirrorTimeout)
	defer cancel()

	interval := s.cfg.MirrorPollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Tolerate a few missing reads: the owner's record write may still be
	// in flight right after the claim became visible.
	notFoundStreak := 0
	const notFoundLimit = 5

	for {
		select {
		case <-ctx.Done():
			s.tracker.Advance(context.Background(), requestID, domain.StateFailed, status.Detail{
				ErrorKind:   domain.KindTimeout,
				ErrorDetail: fmt.Sprintf("deduplicated request timed out waiting for owner %s", owner),
			})
			return

		case <-ticker.C:
			rec, err := s.tracker.Read(ctx, owner)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					notFoundStreak++
					if notFoundStreak >= notFoundLimit {
						s.tracker.Advance(context.Background(), requestID, domain.StateFailed, status.Detail{
							ErrorKind:   domain.KindTimeout,
							ErrorDetail: fmt.Sprintf("owner request %s disappeared before completing", owner),
						})
						return
					}
				}
				continue
			}
			notFoundStreak = 0

			if !rec.State.Terminal() {
				continue
			}

			s.tracker.Advance(context.Background(), requestID, rec.State, status.Detail{
				ResultRef:   rec.ResultRef,
				ErrorKind:   rec.ErrorKind,
				ErrorDetail: rec.ErrorDetail,
			})
			logger.Info("mirrored owner outcome",
				"owner_request_id", owner,
				"state", rec.State)
			return
		}
	}
}

// estimatedWait derives a rough wait hint from queue depth and pool size.
func (s *AdmissionService) estimatedWait() int {
	nominal := s.cfg.NominalJobSeconds
	if nominal <= 0 {
		nominal = 30
	}
	workers := s.pool.Size()
	if workers <= 0 {
		workers = 1
	}
	return (s.dispatcher.Depth()/workers + 1) * nominal
}
