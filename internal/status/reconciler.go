package status

import (
	"context"
	"log/slog"
	"time"

	"github.com/ewhitley/certscan-api/internal/domain"
)

// ClaimReleaser releases the in-progress claim for a fingerprint. Satisfied
// by cache.Manager.
type ClaimReleaser interface {
	Release(ctx context.Context, fp domain.Fingerprint) error
}

// Reconciler periodically sweeps for records stuck in processing past the
// claim lease plus a grace margin: the signature of a worker that died
// mid-pipeline. Stuck records transition to failed with a timeout kind and
// their orphaned claims are released so the fingerprint becomes reclaimable.
// (A whole-process crash is additionally covered by the claim lease TTL
// expiring on its own.)
type Reconciler struct {
	tracker    *Tracker
	claims     ClaimReleaser
	staleAfter time.Duration
	interval   time.Duration
	logger     *slog.Logger
}

// NewReconciler creates a Reconciler. staleAfter should be the claim lease
// duration plus a grace margin.
func NewReconciler(
	tracker *Tracker,
	claims ClaimReleaser,
	staleAfter time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		tracker:    tracker,
		claims:     claims,
		staleAfter: staleAfter,
		interval:   interval,
		logger:     logger,
	}
}

// Run executes reconciliation passes until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ReconcileOnce(ctx)
		}
	}
}

// ReconcileOnce performs a single sweep. Exported for tests and for an
// initial sweep at startup.
func (r *Reconciler) ReconcileOnce(ctx context.Context) {
	stale := r.tracker.staleProcessing(r.staleAfter)
	for _, entry := range stale {
		r.logger.Warn("reconciling lost request",
			"request_id", entry.requestID,
			"fingerprint", entry.fingerprint,
			"stale_after", r.staleAfter)

		r.tracker.Advance(ctx, entry.requestID, domain.StateFailed, Detail{
			ErrorKind:   domain.KindTimeout,
			ErrorDetail: "processing worker lost; request reclaimed by reconciliation",
		})

		if entry.fingerprint != "" {
			if err := r.claims.Release(ctx, entry.fingerprint); err != nil {
				r.logger.Warn("failed to release orphaned claim",
					"fingerprint", entry.fingerprint,
					"error", err)
			}
		}
	}

	r.tracker.dropExpiredLocal()
}
