// Package status implements the externally queryable per-request state
// machine. Records live in the shared key/value store so any replica can
// answer polls; a per-instance mirror enforces monotonic transitions locally
// and keeps same-replica polling working when the store is unreachable.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ewhitley/certscan-api/internal/domain"
	"github.com/ewhitley/certscan-api/internal/kv"
)

// Key prefixes under the shared store namespace.
const (
	statusKeyPrefix = "certscan:status:"
	cancelKeyPrefix = "certscan:cancel:"
)

// Detail carries the optional fields applied during a state transition.
type Detail struct {
	Progress    string
	ResultRef   string
	ErrorKind   domain.ErrorKind
	ErrorDetail string
}

// Config holds tracker retention settings.
type Config struct {
	// ActiveTTL bounds how long a non-terminal record may sit in the store
	// without an update before expiring.
	ActiveTTL time.Duration

	// TerminalRetention is how long completed/failed records remain readable
	// for client polling before being reclaimed.
	TerminalRetention time.Duration
}

// Tracker is the status state machine over the shared store.
type Tracker struct {
	store  kv.Store
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	local map[uuid.UUID]*localRecord

	// now is swappable so tests can drive staleness deterministically.
	now func() time.Time
}

// localRecord pairs the mirrored status record with the fingerprint its
// request claimed, so reconciliation can release orphaned claims.
type localRecord struct {
	rec *domain.StatusRecord
	fp  domain.Fingerprint
}

// NewTracker creates a Tracker over the given store.
func NewTracker(store kv.Store, cfg Config, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		cfg:    cfg,
		logger: logger,
		local:  make(map[uuid.UUID]*localRecord),
		now:    time.Now,
	}
}

// SetClock replaces the tracker's time source. Test hook only.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Create registers a new queued record for the request. The fingerprint is
// remembered locally so a later reconciliation pass can release the
// request's claim if its worker is lost. Creation never fails: when the
// store is unreachable the record exists locally and the instance runs in
// degraded mode.
func (t *Tracker) Create(ctx context.Context, requestID uuid.UUID, fp domain.Fingerprint) *domain.StatusRecord {
	rec := domain.NewStatusRecord(requestID)

	t.mu.Lock()
	t.local[requestID] = &localRecord{rec: rec, fp: fp}
	t.mu.Unlock()

	t.writeThrough(ctx, rec)
	return rec
}

// Advance moves the request to the next state, applying detail. Re-asserting
// the current state is allowed and just refreshes the detail, which is how
// workers report per-stage progress. Backward transitions are invariant
// violations: they are logged and ignored, never applied. Store writes are
// best-effort; the local mirror is authoritative for this instance's
// monotonicity.
func (t *Tracker) Advance(ctx context.Context, requestID uuid.UUID, next domain.State, detail Detail) {
	t.mu.Lock()
	lr, ok := t.local[requestID]
	if ok && lr.rec.State != next && !lr.rec.State.CanAdvanceTo(next) {
		cur := lr.rec.State
		t.mu.Unlock()
		t.logger.Error("invariant violation: non-monotonic status transition ignored",
			"request_id", requestID,
			"current_state", cur,
			"attempted_state", next)
		return
	}

	var rec *domain.StatusRecord
	if ok {
		rec = lr.rec
	} else {
		// Record unknown to this instance (e.g. created before a restart).
		// Rebuild a local mirror so the transition can still be applied.
		rec = domain.NewStatusRecord(requestID)
		lr = &localRecord{rec: rec}
		t.local[requestID] = lr
	}

	rec.State = next
	rec.UpdatedAt = t.now().UTC()
	if detail.Progress != "" {
		rec.ProgressMarker = detail.Progress
	}
	if detail.ResultRef != "" {
		rec.ResultRef = detail.ResultRef
	}
	if detail.ErrorKind != "" {
		rec.ErrorKind = detail.ErrorKind
		rec.ErrorDetail = detail.ErrorDetail
	}
	snapshot := *rec
	t.mu.Unlock()

	t.writeThrough(ctx, &snapshot)
}

// Read returns the record for the request, preferring the shared store so
// polls land correctly on any replica. When the store is unreachable the
// local mirror answers for requests admitted by this instance.
func (t *Tracker) Read(ctx context.Context, requestID uuid.UUID) (*domain.StatusRecord, error) {
	raw, err := t.store.Get(ctx, statusKey(requestID))
	switch {
	case err == nil:
		var rec domain.StatusRecord
		if jsonErr := json.Unmarshal([]byte(raw), &rec); jsonErr != nil {
			return nil, fmt.Errorf("corrupt status record for %s: %w", requestID, jsonErr)
		}
		return &rec, nil

	case errors.Is(err, kv.ErrKeyNotFound):
		if rec := t.readLocal(requestID); rec != nil {
			return rec, nil
		}
		return nil, fmt.Errorf("%w: request %s", domain.ErrNotFound, requestID)

	default:
		if rec := t.readLocal(requestID); rec != nil {
			t.logger.Warn("status store unreachable, serving local record",
				"request_id", requestID,
				"error", err)
			return rec, nil
		}
		return nil, fmt.Errorf("%w: status read: %v", domain.ErrCacheUnavailable, err)
	}
}

// Discard removes a record created during an admission attempt that was
// ultimately rejected, so rejected submissions leave no trace. Only valid
// before the request is handed to the pipeline.
func (t *Tracker) Discard(ctx context.Context, requestID uuid.UUID) {
	t.mu.Lock()
	delete(t.local, requestID)
	t.mu.Unlock()

	if err := t.store.Del(ctx, statusKey(requestID)); err != nil {
		t.logger.Warn("failed to discard status record, TTL will reclaim it",
			"request_id", requestID,
			"error", err)
	}
}

// Cancel flags the request for administrative cancellation. Workers check
// the flag before each pipeline stage; a cancelled job reaches failed
// without committing a cache result. Cancelling an unknown request is
// ErrNotFound; cancelling a terminal one is a no-op.
func (t *Tracker) Cancel(ctx context.Context, requestID uuid.UUID) error {
	rec, err := t.Read(ctx, requestID)
	if err != nil {
		return err
	}
	if rec.State.Terminal() {
		return nil
	}
	if err := t.store.Set(ctx, cancelKey(requestID), "1", t.cfg.ActiveTTL); err != nil {
		return fmt.Errorf("%w: cancel: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

// Cancelled reports whether the request has been flagged for cancellation.
// Store errors read as not-cancelled: cancellation is advisory and must not
// stall the pipeline.
func (t *Tracker) Cancelled(ctx context.Context, requestID uuid.UUID) bool {
	_, err := t.store.Get(ctx, cancelKey(requestID))
	return err == nil
}

// staleProcessing returns requests mirrored on this instance that have sat
// in processing without an update for longer than staleAfter.
func (t *Tracker) staleProcessing(staleAfter time.Duration) []staleEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-staleAfter)
	var stale []staleEntry
	for id, lr := range t.local {
		if lr.rec.State == domain.StateProcessing && lr.rec.UpdatedAt.Before(cutoff) {
			stale = append(stale, staleEntry{requestID: id, fingerprint: lr.fp})
		}
	}
	return stale
}

// dropExpiredLocal reclaims local mirrors of terminal records past their
// retention window.
func (t *Tracker) dropExpiredLocal() {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.cfg.TerminalRetention)
	for id, lr := range t.local {
		if lr.rec.State.Terminal() && lr.rec.UpdatedAt.Before(cutoff) {
			delete(t.local, id)
		}
	}
}

func (t *Tracker) readLocal(requestID uuid.UUID) *domain.StatusRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	lr, ok := t.local[requestID]
	if !ok {
		return nil
	}
	if lr.rec.State.Terminal() && lr.rec.UpdatedAt.Before(t.now().Add(-t.cfg.TerminalRetention)) {
		delete(t.local, requestID)
		return nil
	}
	snapshot := *lr.rec
	return &snapshot
}

// writeThrough persists the record to the shared store with
// compare-and-swap monotonicity: a replica holding a more advanced copy
// wins, regardless of local ordering. Failures degrade to local-only
// tracking with a warning.
func (t *Tracker) writeThrough(ctx context.Context, rec *domain.StatusRecord) {
	ttl := t.cfg.ActiveTTL
	if rec.State.Terminal() {
		ttl = t.cfg.TerminalRetention
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		t.logger.Error("failed to marshal status record", "request_id", rec.RequestID, "error", err)
		return
	}

	err = t.store.Update(ctx, statusKey(rec.RequestID), ttl, func(current string, exists bool) (string, bool, error) {
		if exists {
			var stored domain.StatusRecord
			if jsonErr := json.Unmarshal([]byte(current), &stored); jsonErr == nil {
				if stored.State != rec.State && !stored.State.CanAdvanceTo(rec.State) {
					t.logger.Error("invariant violation: stored status ahead of transition, keeping stored",
						"request_id", rec.RequestID,
						"stored_state", stored.State,
						"attempted_state", rec.State)
					return "", false, nil
				}
			}
		}
		return string(raw), true, nil
	})
	if err != nil {
		t.logger.Warn("status write degraded to local only",
			"request_id", rec.RequestID,
			"state", rec.State,
			"error", err)
	}
}

type staleEntry struct {
	requestID   uuid.UUID
	fingerprint domain.Fingerprint
}

func statusKey(requestID uuid.UUID) string {
	return statusKeyPrefix + requestID.String()
}

func cancelKey(requestID uuid.UUID) string {
	return cancelKeyPrefix + requestID.String()
}
