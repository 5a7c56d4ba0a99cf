// Package cache implements content-addressed result caching and the
// claim-with-lease dedup protocol on top of the kv.Store port. The claim is
// the sole admission point into the worker pipeline for a given fingerprint:
// an atomic set-if-absent with an expiry lease, so a crashed claim holder is
// tolerated by letting the lease lapse.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ewhitley/certscan-api/internal/domain"
	"github.com/ewhitley/certscan-api/internal/kv"
)

// ErrMiss is returned by Lookup when no entry exists for the fingerprint.
var ErrMiss = errors.New("cache miss")

// Key prefixes under the shared store namespace.
const (
	resultKeyPrefix = "certscan:result:"
	claimKeyPrefix  = "certscan:claim:"
)

// Entry is a cached extraction result keyed by fingerprint. Entries expire
// by TTL and are additionally subject to the store's LRU eviction under
// memory pressure; whichever fires first removes the entry.
type Entry struct {
	Fingerprint domain.Fingerprint `json:"fingerprint"`
	Payload     json.RawMessage    `json:"payload"`
	CreatedAt   time.Time          `json:"created_at"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

// ClaimResult reports the outcome of TryClaim. When Claimed is false, Owner
// is the request currently holding the claim.
type ClaimResult struct {
	Claimed bool
	Owner   uuid.UUID
}

// Manager wraps the store with content-addressed get/put/claim semantics.
type Manager struct {
	store  kv.Store
	logger *slog.Logger
}

// NewManager creates a Manager over the given store.
func NewManager(store kv.Store, logger *slog.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// Lookup fetches the cached entry for fp. Returns ErrMiss when absent and
// domain.ErrCacheUnavailable when the store cannot be reached; it never
// blocks on the pipeline.
func (m *Manager) Lookup(ctx context.Context, fp domain.Fingerprint) (*Entry, error) {
	raw, err := m.store.Get(ctx, resultKey(fp))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lookup: %v", domain.ErrCacheUnavailable, err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		// A corrupt entry is unusable; drop it and report a miss so the
		// pipeline recomputes.
		m.logger.Warn("dropping corrupt cache entry",
			"fingerprint", fp,
			"error", err)
		_ = m.store.Del(ctx, resultKey(fp))
		return nil, ErrMiss
	}

	return &entry, nil
}

// TryClaim atomically marks fp as in progress for requestID with the given
// lease. A false Claimed result means another request already holds the
// claim; the caller mirrors that owner's outcome instead of re-running the
// pipeline.
func (m *Manager) TryClaim(
	ctx context.Context,
	fp domain.Fingerprint,
	requestID uuid.UUID,
	lease time.Duration,
) (ClaimResult, error) {
	ok, err := m.store.SetNX(ctx, claimKey(fp), requestID.String(), lease)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("%w: claim: %v", domain.ErrCacheUnavailable, err)
	}
	if ok {
		return ClaimResult{Claimed: true, Owner: requestID}, nil
	}

	ownerRaw, err := m.store.Get(ctx, claimKey(fp))
	if errors.Is(err, kv.ErrKeyNotFound) {
		// The claim expired between SETNX and GET. Treat it as claimable by
		// retrying once; a second loss means someone else won the race.
		ok, err = m.store.SetNX(ctx, claimKey(fp), requestID.String(), lease)
		if err != nil {
			return ClaimResult{}, fmt.Errorf("%w: claim retry: %v", domain.ErrCacheUnavailable, err)
		}
		if ok {
			return ClaimResult{Claimed: true, Owner: requestID}, nil
		}
		ownerRaw, err = m.store.Get(ctx, claimKey(fp))
		if err != nil {
			return ClaimResult{}, fmt.Errorf("%w: claim owner: %v", domain.ErrCacheUnavailable, err)
		}
	} else if err != nil {
		return ClaimResult{}, fmt.Errorf("%w: claim owner: %v", domain.ErrCacheUnavailable, err)
	}

	owner, parseErr := uuid.Parse(ownerRaw)
	if parseErr != nil {
		m.logger.Warn("claim record holds unparseable owner, releasing",
			"fingerprint", fp,
			"raw_owner", ownerRaw)
		_ = m.store.Del(ctx, claimKey(fp))
		return ClaimResult{}, fmt.Errorf("%w: corrupt claim record", domain.ErrCacheUnavailable)
	}

	return ClaimResult{Claimed: false, Owner: owner}, nil
}

// Commit writes the cache entry for fp and clears its claim. Overwriting an
// existing entry is deliberate: recomputation refreshes the TTL.
func (m *Manager) Commit(
	ctx context.Context,
	fp domain.Fingerprint,
	payload json.RawMessage,
	ttl time.Duration,
) error {
	now := time.Now().UTC()
	entry := Entry{
		Fingerprint: fp,
		Payload:     payload,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}

	if err := m.store.Set(ctx, resultKey(fp), string(raw), ttl); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrCacheUnavailable, err)
	}

	if err := m.store.Del(ctx, claimKey(fp)); err != nil {
		// The entry is committed; a lingering claim will lapse with its
		// lease. Log rather than fail the job.
		m.logger.Warn("failed to clear claim after commit",
			"fingerprint", fp,
			"error", err)
	}

	return nil
}

// Release clears the claim for fp without writing a result, allowing future
// retries. Used on permanent failure.
func (m *Manager) Release(ctx context.Context, fp domain.Fingerprint) error {
	if err := m.store.Del(ctx, claimKey(fp)); err != nil {
		return fmt.Errorf("%w: release: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

// Ping reports store reachability for health checks.
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

func resultKey(fp domain.Fingerprint) string {
	return resultKeyPrefix + string(fp)
}

func claimKey(fp domain.Fingerprint) string {
	return claimKeyPrefix + string(fp)
}
