// Package metrics collects operational counters for the /metrics surface.
// Event counters are incremented in the shared store so every replica reports
// service-wide totals; per-stage latency summaries are in-process. All writes
// are best-effort: metrics never fail or slow a request.
package metrics

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ewhitley/certscan-api/internal/kv"
)

// Counter names. Stored under counterKeyPrefix in the shared store.
const (
	CounterSubmissions     = "submissions"
	CounterCacheHits       = "cache_hits"
	CounterCacheMisses     = "cache_misses"
	CounterDedupJoins      = "dedup_joins"
	CounterQueueRejections = "queue_rejections"
	CounterCompleted       = "jobs_completed"
	CounterFailed          = "jobs_failed"
)

const counterKeyPrefix = "certscan:metrics:"

var counterNames = []string{
	CounterSubmissions,
	CounterCacheHits,
	CounterCacheMisses,
	CounterDedupJoins,
	CounterQueueRejections,
	CounterCompleted,
	CounterFailed,
}

// StageSummary is a cheap latency summary for one pipeline stage.
type StageSummary struct {
	Count       int64   `json:"count"`
	MeanMillis  float64 `json:"mean_ms"`
	MaxMillis   int64   `json:"max_ms"`
	TotalMillis int64   `json:"total_ms"`
}

type stageStats struct {
	count int64
	total int64
	max   int64
}

// Registry accumulates counters and stage timings.
type Registry struct {
	store  kv.Store
	logger *slog.Logger

	mu     sync.Mutex
	stages map[string]*stageStats

	// local mirrors of the shared counters, served when the store is down
	local map[string]*atomic.Int64
}

// NewRegistry creates a Registry over the shared store.
func NewRegistry(store kv.Store, logger *slog.Logger) *Registry {
	local := make(map[string]*atomic.Int64, len(counterNames))
	for _, name := range counterNames {
		local[name] = &atomic.Int64{}
	}
	return &Registry{
		store:  store,
		logger: logger,
		stages: make(map[string]*stageStats),
		local:  local,
	}
}

// Inc bumps the named counter locally and in the shared store.
func (r *Registry) Inc(ctx context.Context, name string) {
	if c, ok := r.local[name]; ok {
		c.Add(1)
	}
	if _, err := r.store.Incr(ctx, counterKeyPrefix+name); err != nil {
		r.logger.Debug("shared metrics counter unavailable", "counter", name, "error", err)
	}
}

// ObserveStage records one duration for a pipeline stage.
func (r *Registry) ObserveStage(stage string, d time.Duration) {
	ms := d.Milliseconds()

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stages[stage]
	if !ok {
		s = &stageStats{}
		r.stages[stage] = s
	}
	s.count++
	s.total += ms
	if ms > s.max {
		s.max = ms
	}
}

// SnapshotCounters reads service-wide counter totals, preferring the shared
// store and falling back to this instance's local tallies.
func (r *Registry) SnapshotCounters(ctx context.Context) map[string]int64 {
	counters := make(map[string]int64, len(counterNames))
	for _, name := range counterNames {
		raw, err := r.store.Get(ctx, counterKeyPrefix+name)
		switch {
		case err == nil:
			n, parseErr := strconv.ParseInt(raw, 10, 64)
			if parseErr == nil {
				counters[name] = n
				continue
			}
			counters[name] = r.local[name].Load()
		default:
			counters[name] = r.local[name].Load()
		}
	}
	return counters
}

// SnapshotStages returns the accumulated per-stage latency summaries.
func (r *Registry) SnapshotStages() map[string]StageSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]StageSummary, len(r.stages))
	for name, s := range r.stages {
		summary := StageSummary{
			Count:       s.count,
			MaxMillis:   s.max,
			TotalMillis: s.total,
		}
		if s.count > 0 {
			summary.MeanMillis = float64(s.total) / float64(s.count)
		}
		out[name] = summary
	}
	return out
}
