package mocks

import (
	"context"
	"time"

	"github.com/ewhitley/certscan-api/internal/kv"
)

// FailingStore is a kv.Store whose every operation fails with Err, for
// exercising degraded-mode paths.
type FailingStore struct {
	Err error
}

// Get implements kv.Store.
func (s *FailingStore) Get(ctx context.Context, key string) (string, error) {
	return "", s.Err
}

// Set implements kv.Store.
func (s *FailingStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.Err
}

// SetNX implements kv.Store.
func (s *FailingStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return false, s.Err
}

// Update implements kv.Store.
func (s *FailingStore) Update(ctx context.Context, key string, ttl time.Duration, fn kv.UpdateFunc) error {
	return s.Err
}

// Del implements kv.Store.
func (s *FailingStore) Del(ctx context.Context, keys ...string) error {
	return s.Err
}

// Incr implements kv.Store.
func (s *FailingStore) Incr(ctx context.Context, key string) (int64, error) {
	return 0, s.Err
}

// Ping implements kv.Store.
func (s *FailingStore) Ping(ctx context.Context) error {
	return s.Err
}
