// Package kv defines the narrow key/value port the application uses for all
// cross-instance shared state: cache entries, claim records, status records,
// and shared counters. The production implementation is Redis
// (internal/platform/redis); an in-memory implementation backs tests and
// single-instance development.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get when the key does not exist or has
// expired.
var ErrKeyNotFound = errors.New("key not found")

// UpdateFunc computes the next value for a key during an atomic
// read-modify-write. current is the existing value ("" if absent, with
// exists false). Returning write=false aborts without writing and without
// error.
type UpdateFunc func(current string, exists bool) (next string, write bool, err error)

// Store is the key/value port. Implementations must make each individual
// operation atomic with respect to concurrent callers, across processes for
// networked backends; this is the only coordination primitive the
// application relies on.
type Store interface {
	// Get returns the value at key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes value at key. ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX writes value only if key is absent, returning whether the write
	// happened. This is the claim/lease primitive.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Update atomically applies fn to the current value of key
	// (compare-and-swap semantics; concurrent writers cannot interleave).
	// The ttl applies to the written value.
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error

	// Del removes the given keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// Incr atomically increments the integer at key, creating it at 1.
	Incr(ctx context.Context, key string) (int64, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
