// Package testutils provides shared helpers for package tests: a
// memory-backed slog handler for log assertions and builders for common
// domain fixtures.
package testutils
