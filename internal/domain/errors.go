package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared across the application. Each sentinel maps to exactly
// one externally visible failure kind; components wrap these with
// fmt.Errorf("%w: ...") so callers can classify with errors.Is.
var (
	// ErrValidation is returned for malformed input. Rejected immediately,
	// never queued, never retried.
	ErrValidation = errors.New("validation failed")

	// ErrTransientExtraction is returned for environmental extraction failures
	// (network, timeout, rate limit). Retried inside the worker with bounded
	// exponential backoff; surfaced only once the retry budget is exhausted.
	ErrTransientExtraction = errors.New("transient extraction failure")

	// ErrPermanentExtraction is returned for input or logic faults (malformed
	// file, schema violation). Terminal, never retried.
	ErrPermanentExtraction = errors.New("permanent extraction failure")

	// ErrResourceExhausted is returned when the queue is at capacity.
	// The request is rejected immediately with a retry hint.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrCacheUnavailable is returned when the shared cache store is
	// unreachable. Callers degrade to direct, non-deduplicated execution
	// rather than failing the request.
	ErrCacheUnavailable = errors.New("cache store unavailable")

	// ErrTimeout is returned when a job exceeds its wall-clock budget or its
	// owning worker is lost. Terminal; the claim is released.
	ErrTimeout = errors.New("processing timed out")

	// ErrCancelled is returned when a job is cancelled administratively
	// before completing. Terminal; no cache result is committed.
	ErrCancelled = errors.New("processing cancelled")

	// ErrNotFound is returned for unknown or expired request IDs.
	ErrNotFound = errors.New("not found")
)

// Validation sub-errors that map to distinct HTTP status codes. Both chain
// off ErrValidation so classification and kind reporting are unchanged.
var (
	// ErrFileNotFound is returned when the submitted file reference does not
	// resolve to a stored object.
	ErrFileNotFound = fmt.Errorf("%w: file not found", ErrValidation)

	// ErrFileTooLarge is returned when the referenced object exceeds the
	// configured size limit.
	ErrFileTooLarge = fmt.Errorf("%w: file too large", ErrValidation)
)

// ErrorKind is the stable, client-visible name for a failure class.
type ErrorKind string

// Client-visible error kinds carried on terminal status records.
const (
	KindValidation          ErrorKind = "validation_error"
	KindTransientExtraction ErrorKind = "transient_extraction_error"
	KindPermanentExtraction ErrorKind = "permanent_extraction_error"
	KindResourceExhausted   ErrorKind = "resource_exhausted"
	KindCacheUnavailable    ErrorKind = "cache_unavailable"
	KindTimeout             ErrorKind = "timeout"
	KindCancelled           ErrorKind = "cancelled"
	KindInternal            ErrorKind = "internal_error"
)

// KindOf classifies an error into its client-visible kind. Unclassified
// errors report as internal rather than leaking component detail.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrTransientExtraction):
		return KindTransientExtraction
	case errors.Is(err, ErrPermanentExtraction):
		return KindPermanentExtraction
	case errors.Is(err, ErrResourceExhausted):
		return KindResourceExhausted
	case errors.Is(err, ErrCacheUnavailable):
		return KindCacheUnavailable
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	default:
		return KindInternal
	}
}
