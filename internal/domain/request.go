package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Fingerprint is the deterministic content identifier of a submitted file:
// the lowercase-hex SHA-256 of its raw bytes. Identical bytes always produce
// identical fingerprints regardless of filename or submission time, which is
// what makes it usable as the cache and dedup key.
type Fingerprint string

// FingerprintHexLen is the length of a hex-encoded SHA-256 fingerprint.
const FingerprintHexLen = 64

// Priority bounds. Numerically lower values are serviced first.
const (
	PriorityHighest = 1
	PriorityDefault = 3
	PriorityLowest  = 5
)

// Common validation errors for ProcessingRequest
var (
	ErrEmptyRequestID     = errors.New("request ID cannot be empty")
	ErrEmptyFingerprint   = errors.New("fingerprint cannot be empty")
	ErrEmptyFileReference = errors.New("file reference cannot be empty")
	ErrInvalidPriority    = errors.New("priority must be between 1 and 5")
)

// ProcessingRequest represents one admitted submission. It is created at
// admission, immutable afterwards, and owned exclusively by the pipeline
// until the request reaches a terminal state.
type ProcessingRequest struct {
	RequestID     uuid.UUID   `json:"request_id"`
	Fingerprint   Fingerprint `json:"fingerprint"`
	FileReference string      `json:"file_reference"`
	Priority      int         `json:"priority"`
	SubmittedAt   time.Time   `json:"submitted_at"`
}

// NewProcessingRequest creates a ProcessingRequest with a fresh request ID
// and the submission timestamp set to now. Returns an error if validation
// fails.
func NewProcessingRequest(fp Fingerprint, fileRef string, priority int) (*ProcessingRequest, error) {
	req := &ProcessingRequest{
		RequestID:     uuid.New(),
		Fingerprint:   fp,
		FileReference: fileRef,
		Priority:      priority,
		SubmittedAt:   time.Now().UTC(),
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	return req, nil
}

// Validate checks if the ProcessingRequest has valid data.
func (r *ProcessingRequest) Validate() error {
	if r.RequestID == uuid.Nil {
		return ErrEmptyRequestID
	}

	if len(r.Fingerprint) != FingerprintHexLen {
		return ErrEmptyFingerprint
	}

	if r.FileReference == "" {
		return ErrEmptyFileReference
	}

	if r.Priority < PriorityHighest || r.Priority > PriorityLowest {
		return ErrInvalidPriority
	}

	return nil
}
