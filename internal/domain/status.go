package domain

import (
	"time"

	"github.com/google/uuid"
)

// State represents the externally visible processing state of a request.
type State string

// Possible request states. Transitions are strictly monotonic:
// queued -> processing -> {completed, failed}. A queued record may also jump
// straight to a terminal state (cache hits and mirrored duplicates).
const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// rank orders states for monotonicity checks. Terminal states share a rank so
// neither can replace the other.
func (s State) rank() int {
	switch s {
	case StateQueued:
		return 0
	case StateProcessing:
		return 1
	case StateCompleted, StateFailed:
		return 2
	default:
		return -1
	}
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanAdvanceTo reports whether moving from s to next is a legal forward
// transition. Re-asserting the current state is not an advance.
func (s State) CanAdvanceTo(next State) bool {
	if s.rank() < 0 || next.rank() < 0 {
		return false
	}
	return next.rank() > s.rank()
}

// StatusRecord is the externally queryable state machine for one request.
// It is created at admission, advanced by the dispatcher and workers, and
// retained for a bounded window after reaching a terminal state.
type StatusRecord struct {
	RequestID      uuid.UUID `json:"request_id"`
	State          State     `json:"state"`
	ProgressMarker string    `json:"progress_marker,omitempty"`
	ResultRef      string    `json:"result_ref,omitempty"`
	ErrorKind      ErrorKind `json:"error_kind,omitempty"`
	ErrorDetail    string    `json:"error_detail,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewStatusRecord creates a queued StatusRecord for the given request ID.
func NewStatusRecord(requestID uuid.UUID) *StatusRecord {
	now := time.Now().UTC()
	return &StatusRecord{
		RequestID: requestID,
		State:     StateQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
