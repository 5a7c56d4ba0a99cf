package domain_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewhitley/certscan-api/internal/domain"
)

func validFingerprint() domain.Fingerprint {
	return domain.Fingerprint(strings.Repeat("ab", 32))
}

func TestNewProcessingRequest(t *testing.T) {
	t.Parallel()

	req, err := domain.NewProcessingRequest(validFingerprint(), "uploads/cert.txt", domain.PriorityDefault)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, req.RequestID)
	assert.Equal(t, validFingerprint(), req.Fingerprint)
	assert.Equal(t, "uploads/cert.txt", req.FileReference)
	assert.Equal(t, domain.PriorityDefault, req.Priority)
	assert.False(t, req.SubmittedAt.IsZero())
}

func TestProcessingRequestValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fp       domain.Fingerprint
		fileRef  string
		priority int
		wantErr  error
	}{
		{
			name:     "short fingerprint",
			fp:       "abc123",
			fileRef:  "uploads/cert.txt",
			priority: 3,
			wantErr:  domain.ErrEmptyFingerprint,
		},
		{
			name:     "empty file reference",
			fp:       validFingerprint(),
			fileRef:  "",
			priority: 3,
			wantErr:  domain.ErrEmptyFileReference,
		},
		{
			name:     "priority below range",
			fp:       validFingerprint(),
			fileRef:  "uploads/cert.txt",
			priority: 0,
			wantErr:  domain.ErrInvalidPriority,
		},
		{
			name:     "priority above range",
			fp:       validFingerprint(),
			fileRef:  "uploads/cert.txt",
			priority: 6,
			wantErr:  domain.ErrInvalidPriority,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := domain.NewProcessingRequest(tc.fp, tc.fileRef, tc.priority)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}
