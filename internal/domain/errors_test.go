package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ewhitley/certscan-api/internal/domain"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want domain.ErrorKind
	}{
		{fmt.Errorf("%w: bad priority", domain.ErrValidation), domain.KindValidation},
		{fmt.Errorf("stage fetch: %w", domain.ErrTransientExtraction), domain.KindTransientExtraction},
		{fmt.Errorf("%w: empty document", domain.ErrPermanentExtraction), domain.KindPermanentExtraction},
		{domain.ErrResourceExhausted, domain.KindResourceExhausted},
		{domain.ErrCacheUnavailable, domain.KindCacheUnavailable},
		{fmt.Errorf("%w: budget exceeded", domain.ErrTimeout), domain.KindTimeout},
		{domain.ErrCancelled, domain.KindCancelled},
		{domain.ErrNotFound, domain.KindInternal},
		{errors.New("something else"), domain.KindInternal},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, domain.KindOf(tc.err), "error: %v", tc.err)
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	t.Parallel()

	inner := fmt.Errorf("%w: model call failed", domain.ErrTransientExtraction)
	wrapped := fmt.Errorf("retry budget exhausted after 4 attempts: %w", inner)

	assert.Equal(t, domain.KindTransientExtraction, domain.KindOf(wrapped))
}
