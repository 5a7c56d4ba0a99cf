package textract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewhitley/certscan-api/internal/domain"
)

func TestExtractTextPlainDocument(t *testing.T) {
	t.Parallel()

	text, err := New().ExtractText(context.Background(), []byte("  CERTIFICATE OF LIABILITY INSURANCE\n"))
	require.NoError(t, err)
	assert.Equal(t, "CERTIFICATE OF LIABILITY INSURANCE", text)
}

func TestExtractTextPermanentFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty document", nil},
		{"pdf without OCR", []byte("%PDF-1.7 binary payload")},
		{"invalid UTF-8", []byte{0xff, 0xfe, 0x00, 0x81}},
		{"whitespace only", []byte("   \n\t  ")},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := New().ExtractText(context.Background(), tc.data)
			assert.ErrorIs(t, err, domain.ErrPermanentExtraction)
		})
	}
}

func TestExtractTextHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().ExtractText(ctx, []byte("text"))
	assert.ErrorIs(t, err, context.Canceled)
}
