// Package extraction defines the ports to the external collaborators of the
// processing pipeline: file storage, the text-extraction capability, and the
// remote structured-extraction capability. The application core depends only
// on these interfaces; concrete clients live under internal/platform.
package extraction

import (
	"context"

	"github.com/ewhitley/certscan-api/internal/domain"
)

// FileStore provides read access to submitted document files by reference.
type FileStore interface {
	// Stat returns the size in bytes of the referenced object. A missing
	// object is a domain.ErrValidation.
	Stat(ctx context.Context, ref string) (int64, error)

	// Fetch returns the raw bytes of the referenced object.
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// TextExtractor turns raw document bytes into plain text. A malformed or
// unsupported document is a domain.ErrPermanentExtraction; only genuine I/O
// faults classify as transient.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// StructuredExtractor turns document text into a typed certificate record.
// Implementations classify failures as domain.ErrTransientExtraction
// (network, timeout, rate limit — the caller retries) or
// domain.ErrPermanentExtraction (unusable response — the caller does not).
type StructuredExtractor interface {
	Extract(ctx context.Context, text string) (*domain.Certificate, error)
}
