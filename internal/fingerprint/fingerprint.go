// Package fingerprint computes deterministic content identifiers for
// submitted files. The fingerprint is the cache and dedup key: identical
// bytes always hash to the same value, and distinct bytes collide with
// cryptographically negligible probability.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/ewhitley/certscan-api/internal/domain"
)

// Compute returns the fingerprint of the given bytes. Pure function with no
// failure modes.
func Compute(data []byte) domain.Fingerprint {
	sum := sha256.Sum256(data)
	return domain.Fingerprint(hex.EncodeToString(sum[:]))
}

// FromReader computes the fingerprint of everything readable from r.
// The only failure mode is an I/O error from the reader itself.
func FromReader(r io.Reader) (domain.Fingerprint, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("reading input for fingerprint: %w", err)
	}
	return domain.Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}
