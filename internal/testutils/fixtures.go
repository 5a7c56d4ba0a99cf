package testutils

import (
	"strings"
	"testing"

	"github.com/ewhitley/certscan-api/internal/domain"
)

// Fingerprint returns a syntactically valid fingerprint derived from seed,
// distinct for distinct seeds.
func Fingerprint(seed string) domain.Fingerprint {
	padded := seed + strings.Repeat("0", domain.FingerprintHexLen)
	return domain.Fingerprint(padded[:domain.FingerprintHexLen])
}

// Request builds a valid ProcessingRequest for tests, failing the test on
// builder errors.
func Request(t *testing.T, seed string, priority int) *domain.ProcessingRequest {
	t.Helper()
	req, err := domain.NewProcessingRequest(Fingerprint(seed), "uploads/"+seed+".txt", priority)
	if err != nil {
		t.Fatalf("building test request: %v", err)
	}
	return req
}

// Certificate returns a schema-valid extracted certificate.
func Certificate() *domain.Certificate {
	return &domain.Certificate{
		InsuredName:    "Acme Construction LLC",
		InsurerName:    "Hartford Casualty",
		PolicyNumber:   "GL-2026-004417",
		EffectiveDate:  "2026-01-01",
		ExpirationDate: "2027-01-01",
		Coverages: []domain.Coverage{
			{
				Type:                "general_liability",
				EachOccurrenceLimit: 1000000,
				AggregateLimit:      2000000,
			},
		},
		ConfidenceScore: 0.92,
	}
}
