package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ewhitley/certscan-api/internal/domain"
)

func validCertificate() *domain.Certificate {
	return &domain.Certificate{
		InsuredName:    "Acme Construction LLC",
		InsurerName:    "Hartford Casualty",
		PolicyNumber:   "GL-2026-004417",
		EffectiveDate:  "2026-01-01",
		ExpirationDate: "2027-01-01",
		Coverages: []domain.Coverage{
			{Type: "general_liability", EachOccurrenceLimit: 1000000, AggregateLimit: 2000000},
		},
		ConfidenceScore: 0.92,
	}
}

func TestCertificateValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validCertificate().Validate())
}

func TestCertificateValidateFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *domain.Certificate)
	}{
		{"missing insured name", func(c *domain.Certificate) { c.InsuredName = "" }},
		{"missing insurer name", func(c *domain.Certificate) { c.InsurerName = "" }},
		{"missing policy number", func(c *domain.Certificate) { c.PolicyNumber = "" }},
		{"malformed effective date", func(c *domain.Certificate) { c.EffectiveDate = "01/01/2026" }},
		{"confidence above one", func(c *domain.Certificate) { c.ConfidenceScore = 1.2 }},
		{"confidence below zero", func(c *domain.Certificate) { c.ConfidenceScore = -0.1 }},
		{"coverage without type", func(c *domain.Certificate) { c.Coverages[0].Type = "" }},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cert := validCertificate()
			tc.mutate(cert)
			err := cert.Validate()
			assert.ErrorIs(t, err, domain.ErrPermanentExtraction)
		})
	}
}

func TestCertificateDatesAreOptional(t *testing.T) {
	t.Parallel()

	cert := validCertificate()
	cert.EffectiveDate = ""
	cert.ExpirationDate = ""
	assert.NoError(t, cert.Validate())
}
