package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// certValidator validates extracted certificates against the schema tags.
var certValidator = validator.New()

// Coverage is one line of coverage on an insurance certificate.
type Coverage struct {
	// Type is the coverage category, e.g. "general_liability", "auto",
	// "workers_compensation", "umbrella".
	Type string `json:"type"        validate:"required"`

	// PolicyNumber is the policy backing this coverage line, when stated
	// separately from the certificate-level policy number.
	PolicyNumber string `json:"policy_number,omitempty"`

	// EachOccurrenceLimit and AggregateLimit are stated in whole currency
	// units. Zero means the document did not state the limit.
	EachOccurrenceLimit int64 `json:"each_occurrence_limit,omitempty" validate:"gte=0"`
	AggregateLimit      int64 `json:"aggregate_limit,omitempty"       validate:"gte=0"`
}

// Certificate is the structured record extracted from an insurance
// certificate document. It is the payload stored in the result cache and
// returned to clients.
type Certificate struct {
	InsuredName    string     `json:"insured_name"    validate:"required"`
	InsurerName    string     `json:"insurer_name"    validate:"required"`
	PolicyNumber   string     `json:"policy_number"   validate:"required"`
	EffectiveDate  string     `json:"effective_date,omitempty"  validate:"omitempty,datetime=2006-01-02"`
	ExpirationDate string     `json:"expiration_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Coverages      []Coverage `json:"coverages"       validate:"dive"`

	// ConfidenceScore is the extractor's self-reported confidence in [0,1].
	// Records below the review threshold are flagged for human review
	// downstream but are still considered valid extractions.
	ConfidenceScore float64 `json:"confidence_score" validate:"gte=0,lte=1"`
}

// Validate checks the extracted certificate against the expected schema.
// A violation here is a permanent extraction failure: the document was
// readable but the extractor returned a record we cannot accept.
func (c *Certificate) Validate() error {
	if err := certValidator.Struct(c); err != nil {
		return fmt.Errorf("%w: certificate schema: %v", ErrPermanentExtraction, err)
	}
	return nil
}
