// Package gemini implements the extraction.StructuredExtractor port using
// Google's Gemini API. The model is asked for a JSON certificate record; the
// response is parsed into the domain schema. Failures are classified for the
// pipeline's retry loop: network, timeout and rate-limit faults are
// transient, unusable responses are permanent.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/ewhitley/certscan-api/internal/domain"
)

// Config holds the Gemini client settings.
type Config struct {
	APIKey    string
	ModelName string

	// MaxPromptChars bounds the document text included in the prompt.
	// Oversized documents keep their head and tail, where certificates
	// carry the identifying fields and signature blocks.
	MaxPromptChars int

	// CallsPerMinute gates outbound calls to stay inside the external API
	// rate limit. Zero disables the gate.
	CallsPerMinute int
}

// Extractor is a Gemini-backed extraction.StructuredExtractor.
type Extractor struct {
	client  *genai.Client
	model   string
	limiter *rateLimiter
	cfg     Config
	logger  *slog.Logger
}

// New creates an Extractor.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Extractor, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}
	if cfg.ModelName == "" {
		return nil, errors.New("gemini model name cannot be empty")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	var limiter *rateLimiter
	if cfg.CallsPerMinute > 0 {
		limiter = newRateLimiter(cfg.CallsPerMinute)
	}

	return &Extractor{
		client:  client,
		model:   cfg.ModelName,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Extract implements extraction.StructuredExtractor.
func (e *Extractor) Extract(ctx context.Context, text string) (*domain.Certificate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no document text to extract from", domain.ErrPermanentExtraction)
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: waiting for API rate slot: %v", domain.ErrTransientExtraction, err)
		}
	}

	prompt := buildPrompt(chunkText(text, e.cfg.MaxPromptChars))
	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: prompt}}},
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	e.logger.Debug("calling Gemini",
		"model", e.model,
		"prompt_chars", len(prompt))

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, config)
	if err != nil {
		return nil, classifyCallError(err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: model returned no candidates", domain.ErrPermanentExtraction)
	}

	raw := strings.TrimSpace(resp.Text())
	if raw == "" {
		return nil, fmt.Errorf("%w: model returned empty response", domain.ErrPermanentExtraction)
	}
	raw = stripCodeFence(raw)

	var cert domain.Certificate
	if err := json.Unmarshal([]byte(raw), &cert); err != nil {
		return nil, fmt.Errorf("%w: unparseable model response: %v", domain.ErrPermanentExtraction, err)
	}

	return &cert, nil
}

// classifyCallError maps a Gemini API error to the retry taxonomy. API-side
// faults default to transient, matching how the service treats an opaque
// remote failure.
func classifyCallError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTransientExtraction, err)
	}

	msg := strings.ToLower(err.Error())
	permanent := strings.Contains(msg, "invalid argument") ||
		strings.Contains(msg, "invalidargument") ||
		strings.Contains(msg, "invalid_argument") ||
		strings.Contains(msg, "safety") ||
		strings.Contains(msg, "blocked")
	if permanent {
		return fmt.Errorf("%w: %v", domain.ErrPermanentExtraction, err)
	}

	return fmt.Errorf("%w: %v", domain.ErrTransientExtraction, err)
}

// stripCodeFence removes a ```json ... ``` wrapper some model responses
// carry despite the JSON response type.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// chunkText bounds text to maxChars, keeping the head and tail halves of the
// budget. Certificates put the parties and policy numbers up top and
// signatures, endorsements and limits at the bottom; the middle is mostly
// boilerplate.
func chunkText(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = 6000
	}
	if len(text) <= maxChars {
		return text
	}

	head := maxChars / 2
	tail := maxChars - head
	return text[:head] + "\n[...document truncated...]\n" + text[len(text)-tail:]
}

func buildPrompt(documentText string) string {
	var b strings.Builder
	b.WriteString("You are an expert insurance document analyst. Extract the structured data ")
	b.WriteString("from the insurance certificate below and respond with a single JSON object ")
	b.WriteString("using exactly these fields:\n")
	b.WriteString(`{"insured_name": string, "insurer_name": string, "policy_number": string, `)
	b.WriteString(`"effective_date": "YYYY-MM-DD", "expiration_date": "YYYY-MM-DD", `)
	b.WriteString(`"coverages": [{"type": string, "policy_number": string, `)
	b.WriteString(`"each_occurrence_limit": number, "aggregate_limit": number}], `)
	b.WriteString(`"confidence_score": number between 0 and 1}`)
	b.WriteString("\nOmit dates you cannot find. Use 0 for limits the document does not state. ")
	b.WriteString("Respond with JSON only, no commentary.\n\nDocument text:\n")
	b.WriteString(documentText)
	return b.String()
}
