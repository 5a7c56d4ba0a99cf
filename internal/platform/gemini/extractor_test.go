package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ewhitley/certscan-api/internal/domain"
)

func TestChunkTextShortInputPassesThrough(t *testing.T) {
	t.Parallel()

	text := "a short certificate"
	assert.Equal(t, text, chunkText(text, 6000))
}

func TestChunkTextKeepsHeadAndTail(t *testing.T) {
	t.Parallel()

	head := strings.Repeat("H", 4000)
	middle := strings.Repeat("M", 10000)
	tail := strings.Repeat("T", 4000)
	out := chunkText(head+middle+tail, 6000)

	assert.True(t, strings.HasPrefix(out, "HHH"))
	assert.True(t, strings.HasSuffix(out, "TTT"))
	assert.Contains(t, out, "[...document truncated...]")
	assert.NotContains(t, out, "M", "the boilerplate middle is dropped")
	assert.Less(t, len(out), 6100)
}

func TestChunkTextZeroBudgetUsesDefault(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("x", 20000)
	out := chunkText(text, 0)
	assert.Less(t, len(out), 6100)
}

func TestStripCodeFence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare JSON", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, stripCodeFence(tc.in))
		})
	}
}

func TestClassifyCallError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"context deadline", context.DeadlineExceeded, domain.ErrTransientExtraction},
		{"context cancelled", context.Canceled, domain.ErrTransientExtraction},
		{"invalid argument", errors.New("rpc error: InvalidArgument: bad request"), domain.ErrPermanentExtraction},
		{"safety block", errors.New("response blocked by safety settings"), domain.ErrPermanentExtraction},
		{"server error", errors.New("rpc error: Unavailable: try again"), domain.ErrTransientExtraction},
		{"opaque failure", errors.New("connection reset by peer"), domain.ErrTransientExtraction},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, classifyCallError(tc.err), tc.want)
		})
	}
}

func TestBuildPromptCarriesSchemaAndDocument(t *testing.T) {
	t.Parallel()

	prompt := buildPrompt("POLICY NUMBER GL-2026-004417")
	assert.Contains(t, prompt, `"insured_name"`)
	assert.Contains(t, prompt, `"confidence_score"`)
	assert.Contains(t, prompt, "POLICY NUMBER GL-2026-004417")
}
