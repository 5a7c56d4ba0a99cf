package mocks

import (
	"context"
	"sync"

	"github.com/ewhitley/certscan-api/internal/domain"
)

// MockFileStore implements extraction.FileStore for testing.
type MockFileStore struct {
	// StatFn and FetchFn allow test cases to override behavior per call.
	StatFn  func(ctx context.Context, ref string) (int64, error)
	FetchFn func(ctx context.Context, ref string) ([]byte, error)

	// Default response values, used when no Fn override is set.
	Size int64
	Data []byte
	Err  error

	// Call tracking for verification
	mu         sync.Mutex
	StatCalls  []string
	FetchCalls []string
}

// Stat implements the extraction.FileStore interface.
func (m *MockFileStore) Stat(ctx context.Context, ref string) (int64, error) {
	m.mu.Lock()
	m.StatCalls = append(m.StatCalls, ref)
	m.mu.Unlock()

	if m.StatFn != nil {
		return m.StatFn(ctx, ref)
	}
	if m.Err != nil {
		return 0, m.Err
	}
	size := m.Size
	if size == 0 {
		size = int64(len(m.Data))
	}
	return size, nil
}

// Fetch implements the extraction.FileStore interface.
func (m *MockFileStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	m.mu.Lock()
	m.FetchCalls = append(m.FetchCalls, ref)
	m.mu.Unlock()

	if m.FetchFn != nil {
		return m.FetchFn(ctx, ref)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Data, nil
}

// FetchCount returns how many times Fetch was called.
func (m *MockFileStore) FetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.FetchCalls)
}

// MockTextExtractor implements extraction.TextExtractor for testing.
type MockTextExtractor struct {
	ExtractTextFn func(ctx context.Context, data []byte) (string, error)

	Text string
	Err  error
}

// ExtractText implements the extraction.TextExtractor interface.
func (m *MockTextExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	if m.ExtractTextFn != nil {
		return m.ExtractTextFn(ctx, data)
	}
	if m.Err != nil {
		return "", m.Err
	}
	if m.Text != "" {
		return m.Text, nil
	}
	return string(data), nil
}

// MockStructuredExtractor implements extraction.StructuredExtractor for
// testing.
type MockStructuredExtractor struct {
	ExtractFn func(ctx context.Context, text string) (*domain.Certificate, error)

	Cert *domain.Certificate
	Err  error

	// Call tracking for verification
	mu    sync.Mutex
	Texts []string
}

// Extract implements the extraction.StructuredExtractor interface.
func (m *MockStructuredExtractor) Extract(ctx context.Context, text string) (*domain.Certificate, error) {
	m.mu.Lock()
	m.Texts = append(m.Texts, text)
	m.mu.Unlock()

	if m.ExtractFn != nil {
		return m.ExtractFn(ctx, text)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Cert, nil
}

// ExtractCount returns how many times Extract was called.
func (m *MockStructuredExtractor) ExtractCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Texts)
}
