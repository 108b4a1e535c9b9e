package numerator

import (
	"context"
	"sync"
	"time"
)

// MockGenerator is an in-memory Generator.
// Use in unit tests to avoid database dependencies.
type MockGenerator struct {
	mu       sync.Mutex
	counters map[string]int64

	// NextFunc overrides allocation when set.
	NextFunc func(ctx context.Context, c Category, at time.Time) (string, error)
}

// NewMockGenerator creates a generator whose sequences all start at 1.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{counters: make(map[string]int64)}
}

// Next implements Generator.
func (m *MockGenerator) Next(ctx context.Context, c Category, at time.Time) (string, error) {
	if m.NextFunc != nil {
		return m.NextFunc(ctx, c, at)
	}
	cfg := DefaultConfig(c)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]int64)
	}
	key := cfg.Key(at)
	m.counters[key]++
	return cfg.Format(at, m.counters[key]), nil
}

// Peek implements Generator.
func (m *MockGenerator) Peek(ctx context.Context, c Category, at time.Time) (string, error) {
	cfg := DefaultConfig(c)
	m.mu.Lock()
	defer m.mu.Unlock()
	return cfg.Format(at, m.counters[cfg.Key(at)]+1), nil
}

// Ensure compile-time interface compliance.
var _ Generator = (*MockGenerator)(nil)
