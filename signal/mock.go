package signal

import (
	"context"
	"sync"
)

// MockClassifier returns canned results and counts invocations, for tests
// which assert that specific layers did (or did not) run.
type MockClassifier struct {
	mu sync.Mutex

	// Queue of results to return, in order. When exhausted (or empty), the
	// final/default result is returned for every subsequent call.
	Queue  []*Result
	Result *Result
	Err    error

	calls int
}

var _ Classifier = (*MockClassifier)(nil)

func (m *MockClassifier) Analyze(ctx context.Context, req *Request) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Queue) > 0 {
		out := m.Queue[0]
		m.Queue = m.Queue[1:]
		return out, nil
	}
	return m.Result, nil
}

func (m *MockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Helper for the common "nothing to see here" result.
func CleanResult(layer string, confidence float64) *Result {
	return &Result{
		Layer:          layer,
		Classification: CategoryClean,
		Confidence:     confidence,
	}
}
