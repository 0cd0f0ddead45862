package mock

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/verigate/verigate/internal/upstream"
)

// Ensure MockSubmitter implements upstream.Submitter.
var _ upstream.Submitter = (*MockSubmitter)(nil)

// Submission records one forwarded payload for test assertions.
type Submission struct {
	CorrelationID string
	Payload       json.RawMessage
}

// MockSubmitter is an in-memory mock of the upstream submitter for testing.
type MockSubmitter struct {
	mu          sync.Mutex
	submissions []Submission

	// SubmitFunc, when set, overrides the default behavior to inject errors.
	SubmitFunc func(ctx context.Context, correlationID string, payload json.RawMessage) error
}

// NewMockSubmitter creates a new mock submitter.
func NewMockSubmitter() *MockSubmitter {
	return &MockSubmitter{}
}

func (m *MockSubmitter) Submit(ctx context.Context, correlationID string, payload json.RawMessage) error {
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, correlationID, payload)
	}
	m.mu.Lock()
	m.submissions = append(m.submissions, Submission{CorrelationID: correlationID, Payload: payload})
	m.mu.Unlock()
	return nil
}

// Submissions returns all recorded submissions (for test assertions).
func (m *MockSubmitter) Submissions() []Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Submission, len(m.submissions))
	copy(out, m.submissions)
	return out
}
