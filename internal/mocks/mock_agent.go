package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/deepnoodle-ai/cascade"
)

var _ cascade.Agent = &MockAgent{}

// MockAgentOptions configures the scripted behavior of a MockAgent.
type MockAgentOptions struct {
	Name string

	// Response is returned from every successful Process call when ProcessFunc
	// is unset.
	Response map[string]any

	// ProcessFunc, when set, handles Process calls directly.
	ProcessFunc func(ctx context.Context, input map[string]any) (map[string]any, error)

	// FailuresBeforeSuccess makes the first N Process calls fail, after which
	// calls succeed with Response.
	FailuresBeforeSuccess int

	// Err makes every Process call fail with this error.
	Err error
}

// MockAgent is a scripted agent for tests. It records every input it
// receives and is safe for concurrent use.
type MockAgent struct {
	mu                    sync.Mutex
	name                  string
	response              map[string]any
	processFunc           func(ctx context.Context, input map[string]any) (map[string]any, error)
	failuresBeforeSuccess int
	err                   error
	calls                 []map[string]any
}

func NewMockAgent(opts MockAgentOptions) *MockAgent {
	return &MockAgent{
		name:                  opts.Name,
		response:              opts.Response,
		processFunc:           opts.ProcessFunc,
		failuresBeforeSuccess: opts.FailuresBeforeSuccess,
		err:                   opts.Err,
	}
}

func (a *MockAgent) Name() string {
	return a.name
}

func (a *MockAgent) Process(ctx context.Context, input map[string]any) (map[string]any, error) {
	a.mu.Lock()
	a.calls = append(a.calls, input)
	count := len(a.calls)
	a.mu.Unlock()

	if a.processFunc != nil {
		return a.processFunc(ctx, input)
	}
	if a.err != nil {
		return nil, a.err
	}
	if count <= a.failuresBeforeSuccess {
		return nil, fmt.Errorf("scripted failure %d", count)
	}
	if a.response != nil {
		return a.response, nil
	}
	return map[string]any{"processed": true}, nil
}

// CallCount returns how many times Process has been called.
func (a *MockAgent) CallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

// Calls returns a copy of all recorded Process inputs in call order.
func (a *MockAgent) Calls() []map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	calls := make([]map[string]any, len(a.calls))
	copy(calls, a.calls)
	return calls
}

// LastCall returns the most recent Process input, or nil if none.
func (a *MockAgent) LastCall() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.calls) == 0 {
		return nil
	}
	return a.calls[len(a.calls)-1]
}
