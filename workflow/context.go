package workflow

import (
	"sync"
	"time"
)

// StepResult records the outcome of one step execution attempt.
type StepResult struct {
	StepID        string        `json:"step_id"`
	Success       bool          `json:"success"`
	Result        any           `json:"result,omitempty"`
	Error         string        `json:"error,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`
	Timestamp     time.Time     `json:"timestamp"`
	RetryCount    int           `json:"retry_count"`
}

// Context carries shared state through a workflow execution: the mutable
// data bag steps read and write, the per-step results, and read-only global
// configuration. All methods are safe for concurrent use, though the engine
// serializes data writes at wave barriers so that same-key writes land in a
// deterministic order.
type Context struct {
	mu           sync.RWMutex
	workflowID   string
	data         map[string]any
	stepResults  map[string]*StepResult
	globalConfig map[string]any
}

// NewContext creates an empty execution context for the given workflow.
func NewContext(workflowID string) *Context {
	return &Context{
		workflowID:   workflowID,
		data:         map[string]any{},
		stepResults:  map[string]*StepResult{},
		globalConfig: map[string]any{},
	}
}

func (c *Context) WorkflowID() string {
	return c.workflowID
}

// GetData returns the value stored under key and whether it was present.
func (c *Context) GetData(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.data[key]
	return value, ok
}

// Data returns a shallow copy of the data bag.
func (c *Context) Data() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}

func (c *Context) SetData(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

// UpdateData merges the given values into the data bag.
func (c *Context) UpdateData(values map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range values {
		c.data[k] = v
	}
}

// GetStepResult returns the recorded result for a step id, if any.
func (c *Context) GetStepResult(stepID string) (*StepResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.stepResults[stepID]
	return result, ok
}

// SetStepResult records the result for a step. A later attempt overwrites
// the result of an earlier one.
func (c *Context) SetStepResult(stepID string, result *StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stepResults[stepID] = result
}

// StepResults returns a shallow copy of all recorded step results.
func (c *Context) StepResults() map[string]*StepResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*StepResult, len(c.stepResults))
	for k, v := range c.stepResults {
		out[k] = v
	}
	return out
}

// GlobalConfig returns a shallow copy of the workflow-wide configuration.
func (c *Context) GlobalConfig() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.globalConfig))
	for k, v := range c.globalConfig {
		out[k] = v
	}
	return out
}

func (c *Context) SetGlobalConfig(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.globalConfig[key] = value
}
