// Package tasks provides reusable units of work that agents can mount as
// action handlers: data processing, analysis, communication, and decision
// making. Tasks report domain failures through the Result they return;
// errors are reserved for unexpected conditions.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deepnoodle-ai/cascade/slogger"
)

// Status describes where a task execution stands.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Priority orders tasks by importance.
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityNormal   Priority = 2
	PriorityHigh     Priority = 3
	PriorityCritical Priority = 4
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// Result is the outcome of one task execution.
type Result struct {
	Success  bool           `json:"success"`
	Data     any            `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Failed builds a failed Result with a formatted error message.
func Failed(format string, args ...any) *Result {
	return &Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Task is a named unit of work. Execute reports domain failures (bad input,
// validation problems) in the returned Result; the error return is for
// unexpected conditions only.
type Task interface {
	Name() string
	Description() string
	Priority() Priority
	Execute(ctx context.Context, params map[string]any) (*Result, error)
}

// TaskOptions configure the identity shared by all task implementations.
type TaskOptions struct {
	Name        string
	Description string
	Priority    Priority
}

func (o TaskOptions) withDefaults(name, description string) TaskOptions {
	if o.Name == "" {
		o.Name = name
	}
	if o.Description == "" {
		o.Description = description
	}
	if o.Priority == 0 {
		o.Priority = PriorityNormal
	}
	return o
}

// Run executes a task with the scheduler's result discipline: panics and
// errors become failed Results, and timing metadata is stamped onto every
// outcome. The returned Result is never nil.
func Run(ctx context.Context, task Task, params map[string]any) *Result {
	logger := slogger.Ctx(ctx)
	logger.Info("starting task", "task", task.Name())
	start := time.Now()

	result, err := safeExecute(ctx, task, params)
	elapsed := time.Since(start)

	if err != nil {
		result = &Result{Success: false, Error: err.Error()}
	}
	if result == nil {
		result = &Result{Success: false, Error: "task returned no result"}
	}
	if result.Metadata == nil {
		result.Metadata = map[string]any{}
	}
	result.Metadata["task"] = task.Name()
	result.Metadata["execution_time"] = elapsed

	if result.Success {
		logger.Info("task completed", "task", task.Name(), "execution_time", elapsed)
	} else {
		logger.Error("task failed", "task", task.Name(), "error", result.Error)
	}
	return result
}

func safeExecute(ctx context.Context, task Task, params map[string]any) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task.Execute(ctx, params)
}

// Handler adapts a task into an agent action handler. Failed results come
// back as errors so the agent records them in its error log.
func Handler(task Task) func(ctx context.Context, params map[string]any) (map[string]any, error) {
	return func(ctx context.Context, params map[string]any) (map[string]any, error) {
		result := Run(ctx, task, params)
		if !result.Success {
			return nil, errors.New(result.Error)
		}
		return map[string]any{
			"data":     result.Data,
			"metadata": result.Metadata,
		}, nil
	}
}

// toFloat64 coerces the numeric types that reach tasks through generic
// params, including values decoded from YAML or JSON.
func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// stringList accepts []string or []any of strings.
func stringList(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// lengthOf returns the element count for collections and strings, and 1
// for scalar values.
func lengthOf(value any) int {
	switch v := value.(type) {
	case nil:
		return 0
	case string:
		return len(v)
	case []any:
		return len(v)
	case []map[string]any:
		return len(v)
	case []string:
		return len(v)
	case map[string]any:
		return len(v)
	}
	return 1
}
