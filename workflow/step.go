package workflow

import (
	"fmt"
	"time"

	"github.com/deepnoodle-ai/cascade/graph"
	"github.com/google/uuid"
)

// Kind determines which executor runs a step.
type Kind string

const (
	KindAgentTask   Kind = "agent_task"
	KindParallel    Kind = "parallel"
	KindSequential  Kind = "sequential"
	KindConditional Kind = "conditional"
	KindDelay       Kind = "delay"
	KindCustom      Kind = "custom"
)

// Kinds lists the built-in step kinds accepted in step definitions.
var Kinds = []Kind{
	KindAgentTask,
	KindParallel,
	KindSequential,
	KindConditional,
	KindDelay,
	KindCustom,
}

// DefaultMaxRetries is the retry ceiling applied to steps that don't set one.
const DefaultMaxRetries = 3

// Step is a single node in a workflow graph. A step may run only after
// every step named in its dependencies has succeeded.
type Step struct {
	id           string
	name         string
	kind         Kind
	config       map[string]any
	dependencies []string
	agentName    string
	condition    Condition
	timeout      time.Duration
	retryCount   int
	maxRetries   int
}

var _ graph.Node = &Step{}

// StepOptions configures a new workflow step.
type StepOptions struct {
	ID           string
	Name         string
	Kind         Kind
	Config       map[string]any
	Dependencies []string
	AgentName    string
	Condition    Condition
	Timeout      time.Duration

	// MaxRetries overrides the default retry ceiling when set. A pointer is
	// used so an explicit zero is distinguishable from unset.
	MaxRetries *int
}

// NewStep creates a Step, generating an id and applying the default retry
// ceiling when those are unset.
func NewStep(opts StepOptions) *Step {
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	config := opts.Config
	if config == nil {
		config = map[string]any{}
	}
	maxRetries := DefaultMaxRetries
	if opts.MaxRetries != nil {
		maxRetries = *opts.MaxRetries
	}
	return &Step{
		id:           id,
		name:         opts.Name,
		kind:         opts.Kind,
		config:       config,
		dependencies: opts.Dependencies,
		agentName:    opts.AgentName,
		condition:    opts.Condition,
		timeout:      opts.Timeout,
		maxRetries:   maxRetries,
	}
}

// ID of the step, unique within its workflow.
func (s *Step) ID() string {
	return s.id
}

// Name is a human label with no uniqueness constraint.
func (s *Step) Name() string {
	return s.name
}

func (s *Step) Kind() Kind {
	return s.kind
}

// Config is the opaque key-value bag interpreted per kind.
func (s *Step) Config() map[string]any {
	return s.config
}

// Dependencies returns the ids of steps that must succeed before this one runs.
func (s *Step) Dependencies() []string {
	return s.dependencies
}

func (s *Step) AgentName() string {
	return s.agentName
}

func (s *Step) Condition() Condition {
	return s.condition
}

// SetCondition attaches the condition evaluated by conditional steps.
// Conditions are functions and cannot travel through serialized step
// definitions, so they are attached after construction.
func (s *Step) SetCondition(condition Condition) {
	s.condition = condition
}

// Timeout bounds one execution attempt. Zero means unbounded.
func (s *Step) Timeout() time.Duration {
	return s.timeout
}

// RetryCount is the number of retries consumed so far.
func (s *Step) RetryCount() int {
	return s.retryCount
}

func (s *Step) MaxRetries() int {
	return s.maxRetries
}

// IncrementRetryCount consumes one retry attempt.
func (s *Step) IncrementRetryCount() {
	s.retryCount++
}

// NewStepFromDefinition materializes a Step from a generic definition map,
// the wire-level form produced by builders and configuration files. Keys:
// id, name, step_type, config, dependencies, agent_name, timeout (seconds),
// max_retries.
func NewStepFromDefinition(def map[string]any) (*Step, error) {
	name, ok := def["name"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("step definition missing name")
	}
	kindValue, ok := def["step_type"].(string)
	if !ok || kindValue == "" {
		return nil, fmt.Errorf("step definition %q missing step_type", name)
	}
	kind := Kind(kindValue)
	if !validKind(kind) {
		return nil, fmt.Errorf("unknown step type: %s", kindValue)
	}

	opts := StepOptions{
		Name: name,
		Kind: kind,
	}
	if id, ok := def["id"].(string); ok {
		opts.ID = id
	}
	if config, ok := def["config"].(map[string]any); ok {
		opts.Config = config
	}
	if agentName, ok := def["agent_name"].(string); ok {
		opts.AgentName = agentName
	}
	deps, err := stringSlice(def["dependencies"])
	if err != nil {
		return nil, fmt.Errorf("step definition %q: invalid dependencies: %w", name, err)
	}
	opts.Dependencies = deps

	if raw, exists := def["timeout"]; exists && raw != nil {
		timeout, err := durationValue(raw)
		if err != nil {
			return nil, fmt.Errorf("step definition %q: invalid timeout: %w", name, err)
		}
		opts.Timeout = timeout
	}
	if raw, exists := def["max_retries"]; exists && raw != nil {
		n, err := intValue(raw)
		if err != nil {
			return nil, fmt.Errorf("step definition %q: invalid max_retries: %w", name, err)
		}
		opts.MaxRetries = &n
	}
	return NewStep(opts), nil
}

func validKind(kind Kind) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func stringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", value)
	}
}

// durationValue accepts a float or integer number of seconds, a
// time.Duration, or a duration string like "1m30s".
func durationValue(value any) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case uint64:
		return time.Duration(v) * time.Second, nil
	case string:
		return time.ParseDuration(v)
	default:
		return 0, fmt.Errorf("expected seconds or duration string, got %T", value)
	}
}

func intValue(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", value)
	}
}
