package workflow

import (
	"fmt"
	"sync"
	"time"

	"github.com/deepnoodle-ai/cascade/graph"
	"github.com/google/uuid"
)

// State of a workflow over its lifecycle.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// StepsFunc produces a workflow's steps on demand, deferring materialization
// until the workflow is about to run.
type StepsFunc func() ([]*Step, error)

// Options configures a new workflow.
type Options struct {
	ID          string
	Name        string
	Description string
	Steps       []*Step

	// DefineSteps, if set, is called to materialize the steps lazily.
	// Mutually exclusive with Steps.
	DefineSteps StepsFunc
}

// Workflow is a named collection of steps with dependency edges, plus the
// lifecycle state and execution context the engine threads through a run.
type Workflow struct {
	mu          sync.RWMutex
	id          string
	name        string
	description string
	steps       []*Step
	defineSteps StepsFunc
	state       State
	context     *Context
	createdAt   time.Time
	startedAt   time.Time
	completedAt time.Time
}

// New creates a workflow. Step ids must be unique; a name is required.
func New(opts Options) (*Workflow, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("workflow name is required")
	}
	if opts.Steps != nil && opts.DefineSteps != nil {
		return nil, fmt.Errorf("workflow steps and define steps are mutually exclusive")
	}
	if err := validateUniqueIDs(opts.Steps); err != nil {
		return nil, err
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	return &Workflow{
		id:          id,
		name:        opts.Name,
		description: opts.Description,
		steps:       opts.Steps,
		defineSteps: opts.DefineSteps,
		state:       StatePending,
		context:     NewContext(id),
		createdAt:   time.Now(),
	}, nil
}

func validateUniqueIDs(steps []*Step) error {
	seen := map[string]bool{}
	for _, step := range steps {
		if seen[step.ID()] {
			return fmt.Errorf("duplicate step id: %s", step.ID())
		}
		seen[step.ID()] = true
	}
	return nil
}

func (w *Workflow) ID() string {
	return w.id
}

func (w *Workflow) Name() string {
	return w.name
}

func (w *Workflow) Description() string {
	return w.description
}

func (w *Workflow) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Workflow) CreatedAt() time.Time {
	return w.createdAt
}

// StartedAt is zero until the workflow enters the running state.
func (w *Workflow) StartedAt() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.startedAt
}

// CompletedAt is zero until the workflow reaches a terminal state.
func (w *Workflow) CompletedAt() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.completedAt
}

// Steps returns a copy of the workflow's step list.
func (w *Workflow) Steps() []*Step {
	w.mu.RLock()
	defer w.mu.RUnlock()
	steps := make([]*Step, len(w.steps))
	copy(steps, w.steps)
	return steps
}

// Context is the shared execution context for this workflow.
func (w *Workflow) Context() *Context {
	return w.context
}

// AddStep appends a step, rejecting duplicate ids.
func (w *Workflow) AddStep(step *Step) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, existing := range w.steps {
		if existing.ID() == step.ID() {
			return fmt.Errorf("duplicate step id: %s", step.ID())
		}
	}
	w.steps = append(w.steps, step)
	return nil
}

// GetStep looks up a step by id.
func (w *Workflow) GetStep(id string) (*Step, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, step := range w.steps {
		if step.ID() == id {
			return step, true
		}
	}
	return nil, false
}

// MaterializeSteps invokes the deferred steps hook if the workflow has no
// steps yet. Safe to call more than once.
func (w *Workflow) MaterializeSteps() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.steps) > 0 || w.defineSteps == nil {
		return nil
	}
	steps, err := w.defineSteps()
	if err != nil {
		return fmt.Errorf("failed to define workflow steps: %w", err)
	}
	if err := validateUniqueIDs(steps); err != nil {
		return err
	}
	w.steps = steps
	return nil
}

// SetState transitions the workflow, stamping startedAt on the first move to
// running and completedAt on reaching a terminal state.
func (w *Workflow) SetState(state State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = state
	now := time.Now()
	if state == StateRunning && w.startedAt.IsZero() {
		w.startedAt = now
	}
	if state.Terminal() && w.completedAt.IsZero() {
		w.completedAt = now
	}
}

// Status is a point-in-time snapshot of workflow progress.
type Status struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	State          State      `json:"state"`
	TotalSteps     int        `json:"total_steps"`
	CompletedSteps int        `json:"completed_steps"`
	FailedSteps    int        `json:"failed_steps"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Status reports the workflow's current progress. Completed counts steps
// whose recorded result succeeded; failed counts those whose result did not.
func (w *Workflow) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()

	status := Status{
		ID:         w.id,
		Name:       w.name,
		State:      w.state,
		TotalSteps: len(w.steps),
		CreatedAt:  w.createdAt,
	}
	for _, result := range w.context.StepResults() {
		if result.Success {
			status.CompletedSteps++
		} else {
			status.FailedSteps++
		}
	}
	if !w.startedAt.IsZero() {
		t := w.startedAt
		status.StartedAt = &t
	}
	if !w.completedAt.IsZero() {
		t := w.completedAt
		status.CompletedAt = &t
	}
	return status
}

// ExecutionOrder returns a valid topological ordering of step ids, or an
// error when the dependency graph has a cycle or dangling reference.
func (w *Workflow) ExecutionOrder() ([]string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	nodes := make([]graph.Node, 0, len(w.steps))
	for _, step := range w.steps {
		nodes = append(nodes, step)
	}
	g := graph.New(nodes)
	return g.TopologicalSort()
}
