package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/deepnoodle-ai/cascade"
	"github.com/deepnoodle-ai/cascade/slogger"
	"github.com/deepnoodle-ai/cascade/workflow"
)

// Engine executes workflows. It owns the agent registry, the step executor
// registry, and the bookkeeping of active and completed workflows. All
// registries are instance state, so multiple engines are fully independent.
type Engine struct {
	mu                 sync.RWMutex
	agents             map[string]cascade.Agent
	activeWorkflows    map[string]*workflow.Workflow
	completedWorkflows []*workflow.Workflow
	stepExecutors      map[workflow.Kind]StepExecutor
	logger             slogger.Logger
	events             EventStore
}

// Options are used to configure an Engine.
type Options struct {
	Agents     []cascade.Agent
	Logger     slogger.Logger
	EventStore EventStore
}

// New returns an Engine with the default step executors installed.
func New(opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = slogger.DefaultLogger
	}
	if opts.EventStore == nil {
		opts.EventStore = NewNullEventStore()
	}

	agents := make(map[string]cascade.Agent, len(opts.Agents))
	for _, agent := range opts.Agents {
		if _, exists := agents[agent.Name()]; exists {
			return nil, fmt.Errorf("agent already registered: %s", agent.Name())
		}
		agents[agent.Name()] = agent
	}

	e := &Engine{
		agents:          agents,
		activeWorkflows: map[string]*workflow.Workflow{},
		stepExecutors:   map[workflow.Kind]StepExecutor{},
		logger:          opts.Logger,
		events:          opts.EventStore,
	}
	e.registerDefaultExecutors()
	return e, nil
}

// RegisterAgent adds an agent to the registry.
func (e *Engine) RegisterAgent(agent cascade.Agent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.agents[agent.Name()]; exists {
		return fmt.Errorf("agent already registered: %s", agent.Name())
	}
	e.agents[agent.Name()] = agent
	e.logger.Info("registered agent", "agent_name", agent.Name())
	return nil
}

// UnregisterAgent removes an agent from the registry.
func (e *Engine) UnregisterAgent(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.agents[name]; !exists {
		return fmt.Errorf("agent not found: %s", name)
	}
	delete(e.agents, name)
	e.logger.Info("unregistered agent", "agent_name", name)
	return nil
}

// GetAgent returns the registered agent with the given name.
func (e *Engine) GetAgent(name string) (cascade.Agent, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if agent, exists := e.agents[name]; exists {
		return agent, nil
	}
	return nil, fmt.Errorf("agent not found: %s", name)
}

// Agents returns all registered agents.
func (e *Engine) Agents() []cascade.Agent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	agents := make([]cascade.Agent, 0, len(e.agents))
	for _, agent := range e.agents {
		agents = append(agents, agent)
	}
	return agents
}

// RegisterStepExecutor installs the executor for a step kind, replacing any
// existing one.
func (e *Engine) RegisterStepExecutor(kind workflow.Kind, executor StepExecutor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stepExecutors[kind] = executor
	e.logger.Info("registered step executor", "step_kind", kind)
}

func (e *Engine) getStepExecutor(kind workflow.Kind) (StepExecutor, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	executor, ok := e.stepExecutors[kind]
	return executor, ok
}

// ExecuteWorkflow runs a workflow to completion and returns its final
// context. On a fatal error the workflow is left in the failed state and the
// partially populated context is returned alongside the error. The workflow
// moves from active to completed bookkeeping regardless of outcome.
func (e *Engine) ExecuteWorkflow(ctx context.Context, wf *workflow.Workflow) (*workflow.Context, error) {
	wf.SetState(workflow.StateRunning)

	e.mu.Lock()
	e.activeWorkflows[wf.ID()] = wf
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		if _, ok := e.activeWorkflows[wf.ID()]; ok {
			delete(e.activeWorkflows, wf.ID())
			e.completedWorkflows = append(e.completedWorkflows, wf)
		}
		e.mu.Unlock()
	}()

	e.logger.Info("starting workflow execution",
		"workflow_name", wf.Name(), "workflow_id", wf.ID())

	recorder := newEventRecorder(e.events, e.logger, wf.ID())
	recorder.record(ctx, EventWorkflowStarted, nil, map[string]any{
		"workflow_name": wf.Name(),
	})

	if err := wf.MaterializeSteps(); err != nil {
		return e.failWorkflow(ctx, wf, recorder, err)
	}
	if err := e.executeSteps(ctx, wf, recorder); err != nil {
		return e.failWorkflow(ctx, wf, recorder, err)
	}

	wf.SetState(workflow.StateCompleted)
	e.logger.Info("workflow completed successfully", "workflow_name", wf.Name())
	recorder.record(ctx, EventWorkflowCompleted, nil, nil)
	return wf.Context(), nil
}

func (e *Engine) failWorkflow(ctx context.Context, wf *workflow.Workflow, recorder *eventRecorder, err error) (*workflow.Context, error) {
	wf.SetState(workflow.StateFailed)
	e.logger.Error("workflow failed", "workflow_name", wf.Name(), "error", err)
	recorder.record(ctx, EventWorkflowFailed, nil, map[string]any{
		"error": err.Error(),
	})
	return wf.Context(), err
}

// ExecuteWorkflowAsync starts the workflow in the background and returns a
// promise that resolves with the final context.
func (e *Engine) ExecuteWorkflowAsync(ctx context.Context, wf *workflow.Workflow) *cascade.Promise[*workflow.Context] {
	promise := cascade.NewPromise[*workflow.Context]()
	go func() {
		promise.Set(e.ExecuteWorkflow(ctx, wf))
	}()
	return promise
}

// GetWorkflowStatus returns the status snapshot for a workflow by id,
// searching active workflows first, then the completed history.
func (e *Engine) GetWorkflowStatus(workflowID string) (workflow.Status, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if wf, ok := e.activeWorkflows[workflowID]; ok {
		return wf.Status(), true
	}
	for _, wf := range e.completedWorkflows {
		if wf.ID() == workflowID {
			return wf.Status(), true
		}
	}
	return workflow.Status{}, false
}

// ListWorkflows returns status snapshots for all known workflows, grouped
// under "active" and "completed".
func (e *Engine) ListWorkflows() map[string][]workflow.Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	active := make([]workflow.Status, 0, len(e.activeWorkflows))
	for _, wf := range e.activeWorkflows {
		active = append(active, wf.Status())
	}
	completed := make([]workflow.Status, 0, len(e.completedWorkflows))
	for _, wf := range e.completedWorkflows {
		completed = append(completed, wf.Status())
	}
	return map[string][]workflow.Status{
		"active":    active,
		"completed": completed,
	}
}
