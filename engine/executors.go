package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deepnoodle-ai/cascade/workflow"
)

// StepExecutor runs a single attempt of one step kind. Failures are
// reported via the returned error and become a failed StepResult, subject
// to the step's retry policy.
type StepExecutor interface {
	Execute(ctx context.Context, step *workflow.Step, wctx *workflow.Context) (any, error)
}

// StepExecutorFunc adapts a function to the StepExecutor interface.
type StepExecutorFunc func(ctx context.Context, step *workflow.Step, wctx *workflow.Context) (any, error)

func (f StepExecutorFunc) Execute(ctx context.Context, step *workflow.Step, wctx *workflow.Context) (any, error) {
	return f(ctx, step, wctx)
}

var _ StepExecutor = StepExecutorFunc(nil)

// registerDefaultExecutors installs the built-in executors. The custom kind
// has no default; callers register their own via RegisterStepExecutor.
func (e *Engine) registerDefaultExecutors() {
	e.stepExecutors[workflow.KindAgentTask] = StepExecutorFunc(e.executeAgentTask)
	e.stepExecutors[workflow.KindParallel] = StepExecutorFunc(e.executeParallel)
	e.stepExecutors[workflow.KindSequential] = StepExecutorFunc(e.executeSequential)
	e.stepExecutors[workflow.KindConditional] = StepExecutorFunc(e.executeConditional)
	e.stepExecutors[workflow.KindDelay] = StepExecutorFunc(e.executeDelay)
}

// executeAgentTask resolves the step's agent and hands it the step config
// merged with the current context data. Context values are applied on top,
// so data written by upstream steps overrides same-named config keys.
func (e *Engine) executeAgentTask(ctx context.Context, step *workflow.Step, wctx *workflow.Context) (any, error) {
	agentName := step.AgentName()
	if agentName == "" {
		if name, ok := step.Config()["agent_name"].(string); ok {
			agentName = name
		}
	}
	if agentName == "" {
		return nil, fmt.Errorf("agent task step %q missing agent name", step.ID())
	}
	agent, err := e.GetAgent(agentName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, agentName)
	}

	input := make(map[string]any, len(step.Config()))
	for k, v := range step.Config() {
		input[k] = v
	}
	for k, v := range wctx.Data() {
		input[k] = v
	}

	output, err := agent.Process(ctx, input)
	if err != nil {
		return nil, err
	}
	return output, nil
}

// executeDelay pauses for the configured number of seconds (default 1.0)
// without blocking sibling steps in the same wave.
func (e *Engine) executeDelay(ctx context.Context, step *workflow.Step, wctx *workflow.Context) (any, error) {
	seconds := 1.0
	if raw, ok := step.Config()["seconds"]; ok {
		switch v := raw.(type) {
		case float64:
			seconds = v
		case int:
			seconds = float64(v)
		case int64:
			seconds = float64(v)
		case uint64:
			seconds = float64(v)
		}
	}
	select {
	case <-time.After(time.Duration(seconds * float64(time.Second))):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return map[string]any{"delayed": seconds}, nil
}

// executeParallel materializes the sub-steps embedded in the step config
// and runs them all concurrently, a nested fan-out independent of the outer
// wave. Returns the successful sub-results in definition order; failed
// sub-steps are omitted and do not fail the outer step.
func (e *Engine) executeParallel(ctx context.Context, step *workflow.Step, wctx *workflow.Context) (any, error) {
	subSteps, err := materializeSubSteps(step)
	if err != nil {
		return nil, err
	}

	results := make([]*workflow.StepResult, len(subSteps))
	var wg sync.WaitGroup
	for i, subStep := range subSteps {
		wg.Add(1)
		go func(i int, subStep *workflow.Step) {
			defer wg.Done()
			results[i] = e.runStep(ctx, subStep, wctx)
		}(i, subStep)
	}
	wg.Wait()

	// Stored results are applied after the join, in definition order, so
	// same-key writes land deterministically.
	successful := make([]any, 0, len(results))
	for i, result := range results {
		if result.Success {
			e.applyStoredResult(subSteps[i], result.Result, wctx)
			successful = append(successful, result.Result)
		}
	}
	return successful, nil
}

// executeSequential runs the embedded sub-steps one after another, each
// finishing before the next starts. A failed sub-step contributes a nil
// placeholder and the sequence continues.
func (e *Engine) executeSequential(ctx context.Context, step *workflow.Step, wctx *workflow.Context) (any, error) {
	subSteps, err := materializeSubSteps(step)
	if err != nil {
		return nil, err
	}

	results := make([]any, 0, len(subSteps))
	for _, subStep := range subSteps {
		result := e.runStep(ctx, subStep, wctx)
		if result.Success {
			e.applyStoredResult(subStep, result.Result, wctx)
			results = append(results, result.Result)
		} else {
			results = append(results, nil)
		}
	}
	return results, nil
}

// executeConditional evaluates the step's condition against the context and
// runs exactly one branch. A branch with no configured sub-step yields nil.
func (e *Engine) executeConditional(ctx context.Context, step *workflow.Step, wctx *workflow.Context) (any, error) {
	condition := step.Condition()
	if condition == nil {
		return nil, fmt.Errorf("conditional step %q missing condition", step.ID())
	}
	outcome, err := condition.Evaluate(ctx, wctx)
	if err != nil {
		return nil, fmt.Errorf("condition evaluation failed: %w", err)
	}

	branchKey := "if"
	if !outcome {
		branchKey = "else"
	}
	branchDef, ok := step.Config()[branchKey].(map[string]any)
	if !ok {
		return nil, nil
	}
	branchStep, err := workflow.NewStepFromDefinition(branchDef)
	if err != nil {
		return nil, err
	}

	result := e.runStep(ctx, branchStep, wctx)
	if result.Success {
		e.applyStoredResult(branchStep, result.Result, wctx)
	}
	return result.Result, nil
}

// materializeSubSteps builds Steps from the definitions embedded in a
// parallel or sequential step's config under the "steps" key.
func materializeSubSteps(step *workflow.Step) ([]*workflow.Step, error) {
	raw, ok := step.Config()["steps"]
	if !ok || raw == nil {
		return nil, nil
	}

	var defs []map[string]any
	switch v := raw.(type) {
	case []map[string]any:
		defs = v
	case []any:
		for _, item := range v {
			def, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("step %q: sub-step definition must be a mapping, got %T", step.ID(), item)
			}
			defs = append(defs, def)
		}
	default:
		return nil, fmt.Errorf("step %q: steps config must be a list, got %T", step.ID(), raw)
	}

	subSteps := make([]*workflow.Step, 0, len(defs))
	for _, def := range defs {
		subStep, err := workflow.NewStepFromDefinition(def)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", step.ID(), err)
		}
		subSteps = append(subSteps, subStep)
	}
	return subSteps, nil
}
