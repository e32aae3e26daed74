package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/deepnoodle-ai/cascade/workflow"
)

// executeSteps runs every step of the workflow to a success-or-exhausted-
// retries outcome using wave scheduling: each iteration gathers the steps
// whose dependencies have all succeeded, runs them concurrently, joins, and
// applies the outcomes. The shared context is mutated only at the barrier
// between waves, so same-key writes land in a deterministic order.
func (e *Engine) executeSteps(ctx context.Context, wf *workflow.Workflow, recorder *eventRecorder) error {
	wctx := wf.Context()
	remaining := wf.Steps()
	executed := map[string]bool{}

	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		var ready []*workflow.Step
		for _, step := range remaining {
			if dependenciesMet(step, executed) {
				ready = append(ready, step)
			}
		}
		if len(ready) == 0 {
			return diagnoseStall(remaining, executed)
		}

		for _, step := range ready {
			recorder.record(ctx, EventStepStarted, step, nil)
		}

		// Fire the whole wave and join. A failing step never cancels its
		// siblings, and every sibling's result is collected.
		results := make([]*workflow.StepResult, len(ready))
		var wg sync.WaitGroup
		for i, step := range ready {
			wg.Add(1)
			go func(i int, step *workflow.Step) {
				defer wg.Done()
				results[i] = e.runStep(ctx, step, wctx)
			}(i, step)
		}
		wg.Wait()

		// Barrier: record all results first so a fatal failure still leaves
		// the full wave's outcomes available for diagnosis.
		for i, step := range ready {
			wctx.SetStepResult(step.ID(), results[i])
		}

		var fatal error
		for i, step := range ready {
			result := results[i]
			if result.Success {
				e.applyStoredResult(step, result.Result, wctx)
				executed[step.ID()] = true
				remaining = removeStep(remaining, step.ID())
				recorder.record(ctx, EventStepCompleted, step, map[string]any{
					"retry_count": result.RetryCount,
				})
				continue
			}
			if step.RetryCount() < step.MaxRetries() {
				step.IncrementRetryCount()
				e.logger.Warn("step failed, retrying",
					"step_id", step.ID(),
					"attempt", step.RetryCount(),
					"max_retries", step.MaxRetries(),
					"error", result.Error)
				recorder.record(ctx, EventStepRetried, step, map[string]any{
					"attempt": step.RetryCount(),
					"error":   result.Error,
				})
				continue
			}
			e.logger.Error("step failed after retries",
				"step_id", step.ID(),
				"max_retries", step.MaxRetries(),
				"error", result.Error)
			recorder.record(ctx, EventStepFailed, step, map[string]any{
				"retry_count": result.RetryCount,
				"error":       result.Error,
			})
			if fatal == nil {
				fatal = fmt.Errorf("%w: step %q failed after %d retries: %s",
					ErrRetriesExhausted, step.ID(), step.MaxRetries(), result.Error)
			}
		}
		if fatal != nil {
			return fatal
		}
	}
	return nil
}

func dependenciesMet(step *workflow.Step, executed map[string]bool) bool {
	for _, dep := range step.Dependencies() {
		if !executed[dep] {
			return false
		}
	}
	return true
}

func removeStep(steps []*workflow.Step, id string) []*workflow.Step {
	for i, step := range steps {
		if step.ID() == id {
			return append(steps[:i], steps[i+1:]...)
		}
	}
	return steps
}

// diagnoseStall explains an empty ready set: either some step's dependency
// id does not exist anywhere in the workflow, or the remaining steps all
// block each other.
func diagnoseStall(remaining []*workflow.Step, executed map[string]bool) error {
	remainingIDs := map[string]bool{}
	for _, step := range remaining {
		remainingIDs[step.ID()] = true
	}
	var missing []string
	for _, step := range remaining {
		for _, dep := range step.Dependencies() {
			if !executed[dep] && !remainingIDs[dep] {
				missing = append(missing, fmt.Sprintf("step %q depends on missing step %q", step.ID(), dep))
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingDependency, strings.Join(missing, "; "))
	}
	return ErrCircularDependency
}

// runStep executes one step attempt and always returns a StepResult. Errors
// and panics from the executor become failed results, never a crash of the
// scheduler. The result carries the retry count the attempt ran with.
func (e *Engine) runStep(ctx context.Context, step *workflow.Step, wctx *workflow.Context) *workflow.StepResult {
	e.logger.Info("executing step", "step_id", step.ID(), "step_name", step.Name())
	start := time.Now()
	output, err := e.runStepBounded(ctx, step, wctx)
	elapsed := time.Since(start)

	if err != nil {
		return &workflow.StepResult{
			StepID:        step.ID(),
			Success:       false,
			Error:         err.Error(),
			ExecutionTime: elapsed,
			Timestamp:     time.Now(),
			RetryCount:    step.RetryCount(),
		}
	}
	return &workflow.StepResult{
		StepID:        step.ID(),
		Success:       true,
		Result:        output,
		ExecutionTime: elapsed,
		Timestamp:     time.Now(),
		RetryCount:    step.RetryCount(),
	}
}

// runStepBounded resolves the step's executor and enforces its timeout.
// Every attempt gets the full configured timeout; a timed-out attempt is
// abandoned and reported as a failure.
func (e *Engine) runStepBounded(ctx context.Context, step *workflow.Step, wctx *workflow.Context) (any, error) {
	executor, ok := e.getStepExecutor(step.Kind())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStepKind, step.Kind())
	}
	if step.Timeout() <= 0 {
		return invokeExecutor(ctx, executor, step, wctx)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, step.Timeout())
	defer cancel()

	type outcome struct {
		output any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		output, err := invokeExecutor(timeoutCtx, executor, step, wctx)
		done <- outcome{output: output, err: err}
	}()

	select {
	case result := <-done:
		return result.output, result.err
	case <-timeoutCtx.Done():
		if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: step %q exceeded %s", ErrStepTimeout, step.ID(), step.Timeout())
		}
		return nil, timeoutCtx.Err()
	}
}

// invokeExecutor calls the executor, converting a panic into an error so a
// misbehaving executor cannot take down the scheduler.
func invokeExecutor(ctx context.Context, executor StepExecutor, step *workflow.Step, wctx *workflow.Context) (output any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step executor panicked: %v", r)
		}
	}()
	return executor.Execute(ctx, step, wctx)
}

// applyStoredResult writes a successful step's output into the shared data
// bag when the step's config names a storage key.
func (e *Engine) applyStoredResult(step *workflow.Step, output any, wctx *workflow.Context) {
	if key, ok := step.Config()["store_result_as"].(string); ok && key != "" {
		wctx.SetData(key, output)
	}
}
