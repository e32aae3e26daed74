package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/deepnoodle-ai/cascade"
	"github.com/deepnoodle-ai/cascade/internal/mocks"
	"github.com/deepnoodle-ai/cascade/workflow"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, agents ...cascade.Agent) *Engine {
	t.Helper()
	e, err := New(Options{Agents: agents})
	require.NoError(t, err)
	return e
}

func agentStep(id, agentName string, deps ...string) *workflow.Step {
	return workflow.NewStep(workflow.StepOptions{
		ID:           id,
		Name:         id,
		Kind:         workflow.KindAgentTask,
		AgentName:    agentName,
		Dependencies: deps,
	})
}

func TestExecuteWorkflowAllStepsSucceed(t *testing.T) {
	agent := mocks.NewMockAgent(mocks.MockAgentOptions{Name: "worker"})
	e := newTestEngine(t, agent)

	wf, err := workflow.New(workflow.Options{
		Name: "All Succeed",
		Steps: []*workflow.Step{
			agentStep("a", "worker"),
			agentStep("b", "worker", "a"),
			agentStep("c", "worker", "a"),
			agentStep("d", "worker", "b", "c"),
		},
	})
	require.NoError(t, err)

	wctx, err := e.ExecuteWorkflow(context.Background(), wf)
	require.NoError(t, err)
	require.Equal(t, workflow.StateCompleted, wf.State())

	results := wctx.StepResults()
	require.Len(t, results, 4)
	for _, id := range []string{"a", "b", "c", "d"} {
		result, ok := wctx.GetStepResult(id)
		require.True(t, ok, "missing result for step %s", id)
		require.True(t, result.Success)
		require.Equal(t, 0, result.RetryCount)
	}
	require.Equal(t, 4, agent.CallCount())
	require.False(t, wf.StartedAt().IsZero())
	require.False(t, wf.CompletedAt().IsZero())
}

func TestExecuteWorkflowDependencyOrdering(t *testing.T) {
	var mu sync.Mutex
	var order []string
	agent := mocks.NewMockAgent(mocks.MockAgentOptions{
		Name: "worker",
		ProcessFunc: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			mu.Lock()
			order = append(order, input["label"].(string))
			mu.Unlock()
			return map[string]any{"ok": true}, nil
		},
	})
	e := newTestEngine(t, agent)

	labeled := func(id string, deps ...string) *workflow.Step {
		return workflow.NewStep(workflow.StepOptions{
			ID:           id,
			Name:         id,
			Kind:         workflow.KindAgentTask,
			AgentName:    "worker",
			Config:       map[string]any{"label": id},
			Dependencies: deps,
		})
	}

	wf, err := workflow.New(workflow.Options{
		Name: "Diamond",
		Steps: []*workflow.Step{
			labeled("fetch"),
			labeled("clean", "fetch"),
			labeled("enrich", "fetch"),
			labeled("report", "clean", "enrich"),
		},
	})
	require.NoError(t, err)

	_, err = e.ExecuteWorkflow(context.Background(), wf)
	require.NoError(t, err)

	position := map[string]int{}
	for i, label := range order {
		position[label] = i
	}
	require.Less(t, position["fetch"], position["clean"])
	require.Less(t, position["fetch"], position["enrich"])
	require.Less(t, position["clean"], position["report"])
	require.Less(t, position["enrich"], position["report"])
}

func TestExecuteWorkflowMissingDependency(t *testing.T) {
	agent := mocks.NewMockAgent(mocks.MockAgentOptions{Name: "worker"})
	e := newTestEngine(t, agent)

	wf, err := workflow.New(workflow.Options{
		Name: "Dangling",
		Steps: []*workflow.Step{
			agentStep("a", "worker"),
			agentStep("b", "worker", "ghost"),
		},
	})
	require.NoError(t, err)

	_, err = e.ExecuteWorkflow(context.Background(), wf)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrMissingDependency)
	require.Contains(t, err.Error(), `step "b" depends on missing step "ghost"`)
	require.Equal(t, workflow.StateFailed, wf.State())

	// The independent step still ran in the first wave.
	result, ok := wf.Context().GetStepResult("a")
	require.True(t, ok)
	require.True(t, result.Success)
}

func TestExecuteWorkflowCircularDependency(t *testing.T) {
	agent := mocks.NewMockAgent(mocks.MockAgentOptions{Name: "worker"})
	e := newTestEngine(t, agent)

	wf, err := workflow.New(workflow.Options{
		Name: "Cycle",
		Steps: []*workflow.Step{
			agentStep("a", "worker", "b"),
			agentStep("b", "worker", "a"),
		},
	})
	require.NoError(t, err)

	_, err = e.ExecuteWorkflow(context.Background(), wf)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCircularDependency)
	require.Equal(t, workflow.StateFailed, wf.State())
	require.Equal(t, 0, agent.CallCount())
}

func TestExecuteWorkflowSelfDependency(t *testing.T) {
	agent := mocks.NewMockAgent(mocks.MockAgentOptions{Name: "worker"})
	e := newTestEngine(t, agent)

	wf, err := workflow.New(workflow.Options{
		Name: "Selfish",
		Steps: []*workflow.Step{
			agentStep("a", "worker", "a"),
		},
	})
	require.NoError(t, err)

	_, err = e.ExecuteWorkflow(context.Background(), wf)
	require.ErrorIs(t, err, ErrCircularDependency)
}

func TestExecuteWorkflowRetriesExhausted(t *testing.T) {
	agent := mocks.NewMockAgent(mocks.MockAgentOptions{
		Name: "flaky",
		Err:  fmt.Errorf("always broken"),
	})
	e := newTestEngine(t, agent)

	step := workflow.NewStep(workflow.StepOptions{
		ID:         "doomed",
		Name:       "Doomed",
		Kind:       workflow.KindAgentTask,
		AgentName:  "flaky",
		MaxRetries: cascade.Ptr(2),
	})
	wf, err := workflow.New(workflow.Options{Name: "Exhausted", Steps: []*workflow.Step{step}})
	require.NoError(t, err)

	_, err = e.ExecuteWorkflow(context.Background(), wf)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.Contains(t, err.Error(), "always broken")
	require.Equal(t, workflow.StateFailed, wf.State())

	// max_retries + 1 attempts total; the final recorded attempt carries
	// retry_count equal to the ceiling.
	require.Equal(t, 3, agent.CallCount())
	result, ok := wf.Context().GetStepResult("doomed")
	require.True(t, ok)
	require.False(t, result.Success)
	require.Equal(t, 2, result.RetryCount)
	require.Contains(t, result.Error, "always broken")
}

func TestExecuteWorkflowRetryEventualSuccess(t *testing.T) {
	agent := mocks.NewMockAgent(mocks.MockAgentOptions{
		Name:                  "flaky",
		FailuresBeforeSuccess: 2,
		Response:              map[string]any{"answer": 42},
	})
	e := newTestEngine(t, agent)

	wf, err := workflow.New(workflow.Options{
		Name:  "Third Time Lucky",
		Steps: []*workflow.Step{agentStep("flaky-step", "flaky")},
	})
	require.NoError(t, err)

	_, err = e.ExecuteWorkflow(context.Background(), wf)
	require.NoError(t, err)
	require.Equal(t, workflow.StateCompleted, wf.State())
	require.Equal(t, 3, agent.CallCount())

	result, ok := wf.Context().GetStepResult("flaky-step")
	require.True(t, ok)
	require.True(t, result.Success)
	require.Equal(t, 2, result.RetryCount)
	require.Equal(t, map[string]any{"answer": 42}, result.Result)
}

func TestExecuteWorkflowFailureDoesNotCancelSiblings(t *testing.T) {
	good := mocks.NewMockAgent(mocks.MockAgentOptions{Name: "good"})
	bad := mocks.NewMockAgent(mocks.MockAgentOptions{Name: "bad", Err: fmt.Errorf("boom")})
	e := newTestEngine(t, good, bad)

	badStep := workflow.NewStep(workflow.StepOptions{
		ID:         "bad-step",
		Name:       "Bad",
		Kind:       workflow.KindAgentTask,
		AgentName:  "bad",
		MaxRetries: cascade.Ptr(0),
	})
	wf, err := workflow.New(workflow.Options{
		Name: "Mixed Wave",
		Steps: []*workflow.Step{
			agentStep("good-step", "good"),
			badStep,
		},
	})
	require.NoError(t, err)

	_, err = e.ExecuteWorkflow(context.Background(), wf)
	require.ErrorIs(t, err, ErrRetriesExhausted)

	// The sibling finished and its result was recorded before the abort.
	result, ok := wf.Context().GetStepResult("good-step")
	require.True(t, ok)
	require.True(t, result.Success)
	require.Equal(t, 1, good.CallCount())
}

func TestExecuteWorkflowSameWaveContextWrites(t *testing.T) {
	first := mocks.NewMockAgent(mocks.MockAgentOptions{
		Name:     "first",
		Response: map[string]any{"from": "first"},
	})
	second := mocks.NewMockAgent(mocks.MockAgentOptions{
		Name:     "second",
		Response: map[string]any{"from": "second"},
	})
	e := newTestEngine(t, first, second)

	storingStep := func(id, agentName, key string) *workflow.Step {
		return workflow.NewStep(workflow.StepOptions{
			ID:        id,
			Name:      id,
			Kind:      workflow.KindAgentTask,
			AgentName: agentName,
			Config:    map[string]any{"store_result_as": key},
		})
	}

	wf, err := workflow.New(workflow.Options{
		Name: "Shared Keys",
		Steps: []*workflow.Step{
			storingStep("one", "first", "alpha"),
			storingStep("two", "second", "beta"),
			storingStep("three", "first", "shared"),
			storingStep("four", "second", "shared"),
		},
	})
	require.NoError(t, err)

	wctx, err := e.ExecuteWorkflow(context.Background(), wf)
	require.NoError(t, err)

	// Distinct keys both persist.
	alpha, ok := wctx.GetData("alpha")
	require.True(t, ok)
	require.Equal(t, map[string]any{"from": "first"}, alpha)
	beta, ok := wctx.GetData("beta")
	require.True(t, ok)
	require.Equal(t, map[string]any{"from": "second"}, beta)

	// Same-key writes resolve in wave order: the step that appears later in
	// the ready list wins, not an arbitrary race winner.
	shared, ok := wctx.GetData("shared")
	require.True(t, ok)
	require.Equal(t, map[string]any{"from": "second"}, shared)
}

func TestExecuteWorkflowDelayDuration(t *testing.T) {
	e := newTestEngine(t)

	wf, err := workflow.New(workflow.Options{
		Name: "Pause",
		Steps: []*workflow.Step{
			workflow.NewStep(workflow.StepOptions{
				ID:     "pause",
				Name:   "Pause",
				Kind:   workflow.KindDelay,
				Config: map[string]any{"seconds": 0.5},
			}),
		},
	})
	require.NoError(t, err)

	start := time.Now()
	wctx, err := e.ExecuteWorkflow(context.Background(), wf)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)

	result, ok := wctx.GetStepResult("pause")
	require.True(t, ok)
	require.True(t, result.Success)
	require.Equal(t, map[string]any{"delayed": 0.5}, result.Result)
	require.GreaterOrEqual(t, result.ExecutionTime, 500*time.Millisecond)
}

func TestExecuteWorkflowStepTimeout(t *testing.T) {
	slow := mocks.NewMockAgent(mocks.MockAgentOptions{
		Name: "slow",
		ProcessFunc: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			select {
			case <-time.After(5 * time.Second):
				return map[string]any{}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})
	e := newTestEngine(t, slow)

	step := workflow.NewStep(workflow.StepOptions{
		ID:         "sluggish",
		Name:       "Sluggish",
		Kind:       workflow.KindAgentTask,
		AgentName:  "slow",
		Timeout:    50 * time.Millisecond,
		MaxRetries: cascade.Ptr(0),
	})
	wf, err := workflow.New(workflow.Options{Name: "Timed", Steps: []*workflow.Step{step}})
	require.NoError(t, err)

	start := time.Now()
	_, err = e.ExecuteWorkflow(context.Background(), wf)
	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.Contains(t, err.Error(), "step timed out")
	require.Less(t, time.Since(start), 2*time.Second)

	result, ok := wf.Context().GetStepResult("sluggish")
	require.True(t, ok)
	require.False(t, result.Success)
	require.Contains(t, result.Error, "step timed out")
}

func TestExecuteWorkflowTimeoutRetriesGetFreshBudget(t *testing.T) {
	// Fails fast twice, then succeeds within the timeout. Each attempt gets
	// the full timeout, so the third attempt is not squeezed by the first two.
	agent := mocks.NewMockAgent(mocks.MockAgentOptions{
		Name:                  "warming-up",
		FailuresBeforeSuccess: 2,
		Response:              map[string]any{"ready": true},
	})
	e := newTestEngine(t, agent)

	step := workflow.NewStep(workflow.StepOptions{
		ID:        "warmup",
		Name:      "Warmup",
		Kind:      workflow.KindAgentTask,
		AgentName: "warming-up",
		Timeout:   time.Second,
	})
	wf, err := workflow.New(workflow.Options{Name: "Budget", Steps: []*workflow.Step{step}})
	require.NoError(t, err)

	_, err = e.ExecuteWorkflow(context.Background(), wf)
	require.NoError(t, err)
	result, ok := wf.Context().GetStepResult("warmup")
	require.True(t, ok)
	require.True(t, result.Success)
	require.Equal(t, 2, result.RetryCount)
}

func TestExecuteWorkflowUnknownStepKind(t *testing.T) {
	e := newTestEngine(t)

	step := workflow.NewStep(workflow.StepOptions{
		ID:         "mystery",
		Name:       "Mystery",
		Kind:       workflow.KindCustom,
		MaxRetries: cascade.Ptr(0),
	})
	wf, err := workflow.New(workflow.Options{Name: "No Executor", Steps: []*workflow.Step{step}})
	require.NoError(t, err)

	_, err = e.ExecuteWorkflow(context.Background(), wf)
	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.Contains(t, err.Error(), "unknown step kind")
	require.Equal(t, workflow.StateFailed, wf.State())
}

func TestExecuteWorkflowUnknownAgent(t *testing.T) {
	e := newTestEngine(t)

	step := workflow.NewStep(workflow.StepOptions{
		ID:         "orphan",
		Name:       "Orphan",
		Kind:       workflow.KindAgentTask,
		AgentName:  "nobody",
		MaxRetries: cascade.Ptr(0),
	})
	wf, err := workflow.New(workflow.Options{Name: "No Agent", Steps: []*workflow.Step{step}})
	require.NoError(t, err)

	_, err = e.ExecuteWorkflow(context.Background(), wf)
	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.Contains(t, err.Error(), "unknown agent")
}

func TestExecuteWorkflowExecutorPanicRecovered(t *testing.T) {
	e := newTestEngine(t)
	e.RegisterStepExecutor(workflow.KindCustom, StepExecutorFunc(
		func(ctx context.Context, step *workflow.Step, wctx *workflow.Context) (any, error) {
			panic("unexpected condition")
		}))

	step := workflow.NewStep(workflow.StepOptions{
		ID:         "panicky",
		Name:       "Panicky",
		Kind:       workflow.KindCustom,
		MaxRetries: cascade.Ptr(0),
	})
	wf, err := workflow.New(workflow.Options{Name: "Recovered", Steps: []*workflow.Step{step}})
	require.NoError(t, err)

	_, err = e.ExecuteWorkflow(context.Background(), wf)
	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.Contains(t, err.Error(), "panicked")

	result, ok := wf.Context().GetStepResult("panicky")
	require.True(t, ok)
	require.Contains(t, result.Error, "unexpected condition")
}

func TestExecuteWorkflowContextCanceled(t *testing.T) {
	agent := mocks.NewMockAgent(mocks.MockAgentOptions{Name: "worker"})
	e := newTestEngine(t, agent)

	wf, err := workflow.New(workflow.Options{
		Name:  "Canceled",
		Steps: []*workflow.Step{agentStep("a", "worker")},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.ExecuteWorkflow(ctx, wf)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, workflow.StateFailed, wf.State())
	require.Equal(t, 0, agent.CallCount())
}

func TestExecuteWorkflowNoSteps(t *testing.T) {
	e := newTestEngine(t)
	wf, err := workflow.New(workflow.Options{Name: "Empty"})
	require.NoError(t, err)

	wctx, err := e.ExecuteWorkflow(context.Background(), wf)
	require.NoError(t, err)
	require.Equal(t, workflow.StateCompleted, wf.State())
	require.Empty(t, wctx.StepResults())
}

func TestExecuteWorkflowRetryRunsInLaterWave(t *testing.T) {
	// A failing step is retried in a subsequent wave, alongside steps that
	// became ready in the meantime, rather than immediately.
	var mu sync.Mutex
	attempts := 0
	flaky := mocks.NewMockAgent(mocks.MockAgentOptions{
		Name: "flaky",
		ProcessFunc: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			mu.Lock()
			attempts++
			n := attempts
			mu.Unlock()
			if n == 1 {
				return nil, errors.New("first attempt fails")
			}
			return map[string]any{}, nil
		},
	})
	steady := mocks.NewMockAgent(mocks.MockAgentOptions{Name: "steady"})
	e := newTestEngine(t, flaky, steady)

	wf, err := workflow.New(workflow.Options{
		Name: "Waves",
		Steps: []*workflow.Step{
			workflow.NewStep(workflow.StepOptions{
				ID: "unstable", Name: "unstable", Kind: workflow.KindAgentTask, AgentName: "flaky",
			}),
			workflow.NewStep(workflow.StepOptions{
				ID: "base", Name: "base", Kind: workflow.KindAgentTask, AgentName: "steady",
			}),
			workflow.NewStep(workflow.StepOptions{
				ID: "follow", Name: "follow", Kind: workflow.KindAgentTask, AgentName: "steady",
				Dependencies: []string{"base"},
			}),
		},
	})
	require.NoError(t, err)

	_, err = e.ExecuteWorkflow(context.Background(), wf)
	require.NoError(t, err)
	require.Equal(t, workflow.StateCompleted, wf.State())

	// Wave 1: unstable (fails) + base. Wave 2: unstable retry + follow.
	require.Equal(t, 2, flaky.CallCount())
	result, ok := wf.Context().GetStepResult("unstable")
	require.True(t, ok)
	require.True(t, result.Success)
	require.Equal(t, 1, result.RetryCount)
}
