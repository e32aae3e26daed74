package workflow

import (
	"testing"
	"time"

	"github.com/deepnoodle-ai/cascade"
	"github.com/stretchr/testify/require"
)

func TestNewStepDefaults(t *testing.T) {
	step := NewStep(StepOptions{
		Name: "Process Data",
		Kind: KindAgentTask,
	})
	require.NotEmpty(t, step.ID())
	require.Equal(t, "Process Data", step.Name())
	require.Equal(t, KindAgentTask, step.Kind())
	require.NotNil(t, step.Config())
	require.Empty(t, step.Dependencies())
	require.Equal(t, 3, step.MaxRetries())
	require.Equal(t, 0, step.RetryCount())
	require.Equal(t, time.Duration(0), step.Timeout())
}

func TestNewStepExplicitOptions(t *testing.T) {
	step := NewStep(StepOptions{
		ID:           "step-1",
		Name:         "Fetch",
		Kind:         KindAgentTask,
		AgentName:    "fetcher",
		Config:       map[string]any{"url": "https://example.com"},
		Dependencies: []string{"step-0"},
		Timeout:      30 * time.Second,
		MaxRetries:   cascade.Ptr(5),
	})
	require.Equal(t, "step-1", step.ID())
	require.Equal(t, "fetcher", step.AgentName())
	require.Equal(t, []string{"step-0"}, step.Dependencies())
	require.Equal(t, 30*time.Second, step.Timeout())
	require.Equal(t, 5, step.MaxRetries())
}

func TestNewStepZeroMaxRetries(t *testing.T) {
	// An explicit zero disables retries entirely, distinct from unset.
	step := NewStep(StepOptions{
		Name:       "One Shot",
		Kind:       KindCustom,
		MaxRetries: cascade.Ptr(0),
	})
	require.Equal(t, 0, step.MaxRetries())
}

func TestStepRetryCount(t *testing.T) {
	step := NewStep(StepOptions{Name: "Retry Me", Kind: KindAgentTask})
	require.Equal(t, 0, step.RetryCount())
	step.IncrementRetryCount()
	step.IncrementRetryCount()
	require.Equal(t, 2, step.RetryCount())
}

func TestNewStepFromDefinition(t *testing.T) {
	step, err := NewStepFromDefinition(map[string]any{
		"id":           "analyze",
		"name":         "Analyze Results",
		"step_type":    "agent_task",
		"agent_name":   "analyst",
		"config":       map[string]any{"store_result_as": "analysis"},
		"dependencies": []any{"fetch", "clean"},
		"timeout":      2.5,
		"max_retries":  1,
	})
	require.NoError(t, err)
	require.Equal(t, "analyze", step.ID())
	require.Equal(t, "Analyze Results", step.Name())
	require.Equal(t, KindAgentTask, step.Kind())
	require.Equal(t, "analyst", step.AgentName())
	require.Equal(t, []string{"fetch", "clean"}, step.Dependencies())
	require.Equal(t, 2500*time.Millisecond, step.Timeout())
	require.Equal(t, 1, step.MaxRetries())
	require.Equal(t, "analysis", step.Config()["store_result_as"])
}

func TestNewStepFromDefinitionDurationString(t *testing.T) {
	step, err := NewStepFromDefinition(map[string]any{
		"name":      "Slow Step",
		"step_type": "delay",
		"timeout":   "1m30s",
	})
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, step.Timeout())
}

func TestNewStepFromDefinitionErrors(t *testing.T) {
	tests := []struct {
		name    string
		def     map[string]any
		wantErr string
	}{
		{
			name:    "missing name",
			def:     map[string]any{"step_type": "delay"},
			wantErr: "missing name",
		},
		{
			name:    "missing step type",
			def:     map[string]any{"name": "x"},
			wantErr: "missing step_type",
		},
		{
			name:    "unknown step type",
			def:     map[string]any{"name": "x", "step_type": "teleport"},
			wantErr: "unknown step type: teleport",
		},
		{
			name:    "bad dependencies",
			def:     map[string]any{"name": "x", "step_type": "delay", "dependencies": []any{1, 2}},
			wantErr: "invalid dependencies",
		},
		{
			name:    "bad timeout",
			def:     map[string]any{"name": "x", "step_type": "delay", "timeout": []any{}},
			wantErr: "invalid timeout",
		},
		{
			name:    "bad max retries",
			def:     map[string]any{"name": "x", "step_type": "delay", "max_retries": "lots"},
			wantErr: "invalid max_retries",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStepFromDefinition(tt.def)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewStepFromDefinitionGeneratesID(t *testing.T) {
	step, err := NewStepFromDefinition(map[string]any{
		"name":      "Anonymous",
		"step_type": "custom",
	})
	require.NoError(t, err)
	require.NotEmpty(t, step.ID())
}
