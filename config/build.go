package config

import (
	"fmt"
	"time"

	"github.com/deepnoodle-ai/cascade"
	"github.com/deepnoodle-ai/cascade/agent"
	"github.com/deepnoodle-ai/cascade/engine"
	"github.com/deepnoodle-ai/cascade/slogger"
	"github.com/deepnoodle-ai/cascade/workflow"
)

// BuildOptions carry the runtime pieces a config cannot express.
type BuildOptions struct {
	Logger     slogger.Logger
	EventStore engine.EventStore
}

// Build turns a Config into a running setup: an engine with all configured
// agents registered, plus the configured workflows keyed by name. Workflows
// are independent; executing one does not affect the others.
func Build(config *Config, opts BuildOptions) (*engine.Engine, map[string]*workflow.Workflow, error) {
	if opts.Logger == nil {
		opts.Logger = slogger.DefaultLogger
	}

	agents, err := buildAgents(config, opts.Logger)
	if err != nil {
		return nil, nil, err
	}

	eng, err := engine.New(engine.Options{
		Agents:     agents,
		Logger:     opts.Logger,
		EventStore: opts.EventStore,
	})
	if err != nil {
		return nil, nil, err
	}

	workflows := make(map[string]*workflow.Workflow, len(config.Workflows))
	for _, def := range config.Workflows {
		if _, exists := workflows[def.Name]; exists {
			return nil, nil, fmt.Errorf("duplicate workflow name: %s", def.Name)
		}
		built, err := buildWorkflow(config, def)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build workflow %s: %w", def.Name, err)
		}
		workflows[def.Name] = built
	}
	return eng, workflows, nil
}

func buildAgents(config *Config, logger slogger.Logger) ([]cascade.Agent, error) {
	agents := make([]cascade.Agent, 0, len(config.Agents))
	for _, def := range config.Agents {
		built, err := agent.New(agent.Options{
			Name:         def.Name,
			Capabilities: def.Capabilities,
			Config:       def.Config,
			Logger:       logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build agent %s: %w", def.Name, err)
		}
		agents = append(agents, built)
	}
	return agents, nil
}

func buildWorkflow(config *Config, def WorkflowDef) (*workflow.Workflow, error) {
	steps := make([]*workflow.Step, 0, len(def.Steps))
	for _, stepDef := range def.Steps {
		step, err := buildStep(config, stepDef)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return workflow.New(workflow.Options{
		Name:        def.Name,
		Description: def.Description,
		Steps:       steps,
	})
}

func buildStep(config *Config, def StepDef) (*workflow.Step, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("step name is required")
	}
	if def.Type == "" {
		return nil, fmt.Errorf("step %s: step type is required", def.Name)
	}
	timeout := def.TimeoutDuration()
	if timeout == 0 && config.DefaultStepTimeout > 0 {
		timeout = time.Duration(config.DefaultStepTimeout * float64(time.Second))
	}
	maxRetries := def.MaxRetries
	if maxRetries == nil {
		maxRetries = config.DefaultMaxRetries
	}
	return workflow.NewStep(workflow.StepOptions{
		ID:           def.ID,
		Name:         def.Name,
		Kind:         workflow.Kind(def.Type),
		Config:       def.Config,
		Dependencies: def.Dependencies,
		AgentName:    def.AgentName,
		Timeout:      timeout,
		MaxRetries:   maxRetries,
	}), nil
}
