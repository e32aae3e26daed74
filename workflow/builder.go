package workflow

import (
	"fmt"
)

// Builder assembles workflows fluently from step definitions. Each Add call
// returns the builder so calls chain. Build materializes the steps lazily,
// so definition errors surface when the workflow is created rather than at
// each Add call.
type Builder struct {
	name        string
	description string
	defs        []map[string]any
	conditions  map[string]Condition
}

// NewBuilder starts a workflow builder with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:       name,
		conditions: map[string]Condition{},
	}
}

// Description sets the workflow description.
func (b *Builder) Description(description string) *Builder {
	b.description = description
	return b
}

// AgentTaskOptions configures an agent task step added via the builder.
type AgentTaskOptions struct {
	ID           string
	Name         string
	AgentName    string
	Config       map[string]any
	Dependencies []string
}

// AddAgentTask appends a step that dispatches its config to a named agent.
func (b *Builder) AddAgentTask(opts AgentTaskOptions) *Builder {
	def := map[string]any{
		"id":        opts.ID,
		"name":      opts.Name,
		"step_type": string(KindAgentTask),
	}
	if opts.AgentName != "" {
		def["agent_name"] = opts.AgentName
	}
	if opts.Config != nil {
		def["config"] = opts.Config
	}
	if opts.Dependencies != nil {
		def["dependencies"] = opts.Dependencies
	}
	b.defs = append(b.defs, def)
	return b
}

// DelayOptions configures a delay step added via the builder.
type DelayOptions struct {
	ID           string
	Name         string
	Seconds      float64
	Dependencies []string
}

// AddDelay appends a step that pauses for the given number of seconds.
func (b *Builder) AddDelay(opts DelayOptions) *Builder {
	def := map[string]any{
		"id":        opts.ID,
		"name":      opts.Name,
		"step_type": string(KindDelay),
		"config":    map[string]any{"seconds": opts.Seconds},
	}
	if opts.Dependencies != nil {
		def["dependencies"] = opts.Dependencies
	}
	b.defs = append(b.defs, def)
	return b
}

// ConditionalOptions configures a conditional step added via the builder.
// If and Else are sub-step definitions; either may be nil.
type ConditionalOptions struct {
	ID           string
	Name         string
	Condition    Condition
	If           map[string]any
	Else         map[string]any
	Dependencies []string
}

// AddConditional appends a step that evaluates a condition and runs one of
// two sub-steps.
func (b *Builder) AddConditional(opts ConditionalOptions) *Builder {
	config := map[string]any{}
	if opts.If != nil {
		config["if"] = opts.If
	}
	if opts.Else != nil {
		config["else"] = opts.Else
	}
	def := map[string]any{
		"id":        opts.ID,
		"name":      opts.Name,
		"step_type": string(KindConditional),
		"config":    config,
	}
	if opts.Dependencies != nil {
		def["dependencies"] = opts.Dependencies
	}
	if opts.Condition != nil && opts.ID != "" {
		b.conditions[opts.ID] = opts.Condition
	}
	b.defs = append(b.defs, def)
	return b
}

// AddStep appends a step from full StepOptions, for kinds the dedicated
// helpers don't cover.
func (b *Builder) AddStep(opts StepOptions) *Builder {
	def := map[string]any{
		"id":        opts.ID,
		"name":      opts.Name,
		"step_type": string(opts.Kind),
	}
	if opts.Config != nil {
		def["config"] = opts.Config
	}
	if opts.AgentName != "" {
		def["agent_name"] = opts.AgentName
	}
	if opts.Dependencies != nil {
		def["dependencies"] = opts.Dependencies
	}
	if opts.Timeout > 0 {
		def["timeout"] = opts.Timeout
	}
	if opts.MaxRetries != nil {
		def["max_retries"] = *opts.MaxRetries
	}
	if opts.Condition != nil && opts.ID != "" {
		b.conditions[opts.ID] = opts.Condition
	}
	b.defs = append(b.defs, def)
	return b
}

// Build creates the workflow. Step definitions are validated when the steps
// materialize.
func (b *Builder) Build() (*Workflow, error) {
	if b.name == "" {
		return nil, fmt.Errorf("workflow name is required")
	}
	defs := b.defs
	conditions := b.conditions
	return New(Options{
		Name:        b.name,
		Description: b.description,
		DefineSteps: func() ([]*Step, error) {
			return materializeDefinitions(defs, conditions)
		},
	})
}

func materializeDefinitions(defs []map[string]any, conditions map[string]Condition) ([]*Step, error) {
	steps := make([]*Step, 0, len(defs))
	for _, def := range defs {
		step, err := NewStepFromDefinition(def)
		if err != nil {
			return nil, err
		}
		if condition, ok := conditions[step.ID()]; ok {
			step.SetCondition(condition)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// FromDefinitions creates a workflow directly from raw step definitions, the
// form configuration files produce.
func FromDefinitions(name, description string, defs []map[string]any) (*Workflow, error) {
	if name == "" {
		return nil, fmt.Errorf("workflow name is required")
	}
	return New(Options{
		Name:        name,
		Description: description,
		DefineSteps: func() ([]*Step, error) {
			return materializeDefinitions(defs, nil)
		},
	})
}

// NewSimpleAgentWorkflow creates a linear workflow that runs the given tasks
// through one agent, each task depending on the previous one. Task maps
// become step config; a "name" key, when present, names the step.
func NewSimpleAgentWorkflow(name, agentName string, tasks []map[string]any) (*Workflow, error) {
	builder := NewBuilder(name).
		Description(fmt.Sprintf("Sequential workflow for %s", agentName))
	for i, task := range tasks {
		stepName, _ := task["name"].(string)
		if stepName == "" {
			stepName = fmt.Sprintf("Task %d", i+1)
		}
		opts := AgentTaskOptions{
			ID:        fmt.Sprintf("task_%d", i),
			Name:      stepName,
			AgentName: agentName,
			Config:    task,
		}
		if i > 0 {
			opts.Dependencies = []string{fmt.Sprintf("task_%d", i-1)}
		}
		builder.AddAgentTask(opts)
	}
	return builder.Build()
}
