package agent

import "github.com/deepnoodle-ai/cascade/slogger"

// Builder provides a fluent interface for assembling an Agent.
type Builder struct {
	name         string
	config       map[string]any
	capabilities []string
	handlers     map[string]ActionHandler
	logger       slogger.Logger
}

func NewBuilder() *Builder {
	return &Builder{
		config:   map[string]any{},
		handlers: map[string]ActionHandler{},
	}
}

func (b *Builder) WithName(name string) *Builder {
	b.name = name
	return b
}

func (b *Builder) WithCapability(capability string) *Builder {
	b.capabilities = append(b.capabilities, capability)
	return b
}

// WithConfig merges the given settings into the agent config. Later calls
// override earlier values for the same key.
func (b *Builder) WithConfig(config map[string]any) *Builder {
	for k, v := range config {
		b.config[k] = v
	}
	return b
}

func (b *Builder) WithActionHandler(action string, handler ActionHandler) *Builder {
	b.handlers[action] = handler
	return b
}

func (b *Builder) WithLogger(logger slogger.Logger) *Builder {
	b.logger = logger
	return b
}

// Build creates the configured agent. The name is required.
func (b *Builder) Build() (*Agent, error) {
	return New(Options{
		Name:           b.name,
		Config:         b.config,
		Capabilities:   b.capabilities,
		ActionHandlers: b.handlers,
		Logger:         b.logger,
	})
}

// NewSimpleAgent creates an agent with the given capabilities and config,
// for callers that do not need handlers or a custom logger.
func NewSimpleAgent(name string, capabilities []string, config map[string]any) (*Agent, error) {
	builder := NewBuilder().WithName(name)
	for _, capability := range capabilities {
		builder.WithCapability(capability)
	}
	if config != nil {
		builder.WithConfig(config)
	}
	return builder.Build()
}
