package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/deepnoodle-ai/cascade"
	"github.com/deepnoodle-ai/cascade/slogger"
	"github.com/gobwas/glob"
)

var (
	ErrNoName = errors.New("agent name is required")

	// DefaultCapabilities are granted to agents created without an explicit
	// capability list. The general_processing capability makes an agent
	// accept any task type.
	DefaultCapabilities = []string{"general_processing", "task_execution"}
)

// CapabilityAny is the capability that matches every task type.
const CapabilityAny = "general_processing"

// State describes what an agent is currently doing.
type State string

const (
	StateIdle      State = "idle"
	StateThinking  State = "thinking"
	StateActing    State = "acting"
	StateWaiting   State = "waiting"
	StateCompleted State = "completed"
	StateError     State = "error"
)

// ActionHandler executes a named action with the given parameters.
type ActionHandler func(ctx context.Context, params map[string]any) (map[string]any, error)

// Confirm the standard implementation satisfies the cascade interfaces.
var _ cascade.Agent = &Agent{}
var _ cascade.CapableAgent = &Agent{}

// Options are used to configure an Agent.
type Options struct {
	Name           string
	Config         map[string]any
	Capabilities   []string
	ActionHandlers map[string]ActionHandler
	Logger         slogger.Logger
}

// Agent is a configurable worker that processes inputs through a
// think-then-act pipeline. Inputs carrying an "action" key are dispatched
// to a registered action handler; everything else is answered with a
// processed-input envelope. Each agent keeps its own memory and a log of
// failed actions. Safe for concurrent use, so one agent can serve several
// workflow steps in the same wave.
type Agent struct {
	mutex          sync.RWMutex
	name           string
	config         map[string]any
	state          State
	memory         *Memory
	capabilities   []string
	patterns       map[string]glob.Glob
	actionHandlers map[string]ActionHandler
	errorLog       []map[string]any
	logger         slogger.Logger
}

// New returns a new Agent configured with the given options.
func New(opts Options) (*Agent, error) {
	if opts.Name == "" {
		return nil, ErrNoName
	}
	if opts.Logger == nil {
		opts.Logger = slogger.DefaultLogger
	}
	config := map[string]any{}
	for k, v := range opts.Config {
		config[k] = v
	}

	a := &Agent{
		name:           opts.Name,
		config:         config,
		state:          StateIdle,
		memory:         NewMemory(),
		patterns:       map[string]glob.Glob{},
		actionHandlers: map[string]ActionHandler{},
		logger:         opts.Logger,
	}

	capabilities := append([]string{}, opts.Capabilities...)
	capabilities = append(capabilities, configCapabilities(config)...)
	if len(capabilities) == 0 {
		capabilities = DefaultCapabilities
	}
	for _, capability := range capabilities {
		a.addCapability(capability)
	}
	for action, handler := range opts.ActionHandlers {
		a.actionHandlers[action] = handler
	}

	a.logger.Info("initialized agent", "agent", a.name, "capabilities", a.capabilities)
	return a, nil
}

// configCapabilities reads a capability list out of an agent config map,
// accepting either []string or []any of strings.
func configCapabilities(config map[string]any) []string {
	raw, ok := config["capabilities"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		var capabilities []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				capabilities = append(capabilities, s)
			}
		}
		return capabilities
	}
	return nil
}

func (a *Agent) Name() string {
	return a.name
}

func (a *Agent) State() State {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.state
}

func (a *Agent) Memory() *Memory {
	return a.memory
}

func (a *Agent) Config() map[string]any {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	config := make(map[string]any, len(a.config))
	for k, v := range a.config {
		config[k] = v
	}
	return config
}

// Process runs the agent's reasoning pipeline over one input. The agent
// first thinks, updating its memory with the input, then either dispatches
// the requested action or wraps the input in a processed-input envelope.
func (a *Agent) Process(ctx context.Context, input map[string]any) (map[string]any, error) {
	thoughts := a.Think(ctx, input)

	if action, ok := input["action"].(string); ok && action != "" {
		params, _ := input["parameters"].(map[string]any)
		result, err := a.Act(ctx, action, params)
		if err != nil {
			return nil, err
		}
		a.setState(StateCompleted)
		return result, nil
	}

	result := map[string]any{
		"processed_input": input,
		"thoughts":        thoughts,
		"agent":           a.name,
		"timestamp":       time.Now().UTC(),
	}
	a.setState(StateCompleted)
	return result, nil
}

// Think records the given data in context memory and produces a thought
// snapshot, which is also kept in short-term memory under "last_thoughts".
func (a *Agent) Think(ctx context.Context, data map[string]any) map[string]any {
	a.setState(StateThinking)
	a.memory.UpdateContext(data)

	thoughts := map[string]any{
		"timestamp":    time.Now().UTC(),
		"context":      data,
		"capabilities": a.Capabilities(),
		"state":        string(StateThinking),
	}
	a.memory.StoreShortTerm("last_thoughts", thoughts)
	return thoughts
}

// Act executes a named action. Registered handlers take precedence; an
// unregistered action succeeds with an echo result so callers can probe
// actions before wiring real handlers. Every attempt is recorded in
// long-term memory, and failures additionally land in the error log.
func (a *Agent) Act(ctx context.Context, action string, params map[string]any) (map[string]any, error) {
	a.setState(StateActing)
	if params == nil {
		params = map[string]any{}
	}
	a.logger.Info("executing action", "agent", a.name, "action", action)

	a.mutex.RLock()
	handler, registered := a.actionHandlers[action]
	a.mutex.RUnlock()

	var result map[string]any
	var err error
	if registered {
		result, err = handler(ctx, params)
	} else {
		result = map[string]any{"action": action, "parameters": params, "executed": true}
	}

	if err != nil {
		a.memory.StoreLongTerm(map[string]any{
			"action":     action,
			"parameters": params,
			"status":     "error",
			"error":      err.Error(),
			"timestamp":  time.Now().UTC(),
		})
		a.recordError(action, params, err)
		a.setState(StateError)
		a.logger.Error("action failed", "agent", a.name, "action", action, "error", err)
		return nil, fmt.Errorf("action %q failed: %w", action, err)
	}

	a.memory.StoreLongTerm(map[string]any{
		"action":     action,
		"parameters": params,
		"result":     result,
		"status":     "success",
		"timestamp":  time.Now().UTC(),
	})
	return result, nil
}

// RegisterActionHandler installs a handler for the named action, replacing
// any existing handler for that action.
func (a *Agent) RegisterActionHandler(action string, handler ActionHandler) {
	a.mutex.Lock()
	a.actionHandlers[action] = handler
	a.mutex.Unlock()
	a.logger.Info("registered action handler", "agent", a.name, "action", action)
}

// CanHandle reports whether the agent accepts tasks of the given type.
// Capabilities are matched literally or as glob patterns, so a capability
// of "data_*" handles "data_cleanup". Agents holding the general processing
// capability handle everything.
func (a *Agent) CanHandle(taskType string) bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	for _, capability := range a.capabilities {
		if capability == CapabilityAny || capability == taskType {
			return true
		}
		if pattern, ok := a.patterns[capability]; ok && pattern.Match(taskType) {
			return true
		}
	}
	return false
}

// AddCapability grants the agent an additional capability.
func (a *Agent) AddCapability(capability string) {
	a.mutex.Lock()
	added := a.addCapability(capability)
	a.mutex.Unlock()
	if added {
		a.logger.Info("added capability", "agent", a.name, "capability", capability)
	}
}

func (a *Agent) addCapability(capability string) bool {
	for _, existing := range a.capabilities {
		if existing == capability {
			return false
		}
	}
	a.capabilities = append(a.capabilities, capability)
	if pattern, err := glob.Compile(capability); err == nil {
		a.patterns[capability] = pattern
	}
	return true
}

// HasCapability checks for an exact capability, ignoring patterns.
func (a *Agent) HasCapability(capability string) bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	for _, existing := range a.capabilities {
		if existing == capability {
			return true
		}
	}
	return false
}

// Capabilities returns the agent's capabilities in the order granted.
func (a *Agent) Capabilities() []string {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return append([]string{}, a.capabilities...)
}

// ErrorLog returns the recorded action failures, oldest first.
func (a *Agent) ErrorLog() []map[string]any {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	log := make([]map[string]any, len(a.errorLog))
	copy(log, a.errorLog)
	return log
}

// Status reports a snapshot of the agent's current condition.
type Status struct {
	Name         string      `json:"name"`
	State        State       `json:"state"`
	Capabilities []string    `json:"capabilities"`
	Actions      int         `json:"actions"`
	Errors       int         `json:"errors"`
	Memory       MemorySizes `json:"memory"`
}

func (a *Agent) Status() Status {
	a.mutex.RLock()
	state := a.state
	capabilities := append([]string{}, a.capabilities...)
	errorCount := len(a.errorLog)
	a.mutex.RUnlock()

	sizes := a.memory.Sizes()
	return Status{
		Name:         a.name,
		State:        state,
		Capabilities: capabilities,
		Actions:      sizes.LongTerm,
		Errors:       errorCount,
		Memory:       sizes,
	}
}

func (a *Agent) setState(state State) {
	a.mutex.Lock()
	old := a.state
	a.state = state
	a.mutex.Unlock()
	if old != state {
		a.logger.Debug("agent state changed", "agent", a.name, "from", old, "to", state)
	}
}

func (a *Agent) recordError(action string, params map[string]any, err error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.errorLog = append(a.errorLog, map[string]any{
		"action":     action,
		"parameters": params,
		"error":      err.Error(),
		"timestamp":  time.Now().UTC(),
	})
}
