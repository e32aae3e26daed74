// Package config loads cascade configuration from YAML or JSON files and
// turns it into a running engine: agents registered, workflows constructed.
// Multiple files merge with later files taking precedence, and CASCADE_*
// environment variables override file values.
package config

import "time"

// Config is the root configuration document.
type Config struct {
	LogLevel               string        `yaml:"LogLevel,omitempty" json:"LogLevel,omitempty"`
	DataDir                string        `yaml:"DataDir,omitempty" json:"DataDir,omitempty"`
	MaxConcurrentWorkflows int           `yaml:"MaxConcurrentWorkflows,omitempty" json:"MaxConcurrentWorkflows,omitempty"`
	DefaultStepTimeout     float64       `yaml:"DefaultStepTimeout,omitempty" json:"DefaultStepTimeout,omitempty"`
	DefaultMaxRetries      *int          `yaml:"DefaultMaxRetries,omitempty" json:"DefaultMaxRetries,omitempty"`
	Agents                 []AgentDef    `yaml:"Agents,omitempty" json:"Agents,omitempty"`
	Workflows              []WorkflowDef `yaml:"Workflows,omitempty" json:"Workflows,omitempty"`
}

// AgentDef is a serializable agent definition.
type AgentDef struct {
	Name         string         `yaml:"Name,omitempty" json:"Name,omitempty"`
	Capabilities []string       `yaml:"Capabilities,omitempty" json:"Capabilities,omitempty"`
	Config       map[string]any `yaml:"Config,omitempty" json:"Config,omitempty"`
}

// WorkflowDef is a serializable workflow definition.
type WorkflowDef struct {
	Name        string    `yaml:"Name,omitempty" json:"Name,omitempty"`
	Description string    `yaml:"Description,omitempty" json:"Description,omitempty"`
	Steps       []StepDef `yaml:"Steps,omitempty" json:"Steps,omitempty"`
}

// StepDef is a serializable step definition. Timeout is in seconds;
// MaxRetries is a pointer so an explicit zero survives the round trip.
type StepDef struct {
	ID           string         `yaml:"ID,omitempty" json:"ID,omitempty"`
	Name         string         `yaml:"Name,omitempty" json:"Name,omitempty"`
	Type         string         `yaml:"Type,omitempty" json:"Type,omitempty"`
	AgentName    string         `yaml:"AgentName,omitempty" json:"AgentName,omitempty"`
	Config       map[string]any `yaml:"Config,omitempty" json:"Config,omitempty"`
	Dependencies []string       `yaml:"Dependencies,omitempty" json:"Dependencies,omitempty"`
	Timeout      float64        `yaml:"Timeout,omitempty" json:"Timeout,omitempty"`
	MaxRetries   *int           `yaml:"MaxRetries,omitempty" json:"MaxRetries,omitempty"`
}

// TimeoutDuration converts the step's timeout from seconds to a Duration.
func (s StepDef) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout * float64(time.Second))
}
