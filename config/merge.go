package config

import "sort"

// Merge merges two configs, with the second one taking precedence. Agents
// and workflows are merged by name; an override with the same name replaces
// the base entry wholesale.
func Merge(base, override *Config) *Config {
	result := *base

	if override.LogLevel != "" {
		result.LogLevel = override.LogLevel
	}
	if override.DataDir != "" {
		result.DataDir = override.DataDir
	}
	if override.MaxConcurrentWorkflows != 0 {
		result.MaxConcurrentWorkflows = override.MaxConcurrentWorkflows
	}
	if override.DefaultStepTimeout != 0 {
		result.DefaultStepTimeout = override.DefaultStepTimeout
	}
	if override.DefaultMaxRetries != nil {
		result.DefaultMaxRetries = override.DefaultMaxRetries
	}

	agentMap := make(map[string]AgentDef)
	for _, agent := range result.Agents {
		agentMap[agent.Name] = agent
	}
	for _, agent := range override.Agents {
		agentMap[agent.Name] = agent
	}
	agents := make([]AgentDef, 0, len(agentMap))
	for _, a := range agentMap {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool {
		return agents[i].Name < agents[j].Name
	})
	result.Agents = agents

	workflowMap := make(map[string]WorkflowDef)
	for _, workflow := range result.Workflows {
		workflowMap[workflow.Name] = workflow
	}
	for _, workflow := range override.Workflows {
		workflowMap[workflow.Name] = workflow
	}
	workflows := make([]WorkflowDef, 0, len(workflowMap))
	for _, w := range workflowMap {
		workflows = append(workflows, w)
	}
	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].Name < workflows[j].Name
	})
	result.Workflows = workflows

	return &result
}
