// Package cascade provides a workflow orchestration engine for Go. Workflows
// are directed graphs of steps, each possibly delegated to a named worker
// agent, executed with dependency-ordered scheduling, bounded retries,
// per-step timeouts, and a shared context threaded through the run.
//
// The core types are:
//
//   - [Agent] is the worker boundary: a named collaborator with a single
//     Process operation.
//   - [github.com/deepnoodle-ai/cascade/workflow.Workflow] aggregates steps
//     and owns the shared execution context.
//   - [github.com/deepnoodle-ai/cascade/engine.Engine] registers agents and
//     drives workflows from start to finish.
//
// # Quick Start
//
//	eng, _ := engine.New(engine.Options{})
//	worker, _ := agent.NewSimpleAgent("worker", nil, nil)
//	eng.RegisterAgent(worker)
//	wf, _ := workflow.NewBuilder("pipeline").
//	    AddAgentTask(workflow.AgentTaskOptions{Name: "fetch", AgentName: "worker"}).
//	    Build()
//	wctx, err := eng.ExecuteWorkflow(ctx, wf)
//
// Ready-made worker implementations are in the
// [github.com/deepnoodle-ai/cascade/agent] package, and executable task
// units in [github.com/deepnoodle-ai/cascade/tasks].
package cascade
