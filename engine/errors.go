package engine

import "errors"

// Fatal scheduling errors abort the whole workflow. Step-local failures are
// data (a failed StepResult), not errors, until retries are exhausted.
var (
	// ErrUnknownStepKind indicates no executor is registered for a step's kind.
	ErrUnknownStepKind = errors.New("unknown step kind")

	// ErrUnknownAgent indicates an agent task names an unregistered agent.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrStepTimeout indicates a step attempt exceeded its configured timeout.
	ErrStepTimeout = errors.New("step timed out")

	// ErrMissingDependency indicates a step depends on an id that is not part
	// of the workflow.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrCircularDependency indicates the remaining steps block each other.
	ErrCircularDependency = errors.New("circular dependency detected in workflow steps")

	// ErrRetriesExhausted indicates a step failed on every allowed attempt.
	ErrRetriesExhausted = errors.New("retries exhausted")
)
