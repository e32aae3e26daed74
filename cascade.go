package cascade

import (
	"context"
	"fmt"
)

// Agent is the worker boundary consumed by the workflow engine: a named
// collaborator that turns an input payload into an output payload. The
// engine never inspects an Agent's internals; failures are reported via the
// returned error.
type Agent interface {

	// Name of the Agent, unique within an Engine's registry
	Name() string

	// Process handles one input payload and returns the output payload
	Process(ctx context.Context, input map[string]any) (map[string]any, error)
}

// CapableAgent is an Agent that advertises the task types it can handle.
type CapableAgent interface {
	Agent

	// CanHandle indicates whether the agent can handle the given task type
	CanHandle(taskType string) bool
}

type promiseResult[T any] struct {
	value T
	err   error
}

// Promise is a single-delivery container for the result of an asynchronous
// operation.
type Promise[T any] struct {
	ch chan promiseResult[T]
}

// NewPromise returns an unresolved Promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{ch: make(chan promiseResult[T], 1)}
}

// Get blocks until the promise resolves or the context is canceled.
func (p *Promise[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-p.ch:
		if res.err != nil {
			var zero T
			return zero, res.err
		}
		return res.value, nil
	}
}

// Set resolves the promise. Only the first call has an effect.
func (p *Promise[T]) Set(value T, err error) {
	select {
	case p.ch <- promiseResult[T]{value: value, err: err}:
	default:
	}
}

// WaitAll collects the results of all promises, preserving order. If any
// promise resolved with an error, the first such error is returned alongside
// the partial results.
func WaitAll[T any](ctx context.Context, promises []*Promise[T]) ([]T, error) {
	results := make([]T, len(promises))
	var firstError error

	for i, promise := range promises {
		result, err := promise.Get(ctx)
		if err != nil {
			if firstError == nil {
				firstError = err
			}
			continue
		}
		results[i] = result
	}

	if firstError != nil {
		return results, fmt.Errorf("one or more operations failed: %w", firstError)
	}
	return results, nil
}
