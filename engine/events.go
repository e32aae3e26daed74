package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/deepnoodle-ai/cascade/slogger"
	"github.com/deepnoodle-ai/cascade/workflow"
	"github.com/google/uuid"
)

// EventType identifies what happened at one point in a workflow execution.
type EventType string

const (
	EventWorkflowStarted   EventType = "workflow_started"
	EventStepStarted       EventType = "step_started"
	EventStepCompleted     EventType = "step_completed"
	EventStepRetried       EventType = "step_retried"
	EventStepFailed        EventType = "step_failed"
	EventWorkflowCompleted EventType = "workflow_completed"
	EventWorkflowFailed    EventType = "workflow_failed"
)

// Event is one entry in a workflow's execution history. Events exist for
// diagnosis after the fact; the engine never reads them back while running.
type Event struct {
	ID         string         `json:"id"`
	WorkflowID string         `json:"workflow_id"`
	Sequence   int64          `json:"sequence"`
	Timestamp  time.Time      `json:"timestamp"`
	EventType  EventType      `json:"event_type"`
	StepID     string         `json:"step_id,omitempty"`
	StepName   string         `json:"step_name,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Validate checks that the event carries the required fields.
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event id is required")
	}
	if e.WorkflowID == "" {
		return fmt.Errorf("workflow id is required")
	}
	if e.Sequence <= 0 {
		return fmt.Errorf("sequence must be positive")
	}
	if e.EventType == "" {
		return fmt.Errorf("event type is required")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}

// EventStore persists workflow execution history.
type EventStore interface {
	// AppendEvents adds events to a workflow's history.
	AppendEvents(ctx context.Context, events []*Event) error

	// GetEventHistory returns a workflow's full history in sequence order.
	GetEventHistory(ctx context.Context, workflowID string) ([]*Event, error)

	// ListWorkflowIDs returns the ids of all workflows with recorded
	// history, sorted.
	ListWorkflowIDs(ctx context.Context) ([]string, error)

	// DeleteWorkflowHistory removes a workflow's entire history.
	DeleteWorkflowHistory(ctx context.Context, workflowID string) error
}

// NullEventStore discards all events. It is the default store.
type NullEventStore struct{}

var _ EventStore = &NullEventStore{}

func NewNullEventStore() *NullEventStore {
	return &NullEventStore{}
}

func (s *NullEventStore) AppendEvents(ctx context.Context, events []*Event) error {
	return nil
}

func (s *NullEventStore) GetEventHistory(ctx context.Context, workflowID string) ([]*Event, error) {
	return nil, nil
}

func (s *NullEventStore) ListWorkflowIDs(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (s *NullEventStore) DeleteWorkflowHistory(ctx context.Context, workflowID string) error {
	return nil
}

// eventRecorder assigns sequence numbers and forwards events to the store.
// Store failures are logged and swallowed; history is best-effort and must
// never fail a workflow.
type eventRecorder struct {
	store      EventStore
	logger     slogger.Logger
	workflowID string
	seq        atomic.Int64
}

func newEventRecorder(store EventStore, logger slogger.Logger, workflowID string) *eventRecorder {
	return &eventRecorder{
		store:      store,
		logger:     logger,
		workflowID: workflowID,
	}
}

func (r *eventRecorder) record(ctx context.Context, eventType EventType, step *workflow.Step, data map[string]any) {
	event := &Event{
		ID:         uuid.New().String(),
		WorkflowID: r.workflowID,
		Sequence:   r.seq.Add(1),
		Timestamp:  time.Now(),
		EventType:  eventType,
		Data:       data,
	}
	if step != nil {
		event.StepID = step.ID()
		event.StepName = step.Name()
	}
	if err := r.store.AppendEvents(ctx, []*Event{event}); err != nil {
		r.logger.Warn("failed to record execution event",
			"event_type", eventType, "workflow_id", r.workflowID, "error", err)
	}
}
