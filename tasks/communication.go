package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/deepnoodle-ai/cascade/retry"
	"github.com/deepnoodle-ai/cascade/slogger"
)

// DeliverFunc hands a prepared payload to a transport. Errors are treated
// as transient and retried.
type DeliverFunc func(ctx context.Context, payload map[string]any) error

// CommunicationTaskOptions configure a CommunicationTask.
type CommunicationTaskOptions struct {
	Name        string
	Description string
	Priority    Priority

	// Deliver sends prepared payloads. When nil, delivery is simulated and
	// always succeeds.
	Deliver DeliverFunc

	// MaxAttempts bounds delivery attempts (default 3).
	MaxAttempts int

	// RetryWait is the backoff before the second delivery attempt
	// (default 100ms).
	RetryWait time.Duration

	Logger slogger.Logger
}

// CommunicationTask prepares and delivers messages, notifications, and
// broadcasts, and writes log entries. Delivery failures are retried with
// exponential backoff before the task reports failure.
type CommunicationTask struct {
	name        string
	description string
	priority    Priority
	deliver     DeliverFunc
	maxAttempts int
	retryWait   time.Duration
	logger      slogger.Logger
}

var _ Task = &CommunicationTask{}

func NewCommunicationTask(opts CommunicationTaskOptions) *CommunicationTask {
	base := TaskOptions{Name: opts.Name, Description: opts.Description, Priority: opts.Priority}.
		withDefaults("Communication Task", "Handle communication operations")
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 100 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slogger.DefaultLogger
	}
	return &CommunicationTask{
		name:        base.Name,
		description: base.Description,
		priority:    base.Priority,
		deliver:     opts.Deliver,
		maxAttempts: opts.MaxAttempts,
		retryWait:   opts.RetryWait,
		logger:      opts.Logger,
	}
}

func (t *CommunicationTask) Name() string        { return t.name }
func (t *CommunicationTask) Description() string { return t.description }
func (t *CommunicationTask) Priority() Priority  { return t.priority }

func (t *CommunicationTask) Execute(ctx context.Context, params map[string]any) (*Result, error) {
	message, _ := params["message"].(string)
	if message == "" {
		return Failed("no message content provided"), nil
	}
	recipient, _ := params["recipient"].(string)
	communicationType, _ := params["communication_type"].(string)
	if communicationType == "" {
		communicationType = "message"
	}

	var payload map[string]any
	switch communicationType {
	case "message":
		priority, _ := params["priority"].(string)
		if priority == "" {
			priority = "normal"
		}
		payload = map[string]any{
			"action":    "message_sent",
			"recipient": recipient,
			"message":   message,
			"priority":  priority,
			"status":    "delivered",
			"timestamp": time.Now().UTC(),
		}
	case "notification":
		notificationType, _ := params["notification_type"].(string)
		if notificationType == "" {
			notificationType = "info"
		}
		payload = map[string]any{
			"action":            "notification_sent",
			"recipient":         recipient,
			"message":           message,
			"notification_type": notificationType,
			"status":            "sent",
			"timestamp":         time.Now().UTC(),
		}
	case "broadcast":
		recipients := stringList(params["recipients"])
		if len(recipients) == 0 {
			recipients = []string{"all"}
		}
		payload = map[string]any{
			"action":     "message_broadcasted",
			"recipients": recipients,
			"message":    message,
			"reach":      len(recipients),
			"status":     "broadcasted",
			"timestamp":  time.Now().UTC(),
		}
	case "log":
		level, _ := params["level"].(string)
		if level == "" {
			level = "info"
		}
		t.logMessage(level, message)
		payload = map[string]any{
			"action":    "message_logged",
			"message":   message,
			"level":     level,
			"status":    "logged",
			"timestamp": time.Now().UTC(),
		}
	default:
		return Failed("unknown communication type: %s", communicationType), nil
	}

	if communicationType != "log" {
		if err := t.send(ctx, payload); err != nil {
			return Failed("communication failed: %s", err), nil
		}
	}

	return &Result{
		Success: true,
		Data:    payload,
		Metadata: map[string]any{
			"communication_type": communicationType,
			"recipient":          recipient,
			"message_length":     len(message),
		},
	}, nil
}

// send pushes the payload through the configured transport, retrying
// transient failures. Without a transport the payload is only logged.
func (t *CommunicationTask) send(ctx context.Context, payload map[string]any) error {
	if t.deliver == nil {
		t.logger.Info("delivering payload",
			"action", payload["action"],
			"recipient", payload["recipient"])
		return nil
	}
	return retry.Do(ctx, func() error {
		if err := t.deliver(ctx, payload); err != nil {
			return retry.NewRecoverableError(fmt.Errorf("delivery failed: %w", err))
		}
		return nil
	}, retry.WithMaxRetries(t.maxAttempts), retry.WithBaseWait(t.retryWait))
}

func (t *CommunicationTask) logMessage(level, message string) {
	switch level {
	case "error":
		t.logger.Error(message)
	case "warning":
		t.logger.Warn(message)
	case "debug":
		t.logger.Debug(message)
	default:
		t.logger.Info(message)
	}
}
