// Package notify implements the task engine's delivery hook. The stream
// notifier queues events for the worker; the inline notifier dispatches
// them within the request.
package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"taskflow/internal/delivery"
	"taskflow/internal/models"
)

const streamMaxLen = 100_000

type StreamNotifier struct {
	client  *redis.Client
	stream  string
	timeout time.Duration
	log     zerolog.Logger
}

func NewStreamNotifier(client *redis.Client, stream string, timeout time.Duration, log zerolog.Logger) *StreamNotifier {
	return &StreamNotifier{
		client:  client,
		stream:  stream,
		timeout: timeout,
		log:     log,
	}
}

func (n *StreamNotifier) NotifyAssignment(ctx context.Context, taskID, assigneeID, actingUserID string) bool {
	return n.publish(ctx, assignmentEvent(taskID, assigneeID, actingUserID))
}

func (n *StreamNotifier) NotifyStatusChange(ctx context.Context, taskID, userID string, status models.TaskStatus) bool {
	return n.publish(ctx, statusEvent(taskID, userID, status))
}

func (n *StreamNotifier) publish(ctx context.Context, ev delivery.Event) bool {
	ctx, cancel := withTimeout(ctx, n.timeout)
	defer cancel()

	id, err := n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: ev.Values(),
	}).Result()
	if err != nil {
		n.log.Error().Err(err).
			Str("kind", string(ev.Kind)).
			Str("task_id", ev.TaskID).
			Msg("enqueue delivery failed")
		return false
	}
	n.log.Debug().Str("message_id", id).Str("kind", string(ev.Kind)).Msg("delivery enqueued")
	return true
}

type InlineNotifier struct {
	dispatcher delivery.EventDispatcher
	timeout    time.Duration
	log        zerolog.Logger
}

func NewInlineNotifier(dispatcher delivery.EventDispatcher, timeout time.Duration, log zerolog.Logger) *InlineNotifier {
	return &InlineNotifier{
		dispatcher: dispatcher,
		timeout:    timeout,
		log:        log,
	}
}

func (n *InlineNotifier) NotifyAssignment(ctx context.Context, taskID, assigneeID, actingUserID string) bool {
	return n.dispatch(ctx, assignmentEvent(taskID, assigneeID, actingUserID))
}

func (n *InlineNotifier) NotifyStatusChange(ctx context.Context, taskID, userID string, status models.TaskStatus) bool {
	return n.dispatch(ctx, statusEvent(taskID, userID, status))
}

func (n *InlineNotifier) dispatch(ctx context.Context, ev delivery.Event) bool {
	ctx, cancel := withTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.dispatcher.Dispatch(ctx, ev); err != nil {
		n.log.Error().Err(err).
			Str("kind", string(ev.Kind)).
			Str("task_id", ev.TaskID).
			Msg("inline delivery failed")
		return false
	}
	return true
}

// Noop reports every delivery as not attempted.
type Noop struct{}

func (Noop) NotifyAssignment(context.Context, string, string, string) bool { return false }

func (Noop) NotifyStatusChange(context.Context, string, string, models.TaskStatus) bool {
	return false
}

func assignmentEvent(taskID, assigneeID, actingUserID string) delivery.Event {
	return delivery.Event{
		Kind:     delivery.KindAssignment,
		TaskID:   taskID,
		UserID:   assigneeID,
		ActorID:  actingUserID,
		QueuedAt: time.Now().UTC(),
	}
}

func statusEvent(taskID, userID string, status models.TaskStatus) delivery.Event {
	return delivery.Event{
		Kind:     delivery.KindStatusChange,
		TaskID:   taskID,
		UserID:   userID,
		Status:   status,
		QueuedAt: time.Now().UTC(),
	}
}

// withTimeout detaches from the request's cancellation so a client hanging
// up after commit does not abort delivery.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
