package delivery

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taskflow/internal/models"
)

type Kind string

const (
	KindAssignment   Kind = "assignment"
	KindStatusChange Kind = "status_change"
)

// Event is one delivery request. On the stream it travels as flat string
// fields.
type Event struct {
	Kind     Kind              `json:"kind"`
	TaskID   string            `json:"taskId"`
	UserID   string            `json:"userId"`
	ActorID  string            `json:"actorId,omitempty"`
	Status   models.TaskStatus `json:"status,omitempty"`
	QueuedAt time.Time         `json:"queuedAt"`
}

func (e Event) Validate() error {
	switch e.Kind {
	case KindAssignment:
	case KindStatusChange:
		if !e.Status.Valid() {
			return fmt.Errorf("invalid status %q", e.Status)
		}
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	if e.TaskID == "" || e.UserID == "" {
		return errors.New("task and user are required")
	}
	return nil
}

func (e Event) Values() map[string]any {
	values := map[string]any{
		"kind":     string(e.Kind),
		"taskId":   e.TaskID,
		"userId":   e.UserID,
		"queuedAt": e.QueuedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.ActorID != "" {
		values["actorId"] = e.ActorID
	}
	if e.Status != "" {
		values["status"] = string(e.Status)
	}
	return values
}

func DecodeEvent(values map[string]interface{}) (Event, error) {
	var ev Event
	bytes, err := json.Marshal(values)
	if err != nil {
		return Event{}, err
	}
	if err := json.Unmarshal(bytes, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}
