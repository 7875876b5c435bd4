package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"taskflow/internal/mailer"
	"taskflow/internal/models"
	"taskflow/internal/repository"
)

type UserReader interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

type TaskReader interface {
	Find(ctx context.Context, q models.TaskQuery) (models.Task, error)
}

// Dispatcher turns an Event into an email. Events whose task or recipient
// vanished in the meantime are dropped without error.
type Dispatcher struct {
	users  UserReader
	tasks  TaskReader
	sender mailer.Sender
	log    zerolog.Logger
}

func NewDispatcher(users UserReader, tasks TaskReader, sender mailer.Sender, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		users:  users,
		tasks:  tasks,
		sender: sender,
		log:    log,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	task, err := d.tasks.Find(ctx, models.TaskQuery{ID: ev.TaskID})
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			d.log.Info().Str("task_id", ev.TaskID).Msg("task gone before delivery, dropping")
			return nil
		}
		return fmt.Errorf("load task: %w", err)
	}

	recipient, err := d.users.GetByID(ctx, ev.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			d.log.Info().Str("user_id", ev.UserID).Msg("recipient gone before delivery, dropping")
			return nil
		}
		return fmt.Errorf("load recipient: %w", err)
	}
	if !recipient.Active() || recipient.Email == "" {
		d.log.Info().Str("user_id", recipient.ID).Msg("recipient not reachable, skipping")
		return nil
	}

	data := mailer.TaskEmail{
		Recipient: mailer.Address{Name: recipient.FullName(), Email: recipient.Email},
		Task:      task,
		Status:    ev.Status,
	}
	if ev.ActorID != "" && ev.ActorID != recipient.ID {
		if actor, err := d.users.GetByID(ctx, ev.ActorID); err == nil {
			data.ActorName = actor.FullName()
		}
	}

	var msg mailer.Message
	switch ev.Kind {
	case KindAssignment:
		msg, err = mailer.AssignmentMessage(data)
	default:
		msg, err = mailer.StatusMessage(data)
	}
	if err != nil {
		return err
	}

	if err := d.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	d.log.Info().
		Str("kind", string(ev.Kind)).
		Str("task_id", ev.TaskID).
		Str("user_id", ev.UserID).
		Msg("notification delivered")
	return nil
}
