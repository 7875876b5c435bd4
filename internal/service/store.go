package service

import (
	"context"
	"time"

	"taskflow/internal/models"
)

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	GetByID(ctx context.Context, id string) (models.User, error)
	FindActiveByLogin(ctx context.Context, identifier string) (models.User, error)
	LockByID(ctx context.Context, id string) (models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email, excludeID string) (bool, error)
	GetWithStats(ctx context.Context, id string) (models.UserWithStats, error)
	ListWithStats(ctx context.Context) ([]models.UserWithStats, error)
	Update(ctx context.Context, user models.User) error
	Delete(ctx context.Context, id string) error
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	GetByTokenHash(ctx context.Context, tokenHash []byte) (models.Session, models.User, error)
	DeleteByTokenHash(ctx context.Context, tokenHash []byte) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type ProjectStore interface {
	Create(ctx context.Context, project models.Project) error
	GetByID(ctx context.Context, id string) (models.Project, error)
	LockByID(ctx context.Context, id string) (models.Project, error)
	List(ctx context.Context) ([]models.Project, error)
	Update(ctx context.Context, project models.Project) error
	Delete(ctx context.Context, id string) error
}

type TaskStore interface {
	Create(ctx context.Context, task models.Task) error
	Find(ctx context.Context, q models.TaskQuery) (models.Task, error)
	List(ctx context.Context, q models.TaskQuery) ([]models.Task, error)
	Update(ctx context.Context, task models.Task) error
	UpdateStatus(ctx context.Context, id string, status models.TaskStatus, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
	CountByUser(ctx context.Context, userID string) (int, error)
}

type NotificationStore interface {
	Append(ctx context.Context, n models.Notification) error
	ListFor(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id string, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkDeliveryAttempted(ctx context.Context, id string) error
}

// Notifier is the delivery collaborator. A false result is logged by the
// caller and never fails the operation that triggered it.
type Notifier interface {
	NotifyAssignment(ctx context.Context, taskID, assigneeID, actingUserID string) bool
	NotifyStatusChange(ctx context.Context, taskID, userID string, status models.TaskStatus) bool
}

type noopNotifier struct{}

func (noopNotifier) NotifyAssignment(context.Context, string, string, string) bool { return false }

func (noopNotifier) NotifyStatusChange(context.Context, string, string, models.TaskStatus) bool {
	return false
}

type Option func(*options)

type options struct {
	now func() time.Time
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
