package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"taskflow/internal/ids"
	"taskflow/internal/models"
	"taskflow/internal/policy"
)

const (
	DefaultNotificationLimit = 10
	MaxNotificationLimit     = 100
)

// NotificationService is the per-user notification ledger. Entries are
// appended inside the transaction of the task change that caused them.
type NotificationService struct {
	store NotificationStore
	opts  options
	log   zerolog.Logger
}

func NewNotificationService(store NotificationStore, log zerolog.Logger, opts ...Option) *NotificationService {
	return &NotificationService{
		store: store,
		opts:  buildOptions(opts),
		log:   log,
	}
}

func (s *NotificationService) Append(
	ctx context.Context,
	taskID, userID string,
	typ models.NotificationType,
	message string,
) (models.Notification, error) {
	if !typ.Valid() {
		return models.Notification{}, validationf("unknown notification type %q", typ)
	}
	if taskID == "" || userID == "" {
		return models.Notification{}, validationf("task and recipient are required")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return models.Notification{}, validationf("message is required")
	}

	n := models.Notification{
		ID:        ids.New(),
		TaskID:    taskID,
		UserID:    userID,
		Type:      typ,
		Message:   message,
		CreatedAt: s.opts.now(),
	}
	if err := s.store.Append(ctx, n); err != nil {
		return models.Notification{}, err
	}
	return n, nil
}

// ListFor returns the caller's own entries, newest first. Notifications are
// personal, so admins see only theirs as well.
func (s *NotificationService) ListFor(ctx context.Context, caller models.Identity, limit int) ([]models.Notification, error) {
	owner, err := notificationOwner(caller)
	if err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = DefaultNotificationLimit
	case limit > MaxNotificationLimit:
		limit = MaxNotificationLimit
	}
	items, err := s.store.ListFor(ctx, owner, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, nil
}

// MarkRead silently ignores ids that do not exist or belong to someone else.
func (s *NotificationService) MarkRead(ctx context.Context, caller models.Identity, id string) error {
	owner, err := notificationOwner(caller)
	if err != nil {
		return err
	}
	return s.store.MarkRead(ctx, id, owner)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, caller models.Identity) (int64, error) {
	owner, err := notificationOwner(caller)
	if err != nil {
		return 0, err
	}
	return s.store.MarkAllRead(ctx, owner)
}

func (s *NotificationService) UnreadCount(ctx context.Context, caller models.Identity) (int, error) {
	owner, err := notificationOwner(caller)
	if err != nil {
		return 0, err
	}
	return s.store.UnreadCount(ctx, owner)
}

func (s *NotificationService) MarkDeliveryAttempted(ctx context.Context, id string) error {
	return s.store.MarkDeliveryAttempted(ctx, id)
}

func notificationOwner(caller models.Identity) (string, error) {
	if caller.UserID == "" {
		return "", ErrUnauthenticated
	}
	if !policy.Decide(caller, policy.NotificationRead, policy.Target{}).Permitted() {
		return "", ErrForbidden
	}
	return caller.UserID, nil
}
