package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"taskflow/internal/database"
	"taskflow/internal/models"
)

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) Append(ctx context.Context, n models.Notification) error {
	const query = `
		INSERT INTO task_notifications (id, task_id, user_id, type, message, is_read, delivery_attempted, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, FALSE, $6)
	`
	_, err := database.Conn(ctx, r.pool).Exec(ctx, query,
		n.ID,
		n.TaskID,
		n.UserID,
		n.Type,
		n.Message,
		n.CreatedAt,
	)
	return err
}

func (r *NotificationRepository) ListFor(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	const query = `
		SELECT n.id, n.task_id, n.user_id, n.type, n.message, n.is_read, n.delivery_attempted, n.created_at,
		       COALESCE(t.title, '')
		FROM task_notifications n
		LEFT JOIN tasks t ON t.id = n.task_id
		WHERE n.user_id = $1
		ORDER BY n.created_at DESC, n.id DESC
		LIMIT $2
	`
	rows, err := database.Conn(ctx, r.pool).Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(
			&n.ID,
			&n.TaskID,
			&n.UserID,
			&n.Type,
			&n.Message,
			&n.Read,
			&n.DeliveryAttempted,
			&n.CreatedAt,
			&n.TaskTitle,
		); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead only touches a row owned by userID; a foreign or missing id is a
// silent no-op.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string, userID string) error {
	const query = `UPDATE task_notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`
	_, err := database.Conn(ctx, r.pool).Exec(ctx, query, id, userID)
	return err
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	const query = `UPDATE task_notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`
	cmd, err := database.Conn(ctx, r.pool).Exec(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM task_notifications WHERE user_id = $1 AND is_read = FALSE`
	var count int
	err := database.Conn(ctx, r.pool).QueryRow(ctx, query, userID).Scan(&count)
	return count, err
}

func (r *NotificationRepository) MarkDeliveryAttempted(ctx context.Context, id string) error {
	const query = `UPDATE task_notifications SET delivery_attempted = TRUE WHERE id = $1`
	cmd, err := database.Conn(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
