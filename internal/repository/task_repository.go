package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskflow/internal/database"
	"taskflow/internal/models"
)

type TaskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

func scanTask(row pgx.Row) (models.Task, error) {
	var task models.Task
	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.DueDate,
		&task.DueTime,
		&task.ProjectID,
		&task.AssignedTo,
		&task.CreatedBy,
		&task.Tags,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.ProjectName,
		&task.ProjectColor,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Task{}, ErrTaskNotFound
		}
		return models.Task{}, err
	}
	return task, nil
}

func (r *TaskRepository) Create(ctx context.Context, task models.Task) error {
	const query = `
		INSERT INTO tasks (
			id, title, description, status, priority, due_date, due_time, project_id,
			assigned_to, created_by, tags, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`
	tags := task.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err := database.Conn(ctx, r.pool).Exec(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.DueDate,
		task.DueTime,
		task.ProjectID,
		task.AssignedTo,
		task.CreatedBy,
		tags,
		task.CreatedAt,
		task.UpdatedAt,
	)
	return err
}

// Find returns the single row matching q.ID within q's restrictions.
func (r *TaskRepository) Find(ctx context.Context, q models.TaskQuery) (models.Task, error) {
	if q.ID == "" {
		return models.Task{}, ErrTaskNotFound
	}
	query, args := buildTaskQuery(q)
	return scanTask(database.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
}

func (r *TaskRepository) List(ctx context.Context, q models.TaskQuery) ([]models.Task, error) {
	query, args := buildTaskQuery(q)

	rows, err := database.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) Update(ctx context.Context, task models.Task) error {
	const query = `
		UPDATE tasks
		SET title = $2,
		    description = $3,
		    status = $4,
		    priority = $5,
		    due_date = $6,
		    due_time = $7,
		    project_id = $8,
		    assigned_to = $9,
		    tags = $10,
		    updated_at = $11
		WHERE id = $1
	`
	tags := task.Tags
	if tags == nil {
		tags = []string{}
	}

	cmd, err := database.Conn(ctx, r.pool).Exec(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.DueDate,
		task.DueTime,
		task.ProjectID,
		task.AssignedTo,
		tags,
		task.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepository) UpdateStatus(ctx context.Context, id string, status models.TaskStatus, updatedAt time.Time) error {
	const query = `UPDATE tasks SET status = $2, updated_at = $3 WHERE id = $1`
	cmd, err := database.Conn(ctx, r.pool).Exec(ctx, query, id, status, updatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Delete removes the task; notification rows cascade with it.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	cmd, err := database.Conn(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM tasks WHERE assigned_to = $1 OR created_by = $1`
	var count int
	err := database.Conn(ctx, r.pool).QueryRow(ctx, query, userID).Scan(&count)
	return count, err
}
