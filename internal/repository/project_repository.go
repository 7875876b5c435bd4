package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskflow/internal/database"
	"taskflow/internal/models"
)

type ProjectRepository struct {
	pool *pgxpool.Pool
}

func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{pool: pool}
}

const projectColumns = `id, name, description, color, created_by, created_at, updated_at`

func scanProject(row pgx.Row) (models.Project, error) {
	var project models.Project
	if err := row.Scan(
		&project.ID,
		&project.Name,
		&project.Description,
		&project.Color,
		&project.CreatedBy,
		&project.CreatedAt,
		&project.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Project{}, ErrProjectNotFound
		}
		return models.Project{}, err
	}
	return project, nil
}

func (r *ProjectRepository) Create(ctx context.Context, project models.Project) error {
	const query = `
		INSERT INTO projects (id, name, description, color, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	_, err := database.Conn(ctx, r.pool).Exec(ctx, query,
		project.ID,
		project.Name,
		project.Description,
		project.Color,
		project.CreatedBy,
		project.CreatedAt,
	)
	return err
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (models.Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	return scanProject(database.Conn(ctx, r.pool).QueryRow(ctx, query, id))
}

// LockByID holds a share lock so the project cannot be deleted before the
// surrounding transaction commits a reference to it.
func (r *ProjectRepository) LockByID(ctx context.Context, id string) (models.Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects WHERE id = $1 FOR SHARE`
	return scanProject(database.Conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *ProjectRepository) List(ctx context.Context) ([]models.Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects ORDER BY name ASC, id ASC`

	rows, err := database.Conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func (r *ProjectRepository) Update(ctx context.Context, project models.Project) error {
	const query = `
		UPDATE projects
		SET name = $2, description = $3, color = $4, updated_at = $5
		WHERE id = $1
	`
	cmd, err := database.Conn(ctx, r.pool).Exec(ctx, query,
		project.ID,
		project.Name,
		project.Description,
		project.Color,
		project.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// Delete removes the project; the foreign key clears tasks.project_id.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM projects WHERE id = $1`
	cmd, err := database.Conn(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}
