package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskflow/internal/database"
	"taskflow/internal/models"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, username, email, password_hash, first_name, last_name, role, status, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, username, email, password_hash, first_name, last_name, role, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $9
		)
	`

	_, err := database.Conn(ctx, r.pool).Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Role,
		user.Status,
		user.CreatedAt,
	)
	if pgCode(err) == pgUniqueViolation {
		return ErrDuplicateUser
	}
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(database.Conn(ctx, r.pool).QueryRow(ctx, query, id))
}

// FindActiveByLogin matches either username or email among active users.
func (r *UserRepository) FindActiveByLogin(ctx context.Context, identifier string) (models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE (username = $1 OR lower(email) = lower($1)) AND status = 'active'
		LIMIT 1
	`
	return scanUser(database.Conn(ctx, r.pool).QueryRow(ctx, query, identifier))
}

// LockByID takes a share lock so that concurrent deactivation or deletion
// waits for the surrounding transaction.
func (r *UserRepository) LockByID(ctx context.Context, id string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR SHARE`
	return scanUser(database.Conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email, excludeID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE (username = $1 OR lower(email) = lower($2)) AND id <> $3
		)
	`
	var exists bool
	err := database.Conn(ctx, r.pool).QueryRow(ctx, query, username, email, excludeID).Scan(&exists)
	return exists, err
}

const userStatsQuery = `
	SELECT u.id, u.username, u.email, u.password_hash, u.first_name, u.last_name, u.role, u.status,
	       u.created_at, u.updated_at,
	       COUNT(t.id),
	       COUNT(t.id) FILTER (WHERE t.status = 'completed'),
	       COUNT(t.id) FILTER (WHERE t.status = 'pending'),
	       COUNT(t.id) FILTER (WHERE t.status = 'in_progress')
	FROM users u
	LEFT JOIN tasks t ON t.assigned_to = u.id
`

func scanUserWithStats(row pgx.Row) (models.UserWithStats, error) {
	var u models.UserWithStats
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Role,
		&u.Status,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.Stats.TotalTasks,
		&u.Stats.CompletedTasks,
		&u.Stats.PendingTasks,
		&u.Stats.InProgressTasks,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.UserWithStats{}, ErrUserNotFound
		}
		return models.UserWithStats{}, err
	}
	return u, nil
}

func (r *UserRepository) GetWithStats(ctx context.Context, id string) (models.UserWithStats, error) {
	query := userStatsQuery + ` WHERE u.id = $1 GROUP BY u.id`
	return scanUserWithStats(database.Conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *UserRepository) ListWithStats(ctx context.Context) ([]models.UserWithStats, error) {
	query := userStatsQuery + ` GROUP BY u.id ORDER BY u.created_at DESC, u.id DESC`

	rows, err := database.Conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.UserWithStats
	for rows.Next() {
		user, err := scanUserWithStats(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) Update(ctx context.Context, user models.User) error {
	const query = `
		UPDATE users
		SET username = $2,
		    email = $3,
		    password_hash = $4,
		    first_name = $5,
		    last_name = $6,
		    role = $7,
		    status = $8,
		    updated_at = $9
		WHERE id = $1
	`
	cmd, err := database.Conn(ctx, r.pool).Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Role,
		user.Status,
		user.UpdatedAt,
	)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return ErrDuplicateUser
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = $1`
	cmd, err := database.Conn(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return ErrUserHasTasks
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
