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

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, session models.Session) error {
	const query = `
		INSERT INTO user_sessions (
			id, token_hash, user_id, ip_address, user_agent, created_at, expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := database.Conn(ctx, r.pool).Exec(ctx, query,
		session.ID,
		session.TokenHash,
		session.UserID,
		session.IPAddress,
		session.UserAgent,
		session.CreatedAt,
		session.ExpiresAt,
	)
	return err
}

// GetByTokenHash returns the session together with the current role, username
// and status of its user. Expiry is left to the caller.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash []byte) (models.Session, models.User, error) {
	const query = `
		SELECT s.id, s.token_hash, s.user_id, s.ip_address, s.user_agent, s.created_at, s.expires_at,
		       u.username, u.role, u.status
		FROM user_sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = $1
	`

	var (
		session models.Session
		user    models.User
	)
	if err := database.Conn(ctx, r.pool).QueryRow(ctx, query, tokenHash).Scan(
		&session.ID,
		&session.TokenHash,
		&session.UserID,
		&session.IPAddress,
		&session.UserAgent,
		&session.CreatedAt,
		&session.ExpiresAt,
		&user.Username,
		&user.Role,
		&user.Status,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, models.User{}, ErrSessionNotFound
		}
		return models.Session{}, models.User{}, err
	}
	user.ID = session.UserID
	return session, user, nil
}

func (r *SessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash []byte) error {
	const query = `DELETE FROM user_sessions WHERE token_hash = $1`
	cmd, err := database.Conn(ctx, r.pool).Exec(ctx, query, tokenHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) DeleteByUser(ctx context.Context, userID string) error {
	const query = `DELETE FROM user_sessions WHERE user_id = $1`
	_, err := database.Conn(ctx, r.pool).Exec(ctx, query, userID)
	return err
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM user_sessions WHERE expires_at <= $1`
	cmd, err := database.Conn(ctx, r.pool).Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
