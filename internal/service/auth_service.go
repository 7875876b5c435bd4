package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"taskflow/internal/config"
	"taskflow/internal/ids"
	"taskflow/internal/models"
	"taskflow/internal/repository"
	"taskflow/internal/security"
)

type AuthService struct {
	users    UserStore
	sessions SessionStore
	ttl      time.Duration
	opts     options
	log      zerolog.Logger
}

func NewAuthService(
	users UserStore,
	sessions SessionStore,
	cfg config.SecurityConfig,
	log zerolog.Logger,
	opts ...Option,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		ttl:      cfg.SessionTTL,
		opts:     buildOptions(opts),
		log:      log,
	}
}

type ClientMeta struct {
	IPAddress string
	UserAgent string
}

type LoginInput struct {
	Identifier string
	Password   string
	Client     ClientMeta
}

type AuthResult struct {
	Token   string
	Session models.Session
	User    models.User
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// burnVerification spends one full argon2 verification so that unknown
// identifiers take as long to reject as wrong passwords.
func burnVerification(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = security.HashPassword("taskflow-timing-equalizer")
	})
	_, _ = security.VerifyPassword(password, dummyHash)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" || input.Password == "" {
		return AuthResult{}, validationf("username and password are required")
	}

	user, err := s.users.FindActiveByLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			burnVerification(input.Password)
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("stored password hash unreadable")
		return AuthResult{}, ErrInvalidCredentials
	}
	if !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	token, tokenHash, err := security.GenerateSessionToken()
	if err != nil {
		return AuthResult{}, err
	}

	now := s.opts.now()
	session := models.Session{
		ID:        ids.New(),
		TokenHash: tokenHash,
		UserID:    user.ID,
		IPAddress: orUnknown(input.Client.IPAddress),
		UserAgent: orUnknown(input.Client.UserAgent),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return AuthResult{}, err
	}

	s.log.Info().
		Str("user_id", user.ID).
		Str("session_id", session.ID).
		Str("ip", session.IPAddress).
		Msg("login succeeded")

	return AuthResult{
		Token:   token,
		Session: session,
		User:    user.Public(),
	}, nil
}

// Logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := s.sessions.DeleteByTokenHash(ctx, security.HashSessionToken(token))
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return err
	}
	return nil
}

// Resolve maps a session token to the caller's identity. Expiry is checked
// on every call and never extended.
func (s *AuthService) Resolve(ctx context.Context, token string) (models.Identity, error) {
	if token == "" {
		return models.Identity{}, ErrUnauthenticated
	}

	session, user, err := s.sessions.GetByTokenHash(ctx, security.HashSessionToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return models.Identity{}, ErrUnauthenticated
		}
		return models.Identity{}, err
	}

	if !session.ValidAt(s.opts.now()) {
		return models.Identity{}, ErrUnauthenticated
	}
	if user.Status != models.UserStatusActive {
		return models.Identity{}, ErrUnauthenticated
	}

	return models.Identity{
		UserID:    session.UserID,
		Username:  user.Username,
		Role:      user.Role,
		SessionID: session.ID,
	}, nil
}

func (s *AuthService) RequireRole(identity models.Identity, role models.UserRole) error {
	if identity.UserID == "" {
		return ErrUnauthenticated
	}
	if identity.Role != role {
		return ErrForbidden
	}
	return nil
}

func (s *AuthService) Profile(ctx context.Context, identity models.Identity) (models.User, error) {
	user, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrUnauthenticated
		}
		return models.User{}, err
	}
	return user.Public(), nil
}

// PurgeExpired deletes sessions past their expiry. Validity never depends on
// it having run.
func (s *AuthService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.opts.now())
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return "unknown"
	}
	return v
}
