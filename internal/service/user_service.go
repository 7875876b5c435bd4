package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"taskflow/internal/ids"
	"taskflow/internal/mailer"
	"taskflow/internal/models"
	"taskflow/internal/policy"
	"taskflow/internal/repository"
	"taskflow/internal/security"
)

const (
	minPasswordLength = 8
	maxUsernameLength = 50
)

type UserService struct {
	tx       Transactor
	users    UserStore
	sessions SessionStore
	tasks    TaskStore
	hasher   func(password string) ([]byte, error)
	opts     options
	log      zerolog.Logger
}

func NewUserService(
	tx Transactor,
	users UserStore,
	sessions SessionStore,
	tasks TaskStore,
	log zerolog.Logger,
	opts ...Option,
) *UserService {
	return &UserService{
		tx:       tx,
		users:    users,
		sessions: sessions,
		tasks:    tasks,
		hasher:   security.HashPassword,
		opts:     buildOptions(opts),
		log:      log,
	}
}

// WithHasher swaps the password hasher; tests use cheap argon2 parameters.
func (s *UserService) WithHasher(hasher func(password string) ([]byte, error)) *UserService {
	s.hasher = hasher
	return s
}

type CreateUserInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
	Status    string
}

type UserPatch struct {
	Username  *string
	Email     *string
	Password  *string
	FirstName *string
	LastName  *string
	Role      *string
	Status    *string
}

func (p UserPatch) empty() bool {
	return p.Username == nil && p.Email == nil && p.Password == nil &&
		p.FirstName == nil && p.LastName == nil && p.Role == nil && p.Status == nil
}

func (s *UserService) Create(ctx context.Context, caller models.Identity, input CreateUserInput) (models.User, error) {
	if !policy.Decide(caller, policy.UserCreate, policy.Target{}).Permitted() {
		return models.User{}, ErrForbidden
	}
	user, err := s.Provision(ctx, input)
	if err != nil {
		return models.User{}, err
	}
	s.log.Info().Str("user_id", user.ID).Str("created_by", caller.UserID).Msg("user created")
	return user, nil
}

// Provision creates a user without an acting identity. It backs the admin
// endpoint and the bootstrap CLI.
func (s *UserService) Provision(ctx context.Context, input CreateUserInput) (models.User, error) {
	username, err := validUsername(input.Username)
	if err != nil {
		return models.User{}, err
	}
	email, err := validEmail(input.Email)
	if err != nil {
		return models.User{}, err
	}
	if err := validPassword(input.Password); err != nil {
		return models.User{}, err
	}

	role := models.UserRoleUser
	if input.Role != "" {
		role = models.UserRole(input.Role)
		if !role.Valid() {
			return models.User{}, validationf("invalid role %q", input.Role)
		}
	}
	status := models.UserStatusActive
	if input.Status != "" {
		status = models.UserStatus(input.Status)
		if !status.Valid() {
			return models.User{}, validationf("invalid status %q", input.Status)
		}
	}

	hash, err := s.hasher(input.Password)
	if err != nil {
		return models.User{}, err
	}

	now := s.opts.now()
	user := models.User{
		ID:           ids.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Role:         role,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		exists, err := s.users.ExistsByUsernameOrEmail(ctx, user.Username, user.Email, "")
		if err != nil {
			return err
		}
		if exists {
			return conflictf("username or email already exists")
		}
		return s.users.Create(ctx, user)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return models.User{}, conflictf("username or email already exists")
		}
		return models.User{}, err
	}
	return user.Public(), nil
}

func (s *UserService) List(ctx context.Context, caller models.Identity) ([]models.UserWithStats, error) {
	if !policy.Decide(caller, policy.UserList, policy.Target{}).Permitted() {
		return nil, ErrForbidden
	}
	users, err := s.users.ListWithStats(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].User = users[i].User.Public()
	}
	if users == nil {
		users = []models.UserWithStats{}
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, caller models.Identity, id string) (models.UserWithStats, error) {
	if !policy.Decide(caller, policy.UserRead, policy.Subject(id)).Permitted() {
		return models.UserWithStats{}, ErrForbidden
	}
	user, err := s.users.GetWithStats(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.UserWithStats{}, ErrNotFound
		}
		return models.UserWithStats{}, err
	}
	user.User = user.User.Public()
	return user, nil
}

// Update applies profile and password changes for the user themself or an
// admin. Role and status changes are admin-only.
func (s *UserService) Update(ctx context.Context, caller models.Identity, id string, patch UserPatch) (models.User, error) {
	if !policy.Decide(caller, policy.UserUpdate, policy.Subject(id)).Permitted() {
		return models.User{}, ErrForbidden
	}
	if (patch.Role != nil || patch.Status != nil) &&
		!policy.Decide(caller, policy.UserManage, policy.Subject(id)).Permitted() {
		return models.User{}, ErrForbidden
	}
	if patch.empty() {
		return models.User{}, validationf("no fields to update")
	}

	var updated models.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrNotFound
			}
			return err
		}

		if patch.Username != nil {
			if user.Username, err = validUsername(*patch.Username); err != nil {
				return err
			}
		}
		if patch.Email != nil {
			if user.Email, err = validEmail(*patch.Email); err != nil {
				return err
			}
		}
		if patch.FirstName != nil {
			user.FirstName = strings.TrimSpace(*patch.FirstName)
		}
		if patch.LastName != nil {
			user.LastName = strings.TrimSpace(*patch.LastName)
		}
		if patch.Role != nil {
			user.Role = models.UserRole(*patch.Role)
			if !user.Role.Valid() {
				return validationf("invalid role %q", *patch.Role)
			}
		}
		deactivated := false
		if patch.Status != nil {
			status := models.UserStatus(*patch.Status)
			if !status.Valid() {
				return validationf("invalid status %q", *patch.Status)
			}
			deactivated = user.Active() && status == models.UserStatusInactive
			user.Status = status
		}
		if patch.Password != nil {
			if err := validPassword(*patch.Password); err != nil {
				return err
			}
			if user.PasswordHash, err = s.hasher(*patch.Password); err != nil {
				return err
			}
		}

		if patch.Username != nil || patch.Email != nil {
			exists, err := s.users.ExistsByUsernameOrEmail(ctx, user.Username, user.Email, user.ID)
			if err != nil {
				return err
			}
			if exists {
				return conflictf("username or email already exists")
			}
		}

		user.UpdatedAt = s.opts.now()
		if err := s.users.Update(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicateUser) {
				return conflictf("username or email already exists")
			}
			return err
		}
		if deactivated {
			if err := s.sessions.DeleteByUser(ctx, user.ID); err != nil {
				return err
			}
		}
		updated = user.Public()
		return nil
	})
	if err != nil {
		return models.User{}, err
	}

	s.log.Info().Str("user_id", id).Str("updated_by", caller.UserID).Msg("user updated")
	return updated, nil
}

// Delete removes a user that owns no tasks, together with their sessions.
func (s *UserService) Delete(ctx context.Context, caller models.Identity, id string) error {
	if !policy.Decide(caller, policy.UserDelete, policy.Subject(id)).Permitted() {
		return ErrForbidden
	}
	if id == caller.UserID {
		return validationf("cannot delete your own account")
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.users.GetByID(ctx, id); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrNotFound
			}
			return err
		}
		count, err := s.tasks.CountByUser(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return conflictf("user has %d task(s); reassign or delete them first", count)
		}
		if err := s.sessions.DeleteByUser(ctx, id); err != nil {
			return err
		}
		if err := s.users.Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrUserHasTasks) {
				return conflictf("user has tasks; reassign or delete them first")
			}
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("user_id", id).Str("deleted_by", caller.UserID).Msg("user deleted")
	return nil
}

func validUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if username == "" {
		return "", validationf("username is required")
	}
	if !utf8.ValidString(username) {
		return "", validationf("username must be valid UTF-8")
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return "", validationf("username must be at most %d characters", maxUsernameLength)
	}
	if strings.ContainsAny(username, " \t\n@") {
		return "", validationf("username must not contain spaces or '@'")
	}
	return username, nil
}

func validEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", validationf("email is required")
	}
	addr, err := mailer.ParseAddress(email)
	if err != nil || addr != email {
		return "", validationf("invalid email address")
	}
	return email, nil
}

func validPassword(password string) error {
	if len(password) < minPasswordLength {
		return validationf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}
