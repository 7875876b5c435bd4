package repository

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"taskflow/internal/config"
	"taskflow/internal/database"
	"taskflow/internal/ids"
	"taskflow/internal/models"
)

// testDSNEnv names a disposable database. The schema is applied on every
// run; rows are created with fresh ids and removed afterwards.
const testDSNEnv = "TASKFLOW_TEST_POSTGRES_DSN"

type pgFixture struct {
	pool          *pgxpool.Pool
	tx            *database.Transactor
	users         *UserRepository
	sessions      *SessionRepository
	projects      *ProjectRepository
	tasks         *TaskRepository
	notifications *NotificationRepository
}

func openPostgres(t *testing.T) *pgFixture {
	t.Helper()

	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, config.PostgresConfig{DSN: dsn, MaxOpen: 4, ConnMaxLifetime: time.Minute})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := database.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return &pgFixture{
		pool:          pool,
		tx:            database.NewTransactor(pool),
		users:         NewUserRepository(pool),
		sessions:      NewSessionRepository(pool),
		projects:      NewProjectRepository(pool),
		tasks:         NewTaskRepository(pool),
		notifications: NewNotificationRepository(pool),
	}
}

func (f *pgFixture) user(t *testing.T, email string) models.User {
	t.Helper()
	id := ids.New()
	if email == "" {
		email = strings.ToLower(id) + "@example.com"
	}
	user := models.User{
		ID:           id,
		Username:     "u-" + id,
		Email:        email,
		PasswordHash: []byte("hash"),
		Role:         models.UserRoleUser,
		Status:       models.UserStatusActive,
		CreatedAt:    time.Now().UTC(),
	}
	if err := f.users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = f.pool.Exec(ctx, `DELETE FROM tasks WHERE assigned_to = $1 OR created_by = $1`, id)
		_, _ = f.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	})
	return user
}

func (f *pgFixture) task(t *testing.T, assignee, creator string, projectID *string) models.Task {
	t.Helper()
	now := time.Now().UTC()
	task := models.Task{
		ID:         ids.New(),
		Title:      "task " + now.Format(time.RFC3339Nano),
		Status:     models.TaskStatusPending,
		Priority:   models.TaskPriorityMedium,
		ProjectID:  projectID,
		AssignedTo: assignee,
		CreatedBy:  creator,
		Tags:       []string{"a", "b"},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := f.tasks.Create(context.Background(), task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func TestPostgresEmailUniqueIgnoresCase(t *testing.T) {
	f := openPostgres(t)
	ctx := context.Background()

	local := strings.ToLower(ids.New())
	first := f.user(t, "Mixed."+local+"@Example.com")

	dup := models.User{
		ID:           ids.New(),
		Username:     "u-" + ids.New(),
		Email:        "mixed." + local + "@example.com",
		PasswordHash: []byte("hash"),
		Role:         models.UserRoleUser,
		Status:       models.UserStatusActive,
		CreatedAt:    time.Now().UTC(),
	}
	if err := f.users.Create(ctx, dup); !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("create case variant = %v, want ErrDuplicateUser", err)
	}

	found, err := f.users.FindActiveByLogin(ctx, "MIXED."+strings.ToUpper(local)+"@EXAMPLE.COM")
	if err != nil {
		t.Fatalf("login lookup: %v", err)
	}
	if found.ID != first.ID {
		t.Fatalf("login matched %s, want %s", found.ID, first.ID)
	}
}

func TestPostgresProjectDeleteDetachesTasks(t *testing.T) {
	f := openPostgres(t)
	ctx := context.Background()
	admin := f.user(t, "")

	project := models.Project{
		ID:        ids.New(),
		Name:      "Website",
		Color:     models.DefaultProjectColor,
		CreatedBy: &admin.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.projects.Create(ctx, project); err != nil {
		t.Fatalf("create project: %v", err)
	}
	task := f.task(t, admin.ID, admin.ID, &project.ID)

	got, err := f.tasks.Find(ctx, models.TaskQuery{ID: task.ID})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ProjectName == nil || *got.ProjectName != "Website" {
		t.Fatalf("project name = %v", got.ProjectName)
	}

	if err := f.projects.Delete(ctx, project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	got, err = f.tasks.Find(ctx, models.TaskQuery{ID: task.ID})
	if err != nil {
		t.Fatalf("task must survive its project: %v", err)
	}
	if got.ProjectID != nil || got.ProjectName != nil {
		t.Fatalf("project reference = %v, want cleared", got.ProjectID)
	}
}

func TestPostgresTaskDeleteCascadesNotifications(t *testing.T) {
	f := openPostgres(t)
	ctx := context.Background()
	admin := f.user(t, "")
	assignee := f.user(t, "")
	task := f.task(t, assignee.ID, admin.ID, nil)

	n := models.Notification{
		ID:        ids.New(),
		TaskID:    task.ID,
		UserID:    assignee.ID,
		Type:      models.NotificationTaskAssigned,
		Message:   "assigned",
		CreatedAt: time.Now().UTC(),
	}
	if err := f.notifications.Append(ctx, n); err != nil {
		t.Fatalf("append: %v", err)
	}
	if count, err := f.notifications.UnreadCount(ctx, assignee.ID); err != nil || count != 1 {
		t.Fatalf("unread = %d, %v", count, err)
	}

	if err := f.tasks.Delete(ctx, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.tasks.Delete(ctx, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("second delete = %v, want ErrTaskNotFound", err)
	}
	list, err := f.notifications.ListFor(ctx, assignee.ID, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("notifications = %d, want cascaded away", len(list))
	}
}

func TestPostgresOwnerFilterAndRowLocks(t *testing.T) {
	f := openPostgres(t)
	ctx := context.Background()
	admin := f.user(t, "")
	owner := f.user(t, "")
	other := f.user(t, "")

	mine := f.task(t, owner.ID, admin.ID, nil)
	f.task(t, other.ID, admin.ID, nil)
	created := f.task(t, other.ID, owner.ID, nil)

	list, err := f.tasks.List(ctx, models.TaskQuery{OwnerID: owner.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("owner sees %d tasks, want 2", len(list))
	}
	for _, task := range list {
		if !task.OwnedBy(owner.ID) {
			t.Fatalf("leaked task %s", task.ID)
		}
	}
	if list[0].ID != created.ID {
		t.Fatalf("newest first: got %s", list[0].ID)
	}

	filtered, err := f.tasks.List(ctx, models.TaskQuery{OwnerID: owner.ID, AssignedTo: other.ID})
	if err != nil || len(filtered) != 1 || filtered[0].ID != created.ID {
		t.Fatalf("filtered = %v, %v", filtered, err)
	}

	err = f.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := f.users.LockByID(ctx, owner.ID); err != nil {
			return err
		}
		locked, err := f.tasks.Find(ctx, models.TaskQuery{ID: mine.ID, OwnerID: owner.ID, ForUpdate: true})
		if err != nil {
			return err
		}
		if _, err := f.tasks.Find(ctx, models.TaskQuery{ID: mine.ID, OwnerID: other.ID, ForUpdate: true}); !errors.Is(err, ErrTaskNotFound) {
			t.Errorf("out of scope lookup = %v, want ErrTaskNotFound", err)
		}
		return f.tasks.UpdateStatus(ctx, locked.ID, models.TaskStatusCompleted, time.Now().UTC())
	})
	if err != nil {
		t.Fatalf("locked update: %v", err)
	}

	got, err := f.tasks.Find(ctx, models.TaskQuery{ID: mine.ID})
	if err != nil || got.Status != models.TaskStatusCompleted {
		t.Fatalf("status = %s, %v", got.Status, err)
	}
}

func TestPostgresUserDeleteRules(t *testing.T) {
	f := openPostgres(t)
	ctx := context.Background()
	admin := f.user(t, "")
	busy := f.user(t, "")
	idle := f.user(t, "")
	f.task(t, busy.ID, admin.ID, nil)

	if err := f.users.Delete(ctx, busy.ID); !errors.Is(err, ErrUserHasTasks) {
		t.Fatalf("delete assignee = %v, want ErrUserHasTasks", err)
	}

	token := []byte(ids.New())
	now := time.Now().UTC()
	session := models.Session{
		ID:        ids.New(),
		TokenHash: token,
		UserID:    idle.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := f.sessions.Create(ctx, session); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := f.users.Delete(ctx, idle.ID); err != nil {
		t.Fatalf("delete idle user: %v", err)
	}
	if _, _, err := f.sessions.GetByTokenHash(ctx, token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("session after user delete = %v, want ErrSessionNotFound", err)
	}
}
