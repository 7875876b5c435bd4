package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"taskflow/internal/models"
	"taskflow/internal/repository"
	"taskflow/internal/security"
)

var cheapParams = security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func cheapHash(password string) ([]byte, error) {
	return security.HashPasswordWithParams(password, cheapParams)
}

// memDB is an in-memory stand-in for the postgres repositories. WithinTx
// snapshots every table and restores it when the callback fails.
type memDB struct {
	mu            sync.Mutex
	users         map[string]models.User
	sessions      map[string]models.Session
	projects      map[string]models.Project
	tasks         map[string]models.Task
	notifications []models.Notification

	failAppend error
}

func newMemDB() *memDB {
	return &memDB{
		users:    map[string]models.User{},
		sessions: map[string]models.Session{},
		projects: map[string]models.Project{},
		tasks:    map[string]models.Task{},
	}
}

type memSnapshot struct {
	users         map[string]models.User
	sessions      map[string]models.Session
	projects      map[string]models.Project
	tasks         map[string]models.Task
	notifications []models.Notification
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	s := memSnapshot{
		users:         make(map[string]models.User, len(db.users)),
		sessions:      make(map[string]models.Session, len(db.sessions)),
		projects:      make(map[string]models.Project, len(db.projects)),
		tasks:         make(map[string]models.Task, len(db.tasks)),
		notifications: append([]models.Notification(nil), db.notifications...),
	}
	for k, v := range db.users {
		s.users[k] = v
	}
	for k, v := range db.sessions {
		s.sessions[k] = v
	}
	for k, v := range db.projects {
		s.projects[k] = v
	}
	for k, v := range db.tasks {
		s.tasks[k] = v
	}
	return s
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users = s.users
	db.sessions = s.sessions
	db.projects = s.projects
	db.tasks = s.tasks
	db.notifications = s.notifications
}

type memTx struct{ db *memDB }

func (t memTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := t.db.snapshot()
	if err := fn(ctx); err != nil {
		t.db.restore(snap)
		return err
	}
	return nil
}

type memUsers struct{ db *memDB }

func (s memUsers) Create(_ context.Context, user models.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if u.Username == user.Username || strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicateUser
		}
	}
	s.db.users[user.ID] = user
	return nil
}

func (s memUsers) GetByID(_ context.Context, id string) (models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (s memUsers) FindActiveByLogin(_ context.Context, identifier string) (models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if (u.Username == identifier || strings.EqualFold(u.Email, identifier)) && u.Active() {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (s memUsers) LockByID(ctx context.Context, id string) (models.User, error) {
	return s.GetByID(ctx, id)
}

func (s memUsers) ExistsByUsernameOrEmail(_ context.Context, username, email, excludeID string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if u.ID != excludeID && (u.Username == username || strings.EqualFold(u.Email, email)) {
			return true, nil
		}
	}
	return false, nil
}

func (s memUsers) stats(u models.User) models.UserWithStats {
	out := models.UserWithStats{User: u}
	for _, t := range s.db.tasks {
		if t.AssignedTo != u.ID {
			continue
		}
		out.Stats.TotalTasks++
		switch t.Status {
		case models.TaskStatusCompleted:
			out.Stats.CompletedTasks++
		case models.TaskStatusPending:
			out.Stats.PendingTasks++
		case models.TaskStatusInProgress:
			out.Stats.InProgressTasks++
		}
	}
	return out
}

func (s memUsers) GetWithStats(_ context.Context, id string) (models.UserWithStats, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return models.UserWithStats{}, repository.ErrUserNotFound
	}
	return s.stats(u), nil
}

func (s memUsers) ListWithStats(_ context.Context) ([]models.UserWithStats, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.UserWithStats
	for _, u := range s.db.users {
		out = append(out, s.stats(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s memUsers) Update(_ context.Context, user models.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.users[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	s.db.users[user.ID] = user
	return nil
}

func (s memUsers) Delete(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	for _, t := range s.db.tasks {
		if t.AssignedTo == id || t.CreatedBy == id {
			return repository.ErrUserHasTasks
		}
	}
	delete(s.db.users, id)
	return nil
}

type memSessions struct{ db *memDB }

func (s memSessions) Create(_ context.Context, session models.Session) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.sessions[string(session.TokenHash)] = session
	return nil
}

func (s memSessions) GetByTokenHash(_ context.Context, tokenHash []byte) (models.Session, models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	session, ok := s.db.sessions[string(tokenHash)]
	if !ok {
		return models.Session{}, models.User{}, repository.ErrSessionNotFound
	}
	return session, s.db.users[session.UserID], nil
}

func (s memSessions) DeleteByTokenHash(_ context.Context, tokenHash []byte) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.sessions[string(tokenHash)]; !ok {
		return repository.ErrSessionNotFound
	}
	delete(s.db.sessions, string(tokenHash))
	return nil
}

func (s memSessions) DeleteByUser(_ context.Context, userID string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for k, session := range s.db.sessions {
		if session.UserID == userID {
			delete(s.db.sessions, k)
		}
	}
	return nil
}

func (s memSessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for k, session := range s.db.sessions {
		if !session.ValidAt(now) {
			delete(s.db.sessions, k)
			n++
		}
	}
	return n, nil
}

type memProjects struct{ db *memDB }

func (s memProjects) Create(_ context.Context, project models.Project) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.projects[project.ID] = project
	return nil
}

func (s memProjects) GetByID(_ context.Context, id string) (models.Project, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.projects[id]
	if !ok {
		return models.Project{}, repository.ErrProjectNotFound
	}
	return p, nil
}

func (s memProjects) LockByID(ctx context.Context, id string) (models.Project, error) {
	return s.GetByID(ctx, id)
}

func (s memProjects) List(_ context.Context) ([]models.Project, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.Project
	for _, p := range s.db.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s memProjects) Update(_ context.Context, project models.Project) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.projects[project.ID]; !ok {
		return repository.ErrProjectNotFound
	}
	s.db.projects[project.ID] = project
	return nil
}

func (s memProjects) Delete(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.projects[id]; !ok {
		return repository.ErrProjectNotFound
	}
	delete(s.db.projects, id)
	for k, t := range s.db.tasks {
		if t.ProjectID != nil && *t.ProjectID == id {
			t.ProjectID = nil
			s.db.tasks[k] = t
		}
	}
	return nil
}

type memTasks struct{ db *memDB }

func (s memTasks) Create(_ context.Context, task models.Task) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.tasks[task.ID] = task
	return nil
}

func (s memTasks) matches(t models.Task, q models.TaskQuery) bool {
	switch {
	case q.OwnerID != "" && !t.OwnedBy(q.OwnerID):
		return false
	case q.ID != "" && t.ID != q.ID:
		return false
	case q.Status != "" && t.Status != q.Status:
		return false
	case q.Priority != "" && t.Priority != q.Priority:
		return false
	case q.ProjectID != "" && (t.ProjectID == nil || *t.ProjectID != q.ProjectID):
		return false
	case q.AssignedTo != "" && t.AssignedTo != q.AssignedTo:
		return false
	}
	return true
}

func (s memTasks) withProject(t models.Task) models.Task {
	if t.ProjectID != nil {
		if p, ok := s.db.projects[*t.ProjectID]; ok {
			name, color := p.Name, p.Color
			t.ProjectName, t.ProjectColor = &name, &color
		}
	}
	return t
}

func (s memTasks) Find(_ context.Context, q models.TaskQuery) (models.Task, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tasks[q.ID]
	if !ok || !s.matches(t, q) {
		return models.Task{}, repository.ErrTaskNotFound
	}
	return s.withProject(t), nil
}

func (s memTasks) List(_ context.Context, q models.TaskQuery) ([]models.Task, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.Task
	for _, t := range s.db.tasks {
		if s.matches(t, q) {
			out = append(out, s.withProject(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s memTasks) Update(_ context.Context, task models.Task) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.tasks[task.ID]; !ok {
		return repository.ErrTaskNotFound
	}
	task.ProjectName, task.ProjectColor = nil, nil
	s.db.tasks[task.ID] = task
	return nil
}

func (s memTasks) UpdateStatus(_ context.Context, id string, status models.TaskStatus, updatedAt time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tasks[id]
	if !ok {
		return repository.ErrTaskNotFound
	}
	t.Status, t.UpdatedAt = status, updatedAt
	s.db.tasks[id] = t
	return nil
}

func (s memTasks) Delete(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.tasks[id]; !ok {
		return repository.ErrTaskNotFound
	}
	delete(s.db.tasks, id)
	kept := s.db.notifications[:0]
	for _, n := range s.db.notifications {
		if n.TaskID != id {
			kept = append(kept, n)
		}
	}
	s.db.notifications = kept
	return nil
}

func (s memTasks) CountByUser(_ context.Context, userID string) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	count := 0
	for _, t := range s.db.tasks {
		if t.OwnedBy(userID) {
			count++
		}
	}
	return count, nil
}

type memNotifications struct{ db *memDB }

func (s memNotifications) Append(_ context.Context, n models.Notification) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.failAppend != nil {
		return s.db.failAppend
	}
	s.db.notifications = append(s.db.notifications, n)
	return nil
}

func (s memNotifications) ListFor(_ context.Context, userID string, limit int) ([]models.Notification, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.Notification
	for i := len(s.db.notifications) - 1; i >= 0; i-- {
		n := s.db.notifications[i]
		if n.UserID != userID {
			continue
		}
		n.TaskTitle = s.db.tasks[n.TaskID].Title
		out = append(out, n)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s memNotifications) update(match func(n models.Notification) bool, apply func(n *models.Notification)) int64 {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var count int64
	for i := range s.db.notifications {
		if match(s.db.notifications[i]) {
			apply(&s.db.notifications[i])
			count++
		}
	}
	return count
}

func (s memNotifications) MarkRead(_ context.Context, id string, userID string) error {
	s.update(
		func(n models.Notification) bool { return n.ID == id && n.UserID == userID },
		func(n *models.Notification) { n.Read = true },
	)
	return nil
}

func (s memNotifications) MarkAllRead(_ context.Context, userID string) (int64, error) {
	return s.update(
		func(n models.Notification) bool { return n.UserID == userID && !n.Read },
		func(n *models.Notification) { n.Read = true },
	), nil
}

func (s memNotifications) UnreadCount(_ context.Context, userID string) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	count := 0
	for _, n := range s.db.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s memNotifications) MarkDeliveryAttempted(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.update(
		func(n models.Notification) bool { return n.ID == id },
		func(n *models.Notification) { n.DeliveryAttempted = true },
	) == 0 {
		return repository.ErrNotificationNotFound
	}
	return nil
}

func (db *memDB) notificationsFor(userID string) []models.Notification {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.Notification
	for _, n := range db.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type notifierCall struct {
	kind   string
	taskID string
	userID string
	actor  string
	status models.TaskStatus
}

type recordingNotifier struct {
	mu     sync.Mutex
	result bool
	calls  []notifierCall

	// onNotify runs before each call is recorded.
	onNotify func()
}

func (r *recordingNotifier) NotifyAssignment(_ context.Context, taskID, assigneeID, actingUserID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.onNotify != nil {
		r.onNotify()
	}
	r.calls = append(r.calls, notifierCall{kind: "assignment", taskID: taskID, userID: assigneeID, actor: actingUserID})
	return r.result
}

func (r *recordingNotifier) NotifyStatusChange(_ context.Context, taskID, userID string, status models.TaskStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.onNotify != nil {
		r.onNotify()
	}
	r.calls = append(r.calls, notifierCall{kind: "status", taskID: taskID, userID: userID, status: status})
	return r.result
}

// fixedClock advances one second per call so ordering by time is stable.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fixedClock {
	return &fixedClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	db       *memDB
	clock    *fixedClock
	notifier *recordingNotifier
	auth     *AuthService
	tasks    *TaskService
	users    *UserService
	projects *ProjectService
	ledger   *NotificationService

	admin models.Identity
	u1    models.Identity
	u2    models.Identity
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := newMemDB()
	clock := newClock()
	notifier := &recordingNotifier{result: true}
	log := zerolog.Nop()
	opt := WithClock(clock.Now)

	tx := memTx{db: db}
	users := memUsers{db: db}
	sessions := memSessions{db: db}
	projects := memProjects{db: db}
	tasks := memTasks{db: db}
	ledger := NewNotificationService(memNotifications{db: db}, log, opt)

	h := &harness{
		db:       db,
		clock:    clock,
		notifier: notifier,
		auth:     NewAuthService(users, sessions, authConfig(), log, opt),
		tasks:    NewTaskService(tx, tasks, users, projects, ledger, notifier, log, opt),
		users:    NewUserService(tx, users, sessions, tasks, log, opt).WithHasher(cheapHash),
		projects: NewProjectService(projects, log, opt),
		ledger:   ledger,
	}

	h.admin = h.seedUser(t, "admin", "admin-password", models.UserRoleAdmin)
	h.u1 = h.seedUser(t, "u1", "u1-password", models.UserRoleUser)
	h.u2 = h.seedUser(t, "u2", "u2-password", models.UserRoleUser)
	return h
}

func (h *harness) seedUser(t *testing.T, username, password string, role models.UserRole) models.Identity {
	t.Helper()
	user, err := h.users.Provision(context.Background(), CreateUserInput{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
		Role:     string(role),
	})
	if err != nil {
		t.Fatalf("seed %s: %v", username, err)
	}
	return models.Identity{UserID: user.ID, Username: user.Username, Role: user.Role}
}

func (h *harness) createTask(t *testing.T, title string, assignee models.Identity) models.Task {
	t.Helper()
	task, err := h.tasks.Create(context.Background(), h.admin, CreateTaskInput{
		Title:      title,
		AssignedTo: assignee.UserID,
	})
	if err != nil {
		t.Fatalf("create %q: %v", title, err)
	}
	return task
}

func mustErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}
