package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"taskflow/internal/ids"
	"taskflow/internal/models"
	"taskflow/internal/policy"
	"taskflow/internal/repository"
)

// TaskService is the task lifecycle engine. Every mutation runs in one
// transaction together with the ledger entries it produces; delivery is
// attempted only after commit.
type TaskService struct {
	tx       Transactor
	tasks    TaskStore
	users    UserStore
	projects ProjectStore
	ledger   *NotificationService
	notifier Notifier
	opts     options
	log      zerolog.Logger
}

func NewTaskService(
	tx Transactor,
	tasks TaskStore,
	users UserStore,
	projects ProjectStore,
	ledger *NotificationService,
	notifier Notifier,
	log zerolog.Logger,
	opts ...Option,
) *TaskService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &TaskService{
		tx:       tx,
		tasks:    tasks,
		users:    users,
		projects: projects,
		ledger:   ledger,
		notifier: notifier,
		opts:     buildOptions(opts),
		log:      log,
	}
}

type CreateTaskInput struct {
	Title       string
	Description string
	Priority    string
	DueDate     string
	DueTime     string
	ProjectID   string
	AssignedTo  string
	Tags        []string
}

// TaskPatch carries only the fields present in an update payload. Extra
// holds payload keys that map to no field; they still count when deciding
// whether an update is status-only.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *string
	Status      *string
	DueDate     *string
	DueTime     *string
	ProjectID   *string
	AssignedTo  *string
	Tags        *[]string
	Extra       []string
}

func StatusPatch(status models.TaskStatus) TaskPatch {
	s := string(status)
	return TaskPatch{Status: &s}
}

func (p TaskPatch) Keys() []string {
	var keys []string
	add := func(set bool, key string) {
		if set {
			keys = append(keys, key)
		}
	}
	add(p.Title != nil, "title")
	add(p.Description != nil, "description")
	add(p.Priority != nil, "priority")
	add(p.Status != nil, "status")
	add(p.DueDate != nil, "dueDate")
	add(p.DueTime != nil, "dueTime")
	add(p.ProjectID != nil, "projectId")
	add(p.AssignedTo != nil, "assignedTo")
	add(p.Tags != nil, "tags")
	return append(keys, p.Extra...)
}

type TaskFilter struct {
	Status     string
	Priority   string
	ProjectID  string
	AssignedTo string
}

// pendingDelivery is a ledger entry waiting for the post-commit notifier call.
type pendingDelivery struct {
	notification models.Notification
	actorID      string
	status       models.TaskStatus
}

func (s *TaskService) Create(ctx context.Context, caller models.Identity, input CreateTaskInput) (models.Task, error) {
	if !policy.Decide(caller, policy.TaskCreate, policy.Target{}).Permitted() {
		return models.Task{}, ErrForbidden
	}

	title, err := validTitle(input.Title)
	if err != nil {
		return models.Task{}, err
	}
	assignee := strings.TrimSpace(input.AssignedTo)
	if assignee == "" {
		return models.Task{}, validationf("assignee is required")
	}
	dueDate, err := parseDueDate(input.DueDate)
	if err != nil {
		return models.Task{}, err
	}
	dueTime, err := parseDueTime(input.DueTime)
	if err != nil {
		return models.Task{}, err
	}

	now := s.opts.now()
	task := models.Task{
		ID:          ids.New(),
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      models.TaskStatusPending,
		Priority:    models.ParsePriority(input.Priority),
		DueDate:     dueDate,
		DueTime:     dueTime,
		ProjectID:   optionalID(input.ProjectID),
		AssignedTo:  assignee,
		CreatedBy:   caller.UserID,
		Tags:        normalizeTags(input.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var (
		created    models.Task
		deliveries []pendingDelivery
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.requireAssignable(ctx, task.AssignedTo); err != nil {
			return err
		}
		if task.ProjectID != nil {
			if err := s.requireProject(ctx, *task.ProjectID); err != nil {
				return err
			}
		}
		if err := s.tasks.Create(ctx, task); err != nil {
			return err
		}

		n, err := s.ledger.Append(ctx, task.ID, task.AssignedTo, models.NotificationTaskAssigned,
			fmt.Sprintf("You have been assigned a new task: %s", task.Title))
		if err != nil {
			return err
		}
		deliveries = append(deliveries, pendingDelivery{notification: n, actorID: caller.UserID})

		created, err = s.tasks.Find(ctx, models.TaskQuery{ID: task.ID})
		return err
	})
	if err != nil {
		return models.Task{}, err
	}

	s.log.Info().
		Str("task_id", created.ID).
		Str("assigned_to", created.AssignedTo).
		Str("created_by", caller.UserID).
		Msg("task created")

	s.deliver(ctx, deliveries)
	return created, nil
}

func (s *TaskService) Update(ctx context.Context, caller models.Identity, taskID string, patch TaskPatch) (models.Task, error) {
	if caller.UserID == "" {
		return models.Task{}, ErrUnauthenticated
	}
	if len(patch.Keys()) == 0 {
		return models.Task{}, validationf("no fields to update")
	}
	statusOnly := policy.StatusOnly(patch.Keys())

	var status models.TaskStatus
	if patch.Status != nil {
		status = models.TaskStatus(strings.TrimSpace(*patch.Status))
		if !status.Valid() {
			return models.Task{}, validationf("invalid status %q", *patch.Status)
		}
	}

	var (
		updated    models.Task
		deliveries []pendingDelivery
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.findScoped(ctx, caller, taskID, true)
		if err != nil {
			return err
		}

		if statusOnly {
			if !policy.Decide(caller, policy.TaskUpdateStatus, policy.Owners(current)).Permitted() {
				return ErrForbidden
			}
			deliveries, err = s.applyStatus(ctx, caller, current, status)
		} else {
			if !policy.Decide(caller, policy.TaskUpdate, policy.Owners(current)).Permitted() {
				return ErrForbidden
			}
			deliveries, err = s.applyPatch(ctx, caller, current, patch, status)
		}
		if err != nil {
			return err
		}

		updated, err = s.tasks.Find(ctx, models.TaskQuery{ID: current.ID})
		return err
	})
	if err != nil {
		return models.Task{}, err
	}

	s.log.Info().
		Str("task_id", updated.ID).
		Str("user_id", caller.UserID).
		Bool("status_only", statusOnly).
		Msg("task updated")

	s.deliver(ctx, deliveries)
	return updated, nil
}

func (s *TaskService) applyStatus(
	ctx context.Context,
	caller models.Identity,
	current models.Task,
	status models.TaskStatus,
) ([]pendingDelivery, error) {
	if err := s.tasks.UpdateStatus(ctx, current.ID, status, s.opts.now()); err != nil {
		return nil, err
	}

	var deliveries []pendingDelivery
	n, err := s.ledger.Append(ctx, current.ID, current.AssignedTo, models.NotificationTaskUpdated,
		fmt.Sprintf("Task %q status changed to %s", current.Title, status.Label()))
	if err != nil {
		return nil, err
	}
	deliveries = append(deliveries, pendingDelivery{notification: n, actorID: caller.UserID, status: status})

	if status == models.TaskStatusCompleted &&
		current.CreatedBy != current.AssignedTo &&
		current.CreatedBy != caller.UserID {
		n, err := s.ledger.Append(ctx, current.ID, current.CreatedBy, models.NotificationTaskCompleted,
			fmt.Sprintf("Task %q has been completed", current.Title))
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, pendingDelivery{notification: n, actorID: caller.UserID, status: status})
	}
	return deliveries, nil
}

func (s *TaskService) applyPatch(
	ctx context.Context,
	caller models.Identity,
	current models.Task,
	patch TaskPatch,
	status models.TaskStatus,
) ([]pendingDelivery, error) {
	next := current

	if patch.Title != nil {
		title, err := validTitle(*patch.Title)
		if err != nil {
			return nil, err
		}
		next.Title = title
	}
	if patch.Description != nil {
		next.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Priority != nil {
		next.Priority = models.ParsePriority(*patch.Priority)
	}
	if patch.Status != nil {
		next.Status = status
	}
	if patch.DueDate != nil {
		d, err := parseDueDate(*patch.DueDate)
		if err != nil {
			return nil, err
		}
		next.DueDate = d
	}
	if patch.DueTime != nil {
		t, err := parseDueTime(*patch.DueTime)
		if err != nil {
			return nil, err
		}
		next.DueTime = t
	}
	if patch.Tags != nil {
		next.Tags = normalizeTags(*patch.Tags)
	}
	if patch.ProjectID != nil {
		next.ProjectID = optionalID(*patch.ProjectID)
		if next.ProjectID != nil {
			if err := s.requireProject(ctx, *next.ProjectID); err != nil {
				return nil, err
			}
		}
	}

	reassigned := false
	if patch.AssignedTo != nil {
		assignee := strings.TrimSpace(*patch.AssignedTo)
		if assignee == "" {
			return nil, validationf("assignee is required")
		}
		if assignee != current.AssignedTo {
			if err := s.requireAssignable(ctx, assignee); err != nil {
				return nil, err
			}
			reassigned = true
		}
		next.AssignedTo = assignee
	}

	next.UpdatedAt = s.opts.now()
	if err := s.tasks.Update(ctx, next); err != nil {
		return nil, err
	}

	if !reassigned {
		return nil, nil
	}
	n, err := s.ledger.Append(ctx, next.ID, next.AssignedTo, models.NotificationTaskAssigned,
		fmt.Sprintf("You have been assigned a task: %s", next.Title))
	if err != nil {
		return nil, err
	}
	return []pendingDelivery{{notification: n, actorID: caller.UserID}}, nil
}

func (s *TaskService) Delete(ctx context.Context, caller models.Identity, taskID string) error {
	if caller.UserID == "" {
		return ErrUnauthenticated
	}
	if !policy.Decide(caller, policy.TaskDelete, policy.Target{}).Permitted() {
		return ErrForbidden
	}
	if err := s.tasks.Delete(ctx, taskID); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.log.Info().Str("task_id", taskID).Str("user_id", caller.UserID).Msg("task deleted")
	return nil
}

// List returns the caller's visible tasks, newest first. The assignee filter
// is honoured only for unrestricted callers.
func (s *TaskService) List(ctx context.Context, caller models.Identity, filter TaskFilter) ([]models.Task, error) {
	if caller.UserID == "" {
		return nil, ErrUnauthenticated
	}
	decision := policy.Decide(caller, policy.TaskList, policy.Target{})
	if !decision.Permitted() {
		return nil, ErrForbidden
	}

	q := models.TaskQuery{ProjectID: strings.TrimSpace(filter.ProjectID)}
	if raw := strings.TrimSpace(filter.Status); raw != "" {
		q.Status = models.TaskStatus(raw)
		if !q.Status.Valid() {
			return nil, validationf("invalid status filter %q", raw)
		}
	}
	if raw := strings.TrimSpace(filter.Priority); raw != "" {
		q.Priority = models.TaskPriority(raw)
		if models.ParsePriority(raw) != q.Priority {
			return nil, validationf("invalid priority filter %q", raw)
		}
	}
	if decision.Effect == policy.Allowed {
		q.AssignedTo = strings.TrimSpace(filter.AssignedTo)
	}

	tasks, err := s.tasks.List(ctx, decision.Apply(q))
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

func (s *TaskService) Get(ctx context.Context, caller models.Identity, taskID string) (models.Task, error) {
	if caller.UserID == "" {
		return models.Task{}, ErrUnauthenticated
	}
	return s.findScoped(ctx, caller, taskID, false)
}

// findScoped loads one task through the caller's read filter. Restricted
// callers cannot tell a missing row from one they may not see.
func (s *TaskService) findScoped(ctx context.Context, caller models.Identity, taskID string, forUpdate bool) (models.Task, error) {
	decision := policy.Decide(caller, policy.TaskRead, policy.Target{})
	if !decision.Permitted() {
		return models.Task{}, ErrNotFoundOrForbidden
	}
	if strings.TrimSpace(taskID) == "" {
		return models.Task{}, validationf("task id is required")
	}

	q := decision.Apply(models.TaskQuery{ID: taskID, ForUpdate: forUpdate})
	task, err := s.tasks.Find(ctx, q)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			if decision.Effect == policy.AllowedWithFilter {
				return models.Task{}, ErrNotFoundOrForbidden
			}
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, err
	}
	return task, nil
}

func (s *TaskService) requireAssignable(ctx context.Context, userID string) error {
	user, err := s.users.LockByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return invalidReferencef("assignee %s does not exist", userID)
		}
		return err
	}
	if !user.Active() {
		return invalidReferencef("assignee %s is not active", userID)
	}
	return nil
}

func (s *TaskService) requireProject(ctx context.Context, projectID string) error {
	if _, err := s.projects.LockByID(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return invalidReferencef("project %s does not exist", projectID)
		}
		return err
	}
	return nil
}

// deliver hands committed ledger entries to the notifier. Failures are
// logged and never surface to the caller. The work outlives the request,
// as the notifiers do.
func (s *TaskService) deliver(ctx context.Context, deliveries []pendingDelivery) {
	ctx = context.WithoutCancel(ctx)
	for _, d := range deliveries {
		n := d.notification
		var ok bool
		if n.Type == models.NotificationTaskAssigned {
			ok = s.notifier.NotifyAssignment(ctx, n.TaskID, n.UserID, d.actorID)
		} else {
			ok = s.notifier.NotifyStatusChange(ctx, n.TaskID, n.UserID, d.status)
		}
		if !ok {
			s.log.Warn().
				Str("notification_id", n.ID).
				Str("task_id", n.TaskID).
				Str("type", string(n.Type)).
				Msg("notification delivery not attempted")
			continue
		}
		if err := s.ledger.MarkDeliveryAttempted(ctx, n.ID); err != nil {
			s.log.Warn().Err(err).Str("notification_id", n.ID).Msg("failed to flag delivery attempt")
		}
	}
}
