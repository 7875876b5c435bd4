// Package policy decides whether an identity may perform an operation and,
// for task reads, which row restriction must be pushed into the query.
//
// Decisions are pure functions of the identity, the operation and the
// owners of the target row; the package holds no state.
package policy

import (
	"taskflow/internal/models"
)

type Operation string

const (
	TaskList         Operation = "task:list"
	TaskRead         Operation = "task:read"
	TaskCreate       Operation = "task:create"
	TaskUpdate       Operation = "task:update"
	TaskUpdateStatus Operation = "task:update_status"
	TaskDelete       Operation = "task:delete"

	UserList   Operation = "user:list"
	UserRead   Operation = "user:read"
	UserCreate Operation = "user:create"
	UserUpdate Operation = "user:update"
	UserManage Operation = "user:manage" // role and status changes
	UserDelete Operation = "user:delete"

	ProjectRead  Operation = "project:read"
	ProjectWrite Operation = "project:write"

	NotificationRead Operation = "notification:read"
)

type Effect int

const (
	Forbidden Effect = iota
	Allowed
	AllowedWithFilter
)

func (e Effect) String() string {
	switch e {
	case Allowed:
		return "allowed"
	case AllowedWithFilter:
		return "allowed_with_filter"
	default:
		return "forbidden"
	}
}

// Filter is the ownership predicate: rows whose assignee or creator (or, for
// per-user resources, owning user) equals OwnerID.
type Filter struct {
	OwnerID string
}

type Decision struct {
	Effect Effect
	Filter Filter
}

func (d Decision) Permitted() bool {
	return d.Effect != Forbidden
}

// Apply pushes the decision's filter into a task query. Any owner the caller
// supplied is overwritten, so the restriction cannot be widened.
func (d Decision) Apply(q models.TaskQuery) models.TaskQuery {
	if d.Effect == AllowedWithFilter {
		q.OwnerID = d.Filter.OwnerID
	} else {
		q.OwnerID = ""
	}
	return q
}

// Target describes the row an operation touches. Owners are the assignee and
// creator of a task; Subject is the user a user-scoped operation is about.
type Target struct {
	Owners  []string
	Subject string
}

func Owners(task models.Task) Target {
	return Target{Owners: []string{task.AssignedTo, task.CreatedBy}}
}

func Subject(userID string) Target {
	return Target{Subject: userID}
}

var (
	allow  = Decision{Effect: Allowed}
	forbid = Decision{Effect: Forbidden}
)

func filterFor(userID string) Decision {
	return Decision{Effect: AllowedWithFilter, Filter: Filter{OwnerID: userID}}
}

// Decide is the single authorization entry point.
func Decide(id models.Identity, op Operation, target Target) Decision {
	if id.UserID == "" {
		return forbid
	}
	if id.IsAdmin() {
		return allow
	}

	switch op {
	case TaskList, TaskRead, NotificationRead:
		return filterFor(id.UserID)
	case TaskUpdateStatus:
		if contains(target.Owners, id.UserID) {
			return allow
		}
		return forbid
	case UserRead, UserUpdate:
		if target.Subject == id.UserID {
			return allow
		}
		return forbid
	case ProjectRead:
		return allow
	default:
		// TaskCreate, TaskUpdate, TaskDelete, UserList, UserCreate,
		// UserManage, UserDelete, ProjectWrite and anything unknown.
		return forbid
	}
}

// StatusOnly reports whether an update payload's key set is exactly the task
// identifier (optional) plus the status field.
func StatusOnly(keys []string) bool {
	sawStatus := false
	for _, k := range keys {
		switch k {
		case "status":
			sawStatus = true
		case "taskId", "id":
		default:
			return false
		}
	}
	return sawStatus
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate != "" && candidate == v {
			return true
		}
	}
	return false
}
