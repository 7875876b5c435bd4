package models

import "time"

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// Label renders the status for humans, e.g. "in progress".
func (s TaskStatus) Label() string {
	if s == TaskStatusInProgress {
		return "in progress"
	}
	return string(s)
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// ParsePriority never fails: anything outside the known set becomes medium.
func ParsePriority(raw string) TaskPriority {
	switch p := TaskPriority(raw); p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return p
	}
	return TaskPriorityMedium
}

type Task struct {
	ID           string
	Title        string
	Description  string
	Status       TaskStatus
	Priority     TaskPriority
	DueDate      *time.Time
	DueTime      *string
	ProjectID    *string
	AssignedTo   string
	CreatedBy    string
	Tags         []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ProjectName  *string
	ProjectColor *string
}

// OwnedBy reports whether userID is the assignee or the creator.
func (t Task) OwnedBy(userID string) bool {
	return t.AssignedTo == userID || t.CreatedBy == userID
}

// TaskQuery drives list and single-row reads. A non-empty OwnerID restricts
// rows to those assigned to or created by that user and is applied inside
// the query itself.
type TaskQuery struct {
	OwnerID    string
	ID         string
	Status     TaskStatus
	Priority   TaskPriority
	ProjectID  string
	AssignedTo string
	ForUpdate  bool
}
