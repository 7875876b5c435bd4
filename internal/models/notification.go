package models

import "time"

type NotificationType string

const (
	NotificationTaskAssigned  NotificationType = "task_assigned"
	NotificationTaskUpdated   NotificationType = "task_updated"
	NotificationTaskCompleted NotificationType = "task_completed"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTaskAssigned, NotificationTaskUpdated, NotificationTaskCompleted:
		return true
	}
	return false
}

type Notification struct {
	ID                string
	TaskID            string
	UserID            string
	Type              NotificationType
	Message           string
	Read              bool
	DeliveryAttempted bool
	CreatedAt         time.Time
	TaskTitle         string
}
