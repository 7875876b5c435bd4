package handlers

import (
	"time"

	"taskflow/internal/models"
)

type userResponse struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	FullName  string     `json:"fullName"`
	Role      string     `json:"role"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Stats     *userStats `json:"stats,omitempty"`
}

type userStats struct {
	TotalTasks      int `json:"totalTasks"`
	CompletedTasks  int `json:"completedTasks"`
	PendingTasks    int `json:"pendingTasks"`
	InProgressTasks int `json:"inProgressTasks"`
}

func newUserResponse(u models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName(),
		Role:      string(u.Role),
		Status:    string(u.Status),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func newUserWithStatsResponse(u models.UserWithStats) userResponse {
	resp := newUserResponse(u.User)
	resp.Stats = &userStats{
		TotalTasks:      u.Stats.TotalTasks,
		CompletedTasks:  u.Stats.CompletedTasks,
		PendingTasks:    u.Stats.PendingTasks,
		InProgressTasks: u.Stats.InProgressTasks,
	}
	return resp
}

type taskResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Status       string    `json:"status"`
	Priority     string    `json:"priority"`
	DueDate      *string   `json:"dueDate"`
	DueTime      *string   `json:"dueTime"`
	ProjectID    *string   `json:"projectId"`
	ProjectName  *string   `json:"projectName"`
	ProjectColor *string   `json:"projectColor"`
	AssignedTo   string    `json:"assignedTo"`
	CreatedBy    string    `json:"createdBy"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func newTaskResponse(t models.Task) taskResponse {
	resp := taskResponse{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Status:       string(t.Status),
		Priority:     string(t.Priority),
		DueTime:      t.DueTime,
		ProjectID:    t.ProjectID,
		ProjectName:  t.ProjectName,
		ProjectColor: t.ProjectColor,
		AssignedTo:   t.AssignedTo,
		CreatedBy:    t.CreatedBy,
		Tags:         t.Tags,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
	if t.DueDate != nil {
		d := t.DueDate.Format("2006-01-02")
		resp.DueDate = &d
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	return resp
}

type projectResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	CreatedBy   *string   `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newProjectResponse(p models.Project) projectResponse {
	return projectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Color:       p.Color,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type notificationResponse struct {
	ID                string    `json:"id"`
	TaskID            string    `json:"taskId"`
	TaskTitle         string    `json:"taskTitle"`
	Type              string    `json:"type"`
	Message           string    `json:"message"`
	Read              bool      `json:"read"`
	DeliveryAttempted bool      `json:"deliveryAttempted"`
	CreatedAt         time.Time `json:"createdAt"`
}

func newNotificationResponse(n models.Notification) notificationResponse {
	return notificationResponse{
		ID:                n.ID,
		TaskID:            n.TaskID,
		TaskTitle:         n.TaskTitle,
		Type:              string(n.Type),
		Message:           n.Message,
		Read:              n.Read,
		DeliveryAttempted: n.DeliveryAttempted,
		CreatedAt:         n.CreatedAt,
	}
}

func mapSlice[T, R any](items []T, fn func(T) R) []R {
	out := make([]R, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
