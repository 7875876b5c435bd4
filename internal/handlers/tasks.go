package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskflow/internal/service"
)

// tagList accepts a JSON array or a comma separated string.
type tagList []string

func (t *tagList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = nil
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return errors.New("tags must be a list or a comma separated string")
	}
	*t = strings.Split(joined, ",")
	return nil
}

type createTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	DueDate     string  `json:"dueDate"`
	DueTime     string  `json:"dueTime"`
	ProjectID   string  `json:"projectId"`
	AssignedTo  string  `json:"assignedTo"`
	Tags        tagList `json:"tags"`
}

func (h HandlerSet) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	task, err := h.svc.Tasks.Create(c.Request.Context(), caller(c), service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		DueTime:     req.DueTime,
		ProjectID:   req.ProjectID,
		AssignedTo:  req.AssignedTo,
		Tags:        req.Tags,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTaskResponse(task))
}

func (h HandlerSet) UpdateTask(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "unreadable body")
		return
	}
	patch, bodyID, err := decodeTaskPatch(body)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	taskID := c.Param("id")
	if bodyID != "" && bodyID != taskID {
		badRequest(c, "taskId does not match the path")
		return
	}

	task, err := h.svc.Tasks.Update(c.Request.Context(), caller(c), taskID, patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

// decodeTaskPatch keeps track of exactly which keys the payload carried so
// the engine can tell a status-only update from a full one. JSON null clears
// optional fields. Unknown keys are kept as extras.
func decodeTaskPatch(body []byte) (service.TaskPatch, string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return service.TaskPatch{}, "", errors.New("body must be a JSON object")
	}

	var (
		patch  service.TaskPatch
		bodyID string
	)
	for key, value := range raw {
		var err error
		switch key {
		case "taskId", "task_id", "id":
			var id *string
			id, err = optionalString(value)
			if id != nil {
				bodyID = *id
			}
			patch.Extra = append(patch.Extra, "taskId")
		case "title":
			patch.Title, err = optionalString(value)
		case "description":
			patch.Description, err = optionalString(value)
		case "priority":
			patch.Priority, err = optionalString(value)
		case "status":
			patch.Status, err = optionalString(value)
		case "dueDate", "due_date":
			patch.DueDate, err = optionalString(value)
		case "dueTime", "due_time":
			patch.DueTime, err = optionalString(value)
		case "projectId", "project_id":
			patch.ProjectID, err = optionalString(value)
		case "assignedTo", "assigned_to":
			patch.AssignedTo, err = optionalString(value)
		case "tags":
			var tags tagList
			if err = json.Unmarshal(value, &tags); err == nil {
				list := []string(tags)
				patch.Tags = &list
			}
		default:
			patch.Extra = append(patch.Extra, key)
		}
		if err != nil {
			return service.TaskPatch{}, "", fmt.Errorf("%s: %w", key, err)
		}
	}
	return patch, bodyID, nil
}

func optionalString(raw json.RawMessage) (*string, error) {
	var v *string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.New("must be a string")
	}
	if v == nil {
		empty := ""
		return &empty, nil
	}
	return v, nil
}

func (h HandlerSet) DeleteTask(c *gin.Context) {
	if err := h.svc.Tasks.Delete(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) ListTasks(c *gin.Context) {
	tasks, err := h.svc.Tasks.List(c.Request.Context(), caller(c), service.TaskFilter{
		Status:     c.Query("status"),
		Priority:   c.Query("priority"),
		ProjectID:  c.Query("projectId"),
		AssignedTo: c.Query("assignedTo"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": mapSlice(tasks, newTaskResponse)})
}

func (h HandlerSet) GetTask(c *gin.Context) {
	task, err := h.svc.Tasks.Get(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}
