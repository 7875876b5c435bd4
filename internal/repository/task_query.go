package repository

import (
	"fmt"
	"strings"

	"taskflow/internal/models"
)

const taskSelect = `
	SELECT t.id, t.title, t.description, t.status, t.priority, t.due_date, t.due_time,
	       t.project_id, t.assigned_to, t.created_by, t.tags, t.created_at, t.updated_at,
	       p.name, p.color
	FROM tasks t
	LEFT JOIN projects p ON p.id = t.project_id`

// buildTaskQuery renders q as SQL. The ownership predicate is part of the
// WHERE clause; every other filter is ANDed on top of it.
func buildTaskQuery(q models.TaskQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.OwnerID != "" {
		p := arg(q.OwnerID)
		conds = append(conds, fmt.Sprintf("(t.assigned_to = %s OR t.created_by = %s)", p, p))
	}
	if q.ID != "" {
		conds = append(conds, "t.id = "+arg(q.ID))
	}
	if q.Status != "" {
		conds = append(conds, "t.status = "+arg(string(q.Status)))
	}
	if q.Priority != "" {
		conds = append(conds, "t.priority = "+arg(string(q.Priority)))
	}
	if q.ProjectID != "" {
		conds = append(conds, "t.project_id = "+arg(q.ProjectID))
	}
	if q.AssignedTo != "" {
		conds = append(conds, "t.assigned_to = "+arg(q.AssignedTo))
	}

	var sb strings.Builder
	sb.WriteString(taskSelect)
	if len(conds) > 0 {
		sb.WriteString("\n\tWHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	sb.WriteString("\n\tORDER BY t.created_at DESC, t.id DESC")
	if q.ForUpdate {
		sb.WriteString("\n\tFOR UPDATE OF t")
	}

	return sb.String(), args
}
