package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"taskflow/internal/models"
)

// TaskEmail is the data behind both notification emails.
type TaskEmail struct {
	Recipient Address
	ActorName string
	Task      models.Task
	Status    models.TaskStatus
}

func (e TaskEmail) PriorityColor() string {
	switch e.Task.Priority {
	case models.TaskPriorityHigh:
		return "#f56565"
	case models.TaskPriorityLow:
		return "#48bb78"
	default:
		return "#ed8936"
	}
}

func (e TaskEmail) PriorityLabel() string {
	p := string(e.Task.Priority)
	if p == "" {
		return ""
	}
	return strings.ToUpper(p[:1]) + p[1:]
}

func (e TaskEmail) StatusLabel() string {
	return e.Status.Label()
}

func (e TaskEmail) Due() string {
	if e.Task.DueDate == nil {
		return ""
	}
	due := e.Task.DueDate.Format("Jan 2, 2006")
	if e.Task.DueTime != nil {
		due += " " + *e.Task.DueTime
	}
	return due
}

func (e TaskEmail) ProjectName() string {
	if e.Task.ProjectName == nil {
		return ""
	}
	return *e.Task.ProjectName
}

const layout = `{{define "layout"}}<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #2d3748; background: #f7fafc; padding: 24px;">
  <div style="max-width: 600px; margin: 0 auto; background: #ffffff; border-radius: 8px; padding: 24px;">
    <h2 style="color: #667eea; margin-top: 0;">{{template "heading" .}}</h2>
    <p>Hello {{.Recipient.Name}},</p>
    {{template "intro" .}}
    <div style="border-left: 4px solid {{.PriorityColor}}; padding: 12px 16px; background: #f7fafc;">
      <h3 style="margin: 0 0 8px 0;">{{.Task.Title}}</h3>
      {{with .Task.Description}}<p style="margin: 0 0 8px 0;">{{.}}</p>{{end}}
      <p style="margin: 0;">
        <strong>Priority:</strong> <span style="color: {{.PriorityColor}};">{{.PriorityLabel}}</span>
        {{with .Due}}<br><strong>Due:</strong> {{.}}{{end}}
        {{with .ProjectName}}<br><strong>Project:</strong> {{.}}{{end}}
      </p>
    </div>
    <p style="color: #718096; font-size: 12px; margin-top: 24px;">This is an automated message from the task manager.</p>
  </div>
</body>
</html>{{end}}`

var (
	assignmentTmpl = template.Must(template.New("assignment").Parse(layout + `
{{define "heading"}}New Task Assigned{{end}}
{{define "intro"}}<p>{{if .ActorName}}{{.ActorName}} has assigned you{{else}}You have been assigned{{end}} a new task.</p>{{end}}`))

	statusTmpl = template.Must(template.New("status").Parse(layout + `
{{define "heading"}}Task Updated{{end}}
{{define "intro"}}<p>The status of this task changed to <strong>{{.StatusLabel}}</strong>.</p>{{end}}`))
)

func AssignmentMessage(e TaskEmail) (Message, error) {
	html, err := render(assignmentTmpl, e)
	if err != nil {
		return Message{}, err
	}
	text := fmt.Sprintf("Hello %s,\n\nYou have been assigned a new task: %s\nPriority: %s\n",
		e.Recipient.Name, e.Task.Title, e.PriorityLabel())
	if due := e.Due(); due != "" {
		text += "Due: " + due + "\n"
	}
	return Message{
		To:      e.Recipient,
		Subject: "New Task Assigned: " + e.Task.Title,
		HTML:    html,
		Text:    text,
	}, nil
}

func StatusMessage(e TaskEmail) (Message, error) {
	html, err := render(statusTmpl, e)
	if err != nil {
		return Message{}, err
	}
	text := fmt.Sprintf("Hello %s,\n\nThe status of %q changed to %s.\n",
		e.Recipient.Name, e.Task.Title, e.StatusLabel())
	return Message{
		To:      e.Recipient,
		Subject: "Task Updated: " + e.Task.Title,
		HTML:    html,
		Text:    text,
	}, nil
}

func render(t *template.Template, data TaskEmail) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
