package service

import (
	"context"
	"testing"

	"taskflow/internal/models"
)

func TestProjectLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.projects.Create(ctx, h.u1, ProjectInput{Name: "x"})
	mustErr(t, err, ErrForbidden)
	_, err = h.projects.Create(ctx, h.admin, ProjectInput{Name: " "})
	mustErr(t, err, ErrValidation)
	_, err = h.projects.Create(ctx, h.admin, ProjectInput{Name: "x", Color: "red"})
	mustErr(t, err, ErrValidation)

	project, err := h.projects.Create(ctx, h.admin, ProjectInput{Name: "Launch"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if project.Color != models.DefaultProjectColor {
		t.Fatalf("color = %q", project.Color)
	}

	list, err := h.projects.List(ctx, h.u1)
	if err != nil || len(list) != 1 {
		t.Fatalf("user list = %d, %v", len(list), err)
	}

	updated, err := h.projects.Update(ctx, h.admin, project.ID, ProjectPatch{Color: ptr("#FF0000")})
	if err != nil || updated.Color != "#ff0000" || updated.Name != "Launch" {
		t.Fatalf("update = %+v, %v", updated, err)
	}
	_, err = h.projects.Update(ctx, h.u1, project.ID, ProjectPatch{Name: ptr("x")})
	mustErr(t, err, ErrForbidden)
}

func TestDeleteProjectDetachesTasks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	project, _ := h.projects.Create(ctx, h.admin, ProjectInput{Name: "Launch"})
	task, err := h.tasks.Create(ctx, h.admin, CreateTaskInput{Title: "x", AssignedTo: h.u1.UserID, ProjectID: project.ID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := h.projects.Delete(ctx, h.admin, project.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := h.tasks.Get(ctx, h.u1, task.ID)
	if err != nil {
		t.Fatalf("task should survive: %v", err)
	}
	if got.ProjectID != nil {
		t.Fatal("project reference should be cleared")
	}
	mustErr(t, h.projects.Delete(ctx, h.admin, project.ID), ErrNotFound)
	_, err = h.projects.Get(ctx, h.u1, project.ID)
	mustErr(t, err, ErrNotFound)
}
