package service

import (
	"context"
	"strings"
	"testing"

	"taskflow/internal/models"
)

func TestProvisionDefaultsAndUniqueness(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user, err := h.users.Create(ctx, h.admin, CreateUserInput{
		Username: "jdoe",
		Email:    "jdoe@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Role != models.UserRoleUser || user.Status != models.UserStatusActive {
		t.Fatalf("defaults = %s/%s", user.Role, user.Status)
	}
	if user.PasswordHash != nil {
		t.Fatal("hash must not be returned")
	}

	_, err = h.users.Create(ctx, h.admin, CreateUserInput{Username: "jdoe", Email: "other@example.com", Password: "correct-horse"})
	mustErr(t, err, ErrConflict)
	_, err = h.users.Create(ctx, h.admin, CreateUserInput{Username: "other", Email: "jdoe@example.com", Password: "correct-horse"})
	mustErr(t, err, ErrConflict)
	_, err = h.users.Create(ctx, h.admin, CreateUserInput{Username: "other", Email: "JDoe@Example.com", Password: "correct-horse"})
	mustErr(t, err, ErrConflict)
}

func TestCreateUserValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.users.Create(ctx, h.u1, CreateUserInput{Username: "x", Email: "x@example.com", Password: "password1"})
	mustErr(t, err, ErrForbidden)

	tests := []CreateUserInput{
		{Username: "", Email: "a@example.com", Password: "password1"},
		{Username: "has space", Email: "a@example.com", Password: "password1"},
		{Username: strings.Repeat("ü", 51), Email: "a@example.com", Password: "password1"},
		{Username: "bad\xff", Email: "a@example.com", Password: "password1"},
		{Username: "a", Email: "not-an-email", Password: "password1"},
		{Username: "a", Email: "Jane <a@example.com>", Password: "password1"},
		{Username: "a", Email: "a@example.com", Password: "short"},
		{Username: "a", Email: "a@example.com", Password: "password1", Role: "root"},
		{Username: "a", Email: "a@example.com", Password: "password1", Status: "banned"},
	}
	for _, input := range tests {
		_, err := h.users.Create(ctx, h.admin, input)
		mustErr(t, err, ErrValidation)
	}
}

func TestUsernameLengthCountsCharacters(t *testing.T) {
	h := newHarness(t)

	username := strings.Repeat("ü", 50)
	user, err := h.users.Create(context.Background(), h.admin, CreateUserInput{
		Username: username,
		Email:    "umlaut@example.com",
		Password: "password1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Username != username {
		t.Fatalf("username = %q", user.Username)
	}
}

func TestUserSelfServiceUpdate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	updated, err := h.users.Update(ctx, h.u1, h.u1.UserID, UserPatch{FirstName: ptr("Uma"), Password: ptr("new-password")})
	if err != nil {
		t.Fatalf("self update: %v", err)
	}
	if updated.FirstName != "Uma" {
		t.Fatalf("first name = %q", updated.FirstName)
	}
	if _, err := h.auth.Login(ctx, LoginInput{Identifier: "u1", Password: "new-password"}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}

	_, err = h.users.Update(ctx, h.u1, h.u2.UserID, UserPatch{FirstName: ptr("x")})
	mustErr(t, err, ErrForbidden)
	_, err = h.users.Update(ctx, h.u1, h.u1.UserID, UserPatch{Role: ptr("admin")})
	mustErr(t, err, ErrForbidden)
	_, err = h.users.Update(ctx, h.u1, h.u1.UserID, UserPatch{Email: ptr("u2@example.com")})
	mustErr(t, err, ErrConflict)
}

func TestDeactivationRevokesSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := login(t, h, "u2", "u2-password")

	if _, err := h.users.Update(ctx, h.admin, h.u2.UserID, UserPatch{Status: ptr("inactive")}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err := h.auth.Resolve(ctx, res.Token)
	mustErr(t, err, ErrUnauthenticated)
}

func TestDeleteUserWithTasksConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createTask(t, "x", h.u1)

	mustErr(t, h.users.Delete(ctx, h.admin, h.u1.UserID), ErrConflict)
	// The admin created the task, so they are blocked too, and self-deletion
	// is refused regardless.
	mustErr(t, h.users.Delete(ctx, h.admin, h.admin.UserID), ErrValidation)
	mustErr(t, h.users.Delete(ctx, h.u1, h.u2.UserID), ErrForbidden)

	if _, err := h.users.Get(ctx, h.admin, h.u1.UserID); err != nil {
		t.Fatalf("user should still exist: %v", err)
	}
}

func TestDeleteUserRemovesSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := login(t, h, "u2", "u2-password")

	if err := h.users.Delete(ctx, h.admin, h.u2.UserID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(h.db.sessions) != 0 {
		t.Fatal("sessions must be removed")
	}
	_, err := h.auth.Resolve(ctx, res.Token)
	mustErr(t, err, ErrUnauthenticated)
	mustErr(t, h.users.Delete(ctx, h.admin, h.u2.UserID), ErrNotFound)
}

func TestListAndGetUsers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	task := h.createTask(t, "x", h.u1)
	if _, err := h.tasks.Update(ctx, h.u1, task.ID, StatusPatch(models.TaskStatusCompleted)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	h.createTask(t, "y", h.u1)

	_, err := h.users.List(ctx, h.u1)
	mustErr(t, err, ErrForbidden)

	users, err := h.users.List(ctx, h.admin)
	if err != nil || len(users) != 3 {
		t.Fatalf("list = %d, %v", len(users), err)
	}
	for _, u := range users {
		if u.PasswordHash != nil {
			t.Fatal("hash leaked in list")
		}
	}

	me, err := h.users.Get(ctx, h.u1, h.u1.UserID)
	if err != nil {
		t.Fatalf("self get: %v", err)
	}
	if me.Stats.TotalTasks != 2 || me.Stats.CompletedTasks != 1 || me.Stats.PendingTasks != 1 {
		t.Fatalf("stats = %+v", me.Stats)
	}
	_, err = h.users.Get(ctx, h.u1, h.u2.UserID)
	mustErr(t, err, ErrForbidden)
	_, err = h.users.Get(ctx, h.admin, "missing")
	mustErr(t, err, ErrNotFound)
}
