package services

import (
	"context"
	"errors"
	"testing"

	"project-collab-backend/pkg/models"
)

func TestPagePermissions(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := mustCreateProject(t, svc, "alice", "Apollo")
	mustAddMember(t, svc, "alice", "editor", p.ID, models.RoleCanEdit)
	mustAddMember(t, svc, "alice", "viewer", p.ID, models.RoleCanView)

	page, err := svc.CreatePage(ctx, "editor", p.ID, models.PageInput{Title: " Roadmap ", Content: "# Q1"})
	if err != nil {
		t.Fatalf("create page: %v", err)
	}
	if page.Title != "Roadmap" || page.CreatedBy != "editor" {
		t.Fatalf("unexpected page %+v", page)
	}

	if _, err := svc.CreatePage(ctx, "viewer", p.ID, models.PageInput{Title: "Nope"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for viewer create, got %v", err)
	}
	if _, err := svc.UpdatePage(ctx, "viewer", p.ID, page.ID, models.PageInput{Title: "Nope"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for viewer update, got %v", err)
	}
	if _, err := svc.CreatePage(ctx, "editor", p.ID, models.PageInput{Title: ""}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	got, err := svc.GetPage(ctx, "viewer", p.ID, page.ID)
	if err != nil {
		t.Fatalf("viewer get page: %v", err)
	}
	if got.Content != "# Q1" {
		t.Fatalf("unexpected content %q", got.Content)
	}
	if _, err := svc.ListPages(ctx, "outsider", p.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for outsider, got %v", err)
	}

	updated, err := svc.UpdatePage(ctx, "alice", p.ID, page.ID, models.PageInput{Title: "Roadmap v2", Content: "# Q2"})
	if err != nil {
		t.Fatalf("update page: %v", err)
	}
	if updated.Title != "Roadmap v2" {
		t.Fatalf("unexpected title %q", updated.Title)
	}

	if err := svc.DeletePage(ctx, "viewer", p.ID, page.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for viewer delete, got %v", err)
	}
	if err := svc.DeletePage(ctx, "editor", p.ID, page.ID); err != nil {
		t.Fatalf("delete page: %v", err)
	}
	if _, err := svc.GetPage(ctx, "editor", p.ID, page.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPageScopedToProject(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := mustCreateProject(t, svc, "alice", "Apollo")
	other := mustCreateProject(t, svc, "alice", "Gemini")

	page, err := svc.CreatePage(ctx, "alice", p.ID, models.PageInput{Title: "Notes"})
	if err != nil {
		t.Fatalf("create page: %v", err)
	}
	if _, err := svc.GetPage(ctx, "alice", other.ID, page.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across projects, got %v", err)
	}
	if err := svc.DeletePage(ctx, "alice", other.ID, page.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across projects, got %v", err)
	}
}

func TestTaskLifecycle(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := mustCreateProject(t, svc, "alice", "Apollo")
	mustAddMember(t, svc, "alice", "bob", p.ID, models.RoleCanEdit)
	mustAddMember(t, svc, "alice", "carol", p.ID, models.RoleCanView)

	task, err := svc.CreateTask(ctx, "bob", p.ID, models.TaskInput{Title: strPtr("Write docs"), AssigneeID: strPtr("carol")})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != models.TaskTodo || task.AssigneeID != "carol" {
		t.Fatalf("unexpected task %+v", task)
	}

	tests := []struct {
		name   string
		caller string
		in     models.TaskInput
		want   error
	}{
		{"viewer", "carol", models.TaskInput{Title: strPtr("x")}, ErrForbidden},
		{"missing title", "bob", models.TaskInput{}, ErrInvalidInput},
		{"bad status", "bob", models.TaskInput{Title: strPtr("x"), Status: strPtr("blocked")}, ErrInvalidInput},
		{"assignee outside project", "bob", models.TaskInput{Title: strPtr("x"), AssigneeID: strPtr("mallory")}, ErrInvalidInput},
	}
	for _, tc := range tests {
		if _, err := svc.CreateTask(ctx, tc.caller, p.ID, tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	updated, err := svc.UpdateTask(ctx, "alice", p.ID, task.ID, models.TaskInput{Status: strPtr("in_progress"), AssigneeID: strPtr("")})
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if updated.Status != models.TaskInProgress || updated.AssigneeID != "" || updated.Title != "Write docs" {
		t.Fatalf("unexpected task after partial update %+v", updated)
	}

	tasks, err := svc.ListTasks(ctx, "carol", p.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}

	if err := svc.DeleteTask(ctx, "carol", p.ID, task.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := svc.DeleteTask(ctx, "bob", p.ID, task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if err := svc.DeleteTask(ctx, "bob", p.ID, task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
