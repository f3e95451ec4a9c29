package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"project-collab-backend/pkg/models"
)

func seedProject(t *testing.T, db *LocalDatabase, projectID, ownerID string) *models.ProjectMembership {
	t.Helper()

	now := time.Now().UTC()
	owner := &models.ProjectMembership{
		ID:        "m-" + ownerID + "-" + projectID,
		UserID:    ownerID,
		ProjectID: projectID,
		Role:      models.RoleOwner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.CreateProjectWithOwner(context.Background(), &models.Project{ID: projectID, Name: projectID, CreatedAt: now, UpdatedAt: now}, owner)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return owner
}

// addMember brings userID in through an accepted access request.
func addMember(t *testing.T, db *LocalDatabase, userID, projectID string, role models.Role) *models.ProjectMembership {
	t.Helper()
	ctx := context.Background()

	req := &models.AccessRequest{ID: "r-" + userID + "-" + projectID, UserID: userID, ProjectID: projectID}
	if err := db.CreateAccessRequest(ctx, req); err != nil {
		t.Fatalf("create request: %v", err)
	}
	m := &models.ProjectMembership{ID: "m-" + userID + "-" + projectID, UserID: userID, ProjectID: projectID, Role: role}
	if err := db.AcceptAccessRequest(ctx, req.ID, m); err != nil {
		t.Fatalf("accept request: %v", err)
	}
	return m
}

func TestLocalDatabasePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "db.json")
	ctx := context.Background()

	db, err := NewLocalDatabase(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	seedProject(t, db, "p1", "alice")
	if err := db.UpsertUser(ctx, &models.User{ID: "alice", Email: "alice@example.com"}); err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewLocalDatabase(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := reopened.GetProject(ctx, "p1"); err != nil {
		t.Fatalf("expected project after reopen: %v", err)
	}
	m, err := reopened.GetMembership(ctx, "alice", "p1")
	if err != nil {
		t.Fatalf("expected membership after reopen: %v", err)
	}
	if m.Role != models.RoleOwner {
		t.Fatalf("expected owner role, got %s", m.Role)
	}
	u, err := reopened.GetUserByID(ctx, "alice")
	if err != nil || u.Email != "alice@example.com" {
		t.Fatalf("expected user after reopen, got %+v, %v", u, err)
	}
}

func TestLocalDatabaseUniqueMembershipAndRequest(t *testing.T) {
	t.Parallel()
	db, err := NewLocalDatabase("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	seedProject(t, db, "p1", "alice")

	if err := db.CreateAccessRequest(ctx, &models.AccessRequest{ID: "r-self", UserID: "alice", ProjectID: "p1"}); err != nil {
		t.Fatalf("create request: %v", err)
	}
	dup := &models.ProjectMembership{ID: "other", UserID: "alice", ProjectID: "p1", Role: models.RoleCanView}
	if err := db.AcceptAccessRequest(ctx, "r-self", dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for membership, got %v", err)
	}
	if _, err := db.GetAccessRequest(ctx, "r-self"); err != nil {
		t.Fatalf("expected request kept after failed accept: %v", err)
	}

	req := &models.AccessRequest{ID: "r1", UserID: "bob", ProjectID: "p1"}
	if err := db.CreateAccessRequest(ctx, req); err != nil {
		t.Fatalf("create request: %v", err)
	}
	again := &models.AccessRequest{ID: "r2", UserID: "bob", ProjectID: "p1"}
	if err := db.CreateAccessRequest(ctx, again); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for request, got %v", err)
	}
}

func TestLocalDatabaseLastOwnerGuard(t *testing.T) {
	t.Parallel()
	db, err := NewLocalDatabase("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	owner := seedProject(t, db, "p1", "alice")

	if err := db.UpdateMemberRole(ctx, owner.ID, models.RoleCanEdit); !errors.Is(err, ErrLastOwner) {
		t.Fatalf("expected ErrLastOwner on demotion, got %v", err)
	}
	if err := db.RemoveProjectMember(ctx, owner.ID); !errors.Is(err, ErrLastOwner) {
		t.Fatalf("expected ErrLastOwner on removal, got %v", err)
	}

	addMember(t, db, "bob", "p1", models.RoleOwner)
	if err := db.RemoveProjectMember(ctx, owner.ID); err != nil {
		t.Fatalf("remove with second owner: %v", err)
	}
}

func TestLocalDatabaseAcceptAccessRequest(t *testing.T) {
	t.Parallel()
	db, err := NewLocalDatabase("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	seedProject(t, db, "p1", "alice")

	req := &models.AccessRequest{ID: "r1", UserID: "bob", ProjectID: "p1"}
	if err := db.CreateAccessRequest(ctx, req); err != nil {
		t.Fatalf("create request: %v", err)
	}
	m := &models.ProjectMembership{ID: "m-bob", UserID: "bob", ProjectID: "p1", Role: models.RoleCanView}
	if err := db.AcceptAccessRequest(ctx, "r1", m); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := db.GetAccessRequest(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected request removed, got %v", err)
	}
	if err := db.AcceptAccessRequest(ctx, "r1", m); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for consumed request, got %v", err)
	}
}

func TestLocalDatabaseListProjectOwners(t *testing.T) {
	t.Parallel()
	db, err := NewLocalDatabase("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	seedProject(t, db, "p1", "alice")
	seedProject(t, db, "p2", "bob")

	owners, err := db.ListProjectOwners(ctx, []string{"p1", "p2", "missing"})
	if err != nil {
		t.Fatalf("list owners: %v", err)
	}
	if len(owners["p1"]) != 1 || owners["p1"][0] != "alice" {
		t.Fatalf("unexpected owners for p1: %v", owners["p1"])
	}
	if len(owners["missing"]) != 0 {
		t.Fatalf("expected no owners for missing project, got %v", owners["missing"])
	}
}

func TestDatabaseConfigKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{"postgres wins", DatabaseConfig{PostgresDSN: "dsn", SupabaseURL: "u", SupabaseKey: "k", UseLocalDB: true}, "postgresql"},
		{"supabase", DatabaseConfig{SupabaseURL: "u", SupabaseKey: "k", UseLocalDB: true}, "supabase"},
		{"supabase without key", DatabaseConfig{SupabaseURL: "u", UseLocalDB: true}, "local"},
		{"nothing", DatabaseConfig{}, "unknown"},
	}
	for _, tc := range tests {
		if got := tc.cfg.Kind(); got != tc.want {
			t.Fatalf("%s: Kind() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestAddConnectionParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dsn, params, want string
	}{
		{"postgres://u@h/db", "connect_timeout=10", "postgres://u@h/db?connect_timeout=10"},
		{"postgres://u@h/db?sslmode=disable", "connect_timeout=10", "postgres://u@h/db?sslmode=disable&connect_timeout=10"},
		{"host=h dbname=db", "sslmode=require&connect_timeout=10", "host=h dbname=db sslmode=require connect_timeout=10"},
		{"postgres://u@h/db", "", "postgres://u@h/db"},
	}
	for _, tc := range tests {
		if got := addConnectionParams(tc.dsn, tc.params); got != tc.want {
			t.Fatalf("addConnectionParams(%q, %q) = %q, want %q", tc.dsn, tc.params, got, tc.want)
		}
	}
}

func TestLocalDatabaseRollsBackFailedWrite(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "db.json")
	ctx := context.Background()

	db, err := NewLocalDatabase(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	owner := seedProject(t, db, "p1", "alice")
	member := addMember(t, db, "bob", "p1", models.RoleCanEdit)
	if err := db.CreateAccessRequest(ctx, &models.AccessRequest{ID: "r-carol", UserID: "carol", ProjectID: "p1"}); err != nil {
		t.Fatalf("create request: %v", err)
	}

	// 临时文件位置被目录占用，写盘必然失败
	if err := os.Mkdir(path+".tmp", 0o755); err != nil {
		t.Fatalf("block temp file: %v", err)
	}

	tests := []struct {
		name string
		op   func() error
	}{
		{"delete project", func() error { return db.DeleteProjectCascade(ctx, "p1") }},
		{"accept request", func() error {
			return db.AcceptAccessRequest(ctx, "r-carol", &models.ProjectMembership{ID: "m-carol", UserID: "carol", ProjectID: "p1", Role: models.RoleCanView})
		}},
		{"remove member", func() error { return db.RemoveProjectMember(ctx, member.ID) }},
		{"update role", func() error { return db.UpdateMemberRole(ctx, member.ID, models.RoleCanView) }},
		{"create project", func() error {
			return db.CreateProjectWithOwner(ctx, &models.Project{ID: "p2", Name: "p2"},
				&models.ProjectMembership{ID: "m-p2", UserID: "alice", ProjectID: "p2", Role: models.RoleOwner})
		}},
	}
	for _, tc := range tests {
		if err := tc.op(); err == nil {
			t.Fatalf("%s: expected write error", tc.name)
		}
	}

	if _, err := db.GetProject(ctx, "p1"); err != nil {
		t.Fatalf("expected project kept: %v", err)
	}
	if _, err := db.GetProject(ctx, "p2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected p2 not created, got %v", err)
	}
	if _, err := db.GetMembershipByID(ctx, owner.ID); err != nil {
		t.Fatalf("expected owner membership kept: %v", err)
	}
	m, err := db.GetMembershipByID(ctx, member.ID)
	if err != nil || m.Role != models.RoleCanEdit {
		t.Fatalf("expected bob still canEdit, got %+v, %v", m, err)
	}
	if _, err := db.GetAccessRequest(ctx, "r-carol"); err != nil {
		t.Fatalf("expected carol's request kept: %v", err)
	}
	if _, err := db.GetMembership(ctx, "carol", "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected carol not a member, got %v", err)
	}

	// 文件内容与内存一致
	reopened, err := NewLocalDatabase(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	members, err := reopened.ListProjectMembers(ctx, "p1")
	if err != nil || len(members) != 2 {
		t.Fatalf("expected 2 members on disk, got %d, %v", len(members), err)
	}
}
