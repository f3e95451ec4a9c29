package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"project-collab-backend/pkg/config"
	"project-collab-backend/pkg/database"
	"project-collab-backend/pkg/utils"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

const testSecret = "router-test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	tokens  map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.NewLocalDatabase("")
	if err != nil {
		t.Fatalf("new local database: %v", err)
	}
	cfg := &config.Config{
		Environment:    "test",
		UseLocalDB:     true,
		JWTSecret:      testSecret,
		AllowedOrigins: []string{"*"},
		LogLevel:       "error",
		MaxBodyBytes:   1 << 20,
	}
	h, err := New(cfg, db)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return &testServer{t: t, handler: h, tokens: map[string]string{}}
}

func (s *testServer) token(userID string) string {
	s.t.Helper()
	if tok, ok := s.tokens[userID]; ok {
		return tok
	}
	tok, err := utils.NewJWTService(testSecret, "").GenerateAccessToken(userID, userID+"@example.com", userID, time.Hour)
	if err != nil {
		s.t.Fatalf("generate token: %v", err)
	}
	s.tokens[userID] = tok
	return tok
}

// do sends a request as userID (anonymous when empty) and decodes the envelope.
func (s *testServer) do(method, path, userID string, body interface{}) (int, envelope) {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(userID))
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		s.t.Fatalf("%s %s: decode response %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, env
}

func (s *testServer) mustStatus(method, path, userID string, body interface{}, want int) envelope {
	s.t.Helper()
	code, env := s.do(method, path, userID, body)
	if code != want {
		msg := ""
		if env.Error != nil {
			msg = env.Error.Code + ": " + env.Error.Message
		}
		s.t.Fatalf("%s %s as %q: expected %d, got %d (%s)", method, path, userID, want, code, msg)
	}
	return env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

func TestAccessRequestFlow(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	var created struct {
		Project struct {
			ID     string   `json:"id"`
			Owners []string `json:"owners"`
		} `json:"project"`
	}
	env := s.mustStatus(http.MethodPost, "/api/projects", "alice", map[string]string{"name": "Apollo"}, http.StatusCreated)
	decodeData(t, env, &created)
	pid := created.Project.ID
	if pid == "" || len(created.Project.Owners) != 1 || created.Project.Owners[0] != "alice" {
		t.Fatalf("unexpected created project: %+v", created.Project)
	}
	base := "/api/projects/" + pid

	// 非成员不可读
	s.mustStatus(http.MethodGet, base, "bob", nil, http.StatusForbidden)

	var requested struct {
		Request struct {
			ID string `json:"id"`
		} `json:"request"`
	}
	env = s.mustStatus(http.MethodPost, base+"/requests", "bob", nil, http.StatusCreated)
	decodeData(t, env, &requested)

	// 重复请求返回同一条
	var again struct {
		Request struct {
			ID string `json:"id"`
		} `json:"request"`
	}
	env = s.mustStatus(http.MethodPost, base+"/requests", "bob", nil, http.StatusCreated)
	decodeData(t, env, &again)
	if again.Request.ID != requested.Request.ID {
		t.Fatalf("expected idempotent request, got %q and %q", requested.Request.ID, again.Request.ID)
	}

	var pending struct {
		Count int `json:"count"`
	}
	env = s.mustStatus(http.MethodGet, base+"/requests", "alice", nil, http.StatusOK)
	decodeData(t, env, &pending)
	if pending.Count != 1 {
		t.Fatalf("expected 1 pending request, got %d", pending.Count)
	}
	s.mustStatus(http.MethodGet, base+"/requests", "bob", nil, http.StatusForbidden)

	respondPath := base + "/requests/" + requested.Request.ID + "/response"
	s.mustStatus(http.MethodPost, respondPath, "bob", map[string]string{"response": "accept"}, http.StatusForbidden)
	s.mustStatus(http.MethodPost, respondPath, "alice", map[string]string{"response": "maybe"}, http.StatusBadRequest)

	var accepted struct {
		Membership struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"membership"`
	}
	env = s.mustStatus(http.MethodPost, respondPath, "alice", map[string]string{"response": "accept"}, http.StatusOK)
	decodeData(t, env, &accepted)
	if accepted.Membership.Role != "canView" {
		t.Fatalf("expected canView membership, got %q", accepted.Membership.Role)
	}

	s.mustStatus(http.MethodGet, base, "bob", nil, http.StatusOK)
	s.mustStatus(http.MethodPost, base+"/requests", "bob", nil, http.StatusConflict)

	// canView 不能写页面，升级为 canEdit 后可以
	page := map[string]string{"title": "Notes"}
	s.mustStatus(http.MethodPost, base+"/pages", "bob", page, http.StatusForbidden)
	rolePath := base + "/members/" + accepted.Membership.ID + "/role"
	s.mustStatus(http.MethodPut, rolePath, "alice", map[string]string{"role": "admin"}, http.StatusBadRequest)
	s.mustStatus(http.MethodPut, rolePath, "bob", map[string]string{"role": "owner"}, http.StatusForbidden)
	s.mustStatus(http.MethodPut, rolePath, "alice", map[string]string{"role": "canEdit"}, http.StatusOK)
	s.mustStatus(http.MethodPost, base+"/pages", "bob", page, http.StatusCreated)

	var access struct {
		HasAccess bool   `json:"has_access"`
		IsOwner   bool   `json:"is_owner"`
		Role      string `json:"role"`
	}
	env = s.mustStatus(http.MethodGet, base+"/access", "bob", nil, http.StatusOK)
	decodeData(t, env, &access)
	if !access.HasAccess || access.IsOwner || access.Role != "canEdit" {
		t.Fatalf("unexpected access summary: %+v", access)
	}

	// 最后一个 owner 不能移除自己
	var own struct {
		Membership struct {
			ID string `json:"id"`
		} `json:"membership"`
	}
	env = s.mustStatus(http.MethodGet, base+"/membership", "alice", nil, http.StatusOK)
	decodeData(t, env, &own)
	s.mustStatus(http.MethodDelete, base+"/members/"+own.Membership.ID, "alice", nil, http.StatusConflict)

	s.mustStatus(http.MethodDelete, base+"/members/"+accepted.Membership.ID, "alice", nil, http.StatusOK)
	s.mustStatus(http.MethodGet, base, "bob", nil, http.StatusForbidden)
}

func TestRejectRequest(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	var created struct {
		Project struct {
			ID string `json:"id"`
		} `json:"project"`
	}
	decodeData(t, s.mustStatus(http.MethodPost, "/api/projects", "alice", map[string]string{"name": "Zeus"}, http.StatusCreated), &created)
	base := "/api/projects/" + created.Project.ID

	var requested struct {
		Request struct {
			ID string `json:"id"`
		} `json:"request"`
	}
	decodeData(t, s.mustStatus(http.MethodPost, base+"/requests", "carol", nil, http.StatusCreated), &requested)

	s.mustStatus(http.MethodPost, base+"/requests/"+requested.Request.ID+"/response", "alice",
		map[string]string{"response": "reject"}, http.StatusOK)

	var pending struct {
		Count int `json:"count"`
	}
	decodeData(t, s.mustStatus(http.MethodGet, base+"/requests", "alice", nil, http.StatusOK), &pending)
	if pending.Count != 0 {
		t.Fatalf("expected no pending requests, got %d", pending.Count)
	}
	s.mustStatus(http.MethodGet, base, "carol", nil, http.StatusForbidden)
}

func TestProjectCRUD(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	s.mustStatus(http.MethodPost, "/api/projects", "alice", map[string]string{"name": ""}, http.StatusBadRequest)

	var created struct {
		Project struct {
			ID string `json:"id"`
		} `json:"project"`
	}
	decodeData(t, s.mustStatus(http.MethodPost, "/api/projects", "alice",
		map[string]string{"name": "Hermes", "description": "mail"}, http.StatusCreated), &created)
	base := "/api/projects/" + created.Project.ID

	var updated struct {
		Project struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Status      string `json:"status"`
		} `json:"project"`
	}
	decodeData(t, s.mustStatus(http.MethodPatch, base, "alice", map[string]string{"status": "active"}, http.StatusOK), &updated)
	if updated.Project.Name != "Hermes" || updated.Project.Description != "mail" || updated.Project.Status != "active" {
		t.Fatalf("patch should keep unspecified fields: %+v", updated.Project)
	}

	var list struct {
		Count int `json:"count"`
	}
	decodeData(t, s.mustStatus(http.MethodGet, "/api/projects", "alice", nil, http.StatusOK), &list)
	if list.Count != 1 {
		t.Fatalf("expected 1 project, got %d", list.Count)
	}
	decodeData(t, s.mustStatus(http.MethodGet, "/api/projects/", "bob", nil, http.StatusOK), &list)
	if list.Count != 0 {
		t.Fatalf("expected bob to see no projects, got %d", list.Count)
	}

	s.mustStatus(http.MethodDelete, base, "bob", nil, http.StatusForbidden)
	s.mustStatus(http.MethodDelete, base, "alice", nil, http.StatusOK)
	s.mustStatus(http.MethodGet, base, "alice", nil, http.StatusForbidden)
}

func TestTasksAndSidebar(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	var created struct {
		Project struct {
			ID string `json:"id"`
		} `json:"project"`
	}
	decodeData(t, s.mustStatus(http.MethodPost, "/api/projects", "alice", map[string]string{"name": "Atlas"}, http.StatusCreated), &created)
	base := "/api/projects/" + created.Project.ID

	var task struct {
		Task struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"task"`
	}
	decodeData(t, s.mustStatus(http.MethodPost, base+"/tasks", "alice", map[string]string{"title": "Ship"}, http.StatusCreated), &task)
	if task.Task.Status != "todo" {
		t.Fatalf("expected default status todo, got %q", task.Task.Status)
	}
	s.mustStatus(http.MethodPatch, base+"/tasks/"+task.Task.ID, "alice", map[string]string{"status": "later"}, http.StatusBadRequest)
	decodeData(t, s.mustStatus(http.MethodPatch, base+"/tasks/"+task.Task.ID, "alice", map[string]string{"status": "done"}, http.StatusOK), &task)
	if task.Task.Status != "done" {
		t.Fatalf("expected status done, got %q", task.Task.Status)
	}

	s.mustStatus(http.MethodPost, base+"/pages", "alice", map[string]string{"title": "Roadmap"}, http.StatusCreated)

	var sb struct {
		Sidebar struct {
			Role     string `json:"role"`
			Settings []struct {
				Title string `json:"title"`
			} `json:"settings"`
			Pages []struct {
				Title string `json:"title"`
			} `json:"pages"`
		} `json:"sidebar"`
	}
	decodeData(t, s.mustStatus(http.MethodGet, base+"/sidebar", "alice", nil, http.StatusOK), &sb)
	if sb.Sidebar.Role != "owner" || len(sb.Sidebar.Settings) != 3 || len(sb.Sidebar.Pages) != 1 {
		t.Fatalf("unexpected owner sidebar: %+v", sb.Sidebar)
	}
	s.mustStatus(http.MethodGet, base+"/sidebar", "mallory", nil, http.StatusForbidden)

	s.mustStatus(http.MethodDelete, base+"/tasks/"+task.Task.ID, "alice", nil, http.StatusOK)
	var tasks struct {
		Count int `json:"count"`
	}
	decodeData(t, s.mustStatus(http.MethodGet, base+"/tasks", "alice", nil, http.StatusOK), &tasks)
	if tasks.Count != 0 {
		t.Fatalf("expected no tasks, got %d", tasks.Count)
	}
}

func TestUsersSync(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	var me struct {
		Synced bool `json:"synced"`
	}
	decodeData(t, s.mustStatus(http.MethodGet, "/api/users/me", "dave", nil, http.StatusOK), &me)
	if me.Synced {
		t.Fatal("expected unsynced user")
	}

	s.mustStatus(http.MethodPost, "/api/users/sync", "dave", map[string]string{"avatar": "not a url"}, http.StatusBadRequest)
	s.mustStatus(http.MethodPost, "/api/users/sync", "dave", map[string]string{"name": "Dave D"}, http.StatusOK)

	var synced struct {
		Synced bool `json:"synced"`
		User   struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"user"`
	}
	decodeData(t, s.mustStatus(http.MethodGet, "/api/users/me", "dave", nil, http.StatusOK), &synced)
	if !synced.Synced || synced.User.Name != "Dave D" || synced.User.Email != "dave@example.com" {
		t.Fatalf("unexpected synced user: %+v", synced)
	}
}

func TestPublicRoutes(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	var health struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	decodeData(t, s.mustStatus(http.MethodGet, "/", "", nil, http.StatusOK), &health)
	if health.Status != "healthy" || health.Database != "local" {
		t.Fatalf("unexpected health: %+v", health)
	}

	env := s.mustStatus(http.MethodGet, "/api/projects", "", nil, http.StatusUnauthorized)
	if env.Success || env.Error == nil || env.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("unexpected unauthorized envelope: %+v", env)
	}
	s.mustStatus(http.MethodGet, "/nope", "", nil, http.StatusNotFound)
	s.mustStatus(http.MethodPut, "/api/projects", "alice", map[string]string{}, http.StatusMethodNotAllowed)
}

// Not parallel: the hook sits on the global logger.
func TestRequestLogRecordsCaller(t *testing.T) {
	hook := logtest.NewGlobal()
	defer logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))

	s := newTestServer(t)
	s.mustStatus(http.MethodGet, "/api/projects", "alice", nil, http.StatusOK)
	s.mustStatus(http.MethodGet, "/api/projects", "", nil, http.StatusUnauthorized)

	var callers []interface{}
	for _, e := range hook.AllEntries() {
		if e.Message == "request completed" {
			callers = append(callers, e.Data["user_id"])
		}
	}
	if len(callers) != 2 {
		t.Fatalf("expected 2 request log entries, got %d", len(callers))
	}
	if callers[0] != "alice" {
		t.Fatalf("expected user_id alice, got %v", callers[0])
	}
	if callers[1] != "anonymous" {
		t.Fatalf("expected anonymous caller, got %v", callers[1])
	}
}
