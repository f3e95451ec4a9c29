package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"project-collab-backend/pkg/models"
)

// SupabaseDatabase Supabase数据库实现（PostgREST）
//
// Multi-row writes go through the SQL functions declared in scripts/init_db.sql
// so each one runs in a single transaction.
type SupabaseDatabase struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSupabaseDatabase 创建Supabase数据库实例
func NewSupabaseDatabase(baseURL, key string) *SupabaseDatabase {
	// 确保URL格式正确
	if !strings.HasPrefix(baseURL, "http") {
		baseURL = "https://" + baseURL
	}

	return &SupabaseDatabase{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  key,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// supabaseError PostgREST 返回的错误
type supabaseError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func (e *supabaseError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s %s", e.Status, e.Code, e.Message)
}

// mapError 将 PostgREST 错误映射为存储层哨兵错误
func (e *supabaseError) mapError() error {
	switch {
	case e.Code == "23505":
		return ErrDuplicate
	case strings.Contains(e.Message, "last_owner"):
		return ErrLastOwner
	case strings.Contains(e.Message, "not_found"):
		return ErrNotFound
	}
	return e
}

// makeRequest 发送HTTP请求到Supabase
func (db *SupabaseDatabase) makeRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	return db.makeRequestWithHeaders(ctx, method, endpoint, body, nil)
}

// makeRequestWithHeaders 发送HTTP请求到Supabase（支持自定义头）
func (db *SupabaseDatabase) makeRequestWithHeaders(ctx context.Context, method, endpoint string, body interface{}, customHeaders map[string]string) ([]byte, error) {
	var reqBody io.Reader

	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, db.baseURL+"/rest/v1"+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// 设置默认请求头
	req.Header.Set("apikey", db.apiKey)
	req.Header.Set("Authorization", "Bearer "+db.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	// 设置自定义请求头
	for key, value := range customHeaders {
		req.Header.Set(key, value)
	}

	resp, err := db.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &supabaseError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(respBody, apiErr); jsonErr != nil {
			apiErr.Message = string(respBody)
		}
		return nil, apiErr.mapError()
	}

	return respBody, nil
}

// rpc 调用 SQL 函数
func (db *SupabaseDatabase) rpc(ctx context.Context, fn string, args map[string]interface{}) error {
	_, err := db.makeRequest(ctx, http.MethodPost, "/rpc/"+fn, args)
	return err
}

// selectRows 执行查询并解码结果
func (db *SupabaseDatabase) selectRows(ctx context.Context, endpoint string, out interface{}) error {
	data, err := db.makeRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// selectOne 查询单行，空结果返回 ErrNotFound
func selectOne[T any](ctx context.Context, db *SupabaseDatabase, endpoint string) (*T, error) {
	var rows []T
	if err := db.selectRows(ctx, endpoint, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// mutateOne 执行写操作，没有返回行时返回 ErrNotFound
func (db *SupabaseDatabase) mutateOne(ctx context.Context, method, endpoint string, body interface{}) error {
	data, err := db.makeRequest(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func eq(v string) string {
	return "eq." + url.QueryEscape(v)
}

func inList(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = `"` + strings.ReplaceAll(id, `"`, `\"`) + `"`
	}
	return url.QueryEscape("in.(" + strings.Join(quoted, ",") + ")")
}

func projectPayload(p *models.Project) map[string]interface{} {
	return map[string]interface{}{
		"id":                       p.ID,
		"name":                     p.Name,
		"description":              p.Description,
		"badge":                    p.Badge,
		"expected_completion_date": p.ExpectedCompletionDate,
		"priority":                 p.Priority,
		"status":                   p.Status,
		"created_at":               p.CreatedAt,
		"updated_at":               p.UpdatedAt,
	}
}

func taskPayload(t *models.Task) map[string]interface{} {
	var assignee interface{}
	if t.AssigneeID != "" {
		assignee = t.AssigneeID
	}
	return map[string]interface{}{
		"id":          t.ID,
		"project_id":  t.ProjectID,
		"title":       t.Title,
		"description": t.Description,
		"status":      t.Status,
		"assignee_id": assignee,
		"due_date":    t.DueDate,
		"created_by":  t.CreatedBy,
		"created_at":  t.CreatedAt,
		"updated_at":  t.UpdatedAt,
	}
}

// ================= Users =================

// UpsertUser 创建或更新身份记录
func (db *SupabaseDatabase) UpsertUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	payload := map[string]interface{}{
		"id":         user.ID,
		"email":      user.Email,
		"name":       user.Name,
		"avatar":     user.Avatar,
		"updated_at": now,
	}
	data, err := db.makeRequestWithHeaders(ctx, http.MethodPost, "/users?on_conflict=id", payload, map[string]string{
		"Prefer": "resolution=merge-duplicates,return=representation",
	})
	if err != nil {
		return err
	}
	var rows []models.User
	if err := json.Unmarshal(data, &rows); err == nil && len(rows) > 0 {
		user.CreatedAt = rows[0].CreatedAt
		user.UpdatedAt = rows[0].UpdatedAt
	}
	return nil
}

// GetUserByID 根据ID获取用户
func (db *SupabaseDatabase) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return selectOne[models.User](ctx, db, "/users?id="+eq(id)+"&limit=1")
}

// GetUsersByIDs 批量获取用户
func (db *SupabaseDatabase) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	err := db.selectRows(ctx, "/users?id="+inList(ids), &users)
	return users, err
}

// ================= Projects =================

// CreateProjectWithOwner 创建项目与 owner 成员（create_project_with_owner 函数）
func (db *SupabaseDatabase) CreateProjectWithOwner(ctx context.Context, project *models.Project, owner *models.ProjectMembership) error {
	return db.rpc(ctx, "create_project_with_owner", map[string]interface{}{
		"p_project": projectPayload(project),
		"p_owner":   owner,
	})
}

// GetProject 根据ID获取项目
func (db *SupabaseDatabase) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	return selectOne[models.Project](ctx, db, "/projects?id="+eq(projectID)+"&limit=1")
}

// UpdateProject 更新项目字段
func (db *SupabaseDatabase) UpdateProject(ctx context.Context, project *models.Project) error {
	payload := projectPayload(project)
	delete(payload, "id")
	delete(payload, "created_at")
	return db.mutateOne(ctx, http.MethodPatch, "/projects?id="+eq(project.ID), payload)
}

// DeleteProjectCascade 删除项目及其关联数据（delete_project_cascade 函数）
func (db *SupabaseDatabase) DeleteProjectCascade(ctx context.Context, projectID string) error {
	return db.rpc(ctx, "delete_project_cascade", map[string]interface{}{"p_project_id": projectID})
}

// ListUserProjects 列出用户参与的项目
func (db *SupabaseDatabase) ListUserProjects(ctx context.Context, userID string) ([]models.Project, error) {
	var memberships []models.ProjectMembership
	if err := db.selectRows(ctx, "/users_projects?select=project_id&user_id="+eq(userID), &memberships); err != nil {
		return nil, err
	}
	projects := []models.Project{}
	if len(memberships) == 0 {
		return projects, nil
	}
	ids := make([]string, len(memberships))
	for i, m := range memberships {
		ids[i] = m.ProjectID
	}
	err := db.selectRows(ctx, "/projects?id="+inList(ids)+"&order=created_at.desc", &projects)
	return projects, err
}

// ListProjectOwners 返回各项目的 owner 用户 id
func (db *SupabaseDatabase) ListProjectOwners(ctx context.Context, projectIDs []string) (map[string][]string, error) {
	owners := make(map[string][]string, len(projectIDs))
	if len(projectIDs) == 0 {
		return owners, nil
	}
	var rows []models.ProjectMembership
	endpoint := "/users_projects?select=project_id,user_id&role=eq.owner&project_id=" + inList(projectIDs) + "&order=created_at.asc"
	if err := db.selectRows(ctx, endpoint, &rows); err != nil {
		return nil, err
	}
	for _, m := range rows {
		owners[m.ProjectID] = append(owners[m.ProjectID], m.UserID)
	}
	return owners, nil
}

// ================= Memberships =================

// GetMembership 获取用户在项目中的成员记录
func (db *SupabaseDatabase) GetMembership(ctx context.Context, userID, projectID string) (*models.ProjectMembership, error) {
	return selectOne[models.ProjectMembership](ctx, db,
		"/users_projects?user_id="+eq(userID)+"&project_id="+eq(projectID)+"&limit=1")
}

// GetMembershipByID 根据ID获取成员记录
func (db *SupabaseDatabase) GetMembershipByID(ctx context.Context, id string) (*models.ProjectMembership, error) {
	return selectOne[models.ProjectMembership](ctx, db, "/users_projects?id="+eq(id)+"&limit=1")
}

// ListProjectMembers 列出项目成员
func (db *SupabaseDatabase) ListProjectMembers(ctx context.Context, projectID string) ([]models.ProjectMembership, error) {
	members := []models.ProjectMembership{}
	err := db.selectRows(ctx, "/users_projects?project_id="+eq(projectID)+"&order=created_at.asc,id.asc", &members)
	return members, err
}

// UpdateMemberRole 修改成员角色（update_member_role 函数负责 owner 保护）
func (db *SupabaseDatabase) UpdateMemberRole(ctx context.Context, id string, role models.Role) error {
	return db.rpc(ctx, "update_member_role", map[string]interface{}{
		"p_id":   id,
		"p_role": string(role),
	})
}

// RemoveProjectMember 移除成员（remove_project_member 函数负责 owner 保护）
func (db *SupabaseDatabase) RemoveProjectMember(ctx context.Context, id string) error {
	return db.rpc(ctx, "remove_project_member", map[string]interface{}{"p_id": id})
}

// ================= Access requests =================

// CreateAccessRequest 创建访问请求
func (db *SupabaseDatabase) CreateAccessRequest(ctx context.Context, req *models.AccessRequest) error {
	_, err := db.makeRequest(ctx, http.MethodPost, "/project_requests", req)
	return err
}

// GetAccessRequest 根据ID获取访问请求
func (db *SupabaseDatabase) GetAccessRequest(ctx context.Context, id string) (*models.AccessRequest, error) {
	return selectOne[models.AccessRequest](ctx, db, "/project_requests?id="+eq(id)+"&limit=1")
}

// FindAccessRequest 查找用户对某项目的访问请求
func (db *SupabaseDatabase) FindAccessRequest(ctx context.Context, userID, projectID string) (*models.AccessRequest, error) {
	return selectOne[models.AccessRequest](ctx, db,
		"/project_requests?user_id="+eq(userID)+"&project_id="+eq(projectID)+"&limit=1")
}

// ListAccessRequests 列出项目待处理的访问请求
func (db *SupabaseDatabase) ListAccessRequests(ctx context.Context, projectID string) ([]models.AccessRequest, error) {
	reqs := []models.AccessRequest{}
	err := db.selectRows(ctx, "/project_requests?project_id="+eq(projectID)+"&order=created_at.asc", &reqs)
	return reqs, err
}

// AcceptAccessRequest 写入成员并删除请求（accept_access_request 函数）
func (db *SupabaseDatabase) AcceptAccessRequest(ctx context.Context, requestID string, m *models.ProjectMembership) error {
	return db.rpc(ctx, "accept_access_request", map[string]interface{}{
		"p_request_id": requestID,
		"p_membership": m,
	})
}

// DeleteAccessRequest 删除访问请求
func (db *SupabaseDatabase) DeleteAccessRequest(ctx context.Context, id string) error {
	return db.mutateOne(ctx, http.MethodDelete, "/project_requests?id="+eq(id), nil)
}

// ================= Pages =================

// CreatePage 创建页面
func (db *SupabaseDatabase) CreatePage(ctx context.Context, page *models.Page) error {
	_, err := db.makeRequest(ctx, http.MethodPost, "/pages", page)
	return err
}

// GetPage 根据ID获取页面
func (db *SupabaseDatabase) GetPage(ctx context.Context, id string) (*models.Page, error) {
	return selectOne[models.Page](ctx, db, "/pages?id="+eq(id)+"&limit=1")
}

// ListPages 列出项目页面
func (db *SupabaseDatabase) ListPages(ctx context.Context, projectID string) ([]models.Page, error) {
	pages := []models.Page{}
	err := db.selectRows(ctx, "/pages?project_id="+eq(projectID)+"&order=created_at.asc", &pages)
	return pages, err
}

// UpdatePage 更新页面
func (db *SupabaseDatabase) UpdatePage(ctx context.Context, page *models.Page) error {
	return db.mutateOne(ctx, http.MethodPatch, "/pages?id="+eq(page.ID), map[string]interface{}{
		"title":      page.Title,
		"content":    page.Content,
		"updated_at": page.UpdatedAt,
	})
}

// DeletePage 删除页面
func (db *SupabaseDatabase) DeletePage(ctx context.Context, id string) error {
	return db.mutateOne(ctx, http.MethodDelete, "/pages?id="+eq(id), nil)
}

// ================= Tasks =================

// CreateTask 创建任务
func (db *SupabaseDatabase) CreateTask(ctx context.Context, task *models.Task) error {
	_, err := db.makeRequest(ctx, http.MethodPost, "/tasks", taskPayload(task))
	return err
}

// GetTask 根据ID获取任务
func (db *SupabaseDatabase) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return selectOne[models.Task](ctx, db, "/tasks?id="+eq(id)+"&limit=1")
}

// ListTasks 列出项目任务
func (db *SupabaseDatabase) ListTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	tasks := []models.Task{}
	err := db.selectRows(ctx, "/tasks?project_id="+eq(projectID)+"&order=created_at.asc", &tasks)
	return tasks, err
}

// UpdateTask 更新任务
func (db *SupabaseDatabase) UpdateTask(ctx context.Context, task *models.Task) error {
	payload := taskPayload(task)
	delete(payload, "id")
	delete(payload, "project_id")
	delete(payload, "created_by")
	delete(payload, "created_at")
	return db.mutateOne(ctx, http.MethodPatch, "/tasks?id="+eq(task.ID), payload)
}

// DeleteTask 删除任务
func (db *SupabaseDatabase) DeleteTask(ctx context.Context, id string) error {
	return db.mutateOne(ctx, http.MethodDelete, "/tasks?id="+eq(id), nil)
}

// HealthCheck 健康检查
func (db *SupabaseDatabase) HealthCheck(ctx context.Context) error {
	_, err := db.makeRequest(ctx, http.MethodGet, "/projects?select=id&limit=1", nil)
	return err
}

// Close 关闭连接（HTTP 客户端无需关闭）
func (db *SupabaseDatabase) Close() error {
	db.httpClient.CloseIdleConnections()
	return nil
}
