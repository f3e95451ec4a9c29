package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"project-collab-backend/pkg/models"
)

// LocalDatabase 本地数据库实现：内存存储，可选 JSON 文件持久化
//
// All reads and writes go through one mutex, so multi-record operations are
// atomic. A write whose flush fails is rolled back in memory. When path is
// empty nothing touches the disk.
type LocalDatabase struct {
	mu    sync.RWMutex
	path  string
	state localState
}

// localState 可序列化的存储快照
type localState struct {
	Users       map[string]models.User              `json:"users"`
	Projects    map[string]models.Project           `json:"projects"`
	Memberships map[string]models.ProjectMembership `json:"users_projects"`
	Requests    map[string]models.AccessRequest     `json:"project_requests"`
	Pages       map[string]models.Page              `json:"pages"`
	Tasks       map[string]models.Task              `json:"tasks"`
}

func newLocalState() localState {
	return localState{
		Users:       map[string]models.User{},
		Projects:    map[string]models.Project{},
		Memberships: map[string]models.ProjectMembership{},
		Requests:    map[string]models.AccessRequest{},
		Pages:       map[string]models.Page{},
		Tasks:       map[string]models.Task{},
	}
}

// NewLocalDatabase 创建本地数据库实例；path 为空时仅使用内存
func NewLocalDatabase(path string) (*LocalDatabase, error) {
	db := &LocalDatabase{path: path, state: newLocalState()}
	if path == "" {
		return db, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return db, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read local database: %w", err)
	}
	if len(data) == 0 {
		return db, nil
	}

	loaded := newLocalState()
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse local database: %w", err)
	}
	db.state = loaded
	db.state.fillNilMaps()
	return db, nil
}

func (s *localState) fillNilMaps() {
	empty := newLocalState()
	if s.Users == nil {
		s.Users = empty.Users
	}
	if s.Projects == nil {
		s.Projects = empty.Projects
	}
	if s.Memberships == nil {
		s.Memberships = empty.Memberships
	}
	if s.Requests == nil {
		s.Requests = empty.Requests
	}
	if s.Pages == nil {
		s.Pages = empty.Pages
	}
	if s.Tasks == nil {
		s.Tasks = empty.Tasks
	}
}

// flush 写回磁盘（调用方持有写锁）
func (db *LocalDatabase) flush() error {
	if db.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(db.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode local database: %w", err)
	}
	tmp := db.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write local database: %w", err)
	}
	return os.Rename(tmp, db.path)
}

// snapshot 复制当前状态，供写盘失败时回滚（调用方持有写锁）
func (db *LocalDatabase) snapshot() localState {
	if db.path == "" {
		return localState{}
	}
	return db.state.clone()
}

// commit 写盘；失败时恢复到 prev，内存与文件保持一致
func (db *LocalDatabase) commit(prev localState) error {
	if err := db.flush(); err != nil {
		db.state = prev
		return err
	}
	return nil
}

func (s localState) clone() localState {
	c := newLocalState()
	for k, v := range s.Users {
		c.Users[k] = v
	}
	for k, v := range s.Projects {
		c.Projects[k] = v
	}
	for k, v := range s.Memberships {
		c.Memberships[k] = v
	}
	for k, v := range s.Requests {
		c.Requests[k] = v
	}
	for k, v := range s.Pages {
		c.Pages[k] = v
	}
	for k, v := range s.Tasks {
		c.Tasks[k] = v
	}
	return c
}

// ==== users ====

// UpsertUser 创建或更新身份记录
func (db *LocalDatabase) UpsertUser(_ context.Context, user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	prev := db.snapshot()

	now := time.Now().UTC()
	if existing, ok := db.state.Users[user.ID]; ok {
		user.CreatedAt = existing.CreatedAt
	} else {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	db.state.Users[user.ID] = *user
	return db.commit(prev)
}

// GetUserByID 根据ID获取用户
func (db *LocalDatabase) GetUserByID(_ context.Context, id string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	u, ok := db.state.Users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// GetUsersByIDs 批量获取用户，缺失的 id 会被忽略
func (db *LocalDatabase) GetUsersByIDs(_ context.Context, ids []string) ([]models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := db.state.Users[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

// ==== projects ====

// CreateProjectWithOwner 创建项目并写入 owner 成员记录
func (db *LocalDatabase) CreateProjectWithOwner(_ context.Context, project *models.Project, owner *models.ProjectMembership) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	prev := db.snapshot()

	if _, ok := db.state.Projects[project.ID]; ok {
		return ErrDuplicate
	}
	if db.findMembership(owner.UserID, project.ID) != nil {
		return ErrDuplicate
	}
	stored := *project
	stored.Owners = nil
	db.state.Projects[project.ID] = stored
	db.state.Memberships[owner.ID] = *owner
	return db.commit(prev)
}

// GetProject 根据ID获取项目
func (db *LocalDatabase) GetProject(_ context.Context, projectID string) (*models.Project, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	p, ok := db.state.Projects[projectID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// UpdateProject 更新项目字段
func (db *LocalDatabase) UpdateProject(_ context.Context, project *models.Project) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	prev := db.snapshot()

	existing, ok := db.state.Projects[project.ID]
	if !ok {
		return ErrNotFound
	}
	stored := *project
	stored.Owners = nil
	stored.CreatedAt = existing.CreatedAt
	db.state.Projects[project.ID] = stored
	return db.commit(prev)
}

// DeleteProjectCascade 删除项目及其成员、请求、页面、任务
func (db *LocalDatabase) DeleteProjectCascade(_ context.Context, projectID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	prev := db.snapshot()

	if _, ok := db.state.Projects[projectID]; !ok {
		return ErrNotFound
	}
	for id, m := range db.state.Memberships {
		if m.ProjectID == projectID {
			delete(db.state.Memberships, id)
		}
	}
	for id, r := range db.state.Requests {
		if r.ProjectID == projectID {
			delete(db.state.Requests, id)
		}
	}
	for id, p := range db.state.Pages {
		if p.ProjectID == projectID {
			delete(db.state.Pages, id)
		}
	}
	for id, t := range db.state.Tasks {
		if t.ProjectID == projectID {
			delete(db.state.Tasks, id)
		}
	}
	delete(db.state.Projects, projectID)
	return db.commit(prev)
}

// ListUserProjects 列出用户有成员记录的项目（按创建时间倒序）
func (db *LocalDatabase) ListUserProjects(_ context.Context, userID string) ([]models.Project, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	projects := []models.Project{}
	for _, m := range db.state.Memberships {
		if m.UserID != userID {
			continue
		}
		if p, ok := db.state.Projects[m.ProjectID]; ok {
			projects = append(projects, p)
		}
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	return projects, nil
}

// ListProjectOwners 返回各项目的 owner 用户 id
func (db *LocalDatabase) ListProjectOwners(_ context.Context, projectIDs []string) (map[string][]string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	wanted := make(map[string]bool, len(projectIDs))
	for _, id := range projectIDs {
		wanted[id] = true
	}
	owners := make(map[string][]string, len(projectIDs))
	for _, m := range db.sortedMemberships() {
		if m.Role == models.RoleOwner && wanted[m.ProjectID] {
			owners[m.ProjectID] = append(owners[m.ProjectID], m.UserID)
		}
	}
	return owners, nil
}

// ==== memberships ====

func (db *LocalDatabase) findMembership(userID, projectID string) *models.ProjectMembership {
	for _, m := range db.state.Memberships {
		if m.UserID == userID && m.ProjectID == projectID {
			m := m
			return &m
		}
	}
	return nil
}

func (db *LocalDatabase) sortedMemberships() []models.ProjectMembership {
	all := make([]models.ProjectMembership, 0, len(db.state.Memberships))
	for _, m := range db.state.Memberships {
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return all
}

func (db *LocalDatabase) ownerCount(projectID string) int {
	n := 0
	for _, m := range db.state.Memberships {
		if m.ProjectID == projectID && m.Role == models.RoleOwner {
			n++
		}
	}
	return n
}

// GetMembership 获取用户在项目中的成员记录
func (db *LocalDatabase) GetMembership(_ context.Context, userID, projectID string) (*models.ProjectMembership, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if m := db.findMembership(userID, projectID); m != nil {
		return m, nil
	}
	return nil, ErrNotFound
}

// GetMembershipByID 根据ID获取成员记录
func (db *LocalDatabase) GetMembershipByID(_ context.Context, id string) (*models.ProjectMembership, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	m, ok := db.state.Memberships[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

// ListProjectMembers 列出项目成员（按加入时间排序）
func (db *LocalDatabase) ListProjectMembers(_ context.Context, projectID string) ([]models.ProjectMembership, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	members := []models.ProjectMembership{}
	for _, m := range db.sortedMemberships() {
		if m.ProjectID == projectID {
			members = append(members, m)
		}
	}
	return members, nil
}

// UpdateMemberRole 修改成员角色
func (db *LocalDatabase) UpdateMemberRole(_ context.Context, id string, role models.Role) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	prev := db.snapshot()

	m, ok := db.state.Memberships[id]
	if !ok {
		return ErrNotFound
	}
	if m.Role == models.RoleOwner && role != models.RoleOwner && db.ownerCount(m.ProjectID) <= 1 {
		return ErrLastOwner
	}
	m.Role = role
	m.UpdatedAt = time.Now().UTC()
	db.state.Memberships[id] = m
	return db.commit(prev)
}

// RemoveProjectMember 移除成员
func (db *LocalDatabase) RemoveProjectMember(_ context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	prev := db.snapshot()

	m, ok := db.state.Memberships[id]
	if !ok {
		return ErrNotFound
	}
	if m.Role == models.RoleOwner && db.ownerCount(m.ProjectID) <= 1 {
		return ErrLastOwner
	}
	delete(db.state.Memberships, id)
	return db.commit(prev)
}

// ==== access requests ====

// CreateAccessRequest 创建访问请求
func (db *LocalDatabase) CreateAccessRequest(_ context.Context, req *models.AccessRequest) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	prev := db.snapshot()

	for _, r := range db.state.Requests {
		if r.UserID == req.UserID && r.ProjectID == req.ProjectID {
			return ErrDuplicate
		}
	}
	db.state.Requests[req.ID] = *req
	return db.commit(prev)
}

// GetAccessRequest 根据ID获取访问请求
func (db *LocalDatabase) GetAccessRequest(_ context.Context, id string) (*models.AccessRequest, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	r, ok := db.state.Requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

// FindAccessRequest 查找用户对某项目的访问请求
func (db *LocalDatabase) FindAccessRequest(_ context.Context, userID, projectID string) (*models.AccessRequest, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, r := range db.state.Requests {
		if r.UserID == userID && r.ProjectID == projectID {
			r := r
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

// ListAccessRequests 列出项目待处理的访问请求
func (db *LocalDatabase) ListAccessRequests(_ context.Context, projectID string) ([]models.AccessRequest, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	reqs := []models.AccessRequest{}
	for _, r := range db.state.Requests {
		if r.ProjectID == projectID {
			reqs = append(reqs, r)
		}
	}
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
	return reqs, nil
}

// AcceptAccessRequest 接受请求：写入成员并删除请求
func (db *LocalDatabase) AcceptAccessRequest(_ context.Context, requestID string, m *models.ProjectMembership) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	prev := db.snapshot()

	if _, ok := db.state.Requests[requestID]; !ok {
		return ErrNotFound
	}
	if db.findMembership(m.UserID, m.ProjectID) != nil {
		return ErrDuplicate
	}
	db.state.Memberships[m.ID] = *m
	delete(db.state.Requests, requestID)
	return db.commit(prev)
}

// DeleteAccessRequest 删除访问请求
func (db *LocalDatabase) DeleteAccessRequest(_ context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	prev := db.snapshot()

	if _, ok := db.state.Requests[id]; !ok {
		return ErrNotFound
	}
	delete(db.state.Requests, id)
	return db.commit(prev)
}

// ==== pages ====

// CreatePage 创建页面
func (db *LocalDatabase) CreatePage(_ context.Context, page *models.Page) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	prev := db.snapshot()

	if _, ok := db.state.Projects[page.ProjectID]; !ok {
		return ErrNotFound
	}
	db.state.Pages[page.ID] = *page
	return db.commit(prev)
}

// GetPage 根据ID获取页面
func (db *LocalDatabase) GetPage(_ context.Context, id string) (*models.Page, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	p, ok := db.state.Pages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// ListPages 列出项目页面
func (db *LocalDatabase) ListPages(_ context.Context, projectID string) ([]models.Page, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	pages := []models.Page{}
	for _, p := range db.state.Pages {
		if p.ProjectID == projectID {
			pages = append(pages, p)
		}
	}
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].CreatedAt.Before(pages[j].CreatedAt)
	})
	return pages, nil
}

// UpdatePage 更新页面
func (db *LocalDatabase) UpdatePage(_ context.Context, page *models.Page) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	prev := db.snapshot()

	if _, ok := db.state.Pages[page.ID]; !ok {
		return ErrNotFound
	}
	db.state.Pages[page.ID] = *page
	return db.commit(prev)
}

// DeletePage 删除页面
func (db *LocalDatabase) DeletePage(_ context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	prev := db.snapshot()

	if _, ok := db.state.Pages[id]; !ok {
		return ErrNotFound
	}
	delete(db.state.Pages, id)
	return db.commit(prev)
}

// ==== tasks ====

// CreateTask 创建任务
func (db *LocalDatabase) CreateTask(_ context.Context, task *models.Task) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	prev := db.snapshot()

	if _, ok := db.state.Projects[task.ProjectID]; !ok {
		return ErrNotFound
	}
	db.state.Tasks[task.ID] = *task
	return db.commit(prev)
}

// GetTask 根据ID获取任务
func (db *LocalDatabase) GetTask(_ context.Context, id string) (*models.Task, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	t, ok := db.state.Tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

// ListTasks 列出项目任务
func (db *LocalDatabase) ListTasks(_ context.Context, projectID string) ([]models.Task, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	tasks := []models.Task{}
	for _, t := range db.state.Tasks {
		if t.ProjectID == projectID {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// UpdateTask 更新任务
func (db *LocalDatabase) UpdateTask(_ context.Context, task *models.Task) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	prev := db.snapshot()

	if _, ok := db.state.Tasks[task.ID]; !ok {
		return ErrNotFound
	}
	db.state.Tasks[task.ID] = *task
	return db.commit(prev)
}

// DeleteTask 删除任务
func (db *LocalDatabase) DeleteTask(_ context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	prev := db.snapshot()

	if _, ok := db.state.Tasks[id]; !ok {
		return ErrNotFound
	}
	delete(db.state.Tasks, id)
	return db.commit(prev)
}

// HealthCheck 健康检查
func (db *LocalDatabase) HealthCheck(_ context.Context) error {
	if db.path == "" {
		return nil
	}
	if _, err := os.Stat(filepath.Dir(db.path)); err != nil {
		return fmt.Errorf("data directory not accessible: %w", err)
	}
	return nil
}

// Close 关闭数据库
func (db *LocalDatabase) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.flush()
}
