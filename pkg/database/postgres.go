package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"project-collab-backend/pkg/models"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// PostgresDatabase PostgreSQL数据库实现
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase 创建PostgreSQL数据库实例
func NewPostgresDatabase(dsn string) (*PostgresDatabase, error) {
	// 尝试多种连接策略来解决Vercel Lambda的IPv6问题
	dsn = strings.TrimSpace(dsn)
	strategies := []string{
		addConnectionParams(dsn, "connect_timeout=10"),
		addConnectionParams(dsn, "sslmode=require&connect_timeout=10"),
		dsn, // 最后尝试原始DSN
	}

	log := logrus.WithField("component", "postgres")
	var lastErr error
	for i, strategy := range strategies {
		db, err := sql.Open("postgres", strategy)
		if err != nil {
			log.WithError(err).Warnf("connection strategy %d failed to open", i+1)
			lastErr = err
			continue
		}

		// 设置连接池参数，适合无服务器环境
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err != nil {
			log.WithError(err).Warnf("connection strategy %d failed to ping", i+1)
			db.Close()
			lastErr = err
			continue
		}

		log.Infof("PostgreSQL connection established with strategy %d", i+1)
		return &PostgresDatabase{db: db}, nil
	}

	return nil, fmt.Errorf("failed to connect to PostgreSQL with all strategies: %w", lastErr)
}

// NewPostgresDatabaseFromDB wraps an already opened handle.
func NewPostgresDatabaseFromDB(db *sql.DB) *PostgresDatabase {
	return &PostgresDatabase{db: db}
}

// addConnectionParams 添加连接参数到DSN
func addConnectionParams(dsn, params string) string {
	if params == "" {
		return dsn
	}
	// key=value 形式的 DSN 用空格拼接
	if !strings.Contains(dsn, "://") {
		return dsn + " " + strings.ReplaceAll(params, "&", " ")
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + params
}

// isUniqueViolation 判断是否为唯一约束冲突
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// withTx 在事务中执行 fn，出错时回滚
func (db *PostgresDatabase) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// ==== users ====

// UpsertUser 创建或更新身份记录
func (db *PostgresDatabase) UpsertUser(ctx context.Context, user *models.User) error {
	query := `
        INSERT INTO users (id, email, name, avatar, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW())
        ON CONFLICT (id) DO UPDATE
        SET email = EXCLUDED.email, name = EXCLUDED.name, avatar = EXCLUDED.avatar, updated_at = NOW()
        RETURNING created_at, updated_at
    `
	err := db.db.QueryRowContext(ctx, query, user.ID, user.Email, user.Name, user.Avatar).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetUserByID 根据ID获取用户
func (db *PostgresDatabase) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := db.db.QueryRowContext(ctx,
		`SELECT id, email, name, avatar, created_at, updated_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.Name, &u.Avatar, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// GetUsersByIDs 批量获取用户
func (db *PostgresDatabase) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	rows, err := db.db.QueryContext(ctx,
		`SELECT id, email, name, avatar, created_at, updated_at FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Avatar, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ==== projects ====

const projectColumns = `id, name, description, badge, expected_completion_date, priority, status, created_at, updated_at`

func scanProject(s rowScanner) (*models.Project, error) {
	var p models.Project
	var due sql.NullTime
	if err := s.Scan(&p.ID, &p.Name, &p.Description, &p.Badge, &due, &p.Priority, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ExpectedCompletionDate = timePtr(due)
	return &p, nil
}

// CreateProjectWithOwner 在一个事务中创建项目与 owner 成员
func (db *PostgresDatabase) CreateProjectWithOwner(ctx context.Context, project *models.Project, owner *models.ProjectMembership) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO projects (`+projectColumns+`)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			project.ID, project.Name, project.Description, project.Badge, nullTime(project.ExpectedCompletionDate),
			project.Priority, project.Status, project.CreatedAt, project.UpdatedAt)
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		if err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}
		if err := insertMembership(ctx, tx, owner); err != nil {
			return err
		}
		return nil
	})
}

// GetProject 根据ID获取项目
func (db *PostgresDatabase) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	row := db.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, projectID)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// UpdateProject 更新项目字段
func (db *PostgresDatabase) UpdateProject(ctx context.Context, project *models.Project) error {
	res, err := db.db.ExecContext(ctx, `
        UPDATE projects
        SET name = $1, description = $2, badge = $3, expected_completion_date = $4,
            priority = $5, status = $6, updated_at = $7
        WHERE id = $8`,
		project.Name, project.Description, project.Badge, nullTime(project.ExpectedCompletionDate),
		project.Priority, project.Status, project.UpdatedAt, project.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return requireAffected(res)
}

// DeleteProjectCascade 在一个事务中删除项目及其关联数据
func (db *PostgresDatabase) DeleteProjectCascade(ctx context.Context, projectID string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"users_projects", "project_requests", "pages", "tasks"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE project_id = $1`, projectID); err != nil {
				return fmt.Errorf("failed to delete %s: %w", table, err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, projectID)
		if err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		return requireAffected(res)
	})
}

// ListUserProjects 列出用户参与的项目
func (db *PostgresDatabase) ListUserProjects(ctx context.Context, userID string) ([]models.Project, error) {
	rows, err := db.db.QueryContext(ctx, `
        SELECT p.id, p.name, p.description, p.badge, p.expected_completion_date, p.priority, p.status, p.created_at, p.updated_at
        FROM projects p
        JOIN users_projects up ON up.project_id = p.id
        WHERE up.user_id = $1
        ORDER BY p.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// ListProjectOwners 返回各项目的 owner 用户 id
func (db *PostgresDatabase) ListProjectOwners(ctx context.Context, projectIDs []string) (map[string][]string, error) {
	owners := make(map[string][]string, len(projectIDs))
	if len(projectIDs) == 0 {
		return owners, nil
	}
	rows, err := db.db.QueryContext(ctx, `
        SELECT project_id, user_id FROM users_projects
        WHERE project_id = ANY($1) AND role = 'owner'
        ORDER BY created_at`, pq.Array(projectIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var projectID, userID string
		if err := rows.Scan(&projectID, &userID); err != nil {
			return nil, err
		}
		owners[projectID] = append(owners[projectID], userID)
	}
	return owners, rows.Err()
}

// ==== memberships ====

const membershipColumns = `id, user_id, project_id, role, created_at, updated_at`

func scanMembership(s rowScanner) (*models.ProjectMembership, error) {
	var m models.ProjectMembership
	if err := s.Scan(&m.ID, &m.UserID, &m.ProjectID, &m.Role, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func insertMembership(ctx context.Context, tx *sql.Tx, m *models.ProjectMembership) error {
	_, err := tx.ExecContext(ctx, `
        INSERT INTO users_projects (`+membershipColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.UserID, m.ProjectID, string(m.Role), m.CreatedAt, m.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// GetMembership 获取用户在项目中的成员记录
func (db *PostgresDatabase) GetMembership(ctx context.Context, userID, projectID string) (*models.ProjectMembership, error) {
	row := db.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM users_projects WHERE user_id = $1 AND project_id = $2`, userID, projectID)
	m, err := scanMembership(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// GetMembershipByID 根据ID获取成员记录
func (db *PostgresDatabase) GetMembershipByID(ctx context.Context, id string) (*models.ProjectMembership, error) {
	row := db.db.QueryRowContext(ctx, `SELECT `+membershipColumns+` FROM users_projects WHERE id = $1`, id)
	m, err := scanMembership(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// ListProjectMembers 列出项目成员
func (db *PostgresDatabase) ListProjectMembers(ctx context.Context, projectID string) ([]models.ProjectMembership, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT `+membershipColumns+` FROM users_projects WHERE project_id = $1 ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []models.ProjectMembership{}
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// lockMembershipForOwnerChange 锁定目标成员与项目所有 owner 行，返回目标成员与 owner 数量
func lockMembershipForOwnerChange(ctx context.Context, tx *sql.Tx, id string) (*models.ProjectMembership, int, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+membershipColumns+` FROM users_projects WHERE id = $1 FOR UPDATE`, id)
	m, err := scanMembership(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to lock membership: %w", err)
	}

	var owners int
	err = tx.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM (
            SELECT id FROM users_projects WHERE project_id = $1 AND role = 'owner' FOR UPDATE
        ) o`, m.ProjectID).Scan(&owners)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count owners: %w", err)
	}
	return m, owners, nil
}

// UpdateMemberRole 修改成员角色
func (db *PostgresDatabase) UpdateMemberRole(ctx context.Context, id string, role models.Role) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		m, owners, err := lockMembershipForOwnerChange(ctx, tx, id)
		if err != nil {
			return err
		}
		if m.Role == models.RoleOwner && role != models.RoleOwner && owners <= 1 {
			return ErrLastOwner
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE users_projects SET role = $1, updated_at = NOW() WHERE id = $2`, string(role), id)
		if err != nil {
			return fmt.Errorf("failed to update role: %w", err)
		}
		return nil
	})
}

// RemoveProjectMember 移除成员
func (db *PostgresDatabase) RemoveProjectMember(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		m, owners, err := lockMembershipForOwnerChange(ctx, tx, id)
		if err != nil {
			return err
		}
		if m.Role == models.RoleOwner && owners <= 1 {
			return ErrLastOwner
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM users_projects WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}
		return nil
	})
}

// ==== access requests ====

const requestColumns = `id, user_id, project_id, created_at`

func scanRequest(s rowScanner) (*models.AccessRequest, error) {
	var r models.AccessRequest
	if err := s.Scan(&r.ID, &r.UserID, &r.ProjectID, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateAccessRequest 创建访问请求
func (db *PostgresDatabase) CreateAccessRequest(ctx context.Context, req *models.AccessRequest) error {
	_, err := db.db.ExecContext(ctx,
		`INSERT INTO project_requests (`+requestColumns+`) VALUES ($1, $2, $3, $4)`,
		req.ID, req.UserID, req.ProjectID, req.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create access request: %w", err)
	}
	return nil
}

// GetAccessRequest 根据ID获取访问请求
func (db *PostgresDatabase) GetAccessRequest(ctx context.Context, id string) (*models.AccessRequest, error) {
	r, err := scanRequest(db.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM project_requests WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get access request: %w", err)
	}
	return r, nil
}

// FindAccessRequest 查找用户对某项目的访问请求
func (db *PostgresDatabase) FindAccessRequest(ctx context.Context, userID, projectID string) (*models.AccessRequest, error) {
	r, err := scanRequest(db.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM project_requests WHERE user_id = $1 AND project_id = $2`, userID, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find access request: %w", err)
	}
	return r, nil
}

// ListAccessRequests 列出项目待处理的访问请求
func (db *PostgresDatabase) ListAccessRequests(ctx context.Context, projectID string) ([]models.AccessRequest, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM project_requests WHERE project_id = $1 ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list access requests: %w", err)
	}
	defer rows.Close()

	reqs := []models.AccessRequest{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, *r)
	}
	return reqs, rows.Err()
}

// AcceptAccessRequest 在一个事务中写入成员并删除请求
func (db *PostgresDatabase) AcceptAccessRequest(ctx context.Context, requestID string, m *models.ProjectMembership) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM project_requests WHERE id = $1`, requestID)
		if err != nil {
			return fmt.Errorf("failed to delete access request: %w", err)
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		return insertMembership(ctx, tx, m)
	})
}

// DeleteAccessRequest 删除访问请求
func (db *PostgresDatabase) DeleteAccessRequest(ctx context.Context, id string) error {
	res, err := db.db.ExecContext(ctx, `DELETE FROM project_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete access request: %w", err)
	}
	return requireAffected(res)
}

// ==== pages ====

const pageColumns = `id, project_id, title, content, created_by, created_at, updated_at`

func scanPage(s rowScanner) (*models.Page, error) {
	var p models.Page
	if err := s.Scan(&p.ID, &p.ProjectID, &p.Title, &p.Content, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePage 创建页面
func (db *PostgresDatabase) CreatePage(ctx context.Context, page *models.Page) error {
	_, err := db.db.ExecContext(ctx,
		`INSERT INTO pages (`+pageColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		page.ID, page.ProjectID, page.Title, page.Content, page.CreatedBy, page.CreatedAt, page.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}
	return nil
}

// GetPage 根据ID获取页面
func (db *PostgresDatabase) GetPage(ctx context.Context, id string) (*models.Page, error) {
	p, err := scanPage(db.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return p, nil
}

// ListPages 列出项目页面
func (db *PostgresDatabase) ListPages(ctx context.Context, projectID string) ([]models.Page, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE project_id = $1 ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	pages := []models.Page{}
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, *p)
	}
	return pages, rows.Err()
}

// UpdatePage 更新页面
func (db *PostgresDatabase) UpdatePage(ctx context.Context, page *models.Page) error {
	res, err := db.db.ExecContext(ctx,
		`UPDATE pages SET title = $1, content = $2, updated_at = $3 WHERE id = $4`,
		page.Title, page.Content, page.UpdatedAt, page.ID)
	if err != nil {
		return fmt.Errorf("failed to update page: %w", err)
	}
	return requireAffected(res)
}

// DeletePage 删除页面
func (db *PostgresDatabase) DeletePage(ctx context.Context, id string) error {
	res, err := db.db.ExecContext(ctx, `DELETE FROM pages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete page: %w", err)
	}
	return requireAffected(res)
}

// ==== tasks ====

const taskColumns = `id, project_id, title, description, status, assignee_id, due_date, created_by, created_at, updated_at`

func scanTask(s rowScanner) (*models.Task, error) {
	var t models.Task
	var assignee sql.NullString
	var due sql.NullTime
	if err := s.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &assignee, &due, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.AssigneeID = assignee.String
	t.DueDate = timePtr(due)
	return &t, nil
}

// CreateTask 创建任务
func (db *PostgresDatabase) CreateTask(ctx context.Context, task *models.Task) error {
	_, err := db.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)`,
		task.ID, task.ProjectID, task.Title, task.Description, string(task.Status), task.AssigneeID,
		nullTime(task.DueDate), task.CreatedBy, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTask 根据ID获取任务
func (db *PostgresDatabase) GetTask(ctx context.Context, id string) (*models.Task, error) {
	t, err := scanTask(db.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// ListTasks 列出项目任务
func (db *PostgresDatabase) ListTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// UpdateTask 更新任务
func (db *PostgresDatabase) UpdateTask(ctx context.Context, task *models.Task) error {
	res, err := db.db.ExecContext(ctx, `
        UPDATE tasks
        SET title = $1, description = $2, status = $3, assignee_id = NULLIF($4, ''), due_date = $5, updated_at = $6
        WHERE id = $7`,
		task.Title, task.Description, string(task.Status), task.AssigneeID, nullTime(task.DueDate), task.UpdatedAt, task.ID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return requireAffected(res)
}

// DeleteTask 删除任务
func (db *PostgresDatabase) DeleteTask(ctx context.Context, id string) error {
	res, err := db.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return requireAffected(res)
}

// requireAffected 没有行被影响时返回 ErrNotFound
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// HealthCheck 健康检查
func (db *PostgresDatabase) HealthCheck(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

// Close 关闭数据库连接
func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}
