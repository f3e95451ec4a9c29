package database

import (
	"context"
	"errors"
	"os"

	"project-collab-backend/pkg/models"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 违反唯一约束（同一用户在同一项目只能有一条成员/请求记录）
	ErrDuplicate = errors.New("record already exists")
	// ErrLastOwner 操作会让项目失去最后一个 owner
	ErrLastOwner = errors.New("project must keep at least one owner")
)

// DatabaseInterface 定义数据库访问接口
//
// Multi-record operations (CreateProjectWithOwner, DeleteProjectCascade,
// AcceptAccessRequest, UpdateMemberRole, RemoveProjectMember) are atomic in
// every implementation.
type DatabaseInterface interface {
	// 用户（身份记录）
	UpsertUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)

	// 项目
	CreateProjectWithOwner(ctx context.Context, project *models.Project, owner *models.ProjectMembership) error
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
	UpdateProject(ctx context.Context, project *models.Project) error
	DeleteProjectCascade(ctx context.Context, projectID string) error
	ListUserProjects(ctx context.Context, userID string) ([]models.Project, error)
	// ListProjectOwners returns owner user ids keyed by project id.
	ListProjectOwners(ctx context.Context, projectIDs []string) (map[string][]string, error)

	// 成员
	GetMembership(ctx context.Context, userID, projectID string) (*models.ProjectMembership, error)
	GetMembershipByID(ctx context.Context, id string) (*models.ProjectMembership, error)
	ListProjectMembers(ctx context.Context, projectID string) ([]models.ProjectMembership, error)
	// UpdateMemberRole returns ErrLastOwner when demoting the only owner.
	UpdateMemberRole(ctx context.Context, id string, role models.Role) error
	// RemoveProjectMember returns ErrLastOwner when removing the only owner.
	RemoveProjectMember(ctx context.Context, id string) error

	// 访问请求
	CreateAccessRequest(ctx context.Context, req *models.AccessRequest) error
	GetAccessRequest(ctx context.Context, id string) (*models.AccessRequest, error)
	FindAccessRequest(ctx context.Context, userID, projectID string) (*models.AccessRequest, error)
	ListAccessRequests(ctx context.Context, projectID string) ([]models.AccessRequest, error)
	// AcceptAccessRequest inserts the membership and deletes the request.
	AcceptAccessRequest(ctx context.Context, requestID string, m *models.ProjectMembership) error
	DeleteAccessRequest(ctx context.Context, id string) error

	// 页面
	CreatePage(ctx context.Context, page *models.Page) error
	GetPage(ctx context.Context, id string) (*models.Page, error)
	ListPages(ctx context.Context, projectID string) ([]models.Page, error)
	UpdatePage(ctx context.Context, page *models.Page) error
	DeletePage(ctx context.Context, id string) error

	// 任务
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, projectID string) ([]models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id string) error

	// 健康检查
	HealthCheck(ctx context.Context) error

	// 关闭连接
	Close() error
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	UseLocalDB    bool
	LocalDBPath   string
	PostgresDSN   string
	SupabaseURL   string
	SupabaseKey   string
	Debug         bool
	IsDevelopment bool
}

// Kind 返回配置对应的数据库类型名称
func (c DatabaseConfig) Kind() string {
	switch {
	case c.PostgresDSN != "":
		return "postgresql"
	case c.SupabaseURL != "" && c.SupabaseKey != "":
		return "supabase"
	case c.UseLocalDB:
		return "local"
	}
	return "unknown"
}

// NewDatabase 根据环境与配置选择数据库实现
func NewDatabase(config DatabaseConfig) (DatabaseInterface, error) {
	log := logrus.WithField("component", "database")

	if isVercelEnvironment() {
		log.Info("detected serverless environment")

		// Vercel 优先使用 Supabase（避免 IPv6）
		if config.SupabaseURL != "" && config.SupabaseKey != "" {
			log.Info("using Supabase REST API")
			return NewSupabaseDatabase(config.SupabaseURL, config.SupabaseKey), nil
		}
		if config.PostgresDSN != "" {
			log.Warn("using PostgreSQL in serverless environment (may have IPv6 issues)")
			return openPostgres(config.PostgresDSN)
		}
		return nil, errors.New("no valid database configured for serverless environment: set SUPABASE_URL+SUPABASE_SERVICE_KEY or POSTGRES_DSN")
	}

	// 非 Vercel 环境：PostgreSQL > Supabase > 本地
	if config.PostgresDSN != "" {
		log.Info("using PostgreSQL database")
		return openPostgres(config.PostgresDSN)
	}
	if config.SupabaseURL != "" && config.SupabaseKey != "" {
		log.Info("using Supabase REST API")
		return NewSupabaseDatabase(config.SupabaseURL, config.SupabaseKey), nil
	}
	if config.UseLocalDB {
		log.WithField("path", config.LocalDBPath).Info("using local database")
		db, err := NewLocalDatabase(config.LocalDBPath)
		if err != nil {
			return nil, err
		}
		return db, nil
	}

	return nil, errors.New("no valid database configuration found: configure POSTGRES_DSN, SUPABASE_URL+SUPABASE_SERVICE_KEY or USE_LOCAL_DB")
}

func openPostgres(dsn string) (DatabaseInterface, error) {
	db, err := NewPostgresDatabase(dsn)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// isVercelEnvironment 内部检查 Vercel 环境
func isVercelEnvironment() bool {
	return os.Getenv("VERCEL_ENV") != "" || os.Getenv("VERCEL_URL") != "" || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}
