package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"project-collab-backend/pkg/database"
	"project-collab-backend/pkg/logger"
	"project-collab-backend/pkg/metrics"
	"project-collab-backend/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Service implements project access control, lifecycle, content and navigation
// on top of a DatabaseInterface.
type Service struct {
	db    database.DatabaseInterface
	now   func() time.Time
	newID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New 创建服务
func New(db database.DatabaseInterface, opts ...Option) *Service {
	s := &Service{
		db:    db,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

func (s *Service) log(ctx context.Context, action, userID, projectID string) *logrus.Entry {
	return logger.FromContext(ctx).WithFields(logrus.Fields{
		"action":     action,
		"user_id":    userID,
		"project_id": projectID,
	})
}

// requireRole returns the caller's membership when its role includes required.
func (s *Service) requireRole(ctx context.Context, action, userID, projectID string, required models.Role) (*models.ProjectMembership, error) {
	m, err := s.db.GetMembership(ctx, userID, projectID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("load membership: %w", err)
	}
	if m == nil || !m.Role.Includes(required) {
		metrics.RecordAccessDecision(action, false)
		s.log(ctx, action, userID, projectID).WithField("required", required).Info("access denied")
		return nil, ErrForbidden
	}
	metrics.RecordAccessDecision(action, true)
	return m, nil
}

// attachOwners fills Project.Owners from owner memberships.
func (s *Service) attachOwners(ctx context.Context, projects []models.Project) error {
	if len(projects) == 0 {
		return nil
	}
	ids := make([]string, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
	}
	owners, err := s.db.ListProjectOwners(ctx, ids)
	if err != nil {
		return fmt.Errorf("list owners: %w", err)
	}
	for i := range projects {
		projects[i].Owners = owners[projects[i].ID]
		if projects[i].Owners == nil {
			projects[i].Owners = []string{}
		}
	}
	return nil
}

// usersByID loads identity records, skipping ids that were never synced.
func (s *Service) usersByID(ctx context.Context, ids []string) (map[string]*models.User, error) {
	users, err := s.db.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	byID := make(map[string]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	return byID, nil
}
