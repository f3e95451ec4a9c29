package services

import (
	"context"
	"fmt"
	"strings"

	"project-collab-backend/pkg/models"
)

// ProjectUsers lists a project's members and the owner subset.
type ProjectUsers struct {
	Members []models.ProjectMember `json:"members"`
	Owners  []models.ProjectMember `json:"owners"`
}

// Create 创建项目，创建者成为 owner
func (s *Service) Create(ctx context.Context, in models.ProjectInput, userID string) (*models.Project, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalidInput("name is required")
	}

	now := s.timestamp()
	project := &models.Project{
		ID:        s.newID(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.Apply(project)

	owner := &models.ProjectMembership{
		ID:        s.newID(),
		UserID:    userID,
		ProjectID: project.ID,
		Role:      models.RoleOwner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.CreateProjectWithOwner(ctx, project, owner); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	project.Owners = []string{userID}
	s.log(ctx, "create_project", userID, project.ID).Info("project created")
	return project, nil
}

// Update 更新项目信息（canEdit 及以上）
func (s *Service) Update(ctx context.Context, in models.ProjectInput, projectID, callerID string) (*models.Project, error) {
	if _, err := s.requireRole(ctx, "update_project", callerID, projectID, models.RoleCanEdit); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalidInput("name is required")
	}

	project, err := s.db.GetProject(ctx, projectID)
	if err != nil {
		return nil, storeError("get project", err)
	}
	in.Apply(project)
	project.UpdatedAt = s.timestamp()

	if err := s.db.UpdateProject(ctx, project); err != nil {
		return nil, storeError("update project", err)
	}

	projects := []models.Project{*project}
	if err := s.attachOwners(ctx, projects); err != nil {
		return nil, err
	}
	return &projects[0], nil
}

// DeleteByID deletes the project and everything under it. Owner only.
func (s *Service) DeleteByID(ctx context.Context, projectID, callerID string) error {
	if _, err := s.requireRole(ctx, "delete_project", callerID, projectID, models.RoleOwner); err != nil {
		return err
	}
	if err := s.db.DeleteProjectCascade(ctx, projectID); err != nil {
		return storeError("delete project", err)
	}
	s.log(ctx, "delete_project", callerID, projectID).Warn("project deleted with memberships, requests and content")
	return nil
}

// GetAll 返回用户参与的全部项目
func (s *Service) GetAll(ctx context.Context, userID string) ([]models.Project, error) {
	projects, err := s.db.ListUserProjects(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	if err := s.attachOwners(ctx, projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetByID 返回项目详情（需要访问权限）
func (s *Service) GetByID(ctx context.Context, projectID, callerID string) (*models.Project, error) {
	if _, err := s.requireRole(ctx, "view_project", callerID, projectID, models.RoleCanView); err != nil {
		return nil, err
	}
	project, err := s.db.GetProject(ctx, projectID)
	if err != nil {
		return nil, storeError("get project", err)
	}
	projects := []models.Project{*project}
	if err := s.attachOwners(ctx, projects); err != nil {
		return nil, err
	}
	return &projects[0], nil
}

// GetProjectUsersAndOwners joins memberships with identity records.
func (s *Service) GetProjectUsersAndOwners(ctx context.Context, projectID, callerID string) (*ProjectUsers, error) {
	if _, err := s.requireRole(ctx, "list_members", callerID, projectID, models.RoleCanView); err != nil {
		return nil, err
	}

	memberships, err := s.db.ListProjectMembers(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	ids := make([]string, len(memberships))
	for i, m := range memberships {
		ids[i] = m.UserID
	}
	users, err := s.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := &ProjectUsers{
		Members: make([]models.ProjectMember, 0, len(memberships)),
		Owners:  []models.ProjectMember{},
	}
	for _, m := range memberships {
		member := models.ProjectMember{ProjectMembership: m, User: users[m.UserID]}
		result.Members = append(result.Members, member)
		if m.Role == models.RoleOwner {
			result.Owners = append(result.Owners, member)
		}
	}
	return result, nil
}
