package services

import (
	"context"
	"fmt"
	"strings"

	"project-collab-backend/pkg/models"
)

// ==== pages ====

// ListPages 列出项目页面（canView）
func (s *Service) ListPages(ctx context.Context, callerID, projectID string) ([]models.Page, error) {
	if _, err := s.requireRole(ctx, "list_pages", callerID, projectID, models.RoleCanView); err != nil {
		return nil, err
	}
	pages, err := s.db.ListPages(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return pages, nil
}

func (s *Service) pageOf(ctx context.Context, projectID, pageID string) (*models.Page, error) {
	page, err := s.db.GetPage(ctx, pageID)
	if err != nil {
		return nil, storeError("get page", err)
	}
	if page.ProjectID != projectID {
		return nil, ErrNotFound
	}
	return page, nil
}

// GetPage 获取页面（canView）
func (s *Service) GetPage(ctx context.Context, callerID, projectID, pageID string) (*models.Page, error) {
	if _, err := s.requireRole(ctx, "view_page", callerID, projectID, models.RoleCanView); err != nil {
		return nil, err
	}
	return s.pageOf(ctx, projectID, pageID)
}

// CreatePage 创建页面（canEdit）
func (s *Service) CreatePage(ctx context.Context, callerID, projectID string, in models.PageInput) (*models.Page, error) {
	if _, err := s.requireRole(ctx, "create_page", callerID, projectID, models.RoleCanEdit); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalidInput("title is required")
	}

	now := s.timestamp()
	page := &models.Page{
		ID:        s.newID(),
		ProjectID: projectID,
		Title:     title,
		Content:   in.Content,
		CreatedBy: callerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.CreatePage(ctx, page); err != nil {
		return nil, storeError("create page", err)
	}
	return page, nil
}

// UpdatePage 更新页面（canEdit）
func (s *Service) UpdatePage(ctx context.Context, callerID, projectID, pageID string, in models.PageInput) (*models.Page, error) {
	if _, err := s.requireRole(ctx, "update_page", callerID, projectID, models.RoleCanEdit); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalidInput("title is required")
	}

	page, err := s.pageOf(ctx, projectID, pageID)
	if err != nil {
		return nil, err
	}
	page.Title = title
	page.Content = in.Content
	page.UpdatedAt = s.timestamp()

	if err := s.db.UpdatePage(ctx, page); err != nil {
		return nil, storeError("update page", err)
	}
	return page, nil
}

// DeletePage 删除页面（canEdit）
func (s *Service) DeletePage(ctx context.Context, callerID, projectID, pageID string) error {
	if _, err := s.requireRole(ctx, "delete_page", callerID, projectID, models.RoleCanEdit); err != nil {
		return err
	}
	if _, err := s.pageOf(ctx, projectID, pageID); err != nil {
		return err
	}
	return storeError("delete page", s.db.DeletePage(ctx, pageID))
}

// ==== tasks ====

// ListTasks 列出项目任务（canView）
func (s *Service) ListTasks(ctx context.Context, callerID, projectID string) ([]models.Task, error) {
	if _, err := s.requireRole(ctx, "list_tasks", callerID, projectID, models.RoleCanView); err != nil {
		return nil, err
	}
	tasks, err := s.db.ListTasks(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func parseTaskStatus(s string) (models.TaskStatus, error) {
	switch status := models.TaskStatus(s); status {
	case models.TaskTodo, models.TaskInProgress, models.TaskDone:
		return status, nil
	}
	return "", invalidInput("status must be todo, in_progress or done")
}

// checkAssignee requires a non-empty assignee to be a project member.
func (s *Service) checkAssignee(ctx context.Context, projectID, assigneeID string) error {
	if assigneeID == "" {
		return nil
	}
	ok, err := s.CheckIfUserHasAccess(ctx, assigneeID, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return invalidInput("assignee must be a project member")
	}
	return nil
}

// CreateTask 创建任务（canEdit）
func (s *Service) CreateTask(ctx context.Context, callerID, projectID string, in models.TaskInput) (*models.Task, error) {
	if _, err := s.requireRole(ctx, "create_task", callerID, projectID, models.RoleCanEdit); err != nil {
		return nil, err
	}

	now := s.timestamp()
	task := &models.Task{
		ID:        s.newID(),
		ProjectID: projectID,
		Status:    models.TaskTodo,
		CreatedBy: callerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return nil, invalidInput("title is required")
	}
	if err := s.applyTaskInput(ctx, task, in); err != nil {
		return nil, err
	}

	if err := s.db.CreateTask(ctx, task); err != nil {
		return nil, storeError("create task", err)
	}
	return task, nil
}

// UpdateTask 部分更新任务（canEdit）
func (s *Service) UpdateTask(ctx context.Context, callerID, projectID, taskID string, in models.TaskInput) (*models.Task, error) {
	if _, err := s.requireRole(ctx, "update_task", callerID, projectID, models.RoleCanEdit); err != nil {
		return nil, err
	}

	task, err := s.db.GetTask(ctx, taskID)
	if err != nil {
		return nil, storeError("get task", err)
	}
	if task.ProjectID != projectID {
		return nil, ErrNotFound
	}
	if err := s.applyTaskInput(ctx, task, in); err != nil {
		return nil, err
	}
	task.UpdatedAt = s.timestamp()

	if err := s.db.UpdateTask(ctx, task); err != nil {
		return nil, storeError("update task", err)
	}
	return task, nil
}

func (s *Service) applyTaskInput(ctx context.Context, task *models.Task, in models.TaskInput) error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return invalidInput("title cannot be empty")
		}
		task.Title = title
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Status != nil {
		status, err := parseTaskStatus(*in.Status)
		if err != nil {
			return err
		}
		task.Status = status
	}
	if in.AssigneeID != nil {
		assignee := strings.TrimSpace(*in.AssigneeID)
		if err := s.checkAssignee(ctx, task.ProjectID, assignee); err != nil {
			return err
		}
		task.AssigneeID = assignee
	}
	if in.DueDate != nil {
		due := in.DueDate.UTC()
		task.DueDate = &due
	}
	return nil
}

// DeleteTask 删除任务（canEdit）
func (s *Service) DeleteTask(ctx context.Context, callerID, projectID, taskID string) error {
	if _, err := s.requireRole(ctx, "delete_task", callerID, projectID, models.RoleCanEdit); err != nil {
		return err
	}
	task, err := s.db.GetTask(ctx, taskID)
	if err != nil {
		return storeError("get task", err)
	}
	if task.ProjectID != projectID {
		return ErrNotFound
	}
	return storeError("delete task", s.db.DeleteTask(ctx, taskID))
}
