package services

import (
	"context"
	"fmt"

	"project-collab-backend/pkg/models"
)

// NavLink is one sidebar entry.
type NavLink struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SidebarProject is the project summary shown on top of the sidebar.
type SidebarProject struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Sidebar is the permission-gated navigation model for a project.
type Sidebar struct {
	Project      SidebarProject `json:"project"`
	Role         models.Role    `json:"role"`
	Settings     []NavLink      `json:"settings"`
	Tasks        NavLink        `json:"tasks"`
	Pages        []NavLink      `json:"pages"`
	CanEditPages bool           `json:"can_edit_pages"`
}

func projectURL(projectID, section string) string {
	return fmt.Sprintf("/project/%s/%s", projectID, section)
}

// BuildSidebar 构建项目侧边栏导航
//
// Details needs canEdit; Collaborators and Danger Zone need owner.
func (s *Service) BuildSidebar(ctx context.Context, projectID, callerID string) (*Sidebar, error) {
	m, err := s.requireRole(ctx, "view_sidebar", callerID, projectID, models.RoleCanView)
	if err != nil {
		return nil, err
	}

	project, err := s.db.GetProject(ctx, projectID)
	if err != nil {
		return nil, storeError("get project", err)
	}
	pages, err := s.db.ListPages(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	sb := &Sidebar{
		Project: SidebarProject{
			ID:          project.ID,
			Name:        project.Name,
			Description: project.Description,
		},
		Role:         m.Role,
		Settings:     []NavLink{},
		Tasks:        NavLink{Title: "Tasks", URL: projectURL(projectID, "tasks")},
		Pages:        make([]NavLink, 0, len(pages)),
		CanEditPages: m.Role.Includes(models.RoleCanEdit),
	}

	if m.Role.Includes(models.RoleCanEdit) {
		sb.Settings = append(sb.Settings, NavLink{Title: "Project Details", URL: projectURL(projectID, "details")})
	}
	if m.Role.Includes(models.RoleOwner) {
		sb.Settings = append(sb.Settings,
			NavLink{Title: "Collaborators", URL: projectURL(projectID, "collaborators")},
			NavLink{Title: "Danger Zone", URL: projectURL(projectID, "danger-zone")},
		)
	}

	for _, p := range pages {
		sb.Pages = append(sb.Pages, NavLink{
			ID:    p.ID,
			Title: p.Title,
			URL:   projectURL(projectID, "page/"+p.ID),
		})
	}
	return sb, nil
}
