package handlers

import (
	"net/http"

	"project-collab-backend/pkg/config"
	"project-collab-backend/pkg/models"
	"project-collab-backend/pkg/services"
	"project-collab-backend/pkg/utils"
)

// ProjectsHandler 项目处理器
type ProjectsHandler struct {
	config *config.Config
	svc    *services.Service
}

func NewProjectsHandler(cfg *config.Config, svc *services.Service) *ProjectsHandler {
	return &ProjectsHandler{config: cfg, svc: svc}
}

// GET /api/projects
func (h *ProjectsHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projects, err := h.svc.GetAll(r.Context(), user.ID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"projects": projects,
		"count":    len(projects),
	})
}

// POST /api/projects
func (h *ProjectsHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var in models.ProjectInput
	if !decodeBody(w, r, &in) {
		return
	}
	project, err := h.svc.Create(r.Context(), in, user.ID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"project": project})
}

// GET /api/projects/{projectID}
func (h *ProjectsHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	project, err := h.svc.GetByID(r.Context(), projectID, user.ID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"project": project})
}

// PATCH /api/projects/{projectID}
// Fields missing from the body keep their current values.
func (h *ProjectsHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}

	current, err := h.svc.GetByID(r.Context(), projectID, user.ID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	in := models.ProjectInput{
		Name:                   current.Name,
		Description:            current.Description,
		Badge:                  current.Badge,
		ExpectedCompletionDate: current.ExpectedCompletionDate,
		Priority:               current.Priority,
		Status:                 current.Status,
	}
	if !decodeBody(w, r, &in) {
		return
	}

	project, err := h.svc.Update(r.Context(), in, projectID, user.ID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"project": project})
}

// DELETE /api/projects/{projectID}
func (h *ProjectsHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	if err := h.svc.DeleteByID(r.Context(), projectID, user.ID); err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"message": "Project deleted successfully",
		"id":      projectID,
	})
}

// GET /api/projects/{projectID}/members
func (h *ProjectsHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	members, err := h.svc.GetProjectUsersAndOwners(r.Context(), projectID, user.ID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, members)
}
