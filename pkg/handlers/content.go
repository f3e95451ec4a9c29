package handlers

import (
	"net/http"

	"project-collab-backend/pkg/config"
	"project-collab-backend/pkg/models"
	"project-collab-backend/pkg/services"
	"project-collab-backend/pkg/utils"
)

// ContentHandler 页面、任务与侧边栏处理器
type ContentHandler struct {
	config *config.Config
	svc    *services.Service
}

func NewContentHandler(cfg *config.Config, svc *services.Service) *ContentHandler {
	return &ContentHandler{config: cfg, svc: svc}
}

// GET /api/projects/{projectID}/sidebar
func (h *ContentHandler) GetSidebar(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	sidebar, err := h.svc.BuildSidebar(r.Context(), projectID, user.ID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"sidebar": sidebar})
}

// GET /api/projects/{projectID}/pages
func (h *ContentHandler) ListPages(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	pages, err := h.svc.ListPages(r.Context(), user.ID, projectID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"pages": pages,
		"count": len(pages),
	})
}

// POST /api/projects/{projectID}/pages
func (h *ContentHandler) CreatePage(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	var in models.PageInput
	if !decodeBody(w, r, &in) {
		return
	}
	page, err := h.svc.CreatePage(r.Context(), user.ID, projectID, in)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"page": page})
}

// GET /api/projects/{projectID}/pages/{pageID}
func (h *ContentHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	pageID, ok := urlParam(w, r, "pageID")
	if !ok {
		return
	}
	page, err := h.svc.GetPage(r.Context(), user.ID, projectID, pageID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"page": page})
}

// PUT /api/projects/{projectID}/pages/{pageID}
func (h *ContentHandler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	pageID, ok := urlParam(w, r, "pageID")
	if !ok {
		return
	}
	var in models.PageInput
	if !decodeBody(w, r, &in) {
		return
	}
	page, err := h.svc.UpdatePage(r.Context(), user.ID, projectID, pageID, in)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"page": page})
}

// DELETE /api/projects/{projectID}/pages/{pageID}
func (h *ContentHandler) DeletePage(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	pageID, ok := urlParam(w, r, "pageID")
	if !ok {
		return
	}
	if err := h.svc.DeletePage(r.Context(), user.ID, projectID, pageID); err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"message": "Page deleted successfully",
		"id":      pageID,
	})
}

// GET /api/projects/{projectID}/tasks
func (h *ContentHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	tasks, err := h.svc.ListTasks(r.Context(), user.ID, projectID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// POST /api/projects/{projectID}/tasks
func (h *ContentHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	var in models.TaskInput
	if !decodeBody(w, r, &in) {
		return
	}
	task, err := h.svc.CreateTask(r.Context(), user.ID, projectID, in)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"task": task})
}

// PATCH /api/projects/{projectID}/tasks/{taskID}
func (h *ContentHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	taskID, ok := urlParam(w, r, "taskID")
	if !ok {
		return
	}
	var in models.TaskInput
	if !decodeBody(w, r, &in) {
		return
	}
	task, err := h.svc.UpdateTask(r.Context(), user.ID, projectID, taskID, in)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"task": task})
}

// DELETE /api/projects/{projectID}/tasks/{taskID}
func (h *ContentHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	taskID, ok := urlParam(w, r, "taskID")
	if !ok {
		return
	}
	if err := h.svc.DeleteTask(r.Context(), user.ID, projectID, taskID); err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"message": "Task deleted successfully",
		"id":      taskID,
	})
}
