package handlers

import (
	"net/http"
	"strings"

	"project-collab-backend/pkg/config"
	"project-collab-backend/pkg/models"
	"project-collab-backend/pkg/services"
	"project-collab-backend/pkg/utils"
)

// AccessHandler 成员与访问请求处理器
type AccessHandler struct {
	config *config.Config
	svc    *services.Service
}

func NewAccessHandler(cfg *config.Config, svc *services.Service) *AccessHandler {
	return &AccessHandler{config: cfg, svc: svc}
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

type respondRequest struct {
	Response string `json:"response" validate:"required"`
}

// GET /api/projects/{projectID}/access
func (h *AccessHandler) GetAccess(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	summary, err := h.svc.GetAccess(r.Context(), user.ID, projectID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, summary)
}

// GET /api/projects/{projectID}/membership
func (h *AccessHandler) GetMembership(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	m, err := h.svc.GetUserMembership(r.Context(), user.ID, projectID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"membership": m})
}

// PUT /api/projects/{projectID}/members/{accessID}/role
func (h *AccessHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	accessID, ok := urlParam(w, r, "accessID")
	if !ok {
		return
	}
	var req updateRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		// 交给服务层统一返回 ErrInvalidRole（先做权限检查）
		role = models.Role(strings.TrimSpace(req.Role))
	}
	m, err := h.svc.UpdateRole(r.Context(), user.ID, accessID, role, projectID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"membership": m})
}

// DELETE /api/projects/{projectID}/members/{accessID}
func (h *AccessHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	accessID, ok := urlParam(w, r, "accessID")
	if !ok {
		return
	}
	if err := h.svc.RemoveUserFromProject(r.Context(), accessID, user.ID, projectID); err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"message": "Member removed",
		"id":      accessID,
	})
}

// GET /api/projects/{projectID}/requests
func (h *AccessHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	reqs, err := h.svc.ListAccessRequests(r.Context(), user.ID, projectID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"requests": reqs,
		"count":    len(reqs),
	})
}

// POST /api/projects/{projectID}/requests
func (h *AccessHandler) RequestAccess(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	req, err := h.svc.RequestProjectAccess(r.Context(), user.ID, projectID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"request": req})
}

// POST /api/projects/{projectID}/requests/{requestID}/response
func (h *AccessHandler) RespondToRequest(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	requestID, ok := urlParam(w, r, "requestID")
	if !ok {
		return
	}
	var body respondRequest
	if !decodeBody(w, r, &body) {
		return
	}

	response := models.RequestResponse(strings.ToLower(strings.TrimSpace(body.Response)))
	m, err := h.svc.RespondToRequest(r.Context(), user.ID, projectID, response, requestID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"response":   response,
		"membership": m,
	})
}
