package handlers

import (
	"errors"
	"net/http"
	"strings"

	"project-collab-backend/pkg/config"
	"project-collab-backend/pkg/database"
	"project-collab-backend/pkg/logger"
	"project-collab-backend/pkg/models"
	"project-collab-backend/pkg/utils"
)

// UsersHandler 身份记录处理器
type UsersHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewUsersHandler(cfg *config.Config, db database.DatabaseInterface) *UsersHandler {
	return &UsersHandler{config: cfg, db: db}
}

// POST /api/users/sync
// 用令牌中的身份信息更新本地用户记录，供成员列表展示
func (h *UsersHandler) SyncUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req models.UserSyncRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}

	user := &models.User{
		ID:     claims.ID,
		Email:  claims.Email,
		Name:   strings.TrimSpace(req.Name),
		Avatar: strings.TrimSpace(req.Avatar),
	}
	if user.Name == "" {
		user.Name = claims.Name
	}

	if err := h.db.UpsertUser(r.Context(), user); err != nil {
		logger.FromContext(r.Context()).WithError(err).WithField("user_id", user.ID).Error("failed to sync user")
		utils.WriteInternalServerErrorResponse(w, "Failed to sync user")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"user": user})
}

// GET /api/users/me
func (h *UsersHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.db.GetUserByID(r.Context(), claims.ID)
	if errors.Is(err, database.ErrNotFound) {
		// 尚未同步，直接返回令牌中的身份
		utils.WriteSuccessResponse(w, map[string]interface{}{"user": claims, "synced": false})
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).WithField("user_id", claims.ID).Error("failed to load user")
		utils.WriteInternalServerErrorResponse(w, "Failed to load user")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"user": user, "synced": true})
}
