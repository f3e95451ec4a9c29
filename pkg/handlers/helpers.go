package handlers

import (
	"errors"
	"net/http"
	"strings"

	"project-collab-backend/pkg/middleware"
	"project-collab-backend/pkg/models"
	"project-collab-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// requireUser 获取已认证用户，失败时写入401
func requireUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return nil, false
	}
	return user, true
}

// urlParam 读取路径参数，为空时写入400
func urlParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(chi.URLParam(r, name))
	if v == "" {
		utils.WriteBadRequestResponse(w, name+" is required")
		return "", false
	}
	return v, true
}

// decodeBody 解析并校验JSON请求体
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := utils.ParseJSONBody(r, v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			utils.WriteErrorResponseWithCode(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large", "")
			return false
		}
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return false
	}
	if err := utils.ValidateStruct(v); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid input", err.Error())
		return false
	}
	return true
}
