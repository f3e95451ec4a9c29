package handlers

import (
	"context"
	"net/http"
	"time"

	"project-collab-backend/pkg/config"
	"project-collab-backend/pkg/database"
	"project-collab-backend/pkg/logger"
	"project-collab-backend/pkg/utils"
)

const serviceName = "project-collab-backend"

// HealthHandler 健康检查处理器
type HealthHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewHealthHandler(cfg *config.Config, db database.DatabaseInterface) *HealthHandler {
	return &HealthHandler{config: cfg, db: db}
}

// GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	status := "healthy"
	if err := h.db.HealthCheck(ctx); err != nil {
		logger.FromContext(r.Context()).WithError(err).Warn("database health check failed")
		dbStatus = "unhealthy"
		status = "degraded"
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"service":     serviceName,
		"version":     "1.0.0",
		"environment": h.config.Environment,
		"database":    h.config.Database().Kind(),
		"db_status":   dbStatus,
		"pool":        database.GetConnectionStats(),
		"timestamp":   time.Now().Unix(),
		"status":      status,
	})
}
