// Package router 组装中间件与全部API路由，供 Vercel 函数与独立服务共用
package router

import (
	"fmt"
	"net/http"
	"time"

	"project-collab-backend/pkg/config"
	"project-collab-backend/pkg/database"
	"project-collab-backend/pkg/handlers"
	"project-collab-backend/pkg/metrics"
	customMiddleware "project-collab-backend/pkg/middleware"
	"project-collab-backend/pkg/services"
	"project-collab-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// New 创建Chi路由器
func New(cfg *config.Config, db database.DatabaseInterface) (http.Handler, error) {
	router := chi.NewRouter()

	if err := setupMiddleware(router, cfg); err != nil {
		return nil, err
	}
	setupRoutes(router, cfg, db)

	return router, nil
}

// setupMiddleware 设置全局中间件
func setupMiddleware(router *chi.Mux, cfg *config.Config) error {
	rateLimit, err := customMiddleware.RateLimitByIP(cfg.RateLimit, cfg.RedisURL, cfg.TrustProxy)
	if err != nil {
		return err
	}

	// 基础中间件
	router.Use(middleware.RequestID)
	// RealIP 会用转发头覆盖 RemoteAddr，只在受信任代理之后启用
	if cfg.TrustProxy {
		router.Use(middleware.RealIP)
	}
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.RequestLogger())
	router.Use(customMiddleware.Recovery(cfg))

	router.Use(customMiddleware.Secure(cfg))
	router.Use(customMiddleware.CORS(cfg))
	router.Use(rateLimit)

	// 超时中间件（Vercel函数有时间限制）
	router.Use(middleware.Timeout(25 * time.Second))

	router.Use(customMiddleware.MaxBodySize(cfg.MaxBodyBytes))
	router.Use(customMiddleware.ContentTypeJSON)

	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
	return nil
}

// setupRoutes 设置所有API路由
func setupRoutes(router *chi.Mux, cfg *config.Config, db database.DatabaseInterface) {
	svc := services.New(db)

	healthHandler := handlers.NewHealthHandler(cfg, db)
	usersHandler := handlers.NewUsersHandler(cfg, db)
	projectsHandler := handlers.NewProjectsHandler(cfg, svc)
	accessHandler := handlers.NewAccessHandler(cfg, svc)
	contentHandler := handlers.NewContentHandler(cfg, svc)

	// 健康检查端点
	router.Get("/", healthHandler.HealthCheck)
	router.Get("/health", healthHandler.HealthCheck)

	router.With(customMiddleware.ValidateAPIKey(cfg.MetricsAPIKey)).Handle("/metrics", metrics.Handler())

	// 数据库连接池状态端点（调试用）
	if cfg.IsDevelopment() {
		router.Get("/debug/db-pool", func(w http.ResponseWriter, r *http.Request) {
			utils.WriteSuccessResponse(w, database.GetConnectionStats())
		})
	}

	// API路由组（全部需要认证）
	router.Route("/api", func(r chi.Router) {
		r.Use(customMiddleware.AuthMiddleware(cfg))

		r.Route("/users", func(r chi.Router) {
			r.Post("/sync", usersHandler.SyncUser)
			r.Get("/me", usersHandler.GetMe)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", projectsHandler.ListProjects)
			r.Post("/", projectsHandler.CreateProject)

			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", projectsHandler.GetProject)
				r.Patch("/", projectsHandler.UpdateProject)
				r.Delete("/", projectsHandler.DeleteProject)

				r.Get("/access", accessHandler.GetAccess)
				r.Get("/membership", accessHandler.GetMembership)
				r.Get("/sidebar", contentHandler.GetSidebar)

				r.Route("/members", func(r chi.Router) {
					r.Get("/", projectsHandler.ListMembers)
					r.Put("/{accessID}/role", accessHandler.UpdateMemberRole)
					r.Delete("/{accessID}", accessHandler.RemoveMember)
				})

				r.Route("/requests", func(r chi.Router) {
					r.Get("/", accessHandler.ListRequests)
					r.Post("/", accessHandler.RequestAccess)
					r.Post("/{requestID}/response", accessHandler.RespondToRequest)
				})

				r.Route("/pages", func(r chi.Router) {
					r.Get("/", contentHandler.ListPages)
					r.Post("/", contentHandler.CreatePage)
					r.Get("/{pageID}", contentHandler.GetPage)
					r.Put("/{pageID}", contentHandler.UpdatePage)
					r.Delete("/{pageID}", contentHandler.DeletePage)
				})

				r.Route("/tasks", func(r chi.Router) {
					r.Get("/", contentHandler.ListTasks)
					r.Post("/", contentHandler.CreateTask)
					r.Patch("/{taskID}", contentHandler.UpdateTask)
					r.Delete("/{taskID}", contentHandler.DeleteTask)
				})
			})
		})
	})

	// 404处理
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	// 405处理
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}
