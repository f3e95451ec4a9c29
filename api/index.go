package handler

import (
	"net/http"
	"sync"

	"project-collab-backend/pkg/config"
	"project-collab-backend/pkg/logger"
	"project-collab-backend/pkg/router"
	"project-collab-backend/pkg/utils"
)

var (
	initOnce sync.Once
	pooled   *router.Pooled
	initErr  error
)

// Handler 是Vercel函数的入口点
// 这个函数实现了"单体路由模式"，将所有API端点集中在一个Chi路由器中管理
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		cfg, err := config.GetCached()
		if err != nil {
			initErr = err
			return
		}
		if err := cfg.Validate(); err != nil {
			initErr = err
			return
		}
		logger.Setup(cfg.LogLevel, cfg.IsProduction())

		// 连接由连接池管理，无需手动关闭
		pooled = router.NewPooled(cfg)
	})

	if initErr != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+initErr.Error())
		return
	}
	pooled.ServeHTTP(w, r)
}
