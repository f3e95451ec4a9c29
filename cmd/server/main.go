// Command server 以常驻进程方式运行API（本地开发或容器部署）
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"project-collab-backend/pkg/config"
	"project-collab-backend/pkg/database"
	"project-collab-backend/pkg/logger"
	"project-collab-backend/pkg/router"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid config")
	}
	logger.Setup(cfg.LogLevel, cfg.IsProduction())
	log := logrus.WithField("component", "server")

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			AttachStacktrace: true,
		}); err != nil {
			log.WithError(err).Warn("sentry init failed; continuing without error reporting")
		}
		defer sentry.Flush(2 * time.Second)
	}

	// 启动时先建立一次连接，配置错误尽早失败
	if _, err := database.GetDatabase(cfg.Database()); err != nil {
		log.WithError(err).Fatal("connect to database")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.NewPooled(cfg),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go cleanupLoop(ctx)

	go func() {
		log.WithFields(logrus.Fields{
			"port":     cfg.Port,
			"env":      cfg.Environment,
			"database": cfg.Database().Kind(),
		}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	if err := database.ClosePool(); err != nil {
		log.WithError(err).Error("close database")
	}
}

// cleanupLoop 定期释放空闲的数据库连接
func cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			database.CleanupIdleConnections()
		}
	}
}
