package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"project-collab-backend/pkg/logger"
	"project-collab-backend/pkg/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// RequestLogger 记录每个请求的结构化日志，并上报请求耗时指标
func RequestLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// 认证中间件在内层运行，通过 caller 回填用户
			caller := &requestCaller{}
			r = r.WithContext(context.WithValue(r.Context(), callerContextKey, caller))

			// 创建响应写入器包装器来捕获状态码
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)

			userID := "anonymous"
			if caller.userID != "" {
				userID = caller.userID
			}

			metrics.ObserveRequest(r.Method, route, strconv.Itoa(status), duration.Seconds())

			entry := logger.FromContext(r.Context()).WithFields(logrus.Fields{
				"method":   r.Method,
				"route":    route,
				"path":     r.URL.Path,
				"status":   status,
				"duration": duration.String(),
				"user_id":  userID,
				"ip":       getClientIP(r),
			})
			switch {
			case status >= 500:
				entry.Error("request completed")
			case status >= 400:
				entry.Warn("request completed")
			default:
				entry.Info("request completed")
			}
		})
	}
}

type requestCaller struct {
	userID string
}

type callerKey struct{}

var callerContextKey = callerKey{}

// recordCaller 把已认证用户回填给外层的请求日志
func recordCaller(ctx context.Context, userID string) {
	if c, ok := ctx.Value(callerContextKey).(*requestCaller); ok {
		c.userID = userID
	}
}

// routePattern returns the matched chi pattern so metrics labels stay bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// getClientIP 获取客户端IP地址
func getClientIP(r *http.Request) string {
	// 检查X-Forwarded-For头（代理/负载均衡器）
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}

	// 检查X-Real-IP头
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// 使用RemoteAddr
	return r.RemoteAddr
}
