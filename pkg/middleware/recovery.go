package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"project-collab-backend/pkg/config"
	"project-collab-backend/pkg/logger"
	"project-collab-backend/pkg/utils"

	"github.com/getsentry/sentry-go"
)

// Recovery 恢复中间件，处理panic并返回友好的错误信息
//
// Panics are reported to Sentry when a client has been initialised.
func Recovery(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				stack := debug.Stack()
				logger.FromContext(r.Context()).
					WithField("panic", fmt.Sprint(rec)).
					WithField("path", r.URL.Path).
					Error("panic recovered")

				sentry.WithScope(func(scope *sentry.Scope) {
					scope.SetRequest(r)
					scope.SetTag("path", r.URL.Path)
					sentry.CurrentHub().Recover(rec)
				})

				if cfg.IsDevelopment() {
					// 开发环境：显示详细错误信息
					utils.WriteErrorResponseWithCode(w, http.StatusInternalServerError,
						"INTERNAL_SERVER_ERROR",
						fmt.Sprintf("Internal server error: %v", rec),
						string(stack))
					return
				}
				utils.WriteInternalServerErrorResponse(w, "Internal server error occurred")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
