package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"project-collab-backend/pkg/config"
	"project-collab-backend/pkg/logger"
	"project-collab-backend/pkg/models"
	"project-collab-backend/pkg/utils"
)

// ContextKey 用于在context中存储用户信息的键
type ContextKey string

const (
	UserContextKey ContextKey = "user"
)

// AuthMiddleware JWT认证中间件
//
// The verified token subject becomes the caller identity for every handler.
func AuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	jwtService := utils.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.FromContext(r.Context()).WithField("path", r.URL.Path)

			// 从Authorization头获取token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.WriteUnauthorizedResponse(w, "Missing authorization header")
				return
			}

			// 检查Bearer前缀
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader || tokenString == "" {
				utils.WriteUnauthorizedResponse(w, "Invalid authorization header format")
				return
			}

			claims, err := jwtService.ValidateToken(tokenString)
			if err != nil {
				log.WithError(err).Debug("token rejected")
				utils.WriteUnauthorizedResponse(w, "Invalid or expired token")
				return
			}

			user := &models.User{
				ID:    claims.Subject,
				Email: claims.Email,
				Name:  claims.Name,
			}

			recordCaller(r.Context(), user.ID)

			// 将用户信息添加到请求context中
			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserFromContext 从context中获取用户信息
func GetUserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok
}

// RequireUser 要求用户必须已认证的辅助函数
func RequireUser(ctx context.Context) (*models.User, error) {
	user, ok := GetUserFromContext(ctx)
	if !ok || user == nil || user.ID == "" {
		return nil, errors.New("user not authenticated")
	}
	return user, nil
}

// WithUser stores user in ctx the way AuthMiddleware does.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}
