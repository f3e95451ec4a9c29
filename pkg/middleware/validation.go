package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"project-collab-backend/pkg/utils"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	stdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

// ContentTypeJSON 验证请求Content-Type为application/json
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 只对带请求体的POST、PUT、PATCH请求验证Content-Type
		if (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) && r.ContentLength != 0 {
			contentType := r.Header.Get("Content-Type")
			if contentType == "" {
				utils.WriteBadRequestResponse(w, "Content-Type header is required")
				return
			}

			// 检查是否为application/json（忽略charset等参数）
			if !strings.HasPrefix(strings.ToLower(contentType), "application/json") {
				utils.WriteBadRequestResponse(w, "Content-Type must be application/json")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// MaxBodySize 限制请求体大小
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// ValidateAPIKey 验证API密钥（未配置时跳过）
func ValidateAPIKey(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			// 从头部或查询参数获取API密钥
			providedKey := r.Header.Get("X-API-Key")
			if providedKey == "" {
				providedKey = r.URL.Query().Get("api_key")
			}

			if providedKey != apiKey {
				utils.WriteUnauthorizedResponse(w, "Invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP 按客户端IP限流；rate 形如 "100-M"，为空时不限流。
// redisURL 非空时使用 Redis 存储以便多实例共享计数。
// trustProxy 为 false 时只按连接地址计数，忽略 X-Forwarded-For。
func RateLimitByIP(rate, redisURL string, trustProxy bool) (func(http.Handler) http.Handler, error) {
	if rate == "" {
		return func(next http.Handler) http.Handler { return next }, nil
	}

	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", rate, err)
	}

	store, err := newLimiterStore(redisURL)
	if err != nil {
		return nil, err
	}

	instance := limiter.New(store, parsed, limiter.WithTrustForwardHeader(trustProxy))
	mw := stdlib.NewMiddleware(instance,
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			utils.WriteErrorResponseWithCode(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests", "")
		}),
	)
	return mw.Handler, nil
}

func newLimiterStore(redisURL string) (limiter.Store, error) {
	if redisURL == "" {
		return memory.NewStore(), nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	store, err := redisstore.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: "project_collab_limiter",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
	}
	logrus.WithField("component", "rate_limit").Info("using redis rate limit store")
	return store, nil
}
