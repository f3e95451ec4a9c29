package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"project-collab-backend/pkg/database"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config 应用配置结构
type Config struct {
	// 环境配置
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"3000"`

	// 数据库配置
	UseLocalDB  bool   `env:"USE_LOCAL_DB" envDefault:"true"`
	LocalDBPath string `env:"LOCAL_DB_PATH" envDefault:"data/local_db.json"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	SupabaseURL string `env:"SUPABASE_URL"`
	SupabaseKey string `env:"SUPABASE_SERVICE_KEY"`

	// JWT配置（由身份服务签发）
	JWTSecret string `env:"JWT_SECRET" envDefault:"your-secret-key-change-in-production"`
	JWTIssuer string `env:"JWT_ISSUER"`

	// CORS配置
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// 日志与调试
	Debug    bool   `env:"DEBUG" envDefault:"false"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// 限流，格式见 ulule/limiter（如 100-M）
	RateLimit string `env:"RATE_LIMIT" envDefault:"300-M"`
	RedisURL  string `env:"REDIS_URL"`
	// 仅在受信任的反向代理（如 Vercel）之后开启，否则客户端可伪造转发头
	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`

	// 可观测性
	SentryDSN     string `env:"SENTRY_DSN"`
	MetricsAPIKey string `env:"METRICS_API_KEY"`

	// 请求体大小上限
	MaxBodyBytes int64 `env:"MAX_BODY_BYTES" envDefault:"1048576"`
}

// LoadConfig 加载配置（支持本地和Vercel环境）
func LoadConfig() (*Config, error) {
	// 根据环境加载对应的 .env 文件，已存在的环境变量不会被覆盖
	switch os.Getenv("ENVIRONMENT") {
	case "production":
		loadEnvFile(".env.production")
	default:
		loadEnvFile(".env.local")
	}

	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// Trim whitespace to avoid trailing spaces/newlines from env sources
	config.PostgresDSN = strings.TrimSpace(config.PostgresDSN)
	config.SupabaseURL = strings.TrimSpace(config.SupabaseURL)
	config.SupabaseKey = strings.TrimSpace(config.SupabaseKey)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	// 环境特定配置
	if config.IsProduction() {
		// 生产环境强制使用外部数据库（PostgreSQL或Supabase）
		if config.PostgresDSN != "" || (config.SupabaseURL != "" && config.SupabaseKey != "") {
			config.UseLocalDB = false
		} else {
			logrus.Warn("production environment using local file database; configure POSTGRES_DSN or SUPABASE_URL+SUPABASE_SERVICE_KEY")
		}
		// 生产环境关闭调试
		config.Debug = false
	}

	return config, nil
}

// Cached config (initialized once per cold start)
var (
	cachedConfig *Config
	cachedErr    error
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config.
// On serverless (Vercel), it initializes once per cold start and
// reuses it across warm invocations, avoiding per-request parsing.
func GetCached() (*Config, error) {
	configOnce.Do(func() {
		cachedConfig, cachedErr = LoadConfig()
	})
	return cachedConfig, cachedErr
}

// Validate 验证配置
func (c *Config) Validate() error {
	// 验证端口
	if c.Port == "" {
		return errors.New("PORT is required")
	}

	// 验证JWT密钥
	if c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret {
		if c.IsProduction() {
			return errors.New("JWT_SECRET must be set in production")
		}
		logrus.Warn("using default JWT secret (not recommended for production)")
	}

	if c.MaxBodyBytes <= 0 {
		return errors.New("MAX_BODY_BYTES must be positive")
	}

	// 验证数据库配置
	if c.Database().Kind() == "unknown" {
		return errors.New("数据库配置不完整：请配置 POSTGRES_DSN、SUPABASE_URL+SUPABASE_SERVICE_KEY 或 USE_LOCAL_DB")
	}

	return nil
}

// Database 返回数据库层配置
func (c *Config) Database() database.DatabaseConfig {
	return database.DatabaseConfig{
		UseLocalDB:    c.UseLocalDB,
		LocalDBPath:   c.LocalDBPath,
		PostgresDSN:   c.PostgresDSN,
		SupabaseURL:   c.SupabaseURL,
		SupabaseKey:   c.SupabaseKey,
		Debug:         c.Debug,
		IsDevelopment: c.IsDevelopment(),
	}
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// loadEnvFile 加载 .env 文件到环境变量（文件不存在时静默返回）
func loadEnvFile(filename string) {
	if _, err := os.Stat(filename); err != nil {
		return
	}
	if err := godotenv.Load(filename); err != nil {
		logrus.WithError(err).WithField("file", filename).Warn("failed to load env file")
	}
}
