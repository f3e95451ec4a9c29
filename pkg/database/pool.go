package database

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	poolMaxAge        = 30 * time.Minute
	poolIdleTimeout   = 10 * time.Minute
	poolHealthTimeout = 5 * time.Second
)

// DatabasePool 数据库连接池（进程内单例，适配无服务器冷/热启动）
type DatabasePool struct {
	instance DatabaseInterface
	config   DatabaseConfig
	mu       sync.RWMutex
	lastUsed time.Time
}

var (
	globalPool *DatabasePool
	poolMutex  sync.Mutex

	// 可在测试中替换
	openDatabase = NewDatabase
)

// GetDatabase 获取数据库连接（单例模式 + 连接池）
func GetDatabase(config DatabaseConfig) (DatabaseInterface, error) {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	log := logrus.WithField("component", "db_pool")

	// 检查是否需要创建新的连接池
	if globalPool == nil || shouldRecreateConnection(globalPool, config) {
		log.Debug("creating new database connection")

		// 关闭旧连接（如果存在）
		if globalPool != nil && globalPool.instance != nil {
			globalPool.instance.Close()
		}
		globalPool = nil

		instance, err := openDatabase(config)
		if err != nil {
			return nil, err
		}
		globalPool = &DatabasePool{
			instance: instance,
			config:   config,
			lastUsed: time.Now(),
		}
		return globalPool.instance, nil
	}

	// 更新最后使用时间
	globalPool.mu.Lock()
	globalPool.lastUsed = time.Now()
	globalPool.mu.Unlock()

	log.Debug("reusing existing database connection")
	return globalPool.instance, nil
}

// shouldRecreateConnection 判断是否需要重新创建连接
func shouldRecreateConnection(pool *DatabasePool, newConfig DatabaseConfig) bool {
	if pool == nil || pool.instance == nil {
		return true
	}
	log := logrus.WithField("component", "db_pool")

	// 检查配置是否发生变化
	if !configEquals(pool.config, newConfig) {
		log.Info("database configuration changed, recreating connection")
		return true
	}

	// 检查连接是否过期
	pool.mu.RLock()
	expired := time.Since(pool.lastUsed) > poolMaxAge
	pool.mu.RUnlock()

	if expired {
		log.Info("database connection expired, recreating")
		return true
	}

	// 检查连接健康状态
	ctx, cancel := context.WithTimeout(context.Background(), poolHealthTimeout)
	defer cancel()
	if err := pool.instance.HealthCheck(ctx); err != nil {
		log.WithError(err).Warn("database health check failed, recreating")
		return true
	}

	return false
}

// configEquals 比较两个数据库配置是否相等
func configEquals(a, b DatabaseConfig) bool {
	return a.UseLocalDB == b.UseLocalDB &&
		a.LocalDBPath == b.LocalDBPath &&
		a.PostgresDSN == b.PostgresDSN &&
		a.SupabaseURL == b.SupabaseURL &&
		a.SupabaseKey == b.SupabaseKey
}

// CleanupIdleConnections 清理空闲连接（cmd/server 中定期调用）
func CleanupIdleConnections() {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return
	}

	globalPool.mu.RLock()
	idle := time.Since(globalPool.lastUsed) > poolIdleTimeout
	globalPool.mu.RUnlock()

	if idle {
		logrus.WithField("component", "db_pool").Info("closing idle database connection")
		if globalPool.instance != nil {
			globalPool.instance.Close()
		}
		globalPool = nil
	}
}

// ClosePool 关闭并清空连接池
func ClosePool() error {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil || globalPool.instance == nil {
		globalPool = nil
		return nil
	}
	err := globalPool.instance.Close()
	globalPool = nil
	return err
}

// GetConnectionStats 获取连接池统计信息
func GetConnectionStats() map[string]interface{} {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return map[string]interface{}{
			"status":    "no_connection",
			"last_used": nil,
		}
	}

	globalPool.mu.RLock()
	lastUsed := globalPool.lastUsed
	globalPool.mu.RUnlock()

	return map[string]interface{}{
		"status":    "connected",
		"type":      globalPool.config.Kind(),
		"last_used": lastUsed.Format(time.RFC3339),
		"age":       time.Since(lastUsed).String(),
	}
}
