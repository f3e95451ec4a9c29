package router

import (
	"net/http"
	"sync"

	"project-collab-backend/pkg/config"
	"project-collab-backend/pkg/database"
	"project-collab-backend/pkg/logger"
	"project-collab-backend/pkg/utils"
)

// Pooled 每个请求从连接池取数据库实例；实例被回收重建时同步重建路由器
type Pooled struct {
	cfg *config.Config

	mu      sync.Mutex
	db      database.DatabaseInterface
	handler http.Handler
}

func NewPooled(cfg *config.Config) *Pooled {
	return &Pooled{cfg: cfg}
}

func (p *Pooled) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h, err := p.current()
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Error("database unavailable")
		utils.WriteErrorResponseWithCode(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Database unavailable", "")
		return
	}
	h.ServeHTTP(w, r)
}

func (p *Pooled) current() (http.Handler, error) {
	db, err := database.GetDatabase(p.cfg.Database())
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handler != nil && p.db == db {
		return p.handler, nil
	}
	h, err := New(p.cfg, db)
	if err != nil {
		return nil, err
	}
	p.db, p.handler = db, h
	return h, nil
}
