package middleware

import (
	"net/http"

	"project-collab-backend/pkg/config"

	"github.com/unrolled/secure"
)

// Secure 添加安全响应头
func Secure(cfg *config.Config) func(http.Handler) http.Handler {
	s := secure.New(secure.Options{
		IsDevelopment:         !cfg.IsProduction(),
		ContentTypeNosniff:    true,
		FrameDeny:             true,
		BrowserXssFilter:      true,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		STSSeconds:            31536000,
		STSIncludeSubdomains:  true,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})
	return s.Handler
}
