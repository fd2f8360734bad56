package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/revimg/api/handler"
	"github.com/use-agent/revimg/api/middleware"
	"github.com/use-agent/revimg/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → RequestID → Logger
//	Search:  Auth (if enabled)
//
// Health stays outside auth so health checks always work.
func NewRouter(svc handler.SearchService, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(svc, startTime))

	protected := v1.Group("/search")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}

	protected.POST("/url", handler.SearchByURL(svc))
	protected.POST("/file", handler.SearchByFile(svc, cfg.Search.MaxUploadBytes))

	return r
}
