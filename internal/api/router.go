// Package api serves the citation rewriter over HTTP.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/dbh/mdcite/internal/config"
	"github.com/dbh/mdcite/internal/logger"
	"github.com/dbh/mdcite/internal/metrics"
)

// uploadBodyFactor scales max_document_bytes for multipart uploads, which
// carry several documents per request.
const uploadBodyFactor = 4

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:     RequestID → Recovery → Logging
//	Transform:  RateLimit → BodyLimit
//
// Health and metrics sit outside the rate limit so health checks always work.
func NewRouter(cfg *config.Config, log logger.Logger, m *metrics.Metrics, h *Handler) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(RequestID())
	r.Use(Recovery(log))
	r.Use(Logging(log))

	r.GET("/metrics", gin.WrapH(m.Handler()))

	v1 := r.Group("/api/v1")
	v1.GET("/health", h.Health)

	limited := v1.Group("")
	limited.Use(RateLimit(cfg.RateLimit))

	limited.POST("/transform", BodyLimit(cfg.Server.MaxDocumentBytes), h.Transform)
	limited.POST("/transform/upload", BodyLimit(cfg.Server.MaxDocumentBytes*uploadBodyFactor), h.Upload)

	return r
}
