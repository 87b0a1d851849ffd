package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ops-tracker/internal/common/logger"
)

func Router(h *Handler, lg *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLog(lg))

	v1 := r.Group("/api/v1")
	v1.POST("/entities", h.Create)
	v1.GET("/entities/:id", h.Get)
	v1.POST("/entities/:id/actions", h.Act)
	v1.GET("/queue", h.Queue)
	v1.GET("/changes", h.Changes)
	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("request_id", rid)
		c.Header("X-Request-ID", rid)
		c.Next()
	}
}

func requestLog(lg *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		lg.Debug("http_request", map[string]any{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"elapsed_ms": time.Since(start).Milliseconds(),
			"request_id": c.GetString("request_id"),
		})
	}
}
