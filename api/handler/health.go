package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pageclip/adapter"
	"github.com/use-agent/pageclip/models"
	"github.com/use-agent/pageclip/orchestrator"
	"github.com/use-agent/pageclip/snapshot"
)

// Health returns a handler for GET /api/v1/health.
func Health(sessions *orchestrator.Sessions, browserUp bool, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:   "healthy",
			Sessions: sessions.Len(),
			Browser:  browserUp,
			Uptime:   time.Since(startTime).Round(time.Second).String(),
		})
	}
}

// Adapters returns a handler for GET /api/v1/adapters.
func Adapters(reg *adapter.Registry, overrides []orchestrator.Override) gin.HandlerFunc {
	priority := make([]string, 0, len(overrides))
	for _, o := range overrides {
		priority = append(priority, o.Name)
	}
	resp := models.AdaptersResponse{
		Fallback: reg.Generic().Name(),
		Priority: priority,
		Adapters: reg.Entries(),
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, resp)
	}
}

// StampJS serves the layout stamp script as a callable expression.
func StampJS() gin.HandlerFunc {
	body := []byte("(" + snapshot.StampJS + ")();\n")
	return func(c *gin.Context) {
		c.Header("Cache-Control", "public, max-age=3600")
		c.Data(http.StatusOK, "application/javascript; charset=utf-8", body)
	}
}
