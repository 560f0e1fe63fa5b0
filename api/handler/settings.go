package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pageclip/config"
	"github.com/use-agent/pageclip/models"
)

// GetSettings returns a handler for GET /api/v1/settings.
func GetSettings(store config.SettingsStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sinkURL, err := store.SinkURL(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SettingsResponse{SinkURL: sinkURL, Configured: sinkURL != ""})
	}
}

// PutSettings returns a handler for PUT /api/v1/settings.
func PutSettings(store config.SettingsStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SettingsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := store.SetSinkURL(c.Request.Context(), req.SinkURL); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SettingsResponse{SinkURL: req.SinkURL, Configured: true})
	}
}
