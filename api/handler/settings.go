package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/tubeshim/models"
	"github.com/use-agent/tubeshim/settings"
)

// GetSettings returns a handler for GET /api/v1/settings.
func GetSettings(store *settings.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.SettingsResponse{Success: true, Settings: store.Snapshot()})
	}
}

// PutSettings returns a handler for PUT /api/v1/settings. Fields absent
// from the payload keep their current value.
func PutSettings(store *settings.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SettingsUpdate
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SettingsResponse{Success: true, Settings: store.Apply(req)})
	}
}
