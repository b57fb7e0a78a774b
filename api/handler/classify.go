package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/tubeshim/models"
	"github.com/use-agent/tubeshim/route"
)

// Classify returns a handler for POST /api/v1/classify.
func Classify() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ClassifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		c.JSON(http.StatusOK, models.ClassifyResponse{
			Success: true,
			Route:   route.ClassifyString(req.URL).String(),
		})
	}
}
