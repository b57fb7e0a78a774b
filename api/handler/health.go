package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/tubeshim/models"
	"github.com/use-agent/tubeshim/settings"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// StatsSource reports interception outcome totals.
type StatsSource interface {
	Snapshot() models.InterceptionStats
}

// Health returns a handler for GET /api/v1/health.
//
// Status degrades when more than half of the rewrite attempts since
// startup fell back to the original body, which usually means the
// backend changed its document shapes.
func Health(store *settings.Store, stats StatsSource, br Browser, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var is models.InterceptionStats
		if stats != nil {
			is = stats.Snapshot()
		}

		status := "healthy"
		if attempts := is.Transformed + is.Fallback; attempts >= 10 && is.Fallback > attempts/2 {
			status = "degraded"
		}

		var bs models.BrowserStats
		if br != nil {
			bs = br.Stats()
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:       status,
			Uptime:       time.Since(startTime).Round(time.Second).String(),
			Settings:     store.Snapshot(),
			Interception: is,
			Browser:      bs,
			Version:      Version,
		})
	}
}
