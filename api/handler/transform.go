package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/tubeshim/models"
	"github.com/use-agent/tubeshim/route"
	"github.com/use-agent/tubeshim/transform"
)

// Transform returns a handler for POST /api/v1/transform.
//
// The rewrite is unconditional: eligibility flags only gate the
// interceptor, not explicit requests.
func Transform() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.TransformRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		kind, err := route.Parse(req.Route)
		if err != nil {
			badRequest(c, err)
			return
		}

		// ── 2. Rewrite ──────────────────────────────────────────────
		var (
			out     []byte
			removed int
		)
		if kind == route.Search {
			out, removed, err = transform.SearchWithStats([]byte(req.Body))
		} else {
			out, err = transform.Apply(kind, []byte(req.Body))
		}

		timing := models.TimingInfo{TotalMs: time.Since(start).Milliseconds()}
		if err != nil {
			status, detail := classifyError(err)
			c.JSON(status, models.TransformResponse{
				Success: false,
				Route:   kind.String(),
				Timing:  timing,
				Error:   detail,
			})
			return
		}

		// ── 3. Respond ──────────────────────────────────────────────
		c.JSON(http.StatusOK, models.TransformResponse{
			Success: true,
			Route:   kind.String(),
			Body:    string(out),
			Removed: removed,
			Timing:  timing,
		})
	}
}
