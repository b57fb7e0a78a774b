package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/tubeshim/browser"
	"github.com/use-agent/tubeshim/models"
)

// Browser is the managed browser session as seen by the API.
type Browser interface {
	Navigate(ctx context.Context, rawURL string) (*browser.Result, error)
	Stats() models.BrowserStats
}

// Navigate returns a handler for POST /api/v1/navigate. A nil br answers
// every request with 503.
func Navigate(br Browser) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		if br == nil {
			c.JSON(http.StatusServiceUnavailable, models.NavigateResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeBrowserUnavailable,
					Message: "managed browser is disabled: set TUBESHIM_BROWSER=true",
				},
			})
			return
		}

		var req models.NavigateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		req.Defaults()

		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(req.Timeout)*time.Second)
		defer cancel()

		res, err := br.Navigate(ctx, req.URL)
		timing := models.TimingInfo{TotalMs: time.Since(start).Milliseconds()}
		if err != nil {
			status, detail := classifyError(err)
			c.JSON(status, models.NavigateResponse{Success: false, Timing: timing, Error: detail})
			return
		}

		c.JSON(http.StatusOK, models.NavigateResponse{
			Success:  true,
			FinalURL: res.FinalURL,
			Title:    res.Title,
			Timing:   timing,
		})
	}
}
