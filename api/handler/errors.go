package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/tubeshim/models"
)

// respondError maps a typed error to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error) {
	status, detail := classifyError(err)
	c.JSON(status, models.ErrorResponse{Success: false, Error: detail})
}

func classifyError(err error) (int, *models.ErrorDetail) {
	var te *models.TransformError
	if errors.As(err, &te) {
		return mapTransformToStatus(te), te.ToDetail()
	}

	var apiErr *models.APIError
	if !errors.As(err, &apiErr) {
		apiErr = models.NewAPIError(models.ErrCodeInternal, err.Error(), err)
	}
	return mapErrorToStatus(apiErr), apiErr.ToDetail()
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.APIError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeBrowserUnavailable:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}

func mapTransformToStatus(e *models.TransformError) int {
	switch e.Code {
	case models.ErrCodeMissingContainer:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeMalformedDocument, models.ErrCodeUnsupportedRoute, models.ErrCodeUnsupportedEncoding:
		return http.StatusBadRequest // 400
	default:
		return http.StatusInternalServerError // 500
	}
}

func badRequest(c *gin.Context, err error) {
	respondError(c, models.NewAPIError(models.ErrCodeInvalidInput, err.Error(), err))
}
