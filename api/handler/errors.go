package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pageclip/models"
)

// StatusOf translates an error code to an HTTP status code.
func StatusOf(code string) int {
	switch code {
	case models.ErrCodeCooldown, models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeMissingSinkURL:
		return http.StatusPreconditionFailed // 412
	case models.ErrCodeExtractionFailed, models.ErrCodeEmptyExtraction:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeSnapshotFailed, models.ErrCodeDeliveryFailed:
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}

// respondError writes err as a structured JSON error response.
func respondError(c *gin.Context, err error) {
	detail := models.DetailOf(err)
	c.JSON(StatusOf(detail.Code), models.ErrorResponse{Success: false, Error: detail})
}

func badRequest(c *gin.Context, err error) {
	respondError(c, models.NewCaptureError(models.ErrCodeInvalidInput, err.Error(), nil))
}
