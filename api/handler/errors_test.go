package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/use-agent/pageclip/models"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{models.ErrCodeCooldown, http.StatusTooManyRequests},
		{models.ErrCodeRateLimited, http.StatusTooManyRequests},
		{models.ErrCodeInvalidInput, http.StatusBadRequest},
		{models.ErrCodeUnauthorized, http.StatusUnauthorized},
		{models.ErrCodeMissingSinkURL, http.StatusPreconditionFailed},
		{models.ErrCodeExtractionFailed, http.StatusUnprocessableEntity},
		{models.ErrCodeEmptyExtraction, http.StatusUnprocessableEntity},
		{models.ErrCodeSnapshotFailed, http.StatusBadGateway},
		{models.ErrCodeDeliveryFailed, http.StatusBadGateway},
		{models.ErrCodeFormat, http.StatusInternalServerError},
		{models.ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.code))
		})
	}
}
