package handlers

import (
	"errors"
	"net/http"
	"time"

	"catalog-service/internal/models"
	"catalog-service/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func errorResponse(c *gin.Context, status int, code, message string, details interface{}) {
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: c.GetHeader("X-Request-ID"),
	})
}

func bindError(c *gin.Context, err error) {
	errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
}

// respondError maps a service error onto a status code and error code
func respondError(c *gin.Context, logger *logrus.Entry, err error) {
	var tooLarge *services.SelectionTooLargeError
	var previewRequired *services.PreviewRequiredError

	switch {
	case errors.As(err, &tooLarge):
		errorResponse(c, http.StatusRequestEntityTooLarge, "SELECTION_TOO_LARGE", err.Error(), gin.H{
			"count": tooLarge.Count,
			"max":   tooLarge.Max,
		})
	case errors.As(err, &previewRequired):
		errorResponse(c, http.StatusConflict, "PREVIEW_REQUIRED", err.Error(), gin.H{
			"affected": previewRequired.Affected,
		})
	case errors.Is(err, services.ErrNotFound):
		errorResponse(c, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, services.ErrTransactionConflict):
		errorResponse(c, http.StatusConflict, "TRANSACTION_CONFLICT", err.Error(), nil)
	case errors.Is(err, services.ErrDuplicateSKU):
		errorResponse(c, http.StatusConflict, "DUPLICATE_SKU", err.Error(), nil)
	case errors.Is(err, services.ErrDuplicateSlug):
		errorResponse(c, http.StatusConflict, "DUPLICATE_SLUG", err.Error(), nil)
	case errors.Is(err, services.ErrInvalidDimensionValue):
		errorResponse(c, http.StatusBadRequest, "INVALID_DIMENSION_VALUE", err.Error(), nil)
	case errors.Is(err, models.ErrInvalidSelection):
		errorResponse(c, http.StatusBadRequest, "INVALID_SELECTION", err.Error(), nil)
	case errors.Is(err, services.ErrInvalidImportFile):
		errorResponse(c, http.StatusBadRequest, "INVALID_IMPORT_FILE", err.Error(), nil)
	case errors.Is(err, services.ErrValidation):
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, services.ErrIdentifierExhaustion):
		logger.WithError(err).Error("Identifier space exhausted")
		errorResponse(c, http.StatusInternalServerError, "IDENTIFIER_EXHAUSTION", err.Error(), nil)
	default:
		logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}
