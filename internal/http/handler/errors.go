package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ondrasimku/media-pipeline/internal/domain"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// respondError maps domain failures onto status codes. Internal causes are
// logged but never sent to the client.
func respondError(c *gin.Context, logger *slog.Logger, operation string, err error) {
	status, message := http.StatusInternalServerError, "Internal server error"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, message = http.StatusNotFound, "Not found"
	case errors.Is(err, domain.ErrUnknownOwnerType):
		status, message = http.StatusBadRequest, "Unknown owner type"
	case errors.Is(err, domain.ErrInvalidSelection):
		status, message = http.StatusBadRequest, "Invalid selection"
	case errors.Is(err, domain.ErrVariantGeneration):
		status, message = http.StatusUnprocessableEntity, "Image could not be processed"
	case errors.Is(err, domain.ErrStorageInit), errors.Is(err, domain.ErrStorageWrite):
		message = "Failed to store file"
	case errors.Is(err, domain.ErrMetadataWrite):
		message = "Failed to save media"
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "operation", operation, "error", err)
	} else {
		logger.Warn("Request rejected", "operation", operation, "status", status, "error", err)
	}
	c.JSON(status, ErrorResponse{Error: message})
}
