package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/stagingfs/internal/domain/sandbox"
	"github.com/GriffinCanCode/stagingfs/internal/domain/upload"
	"github.com/GriffinCanCode/stagingfs/internal/domain/walker"
	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/stagingfs/internal/providers/filesystem"
)

// handleError writes the client response for err. Filesystem causes are
// logged but never echoed to the client.
func (h *Handlers) handleError(c *gin.Context, err error, requested, operation string) {
	status, msg := classify(err, requested, operation)
	if status >= http.StatusInternalServerError {
		h.logger.Error(operation+" failed",
			append(tracing.Fields(c.Request.Context()),
				zap.String("path", requested),
				zap.Error(err),
			)...,
		)
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func classify(err error, requested, operation string) (int, string) {
	var forbidden *sandbox.ForbiddenError
	switch {
	case errors.As(err, &forbidden):
		return http.StatusForbidden, forbidden.Error()
	case errors.Is(err, sandbox.ErrForbiddenPath):
		return http.StatusForbidden, fmt.Sprintf("Unallowed path: %s", requested)
	case errors.Is(err, walker.ErrInvalidType):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, upload.ErrTooManyFiles):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, filesystem.ErrNotFound):
		return http.StatusNotFound, fmt.Sprintf("Path not found: %s", requested)
	case errors.Is(err, filesystem.ErrNotDirectory):
		return http.StatusBadRequest, fmt.Sprintf("Not a directory: %s", requested)
	case errors.Is(err, filesystem.ErrIsDirectory):
		return http.StatusBadRequest, fmt.Sprintf("Not a file: %s", requested)
	case errors.Is(err, context.Canceled):
		return 499, "Request canceled"
	default:
		return http.StatusInternalServerError, fmt.Sprintf("Failed to %s", operation)
	}
}

// uploadFailure is the per-file message for a failed upload.
func uploadFailure(err error) string {
	var forbidden *sandbox.ForbiddenError
	switch {
	case errors.As(err, &forbidden):
		return forbidden.Error()
	case errors.Is(err, upload.ErrInvalidName):
		return "invalid file name"
	case errors.Is(err, upload.ErrTooLarge):
		return "file too large"
	case errors.Is(err, upload.ErrDestinationIsDirectory):
		return "destination is a directory"
	default:
		return "upload failed"
	}
}
