package handlers

import (
	"errors"
	"net/http"

	"model-retrain-service/internal/core/domain"

	"github.com/gin-gonic/gin"
)

func mapDomainError(c *gin.Context, err error) {
	switch {
	// Not found errors
	case errors.Is(err, domain.ErrFlowRunNotFound),
		errors.Is(err, domain.ErrModelNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	// Conflict errors
	case errors.Is(err, domain.ErrFlowRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	// Bad request / validation errors
	case errors.Is(err, domain.ErrInvalidFlowRunID),
		errors.Is(err, domain.ErrInvalidStage),
		errors.Is(err, domain.ErrModelPathNotFound),
		errors.Is(err, domain.ErrModelPathOutsideUpload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	// Service unavailable errors
	case errors.Is(err, domain.ErrUnknownModelTarget),
		errors.Is(err, domain.ErrBackendNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
