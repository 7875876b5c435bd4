package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskflow/internal/middleware"
	"taskflow/internal/service"
)

// classify maps service errors onto HTTP. The merged not-found/forbidden
// outcome and the admin not-found share one status and body.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, service.ErrInvalidReference):
		return http.StatusUnprocessableEntity, "invalid_reference"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication_required"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrNotFoundOrForbidden), errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_server_error"
	}
}

func (h HandlerSet) writeError(c *gin.Context, err error) {
	status, code := classify(err)

	switch status {
	case http.StatusInternalServerError:
		h.log.Error().
			Err(err).
			Str("path", c.FullPath()).
			Str("request_id", middleware.RequestIDFrom(c)).
			Msg("request failed")
		c.JSON(status, gin.H{"error": code})
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusConflict:
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
	default:
		c.JSON(status, gin.H{"error": code})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": message})
}
