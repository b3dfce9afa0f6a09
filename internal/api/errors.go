package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carevoice-backend/internal/store"
)

// fail writes err as a JSON error with the status its kind maps to.
// Unexpected errors are logged and hidden behind a generic message.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrExpired):
		status = http.StatusGone
	case errors.Is(err, store.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, store.ErrLimitReached):
		status = http.StatusForbidden
	case errors.Is(err, store.ErrInvalid):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
