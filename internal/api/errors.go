package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/relief-hub/internal/reports"
)

const statusClientClosedRequest = 499

// writeError maps service errors onto HTTP responses. Only validation
// messages reach the client; everything else is logged and generic.
func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *reports.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, context.Canceled):
		h.logger.Debug("client went away", "path", c.FullPath(), "error", err)
		c.AbortWithStatus(statusClientClosedRequest)
	default:
		_ = c.Error(err)
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server Error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
