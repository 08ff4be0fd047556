package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/relief-hub/internal/mlproxy"
)

const maxPredictBody = 1 << 20

// predict forwards a feature vector to the severity model.
func (h *Handler) predict(c *gin.Context) {
	if h.ml == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ML model is not configured"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPredictBody))
	if err != nil || !json.Valid(body) {
		badRequest(c, "invalid request body")
		return
	}

	out, err := h.ml.Predict(c.Request.Context(), body)
	if err != nil {
		var merr *mlproxy.ModelError
		if errors.As(err, &merr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": merr.Message})
			return
		}
		h.logger.Error("ml predict failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Error connecting to ML model"})
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", out)
}
