// Package mlproxy forwards prediction requests to the severity model service.
package mlproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable means the model service could not be reached or answered
// with a non-200 status.
var ErrUnavailable = errors.New("model service unavailable")

// ModelError is an error the model reported for the given features.
type ModelError struct {
	Message string
}

func (e *ModelError) Error() string {
	return "model rejected input: " + e.Message
}

const maxResponseBytes = 1 << 20

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Predict posts the features object as-is and returns the model's JSON reply.
func (c *Client) Predict(ctx context.Context, features json.RawMessage) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(features))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("model request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("model returned error status", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	// The model reports bad input as {"error": "..."} with a 200.
	var probe struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON from model", ErrUnavailable)
	}
	if probe.Error != nil {
		return nil, &ModelError{Message: *probe.Error}
	}

	return json.RawMessage(body), nil
}
