// Package client talks to the relief-hub REST API. It satisfies the
// dashboard and mapview fetchers so terminal views can render live data.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mr1hm/relief-hub/internal/models"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx response. Message is the server's {error} text when
// it sent one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// WithHTTPClient replaces the transport, e.g. to share a cookie jar.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// ReportInput is what a reporter fills in. ImagePath is optional.
type ReportInput struct {
	Type        string
	Severity    string
	State       string
	Description string
	Location    *models.Location
	ImagePath   string
}

// DonationInput mirrors the donation form.
type DonationInput struct {
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"paymentMethod"`
}

func (c *Client) ListDisasters(ctx context.Context) ([]models.Report, error) {
	var out []models.Report
	if err := c.do(ctx, http.MethodGet, "/api/disasters", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateDisaster submits a report as multipart form data, attaching the
// image file when ImagePath is set.
func (c *Client) CreateDisaster(ctx context.Context, in ReportInput) (*models.Report, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := [][2]string{
		{"type", in.Type},
		{"severity", in.Severity},
		{"state", in.State},
		{"description", in.Description},
	}
	if in.Location != nil {
		loc, err := json.Marshal(in.Location)
		if err != nil {
			return nil, fmt.Errorf("error encoding location: %w", err)
		}
		fields = append(fields, [2]string{"location", string(loc)})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("error writing form field %s: %w", f[0], err)
		}
	}

	if in.ImagePath != "" {
		if err := attachFile(mw, "image", in.ImagePath); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("error closing form: %w", err)
	}

	var out models.Report
	if err := c.do(ctx, http.MethodPost, "/api/disasters", mw.FormDataContentType(), &body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func attachFile(mw *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening image: %w", err)
	}
	defer f.Close()

	part, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("error creating form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("error copying image: %w", err)
	}
	return nil
}

func (c *Client) ListDonations(ctx context.Context) ([]models.Donation, error) {
	var out []models.Donation
	if err := c.do(ctx, http.MethodGet, "/api/donations", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateDonation(ctx context.Context, in DonationInput) (*models.Donation, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("error encoding donation: %w", err)
	}
	var out models.Donation
	if err := c.do(ctx, http.MethodPost, "/api/donations", "application/json", bytes.NewReader(raw), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload); err == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding resp.Body: %w", err)
	}
	return nil
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
