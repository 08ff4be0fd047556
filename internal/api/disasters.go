package api

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/relief-hub/internal/dashboard"
	"github.com/mr1hm/relief-hub/internal/mapview"
	"github.com/mr1hm/relief-hub/internal/reports"
)

const (
	formOverhead  = 1 << 20 // room for the text fields alongside the image
	formMaxMemory = 8 << 20
)

type reportBody struct {
	Type        string          `json:"type"`
	Severity    string          `json:"severity"`
	State       string          `json:"state"`
	Description string          `json:"description"`
	Location    json.RawMessage `json:"location"`
}

func (h *Handler) createDisaster(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+formOverhead)

	sub, ok := h.readSubmission(c)
	if !ok {
		return
	}
	if sub.Image != nil {
		if closer, ok := sub.Image.Content.(io.Closer); ok {
			defer closer.Close()
		}
	}

	report, err := h.reports.Create(c.Request.Context(), sub)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, report)
}

// readSubmission accepts multipart (with an optional image), urlencoded
// forms, or JSON. It writes the error response itself when it returns false.
func (h *Handler) readSubmission(c *gin.Context) (reports.Submission, bool) {
	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))

	if mediaType == "application/json" {
		var body reportBody
		if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil {
			h.bindError(c, err)
			return reports.Submission{}, false
		}
		return reports.Submission{
			Type:        body.Type,
			Severity:    body.Severity,
			State:       body.State,
			Description: body.Description,
			Location:    locationText(body.Location),
		}, true
	}

	var err error
	if mediaType == "multipart/form-data" {
		err = c.Request.ParseMultipartForm(formMaxMemory)
	} else {
		err = c.Request.ParseForm()
	}
	if err != nil {
		h.bindError(c, err)
		return reports.Submission{}, false
	}

	sub := reports.Submission{
		Type:        c.Request.FormValue("type"),
		Severity:    c.Request.FormValue("severity"),
		State:       c.Request.FormValue("state"),
		Description: c.Request.FormValue("description"),
		Location:    c.Request.FormValue("location"),
	}

	if c.Request.MultipartForm != nil {
		if files := c.Request.MultipartForm.File["image"]; len(files) > 0 {
			if len(files) > 1 {
				badRequest(c, "image: only one image may be attached")
				return reports.Submission{}, false
			}
			header := files[0]
			if header.Size > h.maxUpload {
				badRequest(c, "image: file is too large")
				return reports.Submission{}, false
			}
			f, err := header.Open()
			if err != nil {
				h.writeError(c, err)
				return reports.Submission{}, false
			}
			sub.Image = &reports.Upload{Filename: header.Filename, Content: f}
		}
	}

	return sub, true
}

// locationText turns a JSON location value into the text form the service
// parses. A JSON string is unwrapped so clients that double-encode still work.
func locationText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return trimmed
}

func (h *Handler) listDisasters(c *gin.Context) {
	all, err := h.reports.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, all)
}

func (h *Handler) disastersGeoJSON(c *gin.Context) {
	all, err := h.reports.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, toGeoJSON(all))
}

func (h *Handler) dashboard(c *gin.Context) {
	agg := dashboard.NewAggregator(dashboard.FetcherFunc(h.reports.List))
	if err := agg.Load(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, agg.View())
}

func (h *Handler) dashboardDetail(c *gin.Context) {
	agg := dashboard.NewAggregator(dashboard.FetcherFunc(h.reports.List))
	if err := agg.Load(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	detail, ok := agg.Detail(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) mapView(c *gin.Context) {
	f := mapview.NewFilter(mapview.FetcherFunc(h.reports.List))
	if err := f.Select(c.Request.Context(), c.DefaultQuery("state", mapview.All)); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, f.View())
}
