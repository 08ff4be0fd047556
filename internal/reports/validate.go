package reports

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/mr1hm/relief-hub/internal/models"
)

// Upload is an attached image as received from the client.
type Upload struct {
	Filename string
	Content  io.ReadSeeker
}

// Submission is the raw form data for a new report.
type Submission struct {
	Type        string
	Severity    string
	State       string
	Description string
	Location    string // JSON text, optional
	Image       *Upload
}

const locationFormat = `location must be a JSON object like {"lat": 26.1, "lng": 91.7}`

// Validate checks a submission and returns the report it describes.
// Severity is folded to its canonical lowercase form; other text is kept
// as sent. ID, CreatedAt and ImageRef are left for the caller.
func Validate(sub Submission) (*models.Report, error) {
	r := &models.Report{
		Type:        sub.Type,
		State:       sub.State,
		Description: sub.Description,
	}

	// Blank text counts as missing, but accepted text is stored as sent.
	if strings.TrimSpace(r.Type) == "" {
		return nil, invalid("type", "type is required")
	}
	if strings.TrimSpace(sub.Severity) == "" {
		return nil, invalid("severity", "severity is required")
	}
	sev, err := models.ParseSeverity(sub.Severity)
	if err != nil {
		return nil, invalid("severity", "%v", err)
	}
	r.Severity = sev
	if strings.TrimSpace(r.State) == "" {
		return nil, invalid("state", "state is required")
	}

	loc, err := ParseLocation(sub.Location)
	if err != nil {
		return nil, err
	}
	r.Location = loc

	return r, nil
}

// ParseLocation decodes the location form field into the canonical pair.
// An empty field or JSON null means no location. Objects using
// latitude/longitude or lon are accepted and normalized; anything else is
// rejected.
func ParseLocation(raw string) (*models.Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil || obj == nil {
		return nil, invalid("location", "invalid location format: %s", locationFormat)
	}

	lat, ok := models.Coordinate(obj, models.LatKeys...)
	if !ok {
		return nil, invalid("location", "invalid location format: missing numeric lat; %s", locationFormat)
	}
	lng, ok := models.Coordinate(obj, models.LngKeys...)
	if !ok {
		return nil, invalid("location", "invalid location format: missing numeric lng; %s", locationFormat)
	}

	loc := &models.Location{Lat: lat, Lng: lng}
	if !loc.Valid() {
		return nil, invalid("location", "invalid location format: lat must be within [-90, 90] and lng within [-180, 180]")
	}
	return loc, nil
}
