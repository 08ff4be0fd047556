package api

import (
	"github.com/mr1hm/relief-hub/internal/models"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// toGeoJSON emits one Point per report with valid coordinates. Reports
// without a location have nothing to place and are skipped.
func toGeoJSON(reports []models.Report) FeatureCollection {
	features := make([]Feature, 0, len(reports))

	for _, r := range reports {
		if !r.HasCoordinates() {
			continue
		}
		props := map[string]any{
			"id":        r.ID,
			"type":      r.Type,
			"severity":  models.NormalizeSeverity(r.Severity),
			"state":     r.State,
			"createdAt": r.CreatedAt,
		}
		if r.Description != "" {
			props["description"] = r.Description
		}
		if r.ImageRef != "" {
			props["imageRef"] = r.ImageRef
		}
		features = append(features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{r.Location.Lng, r.Location.Lat},
			},
			Properties: props,
		})
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
