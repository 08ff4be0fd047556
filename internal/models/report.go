package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Report is a single disaster observation submitted by a user.
// Reports are append-only: ID and CreatedAt are assigned by the store on insert.
type Report struct {
	ID          string    `json:"id" bson:"-"`
	Location    *Location `json:"location" bson:"location,omitempty"`
	Type        string    `json:"type" bson:"type"`
	Severity    Severity  `json:"severity" bson:"severity"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	State       string    `json:"state" bson:"state"`
	ImageRef    string    `json:"imageRef,omitempty" bson:"imageRef,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

// Location is the canonical coordinate pair. A report without coordinates
// carries a nil *Location, rendered as JSON null.
type Location struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// Valid reports whether the pair is finite and within WGS84 bounds.
func (l *Location) Valid() bool {
	if l == nil {
		return false
	}
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lng) || math.IsInf(l.Lat, 0) || math.IsInf(l.Lng, 0) {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// Key spellings accepted for each half of a coordinate pair.
var (
	LatKeys = []string{"lat", "latitude"}
	LngKeys = []string{"lng", "lon", "longitude"}
)

// Coordinate returns the first of keys present in obj as a number or a
// numeric string.
func Coordinate(obj map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case float32:
			return float64(n), true
		case int:
			return float64(n), true
		case int32:
			return float64(n), true
		case int64:
			return float64(n), true
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			return f, err == nil
		default:
			return 0, false
		}
	}
	return 0, false
}

// LocationFromFields builds a valid pair from a loosely keyed object, or
// returns nil.
func LocationFromFields(obj map[string]any) *Location {
	lat, ok := Coordinate(obj, LatKeys...)
	if !ok {
		return nil
	}
	lng, ok := Coordinate(obj, LngKeys...)
	if !ok {
		return nil
	}
	loc := &Location{Lat: lat, Lng: lng}
	if !loc.Valid() {
		return nil
	}
	return loc
}

func (r *Report) HasCoordinates() bool {
	return r.Location.Valid()
}
