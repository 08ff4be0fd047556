package client

import (
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/relief-hub/internal/dashboard"
	"github.com/mr1hm/relief-hub/internal/mapview"
	"github.com/mr1hm/relief-hub/internal/models"
)

// Both views accept the client as their data source.
var (
	_ dashboard.Fetcher = (*Client)(nil)
	_ mapview.Fetcher   = (*Client)(nil)
)

func TestListDisasters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/disasters", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"id":"1","type":"Flood","severity":"high","state":"Goa","location":{"lat":15.3,"lng":74.1}}]`)
	}))
	defer srv.Close()

	got, err := New(srv.URL + "/").ListDisasters(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Goa", got[0].State)
	assert.True(t, got[0].HasCoordinates())
}

func TestCreateDisasterMultipart(t *testing.T) {
	imgPath := filepath.Join(t.TempDir(), "photo.png")
	f, err := os.Create(imgPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 2, 2))))
	require.NoError(t, f.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "Cyclone", r.FormValue("type"))
		assert.Equal(t, "Odisha", r.FormValue("state"))
		assert.JSONEq(t, `{"lat":19.8,"lng":85.8}`, r.FormValue("location"))

		_, header, err := r.FormFile("image")
		if assert.NoError(t, err) {
			assert.Equal(t, "photo.png", header.Filename)
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.Report{ID: "r-1", Type: "Cyclone", State: "Odisha", ImageRef: "/uploads/x-photo.png"})
	}))
	defer srv.Close()

	got, err := New(srv.URL).CreateDisaster(context.Background(), ReportInput{
		Type:      "Cyclone",
		Severity:  "high",
		State:     "Odisha",
		Location:  &models.Location{Lat: 19.8, Lng: 85.8},
		ImagePath: imgPath,
	})
	require.NoError(t, err)
	assert.Equal(t, "r-1", got.ID)
	assert.Equal(t, "/uploads/x-photo.png", got.ImageRef)
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"state: state is required"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).CreateDonation(context.Background(), DonationInput{Name: "A"})
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusBadRequest))
	assert.Contains(t, err.Error(), "state is required")
}

func TestDashboardFromClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[
			{"id":"1","type":"Flood","severity":"HIGH","state":"Assam"},
			{"id":"2","type":"Fire","severity":"critical","state":"Delhi"},
			{"id":"3","type":"Storm","severity":"low","state":"Goa"}
		]`)
	}))
	defer srv.Close()

	agg := dashboard.NewAggregator(New(srv.URL))
	require.NoError(t, agg.Load(context.Background()))
	counts := agg.Groups().Counts()
	assert.Equal(t, 1, counts[models.SeverityHigh])
	assert.Equal(t, 1, counts[models.SeverityMedium])
	assert.Equal(t, 1, counts[models.SeverityLow])
}
