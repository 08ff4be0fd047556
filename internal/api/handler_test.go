package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/relief-hub/internal/auth"
	"github.com/mr1hm/relief-hub/internal/broadcast"
	"github.com/mr1hm/relief-hub/internal/config"
	"github.com/mr1hm/relief-hub/internal/dashboard"
	"github.com/mr1hm/relief-hub/internal/imagestore"
	"github.com/mr1hm/relief-hub/internal/mapview"
	"github.com/mr1hm/relief-hub/internal/metrics"
	"github.com/mr1hm/relief-hub/internal/mlproxy"
	"github.com/mr1hm/relief-hub/internal/models"
	"github.com/mr1hm/relief-hub/internal/notify"
	"github.com/mr1hm/relief-hub/internal/reports"
	"github.com/mr1hm/relief-hub/internal/repository"
)

type testEnv struct {
	router      *gin.Engine
	db          *repository.SQLiteDB
	svc         *reports.Service
	broadcaster *broadcast.Broadcaster
	registry    *prometheus.Registry
	clock       *clockwork.FakeClock
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, ml *mlproxy.Client) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := quietLogger()

	clock := clockwork.NewFakeClockAt(time.Date(2024, 7, 30, 9, 0, 0, 0, time.UTC))
	db, err := repository.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	db.WithClock(clock)
	t.Cleanup(func() { db.Close() })

	uploads := t.TempDir()
	images, err := imagestore.NewLocal(uploads, "/uploads")
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	bc := broadcast.NewBroadcaster()
	bc.OnDrop = m.BroadcastDropped.Inc
	t.Cleanup(bc.Close)

	ctx, cancel := context.WithCancel(context.Background())
	notifier := notify.NewNotifier(config.NotifyConfig{Workers: 1, BufferSize: 16}, bc, nil, m, logger)
	notifier.Start(ctx)
	t.Cleanup(func() {
		notifier.Stop()
		cancel()
	})

	svc := reports.NewService(db, images, notifier, m, logger).WithClock(clock)
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	authn := auth.NewAuthenticator(tokens, auth.NewMemorySessions(clockwork.NewRealClock()), false, logger)

	h := NewHandler(Options{
		Store:          db,
		Reports:        svc,
		Auth:           authn,
		Broadcaster:    bc,
		ML:             ml,
		Metrics:        m,
		Gatherer:       registry,
		Logger:         logger,
		UploadDir:      uploads,
		MaxUploadBytes: 1 << 20,
	})

	router := gin.New()
	h.RegisterRoutes(router)

	return &testEnv{
		router:      router,
		db:          db,
		svc:         svc,
		broadcaster: bc,
		registry:    registry,
		clock:       clock,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (e *testEnv) postJSON(path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

func (e *testEnv) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

func (e *testEnv) count(t *testing.T) int64 {
	t.Helper()
	n, err := e.db.CountReports(context.Background())
	require.NoError(t, err)
	return n
}

func multipartReport(t *testing.T, fields map[string]string, filename string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/disasters", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil))
	return buf.Bytes()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func floodForm() url.Values {
	return url.Values{
		"type":        {"Flood"},
		"severity":    {"High"},
		"state":       {"Assam"},
		"description": {"Brahmaputra over the danger mark"},
		"location":    {`{"lat":26.14,"lng":91.73}`},
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.get("/health")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.get("/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready"}`, w.Body.String())

	require.NoError(t, env.db.Close())
	w = env.get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCreateDisasterMissingFields(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, field := range []string{"type", "severity", "state"} {
		t.Run(field, func(t *testing.T) {
			form := floodForm()
			form.Del(field)

			w := env.postForm("/api/disasters", form)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), field)
			assert.Zero(t, env.count(t))
		})
	}
}

func TestCreateDisasterReturnsVerbatimFields(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.postForm("/api/disasters/report", floodForm())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	got := decode[models.Report](t, w)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "Flood", got.Type)
	assert.Equal(t, models.SeverityHigh, got.Severity)
	assert.Equal(t, "Assam", got.State)
	assert.Equal(t, "Brahmaputra over the danger mark", got.Description)
	require.NotNil(t, got.Location)
	assert.Equal(t, 26.14, got.Location.Lat)
	assert.Equal(t, 91.73, got.Location.Lng)
	assert.True(t, got.CreatedAt.Equal(env.clock.Now()))

	list := decode[[]models.Report](t, env.get("/api/disasters"))
	require.Len(t, list, 1)
	assert.Equal(t, got.ID, list[0].ID)
	assert.Equal(t, got.Description, list[0].Description)

	// Surrounding whitespace survives the round trip.
	form := floodForm()
	form.Set("type", "Flash Flood ")
	form.Set("state", " Goa")
	form.Set("description", "  Water rising\n")
	w = env.postForm("/api/disasters", form)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	spaced := decode[models.Report](t, w)
	assert.Equal(t, "Flash Flood ", spaced.Type)
	assert.Equal(t, " Goa", spaced.State)
	assert.Equal(t, "  Water rising\n", spaced.Description)

	list = decode[[]models.Report](t, env.get("/api/disasters"))
	require.Len(t, list, 2)
	for _, r := range list {
		if r.ID == spaced.ID {
			assert.Equal(t, "  Water rising\n", r.Description)
		}
	}
}

func TestCreateDisasterJSONBody(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.postJSON("/api/disasters", map[string]any{
		"type":     "Cyclone",
		"severity": "medium",
		"state":    "Odisha",
		"location": map[string]any{"latitude": 19.81, "longitude": 85.83},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	got := decode[models.Report](t, w)
	require.NotNil(t, got.Location)
	assert.Equal(t, 19.81, got.Location.Lat)

	// Location sent as a JSON-encoded string.
	w = env.postJSON("/api/disasters", map[string]any{
		"type":     "Cyclone",
		"severity": "low",
		"state":    "Odisha",
		"location": `{"lat":20.1,"lng":86.2}`,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.EqualValues(t, 2, env.count(t))
}

func TestCreateDisasterMalformedLocation(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, loc := range []string{"not-json", `{"lat":"north"}`, `{"lat":91,"lng":10}`} {
		form := floodForm()
		form.Set("location", loc)

		w := env.postForm("/api/disasters", form)
		assert.Equal(t, http.StatusBadRequest, w.Code, loc)
		assert.Contains(t, w.Body.String(), "location format", loc)
	}
	assert.Zero(t, env.count(t))
}

func TestCreateDisasterWithImage(t *testing.T) {
	env := newTestEnv(t, nil)
	img := jpegBytes(t)

	req := multipartReport(t, map[string]string{
		"type":     "Landslide",
		"severity": "high",
		"state":    "Kerala",
	}, "photo.jpg", img)

	w := env.do(req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	got := decode[models.Report](t, w)
	require.NotEmpty(t, got.ImageRef)
	assert.True(t, strings.HasPrefix(got.ImageRef, "/uploads/"))
	assert.True(t, strings.HasSuffix(got.ImageRef, "photo.jpg"))

	served := env.get(got.ImageRef)
	require.Equal(t, http.StatusOK, served.Code)
	assert.Equal(t, img, served.Body.Bytes())
}

func TestCreateDisasterRejectsNonImage(t *testing.T) {
	env := newTestEnv(t, nil)

	req := multipartReport(t, map[string]string{
		"type":     "Landslide",
		"severity": "high",
		"state":    "Kerala",
	}, "notes.jpg", []byte("definitely not a jpeg"))

	w := env.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "image")
	assert.Zero(t, env.count(t))
}

func TestCreateDisasterTooLarge(t *testing.T) {
	env := newTestEnv(t, nil)

	req := multipartReport(t, map[string]string{
		"type":     "Flood",
		"severity": "low",
		"state":    "Bihar",
	}, "huge.jpg", bytes.Repeat([]byte{0xff}, 3<<20))

	w := env.do(req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Zero(t, env.count(t))
}

func TestListDisastersEmptyAndIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.get("/api/disasters/all")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	env.postForm("/api/disasters", floodForm())
	first := env.get("/api/disasters").Body.String()
	second := env.get("/api/disasters").Body.String()
	assert.Equal(t, first, second)
}

func TestConcurrentCreates(t *testing.T) {
	env := newTestEnv(t, nil)
	const n = 20

	var wg sync.WaitGroup
	codes := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			form := floodForm()
			form.Set("description", fmt.Sprintf("report %d", i))
			codes <- env.postForm("/api/disasters", form).Code
		}(i)
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		assert.Equal(t, http.StatusCreated, code)
	}

	list := decode[[]models.Report](t, env.get("/api/disasters"))
	require.Len(t, list, n)
	seen := make(map[string]bool, n)
	for _, r := range list {
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}
}

func TestDisastersGeoJSON(t *testing.T) {
	env := newTestEnv(t, nil)

	env.postForm("/api/disasters", floodForm())
	noLocation := floodForm()
	noLocation.Del("location")
	env.postForm("/api/disasters", noLocation)

	w := env.get("/api/disasters/geojson")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))

	fc := decode[FeatureCollection](t, w)
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, []float64{91.73, 26.14}, fc.Features[0].Geometry.Coordinates)
	assert.Equal(t, "high", fc.Features[0].Properties["severity"])
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t, nil)

	view := decode[dashboard.View](t, env.get("/api/disasters/dashboard"))
	assert.Equal(t, dashboard.StatusEmpty, view.Status)
	assert.Equal(t, dashboard.EmptyMessage, view.Message)

	env.postForm("/api/disasters", floodForm())
	low := floodForm()
	low.Set("severity", "low")
	low.Set("state", "Bihar")
	low.Del("description")
	created := decode[models.Report](t, env.postForm("/api/disasters", low))

	view = decode[dashboard.View](t, env.get("/api/disasters/dashboard"))
	assert.Equal(t, dashboard.StatusLoaded, view.Status)
	assert.Equal(t, map[string]int{"high": 1, "medium": 0, "low": 1}, view.Counts)
	require.Len(t, view.Sections, 3)
	assert.Equal(t, "High Severity", view.Sections[0].Title)
	assert.Empty(t, view.Sections[1].Cards)
	require.Len(t, view.Sections[2].Cards, 1)
	assert.Equal(t, dashboard.Placeholder, view.Sections[2].Cards[0].Description)

	w := env.get("/api/disasters/dashboard/" + created.ID)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[dashboard.Detail](t, w)
	assert.Equal(t, "NOTICE", detail.Badge)
	assert.Equal(t, "26.1400, 91.7300", detail.Coordinates)

	w = env.get("/api/disasters/dashboard/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMapView(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, state := range []string{"Goa", "Delhi", "Goa"} {
		form := floodForm()
		form.Set("state", state)
		require.Equal(t, http.StatusCreated, env.postForm("/api/disasters", form).Code)
	}

	view := decode[mapview.View](t, env.get("/api/disasters/map?state=Goa"))
	assert.Equal(t, "Goa", view.Selection)
	require.Len(t, view.List, 2)
	for _, r := range view.List {
		assert.Equal(t, "Goa", r.State)
	}
	assert.Len(t, view.Pins, 2)

	view = decode[mapview.View](t, env.get("/api/disasters/map"))
	assert.Equal(t, mapview.All, view.Selection)
	assert.Len(t, view.List, 3)

	view = decode[mapview.View](t, env.get("/api/disasters/map?state=Sikkim"))
	assert.Empty(t, view.List)
	assert.Empty(t, view.Error)
}

func TestDonations(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.postJSON("/api/donations", map[string]any{
		"name": "Asha", "email": "asha@example.org", "amount": 250.5, "paymentMethod": "paypal",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[models.Donation](t, w)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, models.PaymentPayPal, first.PaymentMethod)

	env.clock.Advance(time.Minute)
	w = env.postForm("/api/donations/donate", url.Values{
		"name": {"Ravi"}, "email": {"ravi@example.org"}, "amount": {"100"}, "paymentMethod": {"credit-card"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	list := decode[[]models.Donation](t, env.get("/api/donations"))
	require.Len(t, list, 2)
	assert.Equal(t, "Ravi", list[0].Name)
	assert.Equal(t, "Asha", list[1].Name)

	bad := []struct {
		body map[string]any
		want string
	}{
		{map[string]any{"email": "x@example.org", "amount": 10, "paymentMethod": "paypal"}, "name: is required"},
		{map[string]any{"name": "  ", "email": "x@example.org", "amount": 10, "paymentMethod": "paypal"}, "name: is required"},
		{map[string]any{"name": "X", "email": "not-an-email", "amount": 10, "paymentMethod": "paypal"}, "email: must be a valid email address"},
		{map[string]any{"name": "X", "email": "Alice <alice@example.com>", "amount": 10, "paymentMethod": "paypal"}, "email: must be a valid email address"},
		{map[string]any{"name": "X", "email": "x@example.org", "paymentMethod": "paypal"}, "amount: is required"},
		{map[string]any{"name": "X", "email": "x@example.org", "amount": -5, "paymentMethod": "paypal"}, "amount: must be greater than 0"},
		{map[string]any{"name": "X", "email": "x@example.org", "amount": "lots", "paymentMethod": "paypal"}, "amount: must be a number"},
		{map[string]any{"name": "X", "email": "x@example.org", "amount": 10, "paymentMethod": "cheque"}, "paymentMethod: must be one of credit-card, paypal, crypto, other"},
	}
	for _, tt := range bad {
		w := env.postJSON("/api/donations", tt.body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "%v", tt.body)
		assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tt.want), w.Body.String(), "%v", tt.body)
	}

	w = env.postForm("/api/donations", url.Values{
		"name": {"X"}, "email": {"x@example.org"}, "amount": {"ten"}, "paymentMethod": {"crypto"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "amount: must be a number")

	assert.Len(t, decode[[]models.Donation](t, env.get("/api/donations")), 2)
}

func TestDonationAmountAsString(t *testing.T) {
	env := newTestEnv(t, nil)

	// Browser forms post the amount as a JSON string.
	w := env.postJSON("/api/donations", map[string]any{
		"name": "Kiran", "email": "kiran@example.org", "amount": "25", "paymentMethod": "other",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 25.0, decode[models.Donation](t, w).Amount)
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	creds := map[string]any{"name": "Meera", "email": "Meera@Example.org", "password": "monsoon"}

	w := env.postJSON("/api/auth/register", creds)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	registered := decode[models.PublicUser](t, w)
	assert.Equal(t, "meera@example.org", registered.Email)
	assert.NotContains(t, w.Body.String(), "password")

	w = env.postJSON("/api/auth/register", creds)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "User already exists")

	w = env.postJSON("/api/auth/register", map[string]any{"name": "A", "email": "a@example.org", "password": "123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "password: must be at least 6 characters")

	w = env.postJSON("/api/auth/register", map[string]any{"name": "A", "email": "A <a@example.org>", "password": "monsoon"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "email: must be a valid email address")

	wrongPassword := env.postJSON("/api/auth/login", map[string]any{"email": "meera@example.org", "password": "drought"})
	unknownEmail := env.postJSON("/api/auth/login", map[string]any{"email": "nobody@example.org", "password": "monsoon"})
	assert.Equal(t, http.StatusBadRequest, wrongPassword.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())

	w = env.get("/api/auth/me")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.postJSON("/api/auth/login", map[string]any{"email": "meera@example.org", "password": "monsoon"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookie := sessionCookie(t, w)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookie)
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, registered, decode[models.PublicUser](t, w))

	req = httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(cookie)
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Logged out successfully"}`, w.Body.String())

	// The old token is revoked even if the client kept it.
	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookie)
	assert.Equal(t, http.StatusUnauthorized, env.do(req).Code)
}

func TestPredict(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		env := newTestEnv(t, nil)
		w := env.postJSON("/api/ml/predict", map[string]any{"rainfall": 120})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var features map[string]any
		json.NewDecoder(r.Body).Decode(&features)
		w.Header().Set("Content-Type", "application/json")
		if _, ok := features["rainfall"]; !ok {
			fmt.Fprint(w, `{"error":"rainfall is required"}`)
			return
		}
		fmt.Fprint(w, `{"prediction":"high"}`)
	}))
	defer model.Close()

	env := newTestEnv(t, mlproxy.NewClient(model.URL, time.Second, quietLogger()))

	w := env.postJSON("/api/ml/predict", map[string]any{"rainfall": 120})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"prediction":"high"}`, w.Body.String())

	w = env.postJSON("/api/ml/predict", map[string]any{"wind": 40})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "rainfall is required")

	req := httptest.NewRequest(http.MethodPost, "/api/ml/predict", strings.NewReader("{"))
	assert.Equal(t, http.StatusBadRequest, env.do(req).Code)

	t.Run("unreachable", func(t *testing.T) {
		down := httptest.NewServer(http.NotFoundHandler())
		down.Close()
		env := newTestEnv(t, mlproxy.NewClient(down.URL, time.Second, quietLogger()))

		w := env.postJSON("/api/ml/predict", map[string]any{"rainfall": 120})
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.JSONEq(t, `{"error":"Error connecting to ML model"}`, w.Body.String())
	})
}

func dialEvents(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/events", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestRealtimeEvents(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	alice := dialEvents(t, srv)
	bob := dialEvents(t, srv)
	require.Eventually(t, func() bool { return env.broadcaster.SubscriberCount() == 2 },
		2*time.Second, 10*time.Millisecond)

	// A stored report reaches every subscriber.
	created := decode[models.Report](t, env.postForm("/api/disasters", floodForm()))
	for _, conn := range []*websocket.Conn{alice, bob} {
		f := readFrame(t, conn)
		assert.Equal(t, broadcast.EventNewDisaster, f.Event)
		var got models.Report
		require.NoError(t, json.Unmarshal(f.Data, &got))
		assert.Equal(t, created.ID, got.ID)
	}

	// A client-sent report is relayed to others and not stored.
	payload := json.RawMessage(`{"type":"Earthquake","state":"Sikkim"}`)
	require.NoError(t, alice.WriteJSON(frame{Event: broadcast.EventReportDisaster, Data: payload}))

	f := readFrame(t, bob)
	assert.Equal(t, broadcast.EventNewDisaster, f.Event)
	assert.JSONEq(t, string(payload), string(f.Data))
	assert.EqualValues(t, 1, env.count(t))

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := alice.ReadMessage()
	assert.Error(t, err, "sender should not receive its own relayed frame")
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:3000"})

	req := httptest.NewRequest(http.MethodGet, "http://api.example.org/api/events", nil)
	assert.True(t, check(req), "no origin")

	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://api.example.org")
	assert.True(t, check(req), "same origin")

	req.Header.Set("Origin", "http://evil.example.com")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(2))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Other clients have their own budget.
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	env.postForm("/api/disasters", floodForm())
	env.postForm("/api/disasters", url.Values{"type": {"Flood"}})

	w := env.get("/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "relief_reports_created_total 1")
	assert.Contains(t, body, `relief_report_rejections_total{reason="validation"} 1`)
}
