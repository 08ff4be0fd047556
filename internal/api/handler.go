package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mr1hm/relief-hub/internal/auth"
	"github.com/mr1hm/relief-hub/internal/broadcast"
	"github.com/mr1hm/relief-hub/internal/metrics"
	"github.com/mr1hm/relief-hub/internal/mlproxy"
	"github.com/mr1hm/relief-hub/internal/reports"
	"github.com/mr1hm/relief-hub/internal/repository"
)

const (
	defaultMaxUploadBytes = 10 << 20
	readyTimeout          = 2 * time.Second
)

// Options carries the handler's collaborators. ML, Gatherer and UploadDir
// are optional; the rest are required.
type Options struct {
	Store          repository.Store
	Reports        *reports.Service
	Auth           *auth.Authenticator
	Broadcaster    *broadcast.Broadcaster
	ML             *mlproxy.Client
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Logger         *slog.Logger
	UploadDir      string   // served at /uploads when set
	MaxUploadBytes int64    // image size limit
	AllowedOrigins []string // for the websocket handshake; "*" allows any
}

type Handler struct {
	store       repository.Store
	reports     *reports.Service
	auth        *auth.Authenticator
	broadcaster *broadcast.Broadcaster
	ml          *mlproxy.Client
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
	logger      *slog.Logger
	uploadDir   string
	maxUpload   int64
	upgrader    websocket.Upgrader
}

func NewHandler(opts Options) *Handler {
	h := &Handler{
		store:       opts.Store,
		reports:     opts.Reports,
		auth:        opts.Auth,
		broadcaster: opts.Broadcaster,
		ml:          opts.ML,
		metrics:     opts.Metrics,
		gatherer:    opts.Gatherer,
		logger:      opts.Logger,
		uploadDir:   opts.UploadDir,
		maxUpload:   opts.MaxUploadBytes,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.metrics == nil {
		h.metrics = metrics.NewMetricsForTesting()
	}
	if h.maxUpload <= 0 {
		h.maxUpload = defaultMaxUploadBytes
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/readyz", h.ready)
	if h.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}
	if h.uploadDir != "" {
		r.Static("/uploads", h.uploadDir)
	}

	api := r.Group("/api")
	api.Use(h.auth.Identify())

	disasters := api.Group("/disasters")
	disasters.POST("", h.createDisaster)
	disasters.POST("/report", h.createDisaster)
	disasters.GET("", h.listDisasters)
	disasters.GET("/all", h.listDisasters)
	disasters.GET("/geojson", h.disastersGeoJSON)
	disasters.GET("/dashboard", h.dashboard)
	disasters.GET("/dashboard/:id", h.dashboardDetail)
	disasters.GET("/map", h.mapView)

	donations := api.Group("/donations")
	donations.POST("", h.createDonation)
	donations.POST("/donate", h.createDonation)
	donations.GET("", h.listDonations)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.register)
	authGroup.POST("/login", h.login)
	authGroup.POST("/logout", h.logout)
	authGroup.GET("/me", h.auth.RequireSession(), h.me)

	api.GET("/events", h.events)
	api.POST("/ml/predict", h.predict)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ready reports whether the backing store answers.
func (h *Handler) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
