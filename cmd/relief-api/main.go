package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mr1hm/relief-hub/internal/api"
	"github.com/mr1hm/relief-hub/internal/auth"
	"github.com/mr1hm/relief-hub/internal/broadcast"
	"github.com/mr1hm/relief-hub/internal/config"
	"github.com/mr1hm/relief-hub/internal/events"
	"github.com/mr1hm/relief-hub/internal/imagestore"
	"github.com/mr1hm/relief-hub/internal/logging"
	"github.com/mr1hm/relief-hub/internal/metrics"
	"github.com/mr1hm/relief-hub/internal/mlproxy"
	"github.com/mr1hm/relief-hub/internal/notify"
	"github.com/mr1hm/relief-hub/internal/reports"
	"github.com/mr1hm/relief-hub/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger := slog.Default()

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port, "store", cfg.DB.Driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := repository.Open(ctx, cfg.DB)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	images, err := imagestore.New(ctx, cfg.Upload)
	if err != nil {
		logging.Fatalf("Failed to initialize image store: %v", err)
	}
	defer images.Close()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	broadcaster := broadcast.NewBroadcaster()
	broadcaster.OnDrop = m.BroadcastDropped.Inc

	// A nil *KafkaSink must not reach the interface.
	var sink notify.EventSink
	if kafka := events.NewKafkaSink(cfg.Kafka); kafka != nil {
		defer kafka.Close()
		sink = kafka
		slog.Info("publishing reports to kafka", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	}

	notifier := notify.NewNotifier(cfg.Notify, broadcaster, sink, m, logger)
	notifier.Start(ctx)

	svc := reports.NewService(store, images, notifier, m, logger).WithUploadTimeout(cfg.Upload.Timeout)

	sessions, err := openSessions(ctx, cfg.Redis)
	if err != nil {
		logging.Fatalf("Failed to connect to redis: %v", err)
	}
	defer sessions.Close()

	secret := cfg.Session.Secret
	if secret == "" {
		secret = uuid.NewString()
		slog.Warn("SESSION_SECRET not set; using a random secret, sessions will not survive a restart")
	}
	tokens := auth.NewTokenIssuer(secret, cfg.Session.TTL)
	authn := auth.NewAuthenticator(tokens, sessions, cfg.Session.CookieSecure, logger)

	var ml *mlproxy.Client
	if cfg.ML.URL != "" {
		ml = mlproxy.NewClient(cfg.ML.URL, cfg.ML.Timeout, logger)
	}

	uploadDir := ""
	if cfg.Upload.Backend == config.ImageBackendLocal {
		uploadDir = cfg.Upload.Dir
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.Middleware(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.Server.ClientURL},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimitRPS))

	handler := api.NewHandler(api.Options{
		Store:          store,
		Reports:        svc,
		Auth:           authn,
		Broadcaster:    broadcaster,
		ML:             ml,
		Metrics:        m,
		Gatherer:       prometheus.DefaultGatherer,
		Logger:         logger,
		UploadDir:      uploadDir,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		AllowedOrigins: []string{cfg.Server.ClientURL},
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	// Closing subscriber channels ends the websocket loops before Shutdown waits.
	broadcaster.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	notifier.Stop()
	cancel()

	slog.Info("shutdown complete")
}

func openSessions(ctx context.Context, cfg config.RedisConfig) (auth.SessionStore, error) {
	if cfg.Addr == "" {
		slog.Info("REDIS_ADDR not set; session revocations are kept in memory")
		return auth.NewMemorySessions(clockwork.NewRealClock()), nil
	}
	sessions, err := auth.NewRedisSessions(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
