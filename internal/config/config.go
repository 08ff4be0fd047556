package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"

	ImageBackendLocal = "local"
	ImageBackendGCS   = "gcs"
	ImageBackendS3    = "s3"
)

type Config struct {
	Server  ServerConfig
	DB      DatabaseConfig
	Session SessionConfig
	Redis   RedisConfig
	Upload  UploadConfig
	Notify  NotifyConfig
	Kafka   KafkaConfig
	ML      MLConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ClientURL       string // allowed CORS origin
	RateLimitRPS    int
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver        string
	Path          string
	MongoURI      string
	MongoDatabase string
}

type SessionConfig struct {
	Secret       string
	TTL          time.Duration
	CookieSecure bool
}

type RedisConfig struct {
	Addr     string // empty disables redis; revocations stay in memory
	Password string
	DB       int
}

type UploadConfig struct {
	Backend   string
	Dir       string
	MaxBytes  int64
	Timeout   time.Duration
	GCSBucket string
	S3Bucket  string
	S3Region  string
}

type NotifyConfig struct {
	Workers    int
	BufferSize int
}

type KafkaConfig struct {
	Brokers []string // empty disables the event sink
	Topic   string
}

type MLConfig struct {
	URL     string
	Timeout time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	mongoURI := getEnv("MONGO_URI", "")
	defaultDriver := DriverSQLite
	if mongoURI != "" {
		defaultDriver = DriverMongo
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "localhost"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ClientURL:       getEnv("CLIENT_URL", "http://localhost:5173"),
			RateLimitRPS:    getEnvInt("RATE_LIMIT_RPS", 20),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		DB: DatabaseConfig{
			Driver:        getEnv("STORE_DRIVER", defaultDriver),
			Path:          getEnv("DB_PATH", "./data/relief-hub.db"),
			MongoURI:      mongoURI,
			MongoDatabase: getEnv("MONGO_DATABASE", "relief"),
		},
		Session: SessionConfig{
			Secret:       getEnv("SESSION_SECRET", ""),
			TTL:          getEnvDuration("SESSION_TTL", time.Hour),
			CookieSecure: getEnvBool("COOKIE_SECURE", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Upload: UploadConfig{
			Backend:   getEnv("IMAGE_BACKEND", ImageBackendLocal),
			Dir:       getEnv("UPLOAD_DIR", "./uploads"),
			MaxBytes:  int64(getEnvInt("UPLOAD_MAX_BYTES", 10<<20)),
			Timeout:   getEnvDuration("UPLOAD_TIMEOUT", 30*time.Second),
			GCSBucket: getEnv("GCS_BUCKET", ""),
			S3Bucket:  getEnv("S3_BUCKET", ""),
			S3Region:  getEnv("S3_REGION", "us-east-1"),
		},
		Notify: NotifyConfig{
			Workers:    getEnvInt("NOTIFY_WORKERS", 2),
			BufferSize: getEnvInt("NOTIFY_BUFFER", 100),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "disaster-reports"),
		},
		ML: MLConfig{
			URL:     getEnv("ML_SERVICE_URL", ""),
			Timeout: getEnvDuration("ML_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RateLimitRPS < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	switch c.DB.Driver {
	case DriverMongo:
		if c.DB.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORE_DRIVER is mongo")
		}
	case DriverSQLite:
		if c.DB.Path == "" {
			return fmt.Errorf("DB_PATH is required when STORE_DRIVER is sqlite")
		}
	default:
		return fmt.Errorf("invalid store driver: %s", c.DB.Driver)
	}

	if c.Session.Secret == "" && c.Logging.Level != "debug" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if c.Session.TTL < time.Minute {
		return fmt.Errorf("session TTL must be at least 1 minute")
	}

	switch c.Upload.Backend {
	case ImageBackendLocal:
		if c.Upload.Dir == "" {
			return fmt.Errorf("UPLOAD_DIR is required for the local image backend")
		}
	case ImageBackendGCS:
		if c.Upload.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required for the gcs image backend")
		}
	case ImageBackendS3:
		if c.Upload.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 image backend")
		}
	default:
		return fmt.Errorf("invalid image backend: %s", c.Upload.Backend)
	}
	if c.Upload.MaxBytes < 1 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	if c.Upload.Timeout <= 0 {
		return fmt.Errorf("UPLOAD_TIMEOUT must be positive")
	}

	if c.Notify.Workers < 1 || c.Notify.BufferSize < 1 {
		return fmt.Errorf("notify workers and buffer size must be positive")
	}

	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
