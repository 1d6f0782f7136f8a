package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the upload pipeline binaries.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Extractor ExtractorConfig
	Worker    WorkerConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	MaxUploadBytes  int64
	RateLimitPerMin int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	UploadRetries int
	UploadBackoff time.Duration
	SignedURLTTL  time.Duration
}

type ExtractorConfig struct {
	BaseURL string
	Timeout time.Duration
}

type WorkerConfig struct {
	Count             int
	MaxRetries        int
	WaitTimeout       time.Duration
	StatusTTL         time.Duration
	ReconcileInterval time.Duration
	MetricsPort       int
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value
// is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("SERVER_PORT", 8080),
			Env:             envString("APP_ENV", "development"),
			MaxUploadBytes:  envInt64("MAX_UPLOAD_BYTES", 50*1024*1024),
			RateLimitPerMin: envInt("RATE_LIMIT_PER_MIN", 60),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Storage: StorageConfig{
			Endpoint:      os.Getenv("STORAGE_ENDPOINT"),
			AccessKey:     os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey:     os.Getenv("STORAGE_SECRET_KEY"),
			Bucket:        envString("STORAGE_BUCKET", "document-uploads"),
			Region:        envString("STORAGE_REGION", "auto"),
			UseSSL:        envBool("STORAGE_USE_SSL", true),
			UploadRetries: envInt("STORAGE_UPLOAD_RETRIES", 3),
			UploadBackoff: envDuration("STORAGE_UPLOAD_BACKOFF", time.Second),
			SignedURLTTL:  envDuration("STORAGE_SIGNED_URL_TTL", 7*24*time.Hour),
		},
		Extractor: ExtractorConfig{
			BaseURL: os.Getenv("EXTRACTOR_BASE_URL"),
			Timeout: envDuration("EXTRACTOR_TIMEOUT", 10*time.Minute),
		},
		Worker: WorkerConfig{
			Count:             envInt("WORKER_COUNT", 1),
			MaxRetries:        envInt("WORKER_MAX_RETRIES", 3),
			WaitTimeout:       envDuration("WORKER_WAIT_TIMEOUT", 5*time.Second),
			StatusTTL:         envDuration("WORKER_STATUS_TTL", 24*time.Hour),
			ReconcileInterval: envDuration("WORKER_RECONCILE_INTERVAL", time.Minute),
			MetricsPort:       envInt("WORKER_METRICS_PORT", 9090),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Storage.Endpoint == "" {
		return fmt.Errorf("STORAGE_ENDPOINT is required")
	}
	if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
		return fmt.Errorf("STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required")
	}
	if c.Storage.UploadRetries < 1 {
		return fmt.Errorf("STORAGE_UPLOAD_RETRIES must be at least 1, got %d", c.Storage.UploadRetries)
	}

	if c.Extractor.BaseURL == "" {
		return fmt.Errorf("EXTRACTOR_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Extractor.BaseURL, "http://") && !strings.HasPrefix(c.Extractor.BaseURL, "https://") {
		return fmt.Errorf("EXTRACTOR_BASE_URL must start with http:// or https://, got %q", c.Extractor.BaseURL)
	}

	if c.Worker.MaxRetries < 0 {
		return fmt.Errorf("WORKER_MAX_RETRIES must not be negative, got %d", c.Worker.MaxRetries)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
