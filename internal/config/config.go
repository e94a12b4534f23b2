// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all chartdeck configuration, for both the data server and the
// deck loader. The loader tunables are deliberately configuration rather than
// constants: the essential-file set and the readiness threshold have both
// changed over the product's life and are expected to keep changing.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Storage backend ("local" or "s3")
	StorageBackend   string
	LocalStoragePath string

	// S3 storage
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool

	// Round persistence (optional; rounds endpoints disabled when empty)
	DatabaseURL string

	// Auth (optional; API is open when empty)
	JWTSecret string

	// Client
	ServerURL string
	AuthToken string

	// Loader
	EssentialFiles      []string
	PointsFile          string
	AfterFile           string
	ReadyMinFiles       int
	QuickBatchSize      int
	BackgroundBatchSize int
	MaxHistoryPerTicker int
	FetchConcurrency    int
	ManifestTTL         time.Duration
	LoadTimeout         time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:  envOr("CHARTDECK_LISTEN_ADDR", ":8080"),
		MetricsAddr: envOr("CHARTDECK_METRICS_ADDR", ":9090"),
		LogLevel:    envOr("CHARTDECK_LOG_LEVEL", "info"),
		LogFormat:   envOr("CHARTDECK_LOG_FORMAT", "json"),

		StorageBackend:   envOr("CHARTDECK_STORAGE_BACKEND", "local"),
		LocalStoragePath: envOr("CHARTDECK_LOCAL_STORAGE_PATH", "/data/decks"),

		S3Endpoint:  envOr("CHARTDECK_S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:    envOr("CHARTDECK_S3_BUCKET", "chartdeck"),
		S3AccessKey: envOr("CHARTDECK_S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey: envOr("CHARTDECK_S3_SECRET_KEY", "minioadmin"),
		S3Region:    envOr("CHARTDECK_S3_REGION", "us-east-1"),
		S3UseSSL:    envBool("CHARTDECK_S3_USE_SSL", false),

		DatabaseURL: envOr("CHARTDECK_DATABASE_URL", ""),
		JWTSecret:   envOr("CHARTDECK_JWT_SECRET", ""),

		ServerURL: envOr("CHARTDECK_SERVER_URL", "http://localhost:8080"),
		AuthToken: envOr("CHARTDECK_TOKEN", ""),

		EssentialFiles:      envList("CHARTDECK_ESSENTIAL_FILES", []string{"D.json", "M.json"}),
		PointsFile:          envOr("CHARTDECK_POINTS_FILE", "points.json"),
		AfterFile:           envOr("CHARTDECK_AFTER_FILE", "after.json"),
		ReadyMinFiles:       envInt("CHARTDECK_READY_MIN_FILES", 1),
		QuickBatchSize:      envInt("CHARTDECK_QUICK_BATCH_SIZE", 12),
		BackgroundBatchSize: envInt("CHARTDECK_BACKGROUND_BATCH_SIZE", 60),
		MaxHistoryPerTicker: envInt("CHARTDECK_MAX_HISTORY_PER_TICKER", 3),
		FetchConcurrency:    envInt("CHARTDECK_FETCH_CONCURRENCY", 10),
		ManifestTTL:         envDuration("CHARTDECK_MANIFEST_TTL", 5*time.Minute),
		LoadTimeout:         envDuration("CHARTDECK_LOAD_TIMEOUT", 30*time.Second),
	}

	if cfg.StorageBackend != "local" && cfg.StorageBackend != "s3" {
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
	if len(cfg.EssentialFiles) == 0 {
		return nil, fmt.Errorf("CHARTDECK_ESSENTIAL_FILES must not be empty")
	}
	if cfg.ReadyMinFiles < 1 {
		return nil, fmt.Errorf("CHARTDECK_READY_MIN_FILES must be >= 1")
	}
	if cfg.QuickBatchSize < 1 || cfg.BackgroundBatchSize < 1 {
		return nil, fmt.Errorf("batch sizes must be >= 1")
	}
	if cfg.FetchConcurrency < 1 {
		return nil, fmt.Errorf("CHARTDECK_FETCH_CONCURRENCY must be >= 1")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
