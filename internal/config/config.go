package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // DATE_TIMEZONE must resolve in minimal images

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/noise-dashboard/internal/noise"
	"github.com/i474232898/noise-dashboard/internal/upstream"
)

var validate = validator.New()

type AppConfig struct {
	// Upstream noise backend.
	UpstreamBaseURL string        `validate:"required,url"`
	UpstreamWSURL   string        `validate:"required,url"`
	HTTPTimeout     time.Duration `validate:"gt=0"`
	// UpstreamMaxRetries of 0 makes a failed REST call fail at once.
	UpstreamMaxRetries int `validate:"gte=0,lte=10"`

	// History fetches and retention.
	HistoryLimit     int `validate:"gte=1,lte=2000"` // backend caps limit at 2000
	HistoryMaxPoints int `validate:"gte=0"`          // 0 = unlimited

	// SnapshotRefreshInterval controls how often the full snapshot is reloaded (0 = never).
	SnapshotRefreshInterval time.Duration `validate:"gte=0"`
	SnapshotRejectStale     bool

	ColorScale noise.ColorScale
	Location   *time.Location

	// Real-time feed reconnection.
	FeedReconnect bool
	FeedBackoff   upstream.BackoffConfig

	CORSAllowOrigins string
	Port             string `validate:"required,numeric"`
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.UpstreamBaseURL = strings.TrimRight(getenvDefault("UPSTREAM_BASE_URL", "http://localhost:8000"), "/")
	cfg.UpstreamWSURL = os.Getenv("UPSTREAM_WS_URL")
	if cfg.UpstreamWSURL == "" {
		cfg.UpstreamWSURL, err = upstream.WebSocketURL(cfg.UpstreamBaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid UPSTREAM_BASE_URL: %w", err)
		}
	}

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	cfg.UpstreamMaxRetries = getenvInt("UPSTREAM_MAX_RETRIES", 3)

	cfg.HistoryLimit = getenvInt("HISTORY_LIMIT", 1000)
	cfg.HistoryMaxPoints = getenvInt("HISTORY_MAX_POINTS", 0)

	if cfg.SnapshotRefreshInterval, err = getenvDuration("SNAPSHOT_REFRESH_INTERVAL", "5m"); err != nil {
		return nil, err
	}
	cfg.SnapshotRejectStale = getenvBool("SNAPSHOT_REJECT_STALE", false)

	cfg.ColorScale = noise.ColorScale{
		MinDB: getenvFloat("COLOR_MIN_DB", noise.DefaultMinDB),
		MaxDB: getenvFloat("COLOR_MAX_DB", noise.DefaultMaxDB),
	}
	if cfg.ColorScale.MaxDB <= cfg.ColorScale.MinDB {
		return nil, fmt.Errorf("COLOR_MAX_DB (%v) must be greater than COLOR_MIN_DB (%v)", cfg.ColorScale.MaxDB, cfg.ColorScale.MinDB)
	}

	tz := getenvDefault("DATE_TIMEZONE", "UTC")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid DATE_TIMEZONE: %w", err)
	}

	cfg.FeedReconnect = getenvBool("FEED_RECONNECT", true)
	cfg.FeedBackoff.MaxRetries = getenvInt("FEED_MAX_RETRIES", 0)
	if cfg.FeedBackoff.InitialInterval, err = getenvDuration("FEED_RETRY_INITIAL", "1s"); err != nil {
		return nil, err
	}
	if cfg.FeedBackoff.MaxInterval, err = getenvDuration("FEED_RETRY_MAX", "30s"); err != nil {
		return nil, err
	}

	cfg.CORSAllowOrigins = getenvDefault("CORS_ALLOW_ORIGINS", "*")
	cfg.Port = getenvDefault("PORT", "8080")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// RESTBackoff is the retry policy for upstream REST calls.
func (c *AppConfig) RESTBackoff() upstream.BackoffConfig {
	return upstream.BackoffConfig{
		MaxRetries:      c.UpstreamMaxRetries,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
