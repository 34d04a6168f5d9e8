package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned when GOOGLE_API_KEY is not set.
var ErrMissingAPIKey = errors.New("GOOGLE_API_KEY missing")

const defaultPlacesEndpoint = "https://maps.googleapis.com/maps/api/place/details/json"

// Config holds all application configuration. It is built once in main and
// passed explicitly into the refresher.
type Config struct {
	GoogleAPIKey   string
	PlacesEndpoint string
	Language       string
	HTTPTimeout    time.Duration

	ClientsPath   string
	DataDir       string
	CacheDuration time.Duration
	RateLimitMs   int

	SnapshotDriver string
	SnapshotDSN    string
	MaxRetries     int

	ReportCSVPath string

	LogLevel string
}

// Default returns a Config with every default filled in except the API key.
func Default() *Config {
	return &Config{
		PlacesEndpoint: defaultPlacesEndpoint,
		ClientsPath:    "clients.json",
		DataDir:        "data",
		CacheDuration:  24 * time.Hour,
		RateLimitMs:    1000,
		MaxRetries:     3,
		LogLevel:       "info",
	}
}

// Load reads the given .env files (or ./.env when none are given) and
// overlays environment variables on the defaults. It checks every setting
// except the API key; commands that call the API must also call Validate.
func Load(envFiles ...string) (*Config, error) {
	// A missing ./.env is normal under cron; an explicitly named file is not.
	if err := godotenv.Load(envFiles...); err != nil && len(envFiles) > 0 {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	d := Default()
	cfg := &Config{
		GoogleAPIKey:   os.Getenv("GOOGLE_API_KEY"),
		PlacesEndpoint: getEnv("PLACES_ENDPOINT", d.PlacesEndpoint),
		Language:       getEnv("PLACES_LANGUAGE", ""),
		HTTPTimeout:    getEnvDuration("HTTP_TIMEOUT", d.HTTPTimeout),

		ClientsPath:   getEnv("CLIENTS_PATH", d.ClientsPath),
		DataDir:       getEnv("DATA_DIR", d.DataDir),
		CacheDuration: getEnvDuration("CACHE_DURATION", d.CacheDuration),
		RateLimitMs:   getEnvInt("RATE_LIMIT_MS", d.RateLimitMs),

		SnapshotDriver: getEnv("SNAPSHOT_DRIVER", ""),
		SnapshotDSN:    getEnv("SNAPSHOT_DSN", ""),
		MaxRetries:     getEnvInt("MAX_RETRIES", d.MaxRetries),

		ReportCSVPath: getEnv("REPORT_CSV_PATH", ""),

		LogLevel: getEnv("LOG_LEVEL", d.LogLevel),
	}

	if err := cfg.validateSettings(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the API key is present and every setting is in range.
func (c *Config) Validate() error {
	if c.GoogleAPIKey == "" {
		return ErrMissingAPIKey
	}
	return c.validateSettings()
}

func (c *Config) validateSettings() error {
	if c.CacheDuration <= 0 {
		return fmt.Errorf("config: cache duration must be positive, got %v", c.CacheDuration)
	}
	if c.RateLimitMs < 0 {
		return fmt.Errorf("config: rate limit must not be negative, got %d", c.RateLimitMs)
	}
	switch c.SnapshotDriver {
	case "":
	case "postgres", "sqlite":
		if c.SnapshotDSN == "" {
			return fmt.Errorf("config: SNAPSHOT_DSN required for driver %q", c.SnapshotDriver)
		}
	default:
		return fmt.Errorf("config: unknown snapshot driver %q", c.SnapshotDriver)
	}
	return nil
}

// RateLimit returns the per-position start stagger.
func (c *Config) RateLimit() time.Duration {
	return time.Duration(c.RateLimitMs) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
