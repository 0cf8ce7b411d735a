package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/maltedev/ltb-sync/internal/translate"
)

var ErrMissingStore = errors.New("inventory store is not configured: set DATABASE_URL or DB_HOST and DB_NAME")

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Remote    RemoteConfig
	Scraper   ScraperConfig
	Browser   BrowserConfig
	Translate TranslateConfig
	Drive     DriveConfig
	Sync      SyncConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port            int
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32

	// Zero lifetimes keep the pgxpool defaults.
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	StreamMaxLen int64
}

// Enabled reports whether the outbox relay has somewhere to publish.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type RemoteConfig struct {
	BaseURL     string
	ListingPath string
}

type ScraperConfig struct {
	Timeout           time.Duration
	Concurrency       int
	RateLimitMin      time.Duration
	RateLimitMax      time.Duration
	RequestsPerSecond float64
	Burst             int
}

type BrowserConfig struct {
	Enabled bool
	Timeout time.Duration
}

type TranslateConfig struct {
	URL      string
	LangPair string
}

type DriveConfig struct {
	CredentialsFile string
	FolderID        string
}

func (d DriveConfig) Enabled() bool {
	return d.CredentialsFile != ""
}

type SyncConfig struct {
	Interval time.Duration
}

type LoggingConfig struct {
	Level string
}

// SlogLevel maps LOG_LEVEL onto a slog level; unknown values mean info.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8080),
			AllowedOrigins:  getStringSliceOrDefault("CORS_ALLOWED_ORIGINS", nil),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:      getEnvOrDefault("DATABASE_URL", ""),
			Host:     getEnvOrDefault("DB_HOST", ""),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Name:     getEnvOrDefault("DB_NAME", ""),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
			MinConns: int32(getIntOrDefault("DB_MIN_CONNS", 0)),

			MaxConnLifetime: getDurationOrDefault("DB_MAX_CONN_LIFETIME", 0),
			MaxConnIdleTime: getDurationOrDefault("DB_MAX_CONN_IDLE_TIME", 0),
		},
		Redis: RedisConfig{
			Addr:         getEnvOrDefault("REDIS_ADDR", ""),
			Password:     getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:           getIntOrDefault("REDIS_DB", 0),
			StreamMaxLen: int64(getIntOrDefault("REDIS_STREAM_MAXLEN", 0)),
		},
		Remote: RemoteConfig{
			BaseURL:     getEnvOrDefault("REMOTE_BASE_URL", "https://ltb.ge"),
			ListingPath: getEnvOrDefault("REMOTE_LISTING_PATH", "/ge/shop"),
		},
		Scraper: ScraperConfig{
			Timeout:           getDurationOrDefault("SCRAPER_TIMEOUT", 30*time.Second),
			Concurrency:       getIntOrDefault("SCRAPER_CONCURRENCY", 1),
			RateLimitMin:      getDurationOrDefault("SCRAPER_RATE_LIMIT_MIN", 0),
			RateLimitMax:      getDurationOrDefault("SCRAPER_RATE_LIMIT_MAX", 0),
			RequestsPerSecond: getFloatOrDefault("SCRAPER_REQUESTS_PER_SECOND", 0),
			Burst:             getIntOrDefault("SCRAPER_BURST", 1),
		},
		Browser: BrowserConfig{
			Enabled: getBoolOrDefault("BROWSER_ENABLED", false),
			Timeout: getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
		},
		Translate: TranslateConfig{
			URL:      getEnvOrDefault("TRANSLATE_URL", translate.DefaultURL),
			LangPair: getEnvOrDefault("TRANSLATE_LANGPAIR", translate.DefaultLangPair),
		},
		Drive: DriveConfig{
			CredentialsFile: getEnvOrDefault("DRIVE_CREDENTIALS_FILE", ""),
			FolderID:        getEnvOrDefault("DRIVE_FOLDER_ID", ""),
		},
		Sync: SyncConfig{
			Interval: getDurationOrDefault("SYNC_INTERVAL", 0),
		},
		Logging: LoggingConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.URL == "" && (c.Database.Host == "" || c.Database.Name == "") {
		return ErrMissingStore
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Scraper.Concurrency < 1 {
		return fmt.Errorf("SCRAPER_CONCURRENCY must be at least 1")
	}

	if c.Scraper.RateLimitMin > c.Scraper.RateLimitMax {
		return fmt.Errorf("SCRAPER_RATE_LIMIT_MIN cannot be greater than SCRAPER_RATE_LIMIT_MAX")
	}

	if c.Scraper.RequestsPerSecond < 0 {
		return fmt.Errorf("SCRAPER_REQUESTS_PER_SECOND cannot be negative")
	}

	if c.Sync.Interval < 0 {
		return fmt.Errorf("SYNC_INTERVAL cannot be negative")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
