package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port string
	Env  string

	// EncryptionSecret seeds the key for credential encryption at rest.
	EncryptionSecret string

	// ProxyPool lists outbound proxy URLs tried after direct egress when
	// an upstream interposes bot-defense responses.
	ProxyPool []string

	// DemoMode gates the fixture-data fallback for marketplace clients.
	// It must never be enabled in production.
	DemoMode bool

	// CacheDir is where on-disk category snapshots are written.
	CacheDir string

	DB     DatabaseConfig
	Redis  RedisConfig
	Sync   SyncConfig
	Worker WorkerConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// SyncConfig tunes sync run behavior.
type SyncConfig struct {
	PageSize    int
	HTTPTimeout time.Duration
}

// WorkerConfig contains interval configuration for background workers.
type WorkerConfig struct {
	SyncInterval time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; ignore error if file is missing so that production
	// environments relying solely on real environment variables keep working.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.EncryptionSecret = getEnv("ENCRYPTION_SECRET", "")
	cfg.CacheDir = getEnv("CACHE_DIR", "data/cache")
	cfg.DemoMode = getEnv("DEMO_MODE", "false") == "true"

	if pool := getEnv("PROXY_POOL", ""); pool != "" {
		for _, p := range strings.Split(pool, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.ProxyPool = append(cfg.ProxyPool, p)
			}
		}
	}

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Sync tuning
	cfg.Sync = SyncConfig{
		PageSize: getEnvInt("SYNC_PAGE_SIZE", 50),
	}

	var err error
	if cfg.Sync.HTTPTimeout, err = parseDurationEnv("HTTP_TIMEOUT", "30s"); err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	if cfg.Worker.SyncInterval, err = parseDurationEnv("SYNC_INTERVAL", "30m"); err != nil {
		return nil, fmt.Errorf("invalid SYNC_INTERVAL: %w", err)
	}

	// Basic validation for DB parameters — keeps messages concise and helpful.
	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
		return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}

	if cfg.EncryptionSecret == "" {
		return nil, errors.New("ENCRYPTION_SECRET must be set for credential storage")
	}

	if cfg.DemoMode && cfg.Env == "production" {
		return nil, errors.New("DEMO_MODE must not be enabled in production")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func parseDurationEnv(key, defaultValue string) (time.Duration, error) {
	return time.ParseDuration(getEnv(key, defaultValue))
}
