package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

type Config struct {
	PublicAPIURL     string
	RequestTimeout   time.Duration
	AuthRateLimitRPM int
	StoreDriver      string
	StoreDir         string
	AuthStorageKey   string
	AssetStorageKey  string
	LogLevel         string
	LogFormat        string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		PublicAPIURL:     getEnv("PUBLIC_API_URL", "http://localhost:8080"),
		RequestTimeout:   getDuration("REQUEST_TIMEOUT", 0),
		AuthRateLimitRPM: getInt("AUTH_RATE_LIMIT_RPM", 0),
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", DriverMemory)),
		StoreDir:         getEnv("STORE_DIR", "./data"),
		AuthStorageKey:   getEnv("AUTH_STORAGE_KEY", "localhaven-auth"),
		AssetStorageKey:  getEnv("ASSET_STORAGE_KEY", "localhaven-cms"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "pretty"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.PublicAPIURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("PUBLIC_API_URL must be an absolute http(s) URL, got %q", c.PublicAPIURL)
	}

	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT cannot be negative")
	}

	if c.AuthRateLimitRPM < 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT_RPM cannot be negative")
	}

	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.StoreDir) == "" {
			return fmt.Errorf("STORE_DIR cannot be empty for the sqlite driver")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverMemory, DriverSQLite, c.StoreDriver)
	}

	if strings.TrimSpace(c.AuthStorageKey) == "" || strings.TrimSpace(c.AssetStorageKey) == "" {
		return fmt.Errorf("AUTH_STORAGE_KEY and ASSET_STORAGE_KEY cannot be empty")
	}

	if c.AuthStorageKey == c.AssetStorageKey {
		return fmt.Errorf("AUTH_STORAGE_KEY and ASSET_STORAGE_KEY must differ")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}
