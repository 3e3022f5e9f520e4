package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreBolt     = "bolt"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// DefaultJWTSecret signs session tokens when JWT_SECRET is unset. It is refused in production mode.
const DefaultJWTSecret = "change-me"

// Config is the terminal configuration, read from the environment and an optional .env file.
type Config struct {
	Port string

	Logger struct {
		Mode       string // development | production
		Output     string // stdout | stderr
		FileEnable bool
		Filename   string
	}

	Billing struct {
		TaxRate   decimal.Decimal
		FeeAmount decimal.Decimal
	}

	Store struct {
		Driver      string
		Path        string
		DatabaseURL string
	}

	Auth struct {
		JWTSecret  string
		SessionTTL time.Duration
	}

	Assist struct {
		APIKey            string
		ImageModel        string
		TextModel         string
		VideoModel        string
		Concurrency       int
		Timeout           time.Duration
		VideoPollInterval time.Duration
		VideoTimeout      time.Duration
		FillImagesOnStart bool
	}
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function. Unset keys take their defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{}
	cfg.Port = get("APP_PORT", "8080")

	cfg.Logger.Mode = get("LOG_MODE", "development")
	cfg.Logger.Output = get("LOG_OUTPUT", "stdout")
	cfg.Logger.FileEnable = cast.ToBool(get("LOG_FILE_ENABLE", "false"))
	cfg.Logger.Filename = get("LOG_FILE", "logs/billing.log")

	taxRate, err := decimal.NewFromString(get("TAX_RATE", "0.18"))
	if err != nil {
		return nil, fmt.Errorf("invalid TAX_RATE: %w", err)
	}
	fee, err := decimal.NewFromString(get("FEE_AMOUNT", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid FEE_AMOUNT: %w", err)
	}
	cfg.Billing.TaxRate = taxRate
	cfg.Billing.FeeAmount = fee

	cfg.Store.Driver = strings.ToLower(get("STORE_DRIVER", StoreBolt))
	cfg.Store.Path = get("STORE_PATH", "billing.db")
	cfg.Store.DatabaseURL = get("DATABASE_URL", "")

	cfg.Auth.JWTSecret = get("JWT_SECRET", DefaultJWTSecret)
	cfg.Auth.SessionTTL = cast.ToDuration(get("SESSION_TTL", "12h"))

	cfg.Assist.APIKey = get("GEMINI_API_KEY", getenv("API_KEY"))
	cfg.Assist.ImageModel = get("IMAGE_MODEL", "gemini-2.5-flash-image")
	cfg.Assist.TextModel = get("TEXT_MODEL", "gemini-2.5-flash")
	cfg.Assist.VideoModel = get("VIDEO_MODEL", "veo-3.1-fast-generate-preview")
	cfg.Assist.Concurrency = cast.ToInt(get("ASSIST_CONCURRENCY", "4"))
	cfg.Assist.Timeout = cast.ToDuration(get("ASSIST_TIMEOUT", "60s"))
	cfg.Assist.VideoPollInterval = cast.ToDuration(get("VIDEO_POLL_INTERVAL", "10s"))
	cfg.Assist.VideoTimeout = cast.ToDuration(get("VIDEO_TIMEOUT", "10m"))
	cfg.Assist.FillImagesOnStart = cast.ToBool(get("FILL_IMAGES_ON_START", "true"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the billing core cannot work with.
func (c *Config) Validate() error {
	if c.Billing.TaxRate.IsNegative() {
		return fmt.Errorf("TAX_RATE must not be negative")
	}
	if c.Billing.FeeAmount.IsNegative() {
		return fmt.Errorf("FEE_AMOUNT must not be negative")
	}
	switch c.Store.Driver {
	case StoreBolt, StoreMemory:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("invalid STORE_DRIVER: %s (allowed: bolt, postgres, memory)", c.Store.Driver)
	}
	if c.Assist.Concurrency <= 0 {
		c.Assist.Concurrency = 1
	}
	if c.Assist.VideoPollInterval <= 0 {
		return fmt.Errorf("VIDEO_POLL_INTERVAL must be positive")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.Logger.Mode == "production" && c.Auth.JWTSecret == DefaultJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set in production mode")
	}
	return nil
}
