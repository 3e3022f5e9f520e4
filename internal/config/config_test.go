package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgemunganga/retail-billing/internal/config"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := config.FromEnv(envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "0.18", cfg.Billing.TaxRate.String())
	assert.Equal(t, "50", cfg.Billing.FeeAmount.String())
	assert.Equal(t, config.StoreBolt, cfg.Store.Driver)
	assert.Equal(t, 10*time.Second, cfg.Assist.VideoPollInterval)
	assert.Equal(t, "gemini-2.5-flash", cfg.Assist.TextModel)
	assert.True(t, cfg.Assist.FillImagesOnStart)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := config.FromEnv(envOf(map[string]string{
		"APP_PORT":           "9090",
		"TAX_RATE":           "0.05",
		"FEE_AMOUNT":         "120.50",
		"STORE_DRIVER":       "MEMORY",
		"ASSIST_CONCURRENCY": "8",
		"API_KEY":            "from-api-key",
		"LOG_FILE_ENABLE":    "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "0.05", cfg.Billing.TaxRate.String())
	assert.Equal(t, "120.5", cfg.Billing.FeeAmount.String())
	assert.Equal(t, config.StoreMemory, cfg.Store.Driver)
	assert.Equal(t, 8, cfg.Assist.Concurrency)
	assert.Equal(t, "from-api-key", cfg.Assist.APIKey)
	assert.True(t, cfg.Logger.FileEnable)
}

func TestFromEnv_GeminiKeyWins(t *testing.T) {
	cfg, err := config.FromEnv(envOf(map[string]string{
		"API_KEY":        "fallback",
		"GEMINI_API_KEY": "primary",
	}))
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.Assist.APIKey)
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"bad tax":          {"TAX_RATE": "abc"},
		"negative fee":     {"FEE_AMOUNT": "-1"},
		"unknown driver":   {"STORE_DRIVER": "redis"},
		"postgres no dsn":  {"STORE_DRIVER": "postgres"},
		"zero poll period": {"VIDEO_POLL_INTERVAL": "0s"},
		"default secret":   {"LOG_MODE": "production"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.FromEnv(envOf(env))
			assert.Error(t, err)
		})
	}
}

func TestFromEnv_ProductionWithSecret(t *testing.T) {
	cfg, err := config.FromEnv(envOf(map[string]string{
		"LOG_MODE":   "production",
		"JWT_SECRET": "s3cret",
	}))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}
