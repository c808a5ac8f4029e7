package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearSaleEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HOST", "PORT", "REDIS_URL", "POSTGRES_URL", "CORS_ORIGIN",
		"RATE_LIMIT_MAX", "RATE_LIMIT_WINDOW", "SALE_START_TIME", "SALE_END_TIME",
		"TOTAL_STOCK", "PRODUCT_NAME", "PRODUCT_PRICE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearSaleEnv(t)
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, 100, cfg.TotalStock)
	assert.True(t, cfg.SaleEndTime.After(cfg.SaleStartTime))
}

func TestLoadConfigRejectsStartAfterEnd(t *testing.T) {
	clearSaleEnv(t)
	t.Setenv("SALE_START_TIME", "2026-08-03T13:00:00Z")
	t.Setenv("SALE_END_TIME", "2026-08-03T12:00:00Z")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRejectsNegativeTotalStock(t *testing.T) {
	clearSaleEnv(t)
	t.Setenv("TOTAL_STOCK", "-5")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRejectsMalformedSaleTimes(t *testing.T) {
	clearSaleEnv(t)
	t.Setenv("SALE_START_TIME", "not-a-time")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestParseDurationPhrase(t *testing.T) {
	cases := map[string]time.Duration{
		"1 minute":   time.Minute,
		"30 seconds": 30 * time.Second,
		"2 hours":    2 * time.Hour,
		"90s":        90 * time.Second,
	}
	for input, want := range cases {
		got, err := parseDurationPhrase(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
}
