package config

import (
	"testing"
	"time"

	"github.com/amirphl/campaign-callcenter/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("JWT_SECRET_KEY", "0123456789abcdef0123456789abcdef")
}

func TestLoadProductionConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := LoadProductionConfig()
		require.NoError(t, err)
		assert.Equal(t, DefaultCallCenterConfig(), cfg.CallCenter)
		assert.Equal(t, "/metrics", cfg.Metrics.Path)
		assert.Equal(t, "callcenter:", cfg.Cache.RedisPrefix)
	})

	t.Run("call center overrides", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("CALL_CENTER_MAX_ATTEMPTS", "5")
		t.Setenv("CALL_CENTER_CALLBACK_DELAY", "2h")
		t.Setenv("CALL_CENTER_DEFAULT_QUEUE_SIZE", "10")
		t.Setenv("CALL_CENTER_MAX_QUEUE_SIZE", "40")
		t.Setenv("CALL_CENTER_LOCK_TTL", "5s")

		cfg, err := LoadProductionConfig()
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.CallCenter.MaxAttempts)
		assert.Equal(t, 2*time.Hour, cfg.CallCenter.CallbackDelay)
		assert.Equal(t, 10, cfg.CallCenter.DefaultQueueSize)
		assert.Equal(t, 40, cfg.CallCenter.MaxQueueSize)
		assert.Equal(t, 5*time.Second, cfg.CallCenter.LockTTL)
		assert.Equal(t, utils.MaxBatchSize, cfg.CallCenter.MaxBatchSize)
	})

	t.Run("unparseable values fall back to defaults", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("CALL_CENTER_MAX_ATTEMPTS", "three")
		t.Setenv("CALL_CENTER_CALLBACK_DELAY", "tomorrow")

		cfg, err := LoadProductionConfig()
		require.NoError(t, err)
		assert.Equal(t, utils.DefaultMaxCallAttempts, cfg.CallCenter.MaxAttempts)
		assert.Equal(t, utils.DefaultCallbackDelay, cfg.CallCenter.CallbackDelay)
	})

	t.Run("missing secrets fail validation", func(t *testing.T) {
		t.Setenv("DB_PASSWORD", "")
		t.Setenv("JWT_SECRET_KEY", "")

		_, err := LoadProductionConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DB_PASSWORD is required")
		assert.Contains(t, err.Error(), "JWT_SECRET_KEY is required")
	})
}

func TestValidateCallCenterConfig(t *testing.T) {
	valid := func() *ProductionConfig {
		return &ProductionConfig{
			Database: DatabaseConfig{Host: "db", Port: 5432, Name: "callcenter", User: "postgres", Password: "secret"},
			JWT: JWTConfig{
				SecretKey:      "0123456789abcdef0123456789abcdef",
				AccessTokenTTL: time.Hour,
				Issuer:         "callcenter",
				Audience:       "callcenter-api",
			},
			Server: ServerConfig{
				Port:         8080,
				ReadTimeout:  time.Second,
				WriteTimeout: time.Second,
				IdleTimeout:  time.Second,
			},
			CallCenter: DefaultCallCenterConfig(),
		}
	}

	require.NoError(t, ValidateProductionConfig(valid()))

	tests := []struct {
		name   string
		mutate func(*CallCenterConfig)
		want   string
	}{
		{"zero attempts", func(c *CallCenterConfig) { c.MaxAttempts = 0 }, "CALL_CENTER_MAX_ATTEMPTS"},
		{"no callback delay", func(c *CallCenterConfig) { c.CallbackDelay = 0 }, "CALL_CENTER_CALLBACK_DELAY"},
		{"default above max", func(c *CallCenterConfig) { c.DefaultQueueSize = c.MaxQueueSize + 1 }, "CALL_CENTER_DEFAULT_QUEUE_SIZE"},
		{"empty batches", func(c *CallCenterConfig) { c.MaxBatchSize = 0 }, "CALL_CENTER_MAX_BATCH_SIZE"},
		{"no lock ttl", func(c *CallCenterConfig) { c.LockTTL = 0 }, "CALL_CENTER_LOCK_TTL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg.CallCenter)
			err := ValidateProductionConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
