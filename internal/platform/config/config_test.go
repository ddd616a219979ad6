package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("test", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.JobTimeout)
	assert.Equal(t, 2*time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, uint32(5), cfg.BreakerConsecutiveFailures)
	assert.Equal(t, "control_workers", cfg.WorkerQueueGroup)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("MAX_RETRIES: 7\nLOG_LEVEL: debug\nSTORE_DRIVER: memory\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.defaults.yaml"), yaml, 0o600))

	t.Setenv("APP_MAX_RETRIES", "2")
	t.Setenv("APP_JOB_TIMEOUT", "5s")

	cfg, err := Load("test", dir)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 5*time.Second, cfg.JobTimeout)
}

func TestLoad_RejectsInvalidSettings(t *testing.T) {
	t.Run("UnknownStoreDriver", func(t *testing.T) {
		t.Setenv("APP_STORE_DRIVER", "mysql")
		_, err := Load("test", t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "STORE_DRIVER")
	})

	t.Run("ZeroMaxRetries", func(t *testing.T) {
		t.Setenv("APP_MAX_RETRIES", "0")
		_, err := Load("test", t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MAX_RETRIES")
	})
}
