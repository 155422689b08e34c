package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LODESTAR_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8710, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, 0, cfg.ScoringWorkers)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, filepath.Join(cfg.DataDir, "backups"), cfg.BackupDir)
	assert.False(t, cfg.S3.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LODESTAR_DATA_DIR", t.TempDir())
	t.Setenv("LODESTAR_PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("SCORING_WORKERS", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, 4, cfg.ScoringWorkers)
	assert.Equal(t, 4, cfg.EffectiveScoringWorkers())
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("LODESTAR_DATA_DIR", t.TempDir())
	t.Setenv("LODESTAR_PORT", "70000")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_S3EnabledRequiresBucket(t *testing.T) {
	t.Setenv("LODESTAR_DATA_DIR", t.TempDir())
	t.Setenv("S3_BACKUP_ENABLED", "true")
	t.Setenv("S3_BACKUP_BUCKET", "")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("S3_BACKUP_BUCKET", "lodestar-backups")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.S3.Enabled)
	assert.Equal(t, "lodestar-backups", cfg.S3.Bucket)
}

func TestEffectiveScoringWorkers_ZeroMeansNumCPU(t *testing.T) {
	cfg := &Config{ScoringWorkers: 0}
	assert.Greater(t, cfg.EffectiveScoringWorkers(), 0)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "hello")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_BAD_INT", "not-a-number")

	assert.Equal(t, "hello", getEnv("TEST_STR", "fallback"))
	assert.Equal(t, "fallback", getEnv("TEST_MISSING", "fallback"))
	assert.Equal(t, 42, getEnvAsInt("TEST_INT", 7))
	assert.Equal(t, 7, getEnvAsInt("TEST_BAD_INT", 7))
	assert.True(t, getEnvAsBool("TEST_BOOL", false))
	assert.False(t, getEnvAsBool("TEST_MISSING", false))
}
