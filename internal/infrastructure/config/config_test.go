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
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Detection.MinHistory)
	assert.Equal(t, 10, cfg.Detection.VelocityMaxCount)
	assert.Equal(t, 10*time.Minute, cfg.Detection.VelocityWindow)
	assert.InDelta(t, 0.3, cfg.Detection.DeviationDelta, 0.0001)
	assert.Equal(t, 15*time.Minute, cfg.Detection.AlertCooldown)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: production
server:
  port: 9999
detection:
  velocity_max_count: 25
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Detection.VelocityMaxCount)
	// Untouched keys keep their defaults.
	assert.Equal(t, 50, cfg.Detection.HistoryLimit)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: staging\n"), 0o600))

	t.Setenv("RIB_ENVIRONMENT", "production")
	t.Setenv("RIB_VERSION", "1.4.2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "1.4.2", cfg.Version)
}
