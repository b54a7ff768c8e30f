package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	// First run writes the default back with owner-only permissions.
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Listen = "0.0.0.0:9000"
	cfg.Timezone = "Europe/London"
	cfg.BasicAuth = &BasicAuthConfig{Username: "crew", Password: "secret"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadPartialConfigNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: 0.0.0.0:9999\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", cfg.Listen)
	assert.Equal(t, "Europe/Warsaw", cfg.Timezone)
	assert.Equal(t, "*/15 * * * *", cfg.WatchCron)
	assert.Equal(t, 50, cfg.MaxUploadMB)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\n\t- not yaml"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestNormalize(t *testing.T) {
	var cfg Config
	cfg.UploadRatePerMin = -5
	cfg.Normalize()

	def := DefaultConfig()
	assert.Equal(t, def.Listen, cfg.Listen)
	assert.Equal(t, def.Tracker, cfg.Tracker)
	assert.Zero(t, cfg.UploadRatePerMin)
	assert.Nil(t, cfg.BasicAuth)
}

func TestSaveErrors(t *testing.T) {
	assert.Error(t, Save("", DefaultConfig()))
	assert.Error(t, Save(filepath.Join(t.TempDir(), "config.yaml"), nil))
}
