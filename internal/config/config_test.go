package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 800.0, cfg.Viewport.Width)
	assert.Equal(t, 25.0, cfg.Render.SizePercent)
	assert.Equal(t, 35.0, cfg.Render.OpacityPercent)
	assert.Equal(t, "catmullrom", cfg.Render.Interpolation)
	assert.Equal(t, BackendDir, cfg.Assets.Backend)
	assert.Equal(t, time.Hour, cfg.Assets.TTL)
	assert.Equal(t, int64(5<<20), cfg.Assets.MaxBytes)
	assert.Equal(t, "sigil1.png", cfg.Assets.DefaultSigil)
	assert.Empty(t, ConfigFile())
}

func TestLoad_WithYAMLFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	yaml := `
logLevel: debug
viewport:
  width: 400
render:
  sizePercent: 50
assets:
  backend: sqlite
  ttl: 30m
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sigil-overlay.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 400.0, cfg.Viewport.Width)
	assert.Equal(t, 50.0, cfg.Render.SizePercent)
	assert.Equal(t, 35.0, cfg.Render.OpacityPercent, "unset keys keep defaults")
	assert.Equal(t, BackendSQLite, cfg.Assets.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Assets.TTL)
	assert.Equal(t, filepath.Join(dir, "sigil-overlay.yaml"), ConfigFile())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("SIGIL_RENDER_OPACITYPERCENT", "80")
	t.Setenv("SIGIL_ASSETS_DEFAULTSIGIL", "sigil2.png")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 80.0, cfg.Render.OpacityPercent)
	assert.Equal(t, "sigil2.png", cfg.Assets.DefaultSigil)
}

func TestLoad_InvalidBackend(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sigil-overlay.json"), []byte(`{"assets":{"backend":"s3"}}`), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assets.backend")
}

func TestLoad_MalformedFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sigil-overlay.json"), []byte(`{"logLevel":`), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}
