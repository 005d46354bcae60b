package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags_OnlySetFlagsOverride(t *testing.T) {
	opts, err := parseFlags([]string{"-fps", "60", "-mirror=false", "-no-tray"})
	require.NoError(t, err)

	o := opts.overrides
	require.NotNil(t, o.CameraFPS)
	assert.Equal(t, 60, *o.CameraFPS)
	require.NotNil(t, o.Mirror)
	assert.False(t, *o.Mirror)
	assert.Nil(t, o.CameraDevice)
	assert.Nil(t, o.ServerAddr)
	assert.Nil(t, o.LogLevel)
	assert.True(t, opts.noTray)
}

func TestParseFlags_RejectsUnknown(t *testing.T) {
	_, err := parseFlags([]string{"-bogus"})
	assert.Error(t, err)
}

func TestLoadConfig_FileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("camera:\n  fps: 24\n  idle_fps: 4\nlogging:\n  level: debug\n"), 0o644))

	opts, err := parseFlags([]string{"-config", path, "-log-level", "warn", "-screen-width", "800", "-screen-height", "600"})
	require.NoError(t, err)

	cfg, err := loadConfig(opts)
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.Camera.FPS)
	assert.Equal(t, 4, cfg.Camera.IdleFPS)
	assert.Equal(t, "warn", cfg.Logging.Level)

	screen, ok := cfg.Screen()
	assert.True(t, ok)
	assert.Equal(t, 800, screen.Width)
	assert.Equal(t, 600, screen.Height)
}

func TestLoadConfig_InvalidOverride(t *testing.T) {
	opts, err := parseFlags([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.NoError(t, err)
	_, err = loadConfig(opts)
	assert.Error(t, err)

	opts, err = parseFlags([]string{"-fps", "0"})
	require.NoError(t, err)
	opts.configPath = filepath.Join(t.TempDir(), "none.yaml")
	require.NoError(t, os.WriteFile(opts.configPath, []byte("# defaults only\n"), 0o644))
	_, err = loadConfig(opts)
	assert.Error(t, err)
}
