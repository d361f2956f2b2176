package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuspaceflight/rockblock-ui/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RBUI_PORT", "")
	t.Setenv("RBUI_LOG_DEBUG", "")
	t.Setenv("RBUI_LOG_MSG", "")
	t.Setenv("RBUI_CONFIG", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Port)
	assert.Equal(t, 19200, cfg.Baud)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 20, cfg.Retries.NetworkTime)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RBUI_PORT", "/dev/ttyACM0")
	t.Setenv("RBUI_CONFIG", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", cfg.Port)
}

func TestLoadYAMLOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rockblock.yaml")
	err := os.WriteFile(path, []byte("port: /dev/ttyS0\nbaud: 9600\nretries:\n  signal: 5\n"), 0644)
	require.NoError(t, err)
	t.Setenv("RBUI_CONFIG", path)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyS0", cfg.Port)
	assert.Equal(t, 9600, cfg.Baud)
	assert.Equal(t, 5, cfg.Retries.Signal)
}

func TestLoadMissingConfigFileErrors(t *testing.T) {
	t.Setenv("RBUI_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := config.Load()
	assert.Error(t, err)
}
