// Package config resolves the RockBLOCK driver's runtime configuration:
// environment variables first, then an optional YAML file layered on
// top for field deployments that want to pin values without
// recompiling.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Retries holds the bounded-retry counts used by the poller and
// session engine. These are fixed by the protocol in practice but are
// exposed here so a field deployment can tune them without a rebuild.
type Retries struct {
	NetworkTime int `yaml:"network_time"`
	Signal      int `yaml:"signal"`
	Session     int `yaml:"session"`
	LineReread  int `yaml:"line_reread"`
}

// Config is the fully resolved set of knobs the CLI needs to open a
// Driver.
type Config struct {
	Port        string        `yaml:"port"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	LogDebug    string        `yaml:"log_debug"`
	LogMessages string        `yaml:"log_messages"`
	Retries     Retries       `yaml:"retries"`
}

const (
	envPort     = "RBUI_PORT"
	envLogDebug = "RBUI_LOG_DEBUG"
	envLogMsg   = "RBUI_LOG_MSG"
	envConfig   = "RBUI_CONFIG"
)

func defaults() Config {
	return Config{
		Port:        envOr(envPort, "/dev/ttyUSB0"),
		Baud:        19200,
		ReadTimeout: 5 * time.Second,
		LogDebug:    envOr(envLogDebug, expandHome("~/rockblock_debug.log")),
		LogMessages: envOr(envLogMsg, expandHome("~/rockblock_messages.log")),
		Retries: Retries{
			NetworkTime: 20,
			Signal:      3,
			Session:     3,
			LineReread:  5,
		},
	}
}

// Load resolves Config from environment variables, then — if
// RBUI_CONFIG names a readable file — layers a YAML override on top.
// An unset RBUI_CONFIG is not an error; Load returns the env-derived
// defaults unchanged.
func Load() (Config, error) {
	cfg := defaults()

	path := os.Getenv(envConfig)
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
