package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/syntrixbase/statussync/internal/core/identity"
)

// Config holds the application configuration
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Identity IdentityConfig `yaml:"identity"`
	API      APIConfig      `yaml:"api"`
}

// LoadConfig loads configuration from files in configDir and environment variables
// Order: defaults -> config.yml -> config.local.yml -> ApplyDefaults -> ApplyEnvOverrides -> ResolvePaths -> Validate
func LoadConfig(configDir string) (*Config, error) {
	// Defaults first so YAML can override them, including bool fields
	cfg := &Config{
		Logging:  DefaultLoggingConfig(),
		Realtime: DefaultRealtimeConfig(),
		Identity: IdentityConfig{Config: identity.DefaultConfig()},
		API:      DefaultAPIConfig(),
	}

	loadFile(filepath.Join(configDir, "config.yml"), cfg)
	loadFile(filepath.Join(configDir, "config.local.yml"), cfg)

	if err := ApplyServiceConfigs(configDir,
		&cfg.Logging,
		&cfg.Realtime,
		&cfg.Identity,
		&cfg.API,
	); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	cfg.shareToken()
	return cfg, nil
}

// shareToken lets one session token authenticate the API and the channel auth
// endpoint unless they are configured separately.
func (c *Config) shareToken() {
	if c.Identity.Token == "" {
		return
	}
	if c.API.Token == "" {
		c.API.Token = c.Identity.Token
	}
	if c.Realtime.Pusher.Token == "" {
		c.Realtime.Pusher.Token = c.Identity.Token
	}
}

func loadFile(filename string, cfg *Config) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		slog.Warn("Error reading config file", "file", filename, "error", err)
		return
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		slog.Warn("Error parsing config file", "file", filename, "error", err)
	}
}
