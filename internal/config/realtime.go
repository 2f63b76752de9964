package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/syntrixbase/statussync/internal/core/identity"
	"github.com/syntrixbase/statussync/internal/core/realtime"
	"github.com/syntrixbase/statussync/internal/core/realtime/nats"
	"github.com/syntrixbase/statussync/internal/core/realtime/pusher"
	"github.com/syntrixbase/statussync/internal/fetch"
	"github.com/syntrixbase/statussync/pkg/model"
)

// Provider kinds
const (
	ProviderPusher = "pusher"
	ProviderNATS   = "nats"
	ProviderMemory = "memory"
)

// RealtimeConfig selects the push channel and the polling fallback.
type RealtimeConfig struct {
	EnablePushChannel bool          `yaml:"enable_push_channel"`
	PollingInterval   time.Duration `yaml:"polling_interval"` // 0 disables polling
	Provider          string        `yaml:"provider"`

	Pusher pusher.Config `yaml:"pusher"`
	NATS   nats.Config   `yaml:"nats"`
}

func DefaultRealtimeConfig() RealtimeConfig {
	return RealtimeConfig{
		EnablePushChannel: true,
		PollingInterval:   realtime.DefaultPollingInterval,
		Provider:          ProviderPusher,
		Pusher:            pusher.DefaultConfig(),
		NATS:              nats.DefaultConfig(),
	}
}

// ApplyDefaults fills missing provider settings. PollingInterval is left alone
// because zero is meaningful.
func (c *RealtimeConfig) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderPusher
	}
	pd := pusher.DefaultConfig()
	if c.Pusher.URL == "" {
		c.Pusher.URL = pd.URL
	}
	if c.Pusher.Key == "" {
		c.Pusher.Key = pd.Key
	}
	nd := nats.DefaultConfig()
	if c.NATS.URL == "" {
		c.NATS.URL = nd.URL
	}
	if c.NATS.Name == "" {
		c.NATS.Name = nd.Name
	}
}

// ApplyEnvOverrides applies STATUSSYNC_* overrides
func (c *RealtimeConfig) ApplyEnvOverrides() {
	if v := os.Getenv("STATUSSYNC_PUSH_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.EnablePushChannel = b
		}
	}
	if v := os.Getenv("STATUSSYNC_POLLING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PollingInterval = d
		}
	}
	if v := os.Getenv("STATUSSYNC_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("STATUSSYNC_PUSHER_URL"); v != "" {
		c.Pusher.URL = v
	}
	if v := os.Getenv("STATUSSYNC_PUSHER_KEY"); v != "" {
		c.Pusher.Key = v
	}
	if v := os.Getenv("STATUSSYNC_PUSHER_AUTH_ENDPOINT"); v != "" {
		c.Pusher.AuthEndpoint = v
	}
	if v := os.Getenv("STATUSSYNC_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
}

func (c *RealtimeConfig) ResolvePaths(configDir string) {}

func (c *RealtimeConfig) Validate() error {
	if c.PollingInterval < 0 {
		return fmt.Errorf("realtime.polling_interval must not be negative")
	}
	switch c.Provider {
	case ProviderPusher:
		if c.EnablePushChannel && c.Pusher.Key == "" {
			return fmt.Errorf("realtime.pusher.key is required")
		}
	case ProviderNATS, ProviderMemory:
	default:
		return fmt.Errorf("invalid realtime.provider: %s (must be pusher, nats, or memory)", c.Provider)
	}
	return nil
}

// IdentityConfig scopes the session to a team.
type IdentityConfig struct {
	identity.Config `yaml:",inline"`
}

func (c *IdentityConfig) ApplyDefaults() {
	if c.TeamClaim == "" {
		c.TeamClaim = identity.DefaultConfig().TeamClaim
	}
}

func (c *IdentityConfig) ApplyEnvOverrides() {
	if v := os.Getenv("STATUSSYNC_TEAM_ID"); v != "" {
		c.TeamID = v
	}
	if v := os.Getenv("STATUSSYNC_TOKEN"); v != "" {
		c.Token = v
	}
}

func (c *IdentityConfig) ResolvePaths(configDir string) {
	if c.PublicKeyFile != "" && !filepath.IsAbs(c.PublicKeyFile) {
		c.PublicKeyFile = filepath.Join(configDir, c.PublicKeyFile)
	}
}

func (c *IdentityConfig) Validate() error {
	if c.PublicKeyFile != "" && c.Token == "" {
		return fmt.Errorf("identity.public_key_file requires identity.token")
	}
	return nil
}

// APIConfig configures the REST client used while polling.
type APIConfig struct {
	fetch.Config `yaml:",inline"`
	Resources    []string `yaml:"resources"`
}

func DefaultAPIConfig() APIConfig {
	return APIConfig{Config: fetch.DefaultConfig()}
}

func (c *APIConfig) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = fetch.DefaultConfig().Timeout
	}
}

func (c *APIConfig) ApplyEnvOverrides() {
	if v := os.Getenv("STATUSSYNC_API_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("STATUSSYNC_API_TOKEN"); v != "" {
		c.Token = v
	}
}

func (c *APIConfig) ResolvePaths(configDir string) {}

func (c *APIConfig) Validate() error {
	for _, r := range c.Resources {
		if _, err := model.ParseResourceKind(r); err != nil {
			return fmt.Errorf("api.resources: %w", err)
		}
	}
	return nil
}

// Kinds returns the configured resource kinds, or nil for all of them.
func (c *APIConfig) Kinds() []model.ResourceKind {
	var kinds []model.ResourceKind
	for _, r := range c.Resources {
		if k, err := model.ParseResourceKind(r); err == nil {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
