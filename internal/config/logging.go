package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string         `yaml:"level"`  // debug, info, warn, error
	Format   string         `yaml:"format"` // text, json
	Dir      string         `yaml:"dir"`    // log directory path
	Rotation RotationConfig `yaml:"rotation"`
	Console  ConsoleConfig  `yaml:"console"`
	File     FileConfig     `yaml:"file"`

	// RepeatWindow collapses identical records logged within the window.
	// Zero logs every record.
	RepeatWindow time.Duration `yaml:"repeat_window"`
}

// RotationConfig holds log rotation settings
type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`    // MB
	MaxBackups int  `yaml:"max_backups"` // number of files
	MaxAge     int  `yaml:"max_age"`     // days
	Compress   bool `yaml:"compress"`    // gzip old files
}

// ConsoleConfig holds console output configuration
type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`  // optional override
	Format  string `yaml:"format"` // text or json
}

// FileConfig holds file output configuration
type FileConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`  // optional override
	Format  string `yaml:"format"` // text or json
}

// DefaultLoggingConfig returns default logging configuration
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "text",
		Dir:    "logs",
		Rotation: RotationConfig{
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     30,
			Compress:   true,
		},
		Console: ConsoleConfig{
			Enabled: true,
			Level:   "info",
			Format:  "text",
		},
		File: FileConfig{
			Enabled: false,
			Level:   "debug",
			Format:  "json",
		},
		RepeatWindow: 5 * time.Minute,
	}
}

// ApplyDefaults fills unset fields. Output level and format inherit the
// top-level values.
func (c *LoggingConfig) ApplyDefaults() {
	def := DefaultLoggingConfig()
	orString(&c.Level, def.Level)
	orString(&c.Format, def.Format)
	orString(&c.Dir, def.Dir)

	orInt(&c.Rotation.MaxSize, def.Rotation.MaxSize)
	orInt(&c.Rotation.MaxBackups, def.Rotation.MaxBackups)
	orInt(&c.Rotation.MaxAge, def.Rotation.MaxAge)

	if c.Console == (ConsoleConfig{}) {
		c.Console.Enabled = true
	}
	orString(&c.Console.Level, c.Level)
	orString(&c.Console.Format, c.Format)
	orString(&c.File.Level, c.Level)
	orString(&c.File.Format, c.Format)
}

func orString(field *string, def string) {
	if *field == "" {
		*field = def
	}
}

func orInt(field *int, def int) {
	if *field == 0 {
		*field = def
	}
}

// ApplyEnvOverrides applies STATUSSYNC_LOG_* overrides
func (c *LoggingConfig) ApplyEnvOverrides() {
	if v := os.Getenv("STATUSSYNC_LOG_LEVEL"); v != "" {
		c.Level = strings.ToLower(v)
		c.Console.Level = c.Level
		c.File.Level = c.Level
	}
	if v := os.Getenv("STATUSSYNC_LOG_FORMAT"); v != "" {
		c.Format = strings.ToLower(v)
		c.Console.Format = c.Format
	}
	if v := os.Getenv("STATUSSYNC_LOG_DIR"); v != "" {
		c.Dir = v
		c.File.Enabled = true
	}
}

// ResolvePaths places a relative log dir next to the config dir. A path
// starting with ".." is taken relative to the config dir itself.
func (c *LoggingConfig) ResolvePaths(configDir string) {
	if c.Dir == "" || filepath.IsAbs(c.Dir) {
		return
	}
	base := filepath.Dir(configDir)
	if strings.HasPrefix(c.Dir, "..") {
		base = configDir
	}
	c.Dir = filepath.Clean(filepath.Join(base, c.Dir))
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Validate checks levels and formats of every enabled output.
func (c *LoggingConfig) Validate() error {
	if !slices.Contains(logLevels, c.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of %s)", c.Level, strings.Join(logLevels, ", "))
	}
	if !slices.Contains(logFormats, c.Format) {
		return fmt.Errorf("invalid log format: %s (must be one of %s)", c.Format, strings.Join(logFormats, ", "))
	}
	if c.Dir == "" {
		return fmt.Errorf("log directory cannot be empty")
	}
	if c.RepeatWindow < 0 {
		return fmt.Errorf("log repeat_window must not be negative")
	}

	outputs := []struct {
		name          string
		enabled       bool
		level, format string
	}{
		{"console", c.Console.Enabled, c.Console.Level, c.Console.Format},
		{"file", c.File.Enabled, c.File.Level, c.File.Format},
	}
	for _, o := range outputs {
		if !o.enabled {
			continue
		}
		if o.level != "" && !slices.Contains(logLevels, o.level) {
			return fmt.Errorf("invalid %s log level: %s", o.name, o.level)
		}
		if o.format != "" && !slices.Contains(logFormats, o.format) {
			return fmt.Errorf("invalid %s log format: %s", o.name, o.format)
		}
	}
	return nil
}
