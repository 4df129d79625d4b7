package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sergeknystautas/fab/internal/version"
)

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrInvalidConfig  = errors.New("invalid config")
	ErrUnknownKey     = errors.New("unknown setting")
)

const (
	// EnvConfigPath overrides the config file location.
	EnvConfigPath = "FAB_CONFIG"

	DefaultJobs           = 1
	DefaultColor          = ColorAuto
	DefaultGitCommand     = "git"
	DefaultHgCommand      = "hg"
	DefaultProbeTimeoutMs = 30000 // 30 seconds
)

// Color modes
const (
	ColorAuto   = "auto"   // colour when stdout is a terminal
	ColorAlways = "always" // colour even when piped
	ColorNever  = "never"
)

// Config holds the user's fab settings.
type Config struct {
	ConfigVersion string `yaml:"config_version,omitempty"`
	// Jobs is the default parallelism of for-each.
	Jobs  int    `yaml:"jobs,omitempty"`
	Color string `yaml:"color,omitempty"`
	// GitCommand and HgCommand name the executables to run.
	GitCommand string `yaml:"git_command,omitempty"`
	HgCommand  string `yaml:"hg_command,omitempty"`
	// ProbeTimeoutMs bounds each remote probe when clone detects the repo type.
	ProbeTimeoutMs int `yaml:"probe_timeout_ms,omitempty"`

	// path is the file path where this config was loaded from or should be saved to.
	path string `yaml:"-"`
}

// DefaultPath returns $FAB_CONFIG, or ~/.fab/config.yaml.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".fab", "config.yaml"), nil
}

// CreateDefault creates a default config with the given config file path.
// The path is stored so that subsequent Save() calls write to the same location.
func CreateDefault(configPath string) *Config {
	return &Config{
		ConfigVersion:  version.Version,
		Jobs:           DefaultJobs,
		Color:          DefaultColor,
		GitCommand:     DefaultGitCommand,
		HgCommand:      DefaultHgCommand,
		ProbeTimeoutMs: DefaultProbeTimeoutMs,
		path:           configPath,
	}
}

// Load loads the configuration from the specified path.
// The path is stored so that subsequent Save() calls write to the same location.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		// yaml.v3 errors already carry the line number
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, configPath, err)
	}

	if err := cfg.Migrate(); err != nil {
		return nil, fmt.Errorf("config migration failed: %w", err)
	}

	cfg.path = configPath

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configPath, falling back to defaults when the file
// does not exist.
func LoadOrDefault(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if errors.Is(err, ErrConfigNotFound) {
		return CreateDefault(configPath), nil
	}
	return cfg, err
}

// Validate checks that settings are within range.
func (c *Config) Validate() error {
	if c.Jobs < 0 {
		return fmt.Errorf("%w: jobs must not be negative, got %d", ErrInvalidConfig, c.Jobs)
	}
	if c.ProbeTimeoutMs < 0 {
		return fmt.Errorf("%w: probe_timeout_ms must not be negative, got %d", ErrInvalidConfig, c.ProbeTimeoutMs)
	}
	switch c.Color {
	case "", ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("%w: color must be one of auto, always, never; got %q", ErrInvalidConfig, c.Color)
	}
	return nil
}

// Migrate rolls a config written by an older fab forward.
func (c *Config) Migrate() error {
	// Early releases accepted yes/no style colour values.
	switch strings.ToLower(c.Color) {
	case "true", "yes", "on":
		c.Color = ColorAlways
	case "false", "no", "off":
		c.Color = ColorNever
	default:
		c.Color = strings.ToLower(c.Color)
	}
	return nil
}

// Keys lists the settings Get and Set accept, in file order.
func Keys() []string {
	return []string{"jobs", "color", "git_command", "hg_command", "probe_timeout_ms"}
}

// Get returns the effective value of a setting, defaults applied.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "jobs":
		return strconv.Itoa(c.GetJobs()), nil
	case "color":
		return c.GetColor(), nil
	case "git_command":
		return c.GetGitCommand(), nil
	case "hg_command":
		return c.GetHgCommand(), nil
	case "probe_timeout_ms":
		return strconv.Itoa(c.GetProbeTimeoutMs()), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
}

// Set assigns a setting from its string form. c is left unchanged when the
// result does not validate.
func (c *Config) Set(key, value string) error {
	next := *c
	var err error
	switch key {
	case "jobs":
		next.Jobs, err = strconv.Atoi(value)
	case "color":
		next.Color = value
	case "git_command":
		next.GitCommand = value
	case "hg_command":
		next.HgCommand = value
	case "probe_timeout_ms":
		next.ProbeTimeoutMs, err = strconv.Atoi(value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err != nil {
		return fmt.Errorf("%w: %s must be a number, got %q", ErrInvalidConfig, key, value)
	}
	if err := next.Migrate(); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// Path returns the file this config was loaded from or will be saved to.
func (c *Config) Path() string {
	return c.path
}

// Save writes the config to the path it was loaded from or created with.
func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("config path not set: use Load() or CreateDefault() with a path")
	}

	c.ConfigVersion = version.Version

	if dir := filepath.Dir(c.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to a temporary file first, then rename for atomicity
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// GetJobs returns the default for-each parallelism. Defaults to 1.
func (c *Config) GetJobs() int {
	if c == nil || c.Jobs <= 0 {
		return DefaultJobs
	}
	return c.Jobs
}

// GetColor returns the colour mode. Defaults to auto.
func (c *Config) GetColor() string {
	if c == nil || c.Color == "" {
		return DefaultColor
	}
	return c.Color
}

// GetGitCommand returns the git executable. Defaults to "git".
func (c *Config) GetGitCommand() string {
	if c == nil || c.GitCommand == "" {
		return DefaultGitCommand
	}
	return c.GitCommand
}

// GetHgCommand returns the hg executable. Defaults to "hg".
func (c *Config) GetHgCommand() string {
	if c == nil || c.HgCommand == "" {
		return DefaultHgCommand
	}
	return c.HgCommand
}

// GetProbeTimeoutMs returns the remote probe timeout in ms. Defaults to 30000ms.
func (c *Config) GetProbeTimeoutMs() int {
	if c == nil || c.ProbeTimeoutMs <= 0 {
		return DefaultProbeTimeoutMs
	}
	return c.ProbeTimeoutMs
}

// ProbeTimeout returns the remote probe timeout as a duration.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.GetProbeTimeoutMs()) * time.Millisecond
}
