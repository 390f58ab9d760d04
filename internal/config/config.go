// Package config provides YAML-based configuration loading for Switchyard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML fields accept "5s" / "1h" strings.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level Switchyard configuration, loaded from config.yaml.
type Config struct {
	Authority string          `yaml:"authority"`
	Database  DatabaseConfig  `yaml:"database"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Telegraph TelegraphConfig `yaml:"telegraph"`
}

// DatabaseConfig selects and parameterizes the storage backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "mysql"
	Path   string `yaml:"path"`   // sqlite file path
	Host   string `yaml:"host"`   // mysql
	Port   int    `yaml:"port"`   // mysql
	Name   string `yaml:"name"`   // mysql database name
}

// RateLimitConfig holds the router's anti-spam tuning. MessageDelay is
// only the seed value: the persisted router setting wins once the pause
// authority has updated it.
type RateLimitConfig struct {
	MessageDelay Duration `yaml:"message_delay"`
	Window       Duration `yaml:"window"`
	MaxPerWindow int      `yaml:"max_per_window"`
}

// TelegraphConfig configures the event-forwarding daemon.
type TelegraphConfig struct {
	Platform     string   `yaml:"platform"` // "slack" or "discord"
	Token        string   `yaml:"token"`
	Channel      string   `yaml:"channel"`
	DigestCron   string   `yaml:"digest_cron"`   // 5-field cron expression
	PollInterval Duration `yaml:"poll_interval"` // event log poll cadence
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "switchyard.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "switchyard"
	}
	if c.RateLimit.MessageDelay == 0 {
		c.RateLimit.MessageDelay = Duration(5 * time.Second)
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = Duration(time.Hour)
	}
	if c.RateLimit.MaxPerWindow == 0 {
		c.RateLimit.MaxPerWindow = 100
	}
	if c.Telegraph.PollInterval == 0 {
		c.Telegraph.PollInterval = Duration(15 * time.Second)
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Authority == "" {
		errs = append(errs, "authority is required")
	}
	if c.Database.Driver != "sqlite" && c.Database.Driver != "mysql" {
		errs = append(errs, fmt.Sprintf("database.driver must be 'sqlite' or 'mysql', got %q", c.Database.Driver))
	}
	if c.RateLimit.MessageDelay.Std() < time.Second || c.RateLimit.MessageDelay.Std() > time.Hour {
		errs = append(errs, "ratelimit.message_delay must be between 1s and 1h")
	}
	if c.RateLimit.Window.Std() <= 0 {
		errs = append(errs, "ratelimit.window must be positive")
	}
	if c.RateLimit.MaxPerWindow < 1 {
		errs = append(errs, "ratelimit.max_per_window must be at least 1")
	}
	if c.Telegraph.Platform != "" && c.Telegraph.Platform != "slack" && c.Telegraph.Platform != "discord" {
		errs = append(errs, fmt.Sprintf("telegraph.platform must be 'slack' or 'discord', got %q", c.Telegraph.Platform))
	}
	if c.Telegraph.Platform != "" && c.Telegraph.Token == "" {
		errs = append(errs, "telegraph.token is required when a platform is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
