// Package server provides configuration helpers that define runtime defaults,
// file and environment loading, and validation for the relay service.
package server

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Tyrowin/roomrelay/internal/relay"
)

// Default values for optional configuration fields.
const (
	DefaultPort           = ":8080"
	DefaultMaxMessageSize = 64 * 1024
	DefaultSendBufferSize = 256
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultMetricsPath    = "/metrics"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Window      time.Duration `yaml:"window"`
	MaxMessages int           `yaml:"max_messages"`
}

// LogConfig selects the log handler and minimum level.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port           string          `yaml:"port"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	MaxMessageSize int64           `yaml:"max_message_size"`
	SendBufferSize int             `yaml:"send_buffer_size"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	Log            LogConfig       `yaml:"log"`
	Metrics        MetricsConfig   `yaml:"metrics"`
}

// DefaultConfig returns a Config populated with default values for all settings.
func DefaultConfig() Config {
	return Config{
		Port: DefaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: DefaultMaxMessageSize,
		SendBufferSize: DefaultSendBufferSize,
		RateLimit: RateLimitConfig{
			Window:      relay.DefaultWindow,
			MaxMessages: relay.DefaultMaxMessages,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
	}
}

// LoadConfig builds the runtime configuration: defaults, then the YAML file
// at path when path is not empty, then environment overrides. The result is
// sanitized and validated.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.ApplyEnv()
	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// readFile overlays the YAML file at path onto c. ${VAR} references in the
// file are expanded from the environment first.
func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables. Unset or unparsable
// variables leave the current value alone.
func (c *Config) ApplyEnv() {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Port = port
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = parseOrigins(origins)
	}

	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		c.MaxMessageSize = parseMaxMessageSize(maxSize, c.MaxMessageSize)
	}

	if size := os.Getenv("SEND_BUFFER_SIZE"); size != "" {
		c.SendBufferSize = parseIntValue(size, c.SendBufferSize)
	}

	if window := os.Getenv("RATE_LIMIT_WINDOW"); window != "" {
		c.RateLimit.Window = parseWindow(window, c.RateLimit.Window)
	}

	if limit := os.Getenv("RATE_LIMIT_MAX"); limit != "" {
		c.RateLimit.MaxMessages = parseIntValue(limit, c.RateLimit.MaxMessages)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}

	if enabled := os.Getenv("METRICS_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			c.Metrics.Enabled = b
		}
	}
}

// Sanitize replaces missing or out-of-range values with defaults.
func (c *Config) Sanitize() {
	if c.Port == "" {
		c.Port = DefaultPort
	}

	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}

	if c.SendBufferSize <= 0 {
		c.SendBufferSize = DefaultSendBufferSize
	}

	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = relay.DefaultWindow
	}

	if c.RateLimit.MaxMessages <= 0 {
		c.RateLimit.MaxMessages = relay.DefaultMaxMessages
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}

	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// Validate reports the first setting that cannot be used as configured.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format %q must be text or json", c.Log.Format)
	}

	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path)
	}

	switch c.Metrics.Path {
	case "/", "/ws", "/test", "/healthz":
		return fmt.Errorf("metrics.path %q collides with a built-in route", c.Metrics.Path)
	}

	if len(c.AllowedOrigins) == 0 {
		return errors.New("allowed_origins must list at least one origin")
	}

	return nil
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseWindow accepts a Go duration ("3s") or a bare number of milliseconds.
func parseWindow(value string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
