// Package config provides YAML configuration parsing for AquaPoll.
//
// This package enables running AquaPoll as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	host: pool.example.net
//	username: admin
//	password: ${POOL_PASSWORD}
//	poll_interval: 30s
//	status_port: 8080
//
//	rate_limit:
//	  max_requests: 60
//	  window: 1m
//	  burst: 10
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// minPollInterval is the minimum allowed polling interval for production
// configs. This prevents accidental DoS of the device with overly
// aggressive polling.
const minPollInterval = 1 * time.Second

// Config is the root configuration structure for AquaPoll.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the status page title. Defaults to "AquaPoll" if not set.
	Title string `yaml:"title"`

	// Host is the pool controller's hostname or public IP address.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Host string `yaml:"host"`

	// Port is the controller's TCP port. Zero means the scheme default.
	Port int `yaml:"port"`

	// UseTLS selects https for device requests.
	UseTLS bool `yaml:"use_tls"`

	// Username and Password enable HTTP basic auth when set.
	// Both support environment variable substitution.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// PollInterval is the time between readings polls.
	// Accepts duration strings like "10s", "1m", "500ms".
	// Defaults to 30s.
	PollInterval Duration `yaml:"poll_interval"`

	// Timeout is the per-request HTTP timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// MaxRetries bounds attempts per request. Defaults to 3.
	MaxRetries int `yaml:"max_retries"`

	// FailureThreshold is the number of consecutive failures before the
	// device is marked unavailable. Defaults to 3.
	FailureThreshold int `yaml:"failure_threshold"`

	// StatusPort enables the embedded status server on the given port.
	// Zero (the default) disables the status server.
	StatusPort int `yaml:"status_port"`

	// RateLimit configures the shared token-bucket rate limiter.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig configures the token-bucket rate limiter shared by all
// polls and commands.
type RateLimitConfig struct {
	// MaxRequests is the steady-state capacity per window. Defaults to 60.
	MaxRequests int `yaml:"max_requests"`

	// Window is the refill window. Defaults to 1m.
	Window Duration `yaml:"window"`

	// Burst is an extra allowance on top of MaxRequests. Defaults to 10.
	Burst int `yaml:"burst"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		// submatches[2] is ":-..." (non-empty if default syntax was used)
		// submatches[3] is the actual default value (may be empty for ${VAR:-})
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in Host, Username, and Password.
// Defaults are applied for PollInterval (30s), Timeout (10s), MaxRetries
// (3), FailureThreshold (3), and the rate limit (60/minute, burst 10).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(30 * time.Second)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = Duration(10 * time.Second)
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.RateLimit.MaxRequests == 0 {
		cfg.RateLimit.MaxRequests = 60
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = Duration(time.Minute)
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 10
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
//
// Host format and address-range checks are left to the SDK, which rejects
// loopback and private addresses at construction time.
func (c *Config) expandAndValidate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	expanded, err := expandEnvVars(c.Host)
	if err != nil {
		return fmt.Errorf("host: %w", err)
	}
	c.Host = expanded

	if c.Username != "" {
		expanded, err := expandEnvVars(c.Username)
		if err != nil {
			return fmt.Errorf("username: %w", err)
		}
		c.Username = expanded
	}
	if c.Password != "" {
		expanded, err := expandEnvVars(c.Password)
		if err != nil {
			return fmt.Errorf("password: %w", err)
		}
		c.Password = expanded
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", c.Port)
	}
	if c.StatusPort < 0 || c.StatusPort > 65535 {
		return fmt.Errorf("status_port must be between 0 and 65535, got %d", c.StatusPort)
	}

	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.Timeout.Duration() <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout.Duration())
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure_threshold must be at least 1, got %d", c.FailureThreshold)
	}

	if c.RateLimit.MaxRequests < 1 {
		return fmt.Errorf("rate_limit.max_requests must be at least 1, got %d", c.RateLimit.MaxRequests)
	}
	if c.RateLimit.Window.Duration() <= 0 {
		return fmt.Errorf("rate_limit.window must be positive, got %s", c.RateLimit.Window.Duration())
	}
	if c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit.burst cannot be negative, got %d", c.RateLimit.Burst)
	}

	return nil
}
