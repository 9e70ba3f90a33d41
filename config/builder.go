package config

import (
	"github.com/jpalmerr/aquapoll"
)

// BuildOptions converts parsed configuration into SDK options.
//
// The returned slice can be passed directly to [aquapoll.New]. Values the
// config left at their defaults are still passed explicitly, so the SDK's
// own defaults never silently diverge from the documented config defaults.
func BuildOptions(cfg *Config) []aquapoll.Option {
	opts := []aquapoll.Option{
		aquapoll.WithHost(cfg.Host),
		aquapoll.WithPollingInterval(cfg.PollInterval.Duration()),
		aquapoll.WithTimeout(cfg.Timeout.Duration()),
		aquapoll.WithMaxRetries(cfg.MaxRetries),
		aquapoll.WithFailureThreshold(cfg.FailureThreshold),
		aquapoll.WithRateLimit(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window.Duration(), cfg.RateLimit.Burst),
	}

	if cfg.Port != 0 {
		opts = append(opts, aquapoll.WithPort(cfg.Port))
	}
	if cfg.UseTLS {
		opts = append(opts, aquapoll.WithTLS())
	}
	if cfg.Username != "" {
		opts = append(opts, aquapoll.WithCredentials(cfg.Username, cfg.Password))
	}
	if cfg.StatusPort != 0 {
		opts = append(opts, aquapoll.WithStatusPort(cfg.StatusPort))
	}
	if cfg.Title != "" {
		opts = append(opts, aquapoll.WithTitle(cfg.Title))
	}

	return opts
}
