package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_MinimalConfig(t *testing.T) {
	yaml := `
host: pool.example.net
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.Host != "pool.example.net" {
		t.Errorf("Host = %q, want pool.example.net", cfg.Host)
	}
	if cfg.PollInterval.Duration() != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.PollInterval.Duration())
	}
	if cfg.Timeout.Duration() != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout.Duration())
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.FailureThreshold != 3 {
		t.Errorf("FailureThreshold = %d, want 3", cfg.FailureThreshold)
	}
	if cfg.RateLimit.MaxRequests != 60 {
		t.Errorf("RateLimit.MaxRequests = %d, want 60", cfg.RateLimit.MaxRequests)
	}
	if cfg.RateLimit.Window.Duration() != time.Minute {
		t.Errorf("RateLimit.Window = %v, want 1m", cfg.RateLimit.Window.Duration())
	}
	if cfg.RateLimit.Burst != 10 {
		t.Errorf("RateLimit.Burst = %d, want 10", cfg.RateLimit.Burst)
	}
	if cfg.StatusPort != 0 {
		t.Errorf("StatusPort = %d, want 0 (disabled)", cfg.StatusPort)
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
title: Garden Pool
host: 192.0.2.10
port: 8443
use_tls: true
username: admin
password: hunter2
poll_interval: 1m
timeout: 5s
max_retries: 2
failure_threshold: 5
status_port: 9090

rate_limit:
  max_requests: 30
  window: 30s
  burst: 5
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Title != "Garden Pool" {
		t.Errorf("Title = %q, want Garden Pool", cfg.Title)
	}
	if cfg.Port != 8443 {
		t.Errorf("Port = %d, want 8443", cfg.Port)
	}
	if !cfg.UseTLS {
		t.Error("UseTLS should be true")
	}
	if cfg.Username != "admin" || cfg.Password != "hunter2" {
		t.Errorf("credentials = %q/%q", cfg.Username, cfg.Password)
	}
	if cfg.PollInterval.Duration() != time.Minute {
		t.Errorf("PollInterval = %v, want 1m", cfg.PollInterval.Duration())
	}
	if cfg.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cfg.FailureThreshold)
	}
	if cfg.StatusPort != 9090 {
		t.Errorf("StatusPort = %d, want 9090", cfg.StatusPort)
	}
	if cfg.RateLimit.MaxRequests != 30 {
		t.Errorf("RateLimit.MaxRequests = %d, want 30", cfg.RateLimit.MaxRequests)
	}
	if cfg.RateLimit.Window.Duration() != 30*time.Second {
		t.Errorf("RateLimit.Window = %v, want 30s", cfg.RateLimit.Window.Duration())
	}
	if cfg.RateLimit.Burst != 5 {
		t.Errorf("RateLimit.Burst = %d, want 5", cfg.RateLimit.Burst)
	}
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing host",
			yaml:    `poll_interval: 30s`,
			wantErr: "host is required",
		},
		{
			name:    "poll interval too small",
			yaml:    "host: pool.example.net\npoll_interval: 500ms",
			wantErr: "poll_interval must be at least",
		},
		{
			name:    "invalid duration",
			yaml:    "host: pool.example.net\npoll_interval: soon",
			wantErr: "invalid duration",
		},
		{
			name:    "status port out of range",
			yaml:    "host: pool.example.net\nstatus_port: 70000",
			wantErr: "status_port must be between",
		},
		{
			name:    "negative burst",
			yaml:    "host: pool.example.net\nrate_limit:\n  max_requests: 10\n  window: 1m\n  burst: -1",
			wantErr: "rate_limit.burst cannot be negative",
		},
		{
			name:    "not yaml",
			yaml:    "host: [unclosed",
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("POOL_HOST", "pool.example.net")
	t.Setenv("POOL_PASSWORD", "s3cret")

	yaml := `
host: ${POOL_HOST}
username: ${POOL_USER:-admin}
password: ${POOL_PASSWORD}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Host != "pool.example.net" {
		t.Errorf("Host = %q, want expanded value", cfg.Host)
	}
	if cfg.Username != "admin" {
		t.Errorf("Username = %q, want default admin", cfg.Username)
	}
	if cfg.Password != "s3cret" {
		t.Errorf("Password = %q, want expanded value", cfg.Password)
	}
}

func TestParse_EnvMissingIsError(t *testing.T) {
	yaml := `
host: ${DEFINITELY_NOT_SET_AQUAPOLL}
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for unset variable without default")
	}
	if !strings.Contains(err.Error(), "DEFINITELY_NOT_SET_AQUAPOLL") {
		t.Errorf("error should name the variable, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aquapoll.yaml")
	content := "host: pool.example.net\npoll_interval: 45s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PollInterval.Duration() != 45*time.Second {
		t.Errorf("PollInterval = %v, want 45s", cfg.PollInterval.Duration())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}
