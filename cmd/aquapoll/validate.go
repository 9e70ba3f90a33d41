package main

import (
	"fmt"

	"github.com/jpalmerr/aquapoll/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the adapter.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate an AquaPoll configuration file without starting the adapter.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  aquapoll validate -c config.yaml
  aquapoll validate --config /etc/aquapoll/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	scheme := "http"
	if cfg.UseTLS {
		scheme = "https"
	}

	status := "disabled"
	if cfg.StatusPort != 0 {
		status = fmt.Sprintf("port %d", cfg.StatusPort)
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Host:          %s (%s)\n", cfg.Host, scheme)
	fmt.Printf("  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Printf("  Rate limit:    %d per %s (burst %d)\n",
		cfg.RateLimit.MaxRequests, cfg.RateLimit.Window.Duration(), cfg.RateLimit.Burst)
	fmt.Printf("  Status page:   %s\n", status)

	return nil
}
