// Command aquapoll runs the AquaPoll pool controller adapter from a YAML
// configuration file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version information - set via ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "aquapoll",
	Short: "Resilient polling adapter for pool controllers",
	Long: `AquaPoll polls a pool controller over HTTP, publishes the latest
readings snapshot, and forwards commands with rate limiting and
circuit breaking.

Configuration is provided via a YAML file:

  host: pool.example.net
  username: admin
  password: ${POOL_PASSWORD}
  poll_interval: 30s
  status_port: 8080

  rate_limit:
    max_requests: 60
    window: 1m
    burst: 10

Environment variables can be referenced with ${VAR} or ${VAR:-default}.`,
	// no Run - show help when called without subcommand
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("aquapoll %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
