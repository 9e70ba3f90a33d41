package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/aquapoll"
	"github.com/jpalmerr/aquapoll/config"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// serveCmd starts the polling adapter.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start polling the pool controller",
	Long: `Start the AquaPoll adapter.

The adapter will:
  - Load configuration from the specified YAML file
  - Poll the controller's readings at the configured interval
  - Serve the status page if status_port is set

The adapter runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  aquapoll serve -c config.yaml
  aquapoll serve --config /etc/aquapoll/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"host", cfg.Host,
		"poll_interval", cfg.PollInterval.Duration().String(),
		"status_port", cfg.StatusPort,
	)

	opts := config.BuildOptions(cfg)
	opts = append(opts, aquapoll.WithLogger(logger))

	ctrl, err := aquapoll.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start adapter - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- ctrl.Start(ctx)
	}()

	// wait for adapter to finish
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("adapter error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("adapter error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
