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
)

func main() {
	// start mock pool controller (see mock_server.go)
	go StartMockPoolController(":9999")
	time.Sleep(100 * time.Millisecond)

	ctrl, err := aquapoll.New(
		aquapoll.WithHost("localhost"),
		aquapoll.WithPort(9999),
		aquapoll.WithPollingInterval(5*time.Second),
		aquapoll.WithStatusPort(8080),
		aquapoll.WithTitle("Demo Pool"),
		aquapoll.WithUpdateCallback(func(u aquapoll.Update) {
			if u.Available {
				slog.Info("readings updated", "ph", u.Values["pH_value"], "redox", u.Values["REDOX_value"])
			} else {
				slog.Warn("device unavailable")
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create controller", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   AquaPoll Demo                                       ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   • mock pool controller on :9999                     ║")
	fmt.Println("  ║   • readings polled every 5s                          ║")
	fmt.Println("  ║   • pump cycled once after 10s                        ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// demonstrate a command against the running adapter
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Second):
		}

		result, err := ctrl.SetPumpSpeed(ctx, 3)
		if err != nil {
			slog.Error("pump command failed", "error", err)
			return
		}
		slog.Info("pump speed set", "success", result.Success, "response", result.Response)
	}()

	if err := ctrl.Start(ctx); err != nil {
		slog.Error("aquapoll error", "error", err)
		os.Exit(1)
	}
}
