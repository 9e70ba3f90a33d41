// Package aquapoll provides a resilient polling client for pool
// controllers that expose the /getReadings HTTP API.
//
// AquaPoll is designed as an SDK-first library: it maintains a fresh
// snapshot of the device's readings by polling at a fixed interval, and
// exposes typed commands for switching outputs, adjusting targets, and
// dosing. Every request passes through a shared token-bucket rate limiter
// and a circuit breaker, so a slow or dead controller degrades the SDK
// gracefully instead of piling up timeouts.
//
// # Quick Start
//
// Create a controller and start polling with graceful shutdown:
//
//	pool, _ := aquapoll.New(aquapoll.WithHost("pool.example.net"))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	pool.Start(ctx) // blocks until context is cancelled
//
// While Start runs, the latest readings are available from any goroutine:
//
//	snap := pool.Snapshot()
//	if pool.Available() {
//	    fmt.Println("pH:", snap["pH_value"])
//	}
//
// # Configuration
//
// AquaPoll uses the functional options pattern for configuration:
//
//	pool, err := aquapoll.New(
//	    aquapoll.WithHost("pool.example.net"),
//	    aquapoll.WithCredentials("admin", os.Getenv("POOL_PASSWORD")),
//	    aquapoll.WithPollingInterval(30 * time.Second),
//	    aquapoll.WithRateLimit(60, time.Minute, 10),
//	    aquapoll.WithStatusPort(8080),
//	)
//
// # Commands
//
// Commands are issued through typed methods that validate and clamp their
// inputs before anything reaches the wire:
//
//	result, err := pool.SetSwitchState(ctx, "PUMP", aquapoll.ActionOn, 0, 2)
//	if err == nil && result.Success {
//	    fmt.Println("pump is on")
//	}
//
// Dosing and forced-off commands respect per-device safety locks: a
// successful dosing run locks its key for the run duration, a successful
// forced-off locks its key for a configurable cooldown, and locks can also
// be engaged manually via [Controller.EngageSafetyLock]. A locked command
// fails with a [SafetyLockError] carrying the remaining lock time.
//
// # Architecture
//
// AquaPoll consists of several internal packages (under internal/):
//
//   - internal/api: HTTP client with retries, SSRF guard, and command templates
//   - internal/ratelimit: Token-bucket rate limiter with priority hints
//   - internal/breaker: Three-state circuit breaker
//   - internal/sanitize: Input sanitization and domain value clamping
//   - internal/poller: Fixed-interval poll coordinator with auto-recovery
//   - internal/state: Snapshot store with pub/sub for real-time updates
//   - internal/server: Optional HTTP status page, REST API, and SSE stream
//   - dashboard: Embedded status page assets
//
// The internal packages are not part of the public API and may change
// without notice. The library is designed for single-binary deployment
// using Go's embed directive for static assets.
package aquapoll
