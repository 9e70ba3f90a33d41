package aquapoll

import (
	"errors"
	"log/slog"
	"time"
)

// ctrlConfig holds mutable state during Controller construction.
type ctrlConfig struct {
	host             string
	port             int
	useTLS           bool
	username         string
	password         string
	pollingInterval  time.Duration
	timeout          time.Duration
	maxRetries       int
	rateLimitMax     int
	rateLimitWindow  time.Duration
	rateLimitBurst   int
	failureThreshold int
	forceOffCooldown time.Duration
	statusPort       int
	title            string
	logger           *slog.Logger
	updateCallbacks  []func(Update)
}

// Option is a function that configures a [Controller] instance during
// construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*ctrlConfig) error

// WithHost sets the pool controller's hostname or public IP address.
//
// This option is required. The host is validated at construction time:
// loopback, private, and link-local addresses are rejected, as are
// malformed hostnames.
//
// Example:
//
//	pool, err := aquapoll.New(
//	    aquapoll.WithHost("pool.example.net"),
//	)
func WithHost(host string) Option {
	return func(cfg *ctrlConfig) error {
		if host == "" {
			return errors.New("host cannot be empty")
		}
		cfg.host = host
		return nil
	}
}

// WithPort sets the TCP port the controller listens on.
//
// If not specified, the scheme default is used (80 for http, 443 for https).
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *ctrlConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithTLS selects https for all device requests.
func WithTLS() Option {
	return func(cfg *ctrlConfig) error {
		cfg.useTLS = true
		return nil
	}
}

// WithCredentials enables HTTP basic auth on every device request.
//
// Example:
//
//	pool, err := aquapoll.New(
//	    aquapoll.WithHost("pool.example.net"),
//	    aquapoll.WithCredentials("admin", os.Getenv("POOL_PASSWORD")),
//	)
func WithCredentials(username, password string) Option {
	return func(cfg *ctrlConfig) error {
		if username == "" {
			return errors.New("username cannot be empty")
		}
		cfg.username = username
		cfg.password = password
		return nil
	}
}

// WithPollingInterval sets how often the device is polled for readings.
//
// Defaults to 30 seconds if not specified.
//
// Returns an error if the duration is zero or negative.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *ctrlConfig) error {
		if d <= 0 {
			return errors.New("polling interval must be positive")
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithTimeout sets the per-request HTTP timeout.
//
// Defaults to 10 seconds if not specified.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) Option {
	return func(cfg *ctrlConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithMaxRetries bounds how many attempts a single request gets before its
// transport error is surfaced.
//
// Only transport-level failures are retried; protocol and validation
// errors fail immediately. Defaults to 3 if not specified.
//
// Returns an error if the value is zero or negative.
func WithMaxRetries(n int) Option {
	return func(cfg *ctrlConfig) error {
		if n <= 0 {
			return errors.New("max retries must be positive")
		}
		cfg.maxRetries = n
		return nil
	}
}

// WithRateLimit configures the shared token-bucket rate limiter.
//
// At most maxRequests are admitted per window, plus a burst allowance on
// top of the steady-state capacity. All polls and commands issued through
// the controller share one bucket. Defaults to 60 requests per minute
// with a burst of 10.
//
// Example:
//
//	pool, err := aquapoll.New(
//	    aquapoll.WithHost("pool.example.net"),
//	    aquapoll.WithRateLimit(30, time.Minute, 5),
//	)
//
// Returns an error if maxRequests or window is not positive, or if burst
// is negative.
func WithRateLimit(maxRequests int, window time.Duration, burst int) Option {
	return func(cfg *ctrlConfig) error {
		if maxRequests <= 0 {
			return errors.New("rate limit max requests must be positive")
		}
		if window <= 0 {
			return errors.New("rate limit window must be positive")
		}
		if burst < 0 {
			return errors.New("rate limit burst cannot be negative")
		}
		cfg.rateLimitMax = maxRequests
		cfg.rateLimitWindow = window
		cfg.rateLimitBurst = burst
		return nil
	}
}

// WithFailureThreshold sets how many consecutive failures trip the circuit
// breaker and mark the device unavailable.
//
// Defaults to 3 if not specified.
//
// Returns an error if the value is zero or negative.
func WithFailureThreshold(n int) Option {
	return func(cfg *ctrlConfig) error {
		if n <= 0 {
			return errors.New("failure threshold must be positive")
		}
		cfg.failureThreshold = n
		return nil
	}
}

// WithForceOffCooldown sets how long a device key stays safety-locked
// after a successful forced-off command.
//
// While the cooldown runs, further forced-off and dosing commands for the
// same key fail with [SafetyLockError]. Defaults to 30 seconds.
//
// Returns an error if the duration is zero or negative.
func WithForceOffCooldown(d time.Duration) Option {
	return func(cfg *ctrlConfig) error {
		if d <= 0 {
			return errors.New("force-off cooldown must be positive")
		}
		cfg.forceOffCooldown = d
		return nil
	}
}

// WithStatusPort enables the embedded status server on the given port.
//
// The status page and API are served at http://localhost:<port> while the
// controller is running. If not specified, no status server is started.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithStatusPort(port int) Option {
	return func(cfg *ctrlConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("status port must be between 1 and 65535")
		}
		cfg.statusPort = port
		return nil
	}
}

// WithTitle sets the status page title displayed in the browser tab and
// header.
//
// If not specified, defaults to "AquaPoll".
func WithTitle(title string) Option {
	return func(cfg *ctrlConfig) error {
		cfg.title = title
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Controller instance.
//
// This allows SDK consumers to control where logs are written and in what
// format. If not specified, [slog.Default] is used.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
//	pool, err := aquapoll.New(
//	    aquapoll.WithHost("pool.example.net"),
//	    aquapoll.WithLogger(logger),
//	)
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *ctrlConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithUpdateCallback registers a function to be called on every snapshot
// change, including availability flips.
//
// Multiple callbacks may be registered by calling WithUpdateCallback
// multiple times; they execute in registration order.
//
// IMPORTANT: Callbacks must be non-blocking. Long-running operations
// should dispatch work to a separate goroutine. Blocking callbacks will
// delay subsequent update processing.
//
// Callbacks are invoked synchronously from a single goroutine. Panics
// within callbacks are recovered and logged with a correlation ID; they do
// not crash the poll loop.
//
// Example:
//
//	pool, err := aquapoll.New(
//	    aquapoll.WithHost("pool.example.net"),
//	    aquapoll.WithUpdateCallback(func(u aquapoll.Update) {
//	        if !u.Available {
//	            log.Println("ALERT: pool controller unreachable")
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithUpdateCallback(cb func(Update)) Option {
	return func(cfg *ctrlConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.updateCallbacks = append(cfg.updateCallbacks, cb)
		return nil
	}
}
