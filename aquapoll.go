package aquapoll

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/aquapoll/dashboard"
	"github.com/jpalmerr/aquapoll/internal/api"
	"github.com/jpalmerr/aquapoll/internal/breaker"
	"github.com/jpalmerr/aquapoll/internal/poller"
	"github.com/jpalmerr/aquapoll/internal/ratelimit"
	"github.com/jpalmerr/aquapoll/internal/server"
	"github.com/jpalmerr/aquapoll/internal/state"
)

const (
	defaultPollingInterval  = 30 * time.Second
	defaultRateLimitMax     = 60
	defaultRateLimitWindow  = time.Minute
	defaultRateLimitBurst   = 10
	defaultForceOffCooldown = 30 * time.Second
)

// deviceClient is the device-facing surface the controller delegates to.
// It is satisfied by the internal API client; tests substitute a fake.
type deviceClient interface {
	GetReadings(ctx context.Context) (map[string]any, error)
	GetSpecificReadings(ctx context.Context, keys []string) (map[string]any, error)
	GetHistory(ctx context.Context, from, to string) (map[string]any, error)
	GetConfig(ctx context.Context) (map[string]any, error)
	GetWeatherData(ctx context.Context) (map[string]any, error)
	GetOverallDosing(ctx context.Context) (map[string]any, error)
	GetOutputStates(ctx context.Context) (map[string]any, error)
	GetCalibrationRawValues(ctx context.Context, device string) (map[string]any, error)
	GetCalibrationHistory(ctx context.Context, device string) ([]api.CalibrationRecord, error)
	SetSwitchState(ctx context.Context, key, action string, duration, lastValue int) (api.CommandResult, error)
	SetTargetValue(ctx context.Context, target string, value float64) (api.CommandResult, error)
	SetConfig(ctx context.Context, param, value string) (api.CommandResult, error)
	ManualDosing(ctx context.Context, dosingKey string, seconds int) (api.CommandResult, error)
	SetPVSurplus(ctx context.Context, active bool, pumpSpeed int) (api.CommandResult, error)
	SetAllDMXScenes(ctx context.Context, action string) (api.CommandResult, error)
	SetLightColorPulse(ctx context.Context) (api.CommandResult, error)
	TriggerDigitalInputRule(ctx context.Context, ruleKey string) (api.CommandResult, error)
	SetDigitalInputRuleLock(ctx context.Context, ruleKey string, locked bool) (api.CommandResult, error)
	SetDeviceTemperature(ctx context.Context, device string, temp float64) (api.CommandResult, error)
	SetPHTarget(ctx context.Context, value float64) (api.CommandResult, error)
	SetORPTarget(ctx context.Context, value float64) (api.CommandResult, error)
	SetMinChlorineLevel(ctx context.Context, value float64) (api.CommandResult, error)
	SetDosingParameters(ctx context.Context, dosingType, param string, value float64) (api.CommandResult, error)
	SetPumpSpeed(ctx context.Context, speed int) (api.CommandResult, error)
	ControlPump(ctx context.Context, on bool) (api.CommandResult, error)
	RestoreCalibration(ctx context.Context, device string) (api.CommandResult, error)
	SetOutputTestMode(ctx context.Context, output string, active bool) (api.CommandResult, error)
	Close()
}

// Controller is the main orchestrator for device polling and commands.
//
// Controller maintains a fresh snapshot of the pool controller's readings,
// exposes typed commands, and optionally serves a status page. It is
// created using [New] with functional options and started with
// [Controller.Start].
//
// The typical lifecycle is:
//
//	pool, err := aquapoll.New(aquapoll.WithHost("pool.example.net"))
//	if err != nil {
//	    slog.Error("failed to create controller", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	pool.Start(ctx) // blocks until context cancelled
//
// Commands may be issued from any goroutine, before or during Start. The
// read accessors ([Controller.Snapshot], [Controller.Available]) only
// return fresh data while Start is running.
type Controller struct {
	host             string
	pollingInterval  time.Duration
	failureThreshold int
	forceOffCooldown time.Duration
	statusPort       int
	title            string
	logger           *slog.Logger
	updateCallbacks  []func(Update)

	client  deviceClient
	limiter *ratelimit.Limiter
	breaker *breaker.Breaker
	store   *state.MemoryStore
	locks   *poller.Locks

	mu    sync.Mutex
	coord *poller.Coordinator
}

// New creates a new [Controller] with the given options.
//
// A host must be configured via [WithHost]; it is validated immediately,
// so a controller is never created against a loopback, private, or
// malformed address. Other options have sensible defaults:
//   - Polling interval: 30 seconds
//   - Rate limit: 60 requests/minute, burst 10
//   - Failure threshold: 3
//   - Force-off cooldown: 30 seconds
//   - Status server: disabled
//
// Returns an error if the host is missing or invalid, or if any option is
// invalid.
func New(opts ...Option) (*Controller, error) {
	cfg := &ctrlConfig{
		pollingInterval:  defaultPollingInterval,
		rateLimitMax:     defaultRateLimitMax,
		rateLimitWindow:  defaultRateLimitWindow,
		rateLimitBurst:   defaultRateLimitBurst,
		failureThreshold: poller.DefaultFailureThreshold,
		forceOffCooldown: defaultForceOffCooldown,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.host == "" {
		return nil, fmt.Errorf("a device host is required: use WithHost")
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	limiter, err := ratelimit.New(cfg.rateLimitMax, cfg.rateLimitWindow, cfg.rateLimitBurst)
	if err != nil {
		return nil, err
	}

	brk := breaker.New(breaker.Config{
		FailureThreshold: cfg.failureThreshold,
		Monitor:          api.MonitorNetworkErrors,
	})

	client, err := api.New(api.Config{
		Host:       cfg.host,
		Port:       cfg.port,
		UseTLS:     cfg.useTLS,
		Username:   cfg.username,
		Password:   cfg.password,
		Timeout:    cfg.timeout,
		MaxRetries: cfg.maxRetries,
		Limiter:    limiter,
		Breaker:    brk,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return &Controller{
		host:             cfg.host,
		pollingInterval:  cfg.pollingInterval,
		failureThreshold: cfg.failureThreshold,
		forceOffCooldown: cfg.forceOffCooldown,
		statusPort:       cfg.statusPort,
		title:            cfg.title,
		logger:           logger,
		updateCallbacks:  cfg.updateCallbacks,
		client:           client,
		limiter:          limiter,
		breaker:          brk,
		store:            state.NewMemoryStore(),
		locks:            poller.NewLocks(),
	}, nil
}

// Start begins polling the device and, if configured, serving the status
// page.
//
// Start is a blocking call that runs until the provided context is
// cancelled. During execution:
//
//   - The device is polled immediately, then at the configured interval
//   - Snapshot changes are delivered to registered update callbacks
//   - The status server runs on the configured port, if enabled
//
// The caller controls the lifecycle via context cancellation. For signal
// handling, use [signal.NotifyContext]:
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//	pool.Start(ctx)
//
// Returns nil on graceful shutdown. Returns an error if the status server
// fails to start.
func (c *Controller) Start(ctx context.Context) error {
	c.logger.Info("aquapoll starting", "host", c.host, "interval", c.pollingInterval.String())

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	coord := poller.New(c.client, c.store, poller.Config{
		Interval:         c.pollingInterval,
		FailureThreshold: c.failureThreshold,
		Logger:           c.logger,
	})
	c.mu.Lock()
	c.coord = coord
	c.mu.Unlock()

	// subscribe before the first poll so no update is missed
	updates := c.store.Subscribe()

	coord.Start(ctx)

	// track the update consumer goroutine to ensure clean shutdown
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for snap := range updates {
			if len(c.updateCallbacks) > 0 {
				update := snapshotToUpdate(snap)
				for _, cb := range c.updateCallbacks {
					invokeCallbackSafe(cb, update, c.logger)
				}
			}

			if snap.Available {
				c.logger.Debug("snapshot updated", "readings", len(snap.Values))
			} else {
				c.logger.Warn("device unavailable", "last_update", snap.UpdatedAt)
			}
		}
	}()

	// cleanup ensures the poll loop is stopped, all updates are processed,
	// and the device client's idle connections are released. It runs on
	// every exit path, including a failed status server start.
	cleanup := func() {
		coord.Stop()
		c.store.Unsubscribe(updates) // closes the channel
		wg.Wait()
		c.client.Close()
	}

	if c.statusPort > 0 {
		httpServer := server.NewServer(c.store, c.statsSnapshot, c.statusPort, dashboard.Assets, c.title, c.logger)
		if err := httpServer.Start(ctx); err != nil {
			cleanup()
			return fmt.Errorf("failed to start status server: %w", err)
		}
		c.logger.Info("status page available", "url", fmt.Sprintf("http://localhost:%d", c.statusPort))
	}

	<-ctx.Done()
	cleanup()
	c.logger.Info("aquapoll stopped")
	return nil
}

// snapshotToUpdate converts a store snapshot to the public callback type.
// The snapshot's Values map is already a private copy.
func snapshotToUpdate(snap state.Snapshot) Update {
	return Update{
		Values:    snap.Values,
		UpdatedAt: snap.UpdatedAt,
		Available: snap.Available,
	}
}

// invokeCallbackSafe calls an update callback with panic recovery.
// Panics are logged with a correlation ID but do not propagate.
func invokeCallbackSafe(cb func(Update), update Update, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("update callback panicked",
				"correlation_id", uuid.NewString(),
				"panic", r,
			)
		}
	}()
	cb(update)
}
