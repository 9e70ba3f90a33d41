// Package api implements the resilient HTTP access layer for the pool
// controller.
//
// The client translates typed device operations into validated HTTP calls
// against the controller's path-based API. Every request passes through the
// shared rate limiter, runs inside the circuit breaker, and is retried with
// capped exponential backoff on transport failure. Responses come back as
// parsed JSON mappings, raw text, or a uniform [CommandResult] envelope.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jpalmerr/aquapoll/internal/breaker"
	"github.com/jpalmerr/aquapoll/internal/ratelimit"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits to prevent resource exhaustion under
// concurrent command traffic
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3

	// limiterWaitTimeout bounds how long a request waits for admission.
	// Exceeding it is non-fatal: the limiter degrades to advisory rather
	// than blocking the call indefinitely.
	limiterWaitTimeout = 10 * time.Second

	// backoff between transport retries: min(2s, 200ms * 2^(attempt-1))
	backoffBase = 200 * time.Millisecond
	backoffCap  = 2 * time.Second

	maxHostLen        = 253
	errorBodyTruncate = 200
)

// Device API paths.
const (
	EndpointReadings           = "/getReadings"
	EndpointHistory            = "/getHistory"
	EndpointConfig             = "/getConfig"
	EndpointWeather            = "/getWeather"
	EndpointOverallDosing      = "/getOverallDosing"
	EndpointOutputStates       = "/getOutputStates"
	EndpointCalibrationRaw     = "/getCalibrationRaw"
	EndpointCalibrationHistory = "/getCalibrationHistory"
	EndpointSetFunction        = "/setFunctionManually"
	EndpointSetTargets         = "/setTargetValues"
	EndpointSetConfig          = "/setConfig"
	EndpointManualDosing       = "/startManualDosing"
	EndpointSetPVSurplus       = "/setPVSurplus"
	EndpointSetDosingParams    = "/setDosingParameters"
	EndpointCalibrationRestore = "/setCalibrationRestore"
	EndpointOutputTest         = "/setOutputTest"
)

// hostnamePattern accepts DNS-style hostnames and dotted IPv4 literals:
// dot-separated labels of letters, digits, and inner hyphens.
var hostnamePattern = regexp.MustCompile(
	`^[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?(\.[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?)*$`)

// blockedHostPrefixes are private, loopback, and link-local ranges the
// client refuses to target. This is an anti-SSRF guard: a hostile config
// must not be able to point the client at internal infrastructure.
var blockedHostPrefixes = []string{
	"127.",
	"10.",
	"172.",
	"192.168.",
	"169.254.",
}

// Config carries everything needed to construct a [Client].
type Config struct {
	// Host is the controller's hostname or public IP. Validated against
	// the SSRF guard before any URL is formed.
	Host string

	// Port is the controller's TCP port. Zero means the scheme default.
	Port int

	// UseTLS selects https when true.
	UseTLS bool

	// Username and Password enable HTTP basic auth when non-empty.
	Username string
	Password string

	// Timeout is the per-request HTTP timeout. Defaults to 10s.
	Timeout time.Duration

	// MaxRetries bounds attempts per request. Defaults to 3.
	MaxRetries int

	// Limiter is the process-wide admission limiter. A default limiter
	// (60 requests/minute, burst 10) is created if nil.
	Limiter *ratelimit.Limiter

	// Breaker isolates the controller when it fails consistently. A
	// default breaker monitoring transport and protocol failures is
	// created if nil.
	Breaker *breaker.Breaker

	// Logger receives request diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client issues typed operations against one pool controller.
//
// All methods are safe for concurrent use. Construction validates the
// target host; a client is never created against a blocked address.
type Client struct {
	baseURL    string
	username   string
	password   string
	timeout    time.Duration
	maxRetries int

	// limiterWait bounds the advisory admission wait; shortened in tests.
	limiterWait time.Duration

	httpClient *http.Client
	limiter    *ratelimit.Limiter
	breaker    *breaker.Breaker
	logger     *slog.Logger
}

// New creates a [Client] for the controller at cfg.Host.
//
// Returns a validation error if the host fails the hostname-format or
// private-address checks.
func New(cfg Config) (*Client, error) {
	host := strings.TrimSpace(cfg.Host)
	if err := validateHost(host); err != nil {
		return nil, err
	}

	scheme := "http"
	if cfg.UseTLS {
		scheme = "https"
	}
	baseURL := scheme + "://" + host
	if cfg.Port != 0 {
		baseURL = fmt.Sprintf("%s:%d", baseURL, cfg.Port)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter, _ = ratelimit.New(60, time.Minute, 10)
	}
	brk := cfg.Breaker
	if brk == nil {
		brk = breaker.New(breaker.Config{Monitor: MonitorNetworkErrors})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:     baseURL,
		username:    cfg.Username,
		password:    cfg.Password,
		timeout:     timeout,
		maxRetries:  maxRetries,
		limiterWait: limiterWaitTimeout,
		httpClient: &http.Client{
			// no global timeout: per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
				DisableKeepAlives:   false,
			},
		},
		limiter: limiter,
		breaker: brk,
		logger:  logger,
	}, nil
}

// MonitorNetworkErrors is the breaker monitor used for this client: only
// transport and protocol failures count toward tripping the circuit.
// Validation mistakes say nothing about device health.
func MonitorNetworkErrors(err error) bool {
	return IsKind(err, KindTransport) || IsKind(err, KindProtocol)
}

// Close releases idle connections in the client's pool.
//
// Safe to call multiple times; the client remains usable afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

// validateHost applies the anti-SSRF guard and hostname format check.
func validateHost(host string) error {
	reject := func(reason string) error {
		return &Error{
			Kind:    KindValidation,
			Message: fmt.Sprintf("host %q rejected: %s", host, reason),
		}
	}

	if host == "" {
		return reject("empty")
	}
	if len(host) > maxHostLen {
		return reject(fmt.Sprintf("longer than %d characters", maxHostLen))
	}
	if strings.Contains(host, "..") || strings.Contains(host, "//") {
		return reject("contains path sequence")
	}
	for _, prefix := range blockedHostPrefixes {
		if strings.HasPrefix(host, prefix) {
			return reject("private, loopback, or link-local address")
		}
	}
	if !hostnamePattern.MatchString(host) {
		return reject("not a valid hostname")
	}
	return nil
}

// request describes one call through the pipeline. Exactly one of params
// and rawQuery may be set; supplying both is a caller bug surfaced as a
// validation error.
type request struct {
	endpoint   string
	method     string
	params     url.Values
	rawQuery   string
	body       any
	expectJSON bool
	priority   ratelimit.Priority
}

// do runs the full request pipeline: limiter admission, URL construction,
// and up to maxRetries breaker-gated attempts with capped backoff between
// transport failures. It returns the raw response body.
func (c *Client) do(ctx context.Context, rq request) ([]byte, error) {
	if len(rq.params) > 0 && rq.rawQuery != "" {
		return nil, &Error{
			Kind:     KindValidation,
			Endpoint: rq.endpoint,
			Message:  "params and rawQuery are mutually exclusive",
		}
	}

	switch err := c.limiter.WaitIfNeeded(ctx, rq.priority, c.limiterWait); {
	case err == nil:
	case errors.Is(err, ratelimit.ErrWaitTimeout):
		// availability over strict admission at this boundary: log and proceed
		c.logger.Warn("rate limiter wait timed out, proceeding",
			"endpoint", rq.endpoint,
			"priority", string(rq.priority),
		)
	default:
		return nil, &Error{Kind: KindTransport, Endpoint: rq.endpoint, Err: err}
	}

	fullURL := c.baseURL + rq.endpoint
	if len(rq.params) > 0 {
		fullURL += "?" + rq.params.Encode()
	} else if rq.rawQuery != "" {
		fullURL += "?" + rq.rawQuery
	}

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		var body []byte
		err := c.breaker.Do(ctx, func(ctx context.Context) error {
			b, attemptErr := c.attempt(ctx, rq, fullURL, attempt)
			body = b
			return attemptErr
		})
		if err == nil {
			return body, nil
		}
		if errors.Is(err, breaker.ErrOpen) {
			return nil, &Error{
				Kind:     KindCircuitOpen,
				Endpoint: rq.endpoint,
				Attempt:  attempt,
				Err:      err,
			}
		}
		if Retryable(err) && attempt < c.maxRetries {
			delay := retryBackoff(attempt)
			c.logger.Debug("transport failure, backing off",
				"endpoint", rq.endpoint,
				"attempt", attempt,
				"delay", delay.String(),
				"error", err.Error(),
			)
			if sleepErr := sleepCtx(ctx, delay); sleepErr != nil {
				return nil, &Error{Kind: KindTransport, Endpoint: rq.endpoint, Attempt: attempt, Err: sleepErr}
			}
			continue
		}
		return nil, err
	}

	// unreachable with maxRetries >= 1, kept as a hard stop
	return nil, &Error{Kind: KindProtocol, Endpoint: rq.endpoint, Message: "no data received"}
}

// attempt issues a single HTTP call and classifies the outcome.
func (c *Client) attempt(ctx context.Context, rq request, fullURL string, attempt int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if rq.body != nil {
		encoded, err := json.Marshal(rq.body)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Endpoint: rq.endpoint, Message: "unencodable request body", Err: err}
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, rq.method, fullURL, reqBody)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Endpoint: rq.endpoint, Message: "failed to create request", Err: err}
	}
	if rq.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Endpoint: rq.endpoint, Attempt: attempt, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, &Error{
			Kind:       KindTransport,
			Endpoint:   rq.endpoint,
			StatusCode: resp.StatusCode,
			Attempt:    attempt,
			Message:    "failed to read response body",
			Err:        err,
		}
	}

	if resp.StatusCode >= 400 {
		return nil, &Error{
			Kind:       KindProtocol,
			Endpoint:   rq.endpoint,
			StatusCode: resp.StatusCode,
			Attempt:    attempt,
			Message:    truncate(string(body), errorBodyTruncate),
		}
	}

	if rq.expectJSON && !json.Valid(body) {
		return nil, &Error{
			Kind:       KindProtocol,
			Endpoint:   rq.endpoint,
			StatusCode: resp.StatusCode,
			Attempt:    attempt,
			Message:    "response is not valid JSON: " + truncate(string(body), errorBodyTruncate),
		}
	}

	return body, nil
}

// getJSON issues a GET expecting a JSON object and returns the decoded
// mapping. A non-object top level is a protocol error; callers never see a
// partially parsed structure.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, rawQuery string, priority ratelimit.Priority) (map[string]any, error) {
	body, err := c.do(ctx, request{
		endpoint:   endpoint,
		method:     http.MethodGet,
		params:     params,
		rawQuery:   rawQuery,
		expectJSON: true,
		priority:   priority,
	})
	if err != nil {
		return nil, err
	}

	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, &Error{
			Kind:     KindProtocol,
			Endpoint: endpoint,
			Message:  "response is not a JSON object",
			Err:      err,
		}
	}
	return m, nil
}

// retryBackoff computes the capped exponential delay before retrying the
// given 1-based attempt: min(2s, 200ms * 2^(attempt-1)).
func retryBackoff(attempt int) time.Duration {
	delay := backoffBase << (attempt - 1)
	if delay > backoffCap {
		return backoffCap
	}
	return delay
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// truncate bounds s to n bytes for error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
