package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jpalmerr/aquapoll/internal/ratelimit"
	"github.com/jpalmerr/aquapoll/internal/sanitize"
)

// CalibrationRecord is one entry of a sensor's calibration history.
//
// The device reports history as pipe-delimited lines (timestamp|value|type)
// rather than JSON.
type CalibrationRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Type      string    `json:"type"`
}

// GetReadings fetches the full current state snapshot from the controller.
//
// The returned mapping is the device's complete key set; a poll either
// yields the whole mapping or fails.
func (c *Client) GetReadings(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, EndpointReadings, nil, "ALL", ratelimit.PriorityNormal)
}

// GetSpecificReadings fetches only the named device keys.
//
// Keys are normalized through the sanitizer; an invalid key fails the whole
// call rather than silently narrowing the query.
func (c *Client) GetSpecificReadings(ctx context.Context, keys []string) (map[string]any, error) {
	if len(keys) == 0 {
		return nil, &Error{Kind: KindValidation, Endpoint: EndpointReadings, Message: "no keys requested"}
	}

	cleaned := make([]string, 0, len(keys))
	for _, k := range keys {
		key, err := sanitize.DeviceKey(k)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Endpoint: EndpointReadings, Err: err}
		}
		cleaned = append(cleaned, key)
	}

	return c.getJSON(ctx, EndpointReadings, nil, strings.Join(cleaned, ","), ratelimit.PriorityNormal)
}

// GetHistory fetches logged readings between two dates (YYYY-MM-DD).
func (c *Client) GetHistory(ctx context.Context, from, to string) (map[string]any, error) {
	params := url.Values{}
	for name, v := range map[string]string{"from": from, "to": to} {
		if v == "" {
			continue
		}
		clean, err := sanitize.APIParameter(v)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Endpoint: EndpointHistory, Err: err}
		}
		params.Set(name, clean)
	}
	return c.getJSON(ctx, EndpointHistory, params, "", ratelimit.PriorityLow)
}

// GetConfig fetches the controller's configuration mapping.
func (c *Client) GetConfig(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, EndpointConfig, nil, "", ratelimit.PriorityLow)
}

// GetWeatherData fetches the controller's weather block.
func (c *Client) GetWeatherData(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, EndpointWeather, nil, "", ratelimit.PriorityLow)
}

// GetOverallDosing fetches cumulative dosing totals.
func (c *Client) GetOverallDosing(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, EndpointOverallDosing, nil, "", ratelimit.PriorityLow)
}

// GetOutputStates fetches the on/off state of every output relay.
func (c *Client) GetOutputStates(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, EndpointOutputStates, nil, "", ratelimit.PriorityNormal)
}

// GetCalibrationRawValues fetches the raw probe values for a measuring
// device (for example "pH" or "ORP").
func (c *Client) GetCalibrationRawValues(ctx context.Context, device string) (map[string]any, error) {
	clean, err := sanitize.APIParameter(device)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Endpoint: EndpointCalibrationRaw, Err: err}
	}
	params := url.Values{}
	params.Set("device", clean)
	return c.getJSON(ctx, EndpointCalibrationRaw, params, "", ratelimit.PriorityLow)
}

// GetCalibrationHistory fetches and parses a device's calibration history.
//
// The endpoint responds with plain text, one record per line in the form
// timestamp|value|type. Blank lines are skipped; a malformed line fails the
// call so callers never receive a partially parsed history.
func (c *Client) GetCalibrationHistory(ctx context.Context, device string) ([]CalibrationRecord, error) {
	clean, err := sanitize.APIParameter(device)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Endpoint: EndpointCalibrationHistory, Err: err}
	}

	params := url.Values{}
	params.Set("device", clean)
	body, err := c.do(ctx, request{
		endpoint: EndpointCalibrationHistory,
		method:   http.MethodGet,
		params:   params,
		priority: ratelimit.PriorityLow,
	})
	if err != nil {
		return nil, err
	}

	return parseCalibrationHistory(EndpointCalibrationHistory, string(body))
}

// parseCalibrationHistory converts pipe-delimited lines into records.
func parseCalibrationHistory(endpoint, body string) ([]CalibrationRecord, error) {
	var records []CalibrationRecord

	for i, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Split(line, "|")
		if len(parts) != 3 {
			return nil, &Error{
				Kind:     KindProtocol,
				Endpoint: endpoint,
				Message:  fmt.Sprintf("malformed calibration line %d: %s", i+1, truncate(line, 80)),
			}
		}

		unix, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, &Error{
				Kind:     KindProtocol,
				Endpoint: endpoint,
				Message:  fmt.Sprintf("bad timestamp on line %d", i+1),
				Err:      err,
			}
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, &Error{
				Kind:     KindProtocol,
				Endpoint: endpoint,
				Message:  fmt.Sprintf("bad value on line %d", i+1),
				Err:      err,
			}
		}

		records = append(records, CalibrationRecord{
			Timestamp: time.Unix(unix, 0).UTC(),
			Value:     value,
			Type:      strings.TrimSpace(parts[2]),
		})
	}

	return records, nil
}
