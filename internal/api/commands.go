package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jpalmerr/aquapoll/internal/ratelimit"
	"github.com/jpalmerr/aquapoll/internal/sanitize"
)

// CommandResult is the uniform envelope returned by every mutating
// operation, regardless of whether the transport answered with JSON or
// plain text.
type CommandResult struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
}

// Action tokens accepted by the controller's switch endpoint.
const (
	ActionOn     = "ON"
	ActionOff    = "OFF"
	ActionAuto   = "AUTO"
	ActionManual = "MAN"
	ActionPush   = "PUSH"
	ActionLock   = "LOCK"
	ActionUnlock = "UNLOCK"
	ActionColor  = "COLOR"
)

// dmxSceneCount is the number of DMX scenes addressed by the fan-out.
const dmxSceneCount = 12

// maxPumpSpeed is the highest speed step the filter pump accepts.
const maxPumpSpeed = 3

var validActions = map[string]bool{
	ActionOn:     true,
	ActionOff:    true,
	ActionAuto:   true,
	ActionManual: true,
	ActionPush:   true,
	ActionLock:   true,
	ActionUnlock: true,
	ActionColor:  true,
}

// command sends a mutating request and normalizes the response into a
// [CommandResult]. The success heuristic is deliberately literal: the
// device speaks a loose plain-text protocol, so success means the body is
// empty or lacks the case-insensitive substring "error".
func (c *Client) command(ctx context.Context, rq request) (CommandResult, error) {
	body, err := c.do(ctx, rq)
	if err != nil {
		return CommandResult{}, err
	}

	text := strings.TrimSpace(string(body))
	return CommandResult{
		Success:  commandSucceeded(text),
		Response: text,
	}, nil
}

// commandSucceeded applies the plain-text success heuristic.
func commandSucceeded(response string) bool {
	return response == "" || !strings.Contains(strings.ToLower(response), "error")
}

// SetSwitchState is the universal write primitive.
//
// Given a device key and an action token, it renders the per-key command
// template (falling back to the generic key,action,duration,value shape),
// URL-encodes the result preserving commas, and sends it to the switch
// endpoint. lastValue carries the secondary field some devices expect:
// pump speed, light color, or a numeric target.
func (c *Client) SetSwitchState(ctx context.Context, key, action string, duration, lastValue int) (CommandResult, error) {
	cleanKey, err := sanitize.DeviceKey(key)
	if err != nil {
		return CommandResult{}, &Error{Kind: KindValidation, Endpoint: EndpointSetFunction, Err: err}
	}
	if !validActions[action] {
		return CommandResult{}, &Error{
			Kind:     KindValidation,
			Endpoint: EndpointSetFunction,
			Message:  fmt.Sprintf("unknown action %q", action),
		}
	}

	duration = sanitize.DosingDuration(duration)
	lastValue = sanitize.Int(lastValue, 0, math.MaxInt, 0)

	values := map[string]string{
		"key":      cleanKey,
		"action":   action,
		"duration": strconv.Itoa(duration),
	}
	if lastValue != 0 {
		// zero means "not supplied": the template default fills the slot
		secondary := strconv.Itoa(lastValue)
		values["value"] = secondary
		values["speed"] = secondary
		values["color"] = secondary
	}

	cmd, err := templateFor(cleanKey).Render(EndpointSetFunction, values)
	if err != nil {
		return CommandResult{}, err
	}

	return c.command(ctx, request{
		endpoint: EndpointSetFunction,
		method:   http.MethodGet,
		rawQuery: encodeCommand(cmd),
		priority: ratelimit.PriorityHigh,
	})
}

// SetTargetValue sets a named regulation target (pH, ORP, minimum
// chlorine, temperature) to value.
func (c *Client) SetTargetValue(ctx context.Context, target string, value float64) (CommandResult, error) {
	cleanTarget, err := sanitize.APIParameter(target)
	if err != nil {
		return CommandResult{}, &Error{Kind: KindValidation, Endpoint: EndpointSetTargets, Err: err}
	}

	return c.command(ctx, request{
		endpoint: EndpointSetTargets,
		method:   http.MethodPost,
		body:     map[string]any{"target": cleanTarget, "value": value},
		priority: ratelimit.PriorityHigh,
	})
}

// SetConfig writes a single controller configuration parameter.
func (c *Client) SetConfig(ctx context.Context, param, value string) (CommandResult, error) {
	cleanParam, err := sanitize.APIParameter(param)
	if err != nil {
		return CommandResult{}, &Error{Kind: KindValidation, Endpoint: EndpointSetConfig, Err: err}
	}
	cleanValue := sanitize.String(value, 100, true, false)

	return c.command(ctx, request{
		endpoint: EndpointSetConfig,
		method:   http.MethodPost,
		body:     map[string]any{"parameter": cleanParam, "value": cleanValue},
		priority: ratelimit.PriorityHigh,
	})
}

// ManualDosing starts a manual dosing run on the given dosing channel
// (for example DOS_1_CL) for the given number of seconds, clamped to the
// device's 24-hour maximum.
func (c *Client) ManualDosing(ctx context.Context, dosingKey string, seconds int) (CommandResult, error) {
	cleanKey, err := sanitize.DeviceKey(dosingKey)
	if err != nil {
		return CommandResult{}, &Error{Kind: KindValidation, Endpoint: EndpointManualDosing, Err: err}
	}
	seconds = sanitize.DosingDuration(seconds)

	cmd := fmt.Sprintf("%s,%s,%d", cleanKey, ActionManual, seconds)
	return c.command(ctx, request{
		endpoint: EndpointManualDosing,
		method:   http.MethodGet,
		rawQuery: encodeCommand(cmd),
		priority: ratelimit.PriorityHigh,
	})
}

// SetPVSurplus switches photovoltaic-surplus mode on or off, optionally
// selecting the pump speed to run at while surplus power is available.
func (c *Client) SetPVSurplus(ctx context.Context, active bool, pumpSpeed int) (CommandResult, error) {
	action := ActionOff
	if active {
		action = ActionOn
	}
	speed := sanitize.PumpSpeed(pumpSpeed, maxPumpSpeed)

	cmd, err := templateFor("PVSURPLUS").Render(EndpointSetPVSurplus, map[string]string{
		"key":    "PVSURPLUS",
		"action": action,
		"speed":  strconv.Itoa(speed),
	})
	if err != nil {
		return CommandResult{}, err
	}

	return c.command(ctx, request{
		endpoint: EndpointSetPVSurplus,
		method:   http.MethodGet,
		rawQuery: encodeCommand(cmd),
		priority: ratelimit.PriorityHigh,
	})
}

// SetAllDMXScenes fans one action out to every DMX scene sequentially.
//
// Partial failure is reportable but non-fatal: scenes after a failing one
// are still attempted, and the aggregate result carries every per-scene
// response. Success is true only if every scene succeeded.
func (c *Client) SetAllDMXScenes(ctx context.Context, action string) (CommandResult, error) {
	if !validActions[action] {
		return CommandResult{}, &Error{
			Kind:     KindValidation,
			Endpoint: EndpointSetFunction,
			Message:  fmt.Sprintf("unknown action %q", action),
		}
	}

	allOK := true
	lines := make([]string, 0, dmxSceneCount)

	for scene := 1; scene <= dmxSceneCount; scene++ {
		key := fmt.Sprintf("DMX_SCENE%d", scene)
		result, err := c.SetSwitchState(ctx, key, action, 0, 0)
		if err != nil {
			allOK = false
			lines = append(lines, fmt.Sprintf("%s: %s", key, err.Error()))
			continue
		}
		if !result.Success {
			allOK = false
		}
		lines = append(lines, fmt.Sprintf("%s: %s", key, result.Response))
	}

	return CommandResult{
		Success:  allOK,
		Response: strings.Join(lines, "\n"),
	}, nil
}

// SetLightColorPulse sends the color-change pulse to the light output.
func (c *Client) SetLightColorPulse(ctx context.Context) (CommandResult, error) {
	return c.SetSwitchState(ctx, "LIGHT", ActionColor, 0, 0)
}

// TriggerDigitalInputRule fires the named digital input rule once.
func (c *Client) TriggerDigitalInputRule(ctx context.Context, ruleKey string) (CommandResult, error) {
	return c.SetSwitchState(ctx, ruleKey, ActionPush, 0, 0)
}

// SetDigitalInputRuleLock locks or unlocks a digital input rule.
func (c *Client) SetDigitalInputRuleLock(ctx context.Context, ruleKey string, locked bool) (CommandResult, error) {
	action := ActionUnlock
	if locked {
		action = ActionLock
	}
	return c.SetSwitchState(ctx, ruleKey, action, 0, 0)
}

// Heater and solar setpoints are clamped to a plausible pool range.
const (
	deviceTempMin     = 5.0
	deviceTempMax     = 40.0
	deviceTempDefault = 28.0
)

// SetDeviceTemperature sets the target temperature for a heating device
// (for example "HEATER" or "SOLAR"), clamped into [5, 40] degrees.
func (c *Client) SetDeviceTemperature(ctx context.Context, device string, temp float64) (CommandResult, error) {
	clamped := sanitize.Temperature(temp, deviceTempMin, deviceTempMax, deviceTempDefault)
	return c.SetTargetValue(ctx, device, clamped)
}

// SetPHTarget sets the pH regulation setpoint, clamped into [6.0, 9.0].
func (c *Client) SetPHTarget(ctx context.Context, value float64) (CommandResult, error) {
	return c.SetTargetValue(ctx, "pH", sanitize.PH(value))
}

// SetORPTarget sets the ORP setpoint in mV, clamped into [400, 900].
func (c *Client) SetORPTarget(ctx context.Context, value float64) (CommandResult, error) {
	return c.SetTargetValue(ctx, "ORP", sanitize.ORP(value))
}

// SetMinChlorineLevel sets the minimum free chlorine level in mg/L,
// clamped into [0.0, 5.0].
func (c *Client) SetMinChlorineLevel(ctx context.Context, value float64) (CommandResult, error) {
	return c.SetTargetValue(ctx, "MinChlorine", sanitize.Chlorine(value))
}

// SetDosingParameters writes one parameter of a dosing channel's
// regulation configuration.
func (c *Client) SetDosingParameters(ctx context.Context, dosingType, param string, value float64) (CommandResult, error) {
	cleanType, err := sanitize.APIParameter(dosingType)
	if err != nil {
		return CommandResult{}, &Error{Kind: KindValidation, Endpoint: EndpointSetDosingParams, Err: err}
	}
	cleanParam, err := sanitize.APIParameter(param)
	if err != nil {
		return CommandResult{}, &Error{Kind: KindValidation, Endpoint: EndpointSetDosingParams, Err: err}
	}

	return c.command(ctx, request{
		endpoint: EndpointSetDosingParams,
		method:   http.MethodPost,
		body: map[string]any{
			"dosing_type": cleanType,
			"parameter":   cleanParam,
			"value":       value,
		},
		priority: ratelimit.PriorityHigh,
	})
}

// SetPumpSpeed switches the filter pump on at the given speed step,
// clamped into [1, 3].
func (c *Client) SetPumpSpeed(ctx context.Context, speed int) (CommandResult, error) {
	return c.SetSwitchState(ctx, "PUMP", ActionOn, 0, sanitize.PumpSpeed(speed, maxPumpSpeed))
}

// ControlPump switches the filter pump on or off at its default speed.
func (c *Client) ControlPump(ctx context.Context, on bool) (CommandResult, error) {
	action := ActionOff
	if on {
		action = ActionOn
	}
	return c.SetSwitchState(ctx, "PUMP", action, 0, 0)
}

// RestoreCalibration restores a measuring device's factory calibration.
func (c *Client) RestoreCalibration(ctx context.Context, device string) (CommandResult, error) {
	clean, err := sanitize.APIParameter(device)
	if err != nil {
		return CommandResult{}, &Error{Kind: KindValidation, Endpoint: EndpointCalibrationRestore, Err: err}
	}

	params := url.Values{}
	params.Set("device", clean)
	return c.command(ctx, request{
		endpoint: EndpointCalibrationRestore,
		method:   http.MethodGet,
		params:   params,
		priority: ratelimit.PriorityHigh,
	})
}

// SetOutputTestMode puts a single output relay into or out of test mode.
func (c *Client) SetOutputTestMode(ctx context.Context, output string, active bool) (CommandResult, error) {
	cleanOutput, err := sanitize.DeviceKey(output)
	if err != nil {
		return CommandResult{}, &Error{Kind: KindValidation, Endpoint: EndpointOutputTest, Err: err}
	}

	action := ActionOff
	if active {
		action = ActionOn
	}
	cmd := cleanOutput + "," + action
	return c.command(ctx, request{
		endpoint: EndpointOutputTest,
		method:   http.MethodGet,
		rawQuery: encodeCommand(cmd),
		priority: ratelimit.PriorityHigh,
	})
}

// encodeCommand URL-encodes a rendered command string while preserving the
// commas the device's query parser expects.
func encodeCommand(cmd string) string {
	return strings.ReplaceAll(url.QueryEscape(cmd), "%2C", ",")
}
