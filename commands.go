package aquapoll

import (
	"context"
	"time"

	"github.com/jpalmerr/aquapoll/internal/api"
	"github.com/jpalmerr/aquapoll/internal/sanitize"
)

// EngageSafetyLock blocks dosing and forced-off commands for the given
// device key until the duration elapses.
//
// Engaging a lock that is already held replaces its expiry. A non-positive
// duration releases the lock. The key is normalized the same way command
// keys are (uppercased, non-alphanumeric characters stripped).
func (c *Controller) EngageSafetyLock(key string, d time.Duration) error {
	normalized, err := sanitize.DeviceKey(key)
	if err != nil {
		return err
	}
	c.locks.Engage(normalized, d)
	return nil
}

// SafetyLockRemaining reports how long the given device key stays locked.
// Zero means unlocked.
func (c *Controller) SafetyLockRemaining(key string) time.Duration {
	normalized, err := sanitize.DeviceKey(key)
	if err != nil {
		return 0
	}
	return c.locks.Remaining(normalized)
}

// checkLock returns a [SafetyLockError] if the key is currently locked.
// The key must already be normalized.
func (c *Controller) checkLock(key string) error {
	if remaining := c.locks.Remaining(key); remaining > 0 {
		return &SafetyLockError{Key: key, Remaining: remaining}
	}
	return nil
}

// --- Reads ---

// GetSpecificReadings fetches only the given device keys, normalized and
// validated before the request is issued.
func (c *Controller) GetSpecificReadings(ctx context.Context, keys []string) (map[string]any, error) {
	return c.client.GetSpecificReadings(ctx, keys)
}

// GetHistory fetches historical readings between two date strings
// (device-native format, e.g. "2026-03-01").
func (c *Controller) GetHistory(ctx context.Context, from, to string) (map[string]any, error) {
	return c.client.GetHistory(ctx, from, to)
}

// GetConfig fetches the device's configuration map.
func (c *Controller) GetConfig(ctx context.Context) (map[string]any, error) {
	return c.client.GetConfig(ctx)
}

// GetWeatherData fetches the device's weather readings.
func (c *Controller) GetWeatherData(ctx context.Context) (map[string]any, error) {
	return c.client.GetWeatherData(ctx)
}

// GetOverallDosing fetches aggregate dosing statistics.
func (c *Controller) GetOverallDosing(ctx context.Context) (map[string]any, error) {
	return c.client.GetOverallDosing(ctx)
}

// GetOutputStates fetches the current relay and output states.
func (c *Controller) GetOutputStates(ctx context.Context) (map[string]any, error) {
	return c.client.GetOutputStates(ctx)
}

// GetCalibrationRawValues fetches the raw probe values for a sensor.
func (c *Controller) GetCalibrationRawValues(ctx context.Context, device string) (map[string]any, error) {
	return c.client.GetCalibrationRawValues(ctx, device)
}

// GetCalibrationHistory fetches a sensor's calibration history.
func (c *Controller) GetCalibrationHistory(ctx context.Context, device string) ([]CalibrationRecord, error) {
	records, err := c.client.GetCalibrationHistory(ctx, device)
	if err != nil {
		return nil, err
	}
	out := make([]CalibrationRecord, len(records))
	for i, r := range records {
		out[i] = CalibrationRecord{Timestamp: r.Timestamp, Value: r.Value, Type: r.Type}
	}
	return out, nil
}

// --- Commands ---

// SetSwitchState switches a device output.
//
// key is the device key (e.g. "PUMP", "LIGHT", "EXT1_1"), action one of
// the Action constants, duration an optional runtime in seconds, and
// lastValue an optional secondary value (pump speed, light color). Zero
// lastValue lets the device key's template default apply.
//
// Forced-off commands ([ActionOff]) respect safety locks: a locked key
// fails with [SafetyLockError], and a successful forced-off engages the
// key's lock for the configured cooldown (see [WithForceOffCooldown]).
func (c *Controller) SetSwitchState(ctx context.Context, key, action string, duration, lastValue int) (CommandResult, error) {
	if action != ActionOff {
		return c.wrap(c.client.SetSwitchState(ctx, key, action, duration, lastValue))
	}

	normalized, err := sanitize.DeviceKey(key)
	if err != nil {
		return CommandResult{}, err
	}
	if err := c.checkLock(normalized); err != nil {
		return CommandResult{}, err
	}

	result, err := c.wrap(c.client.SetSwitchState(ctx, key, action, duration, lastValue))
	if err == nil && result.Success {
		c.locks.Engage(normalized, c.forceOffCooldown)
	}
	return result, err
}

// SetTargetValue sets a regulation target (e.g. "pH", "ORP") to value.
func (c *Controller) SetTargetValue(ctx context.Context, target string, value float64) (CommandResult, error) {
	return c.wrap(c.client.SetTargetValue(ctx, target, value))
}

// SetConfig writes a single configuration parameter.
func (c *Controller) SetConfig(ctx context.Context, param, value string) (CommandResult, error) {
	return c.wrap(c.client.SetConfig(ctx, param, value))
}

// ManualDosing starts a manual dosing run on the given dosing output for
// the given number of seconds (clamped to the device maximum of 24 hours).
//
// Dosing respects safety locks: a locked key fails with [SafetyLockError]
// before anything reaches the device. A successful run engages the key's
// lock for the run duration, so an overlapping dose cannot be started
// while the device is still dispensing.
func (c *Controller) ManualDosing(ctx context.Context, dosingKey string, seconds int) (CommandResult, error) {
	normalized, err := sanitize.DeviceKey(dosingKey)
	if err != nil {
		return CommandResult{}, err
	}
	if err := c.checkLock(normalized); err != nil {
		return CommandResult{}, err
	}

	result, err := c.wrap(c.client.ManualDosing(ctx, dosingKey, seconds))
	if err == nil && result.Success {
		c.locks.Engage(normalized, time.Duration(sanitize.DosingDuration(seconds))*time.Second)
	}
	return result, err
}

// SetPVSurplus switches photovoltaic surplus mode, optionally with a pump
// speed to run at while surplus power is available.
func (c *Controller) SetPVSurplus(ctx context.Context, active bool, pumpSpeed int) (CommandResult, error) {
	return c.wrap(c.client.SetPVSurplus(ctx, active, pumpSpeed))
}

// SetAllDMXScenes applies action to all twelve DMX scenes sequentially.
//
// Scenes that fail do not abort the fan-out; the aggregate result reports
// per-scene outcomes and Success is true only if every scene succeeded.
func (c *Controller) SetAllDMXScenes(ctx context.Context, action string) (CommandResult, error) {
	return c.wrap(c.client.SetAllDMXScenes(ctx, action))
}

// SetLightColorPulse advances the light's color program by one step.
func (c *Controller) SetLightColorPulse(ctx context.Context) (CommandResult, error) {
	return c.wrap(c.client.SetLightColorPulse(ctx))
}

// TriggerDigitalInputRule fires a digital input rule once.
func (c *Controller) TriggerDigitalInputRule(ctx context.Context, ruleKey string) (CommandResult, error) {
	return c.wrap(c.client.TriggerDigitalInputRule(ctx, ruleKey))
}

// SetDigitalInputRuleLock locks or unlocks a digital input rule.
func (c *Controller) SetDigitalInputRuleLock(ctx context.Context, ruleKey string, locked bool) (CommandResult, error) {
	return c.wrap(c.client.SetDigitalInputRuleLock(ctx, ruleKey, locked))
}

// SetDeviceTemperature sets a temperature target, clamped to the device's
// supported range (5-40 degrees Celsius).
func (c *Controller) SetDeviceTemperature(ctx context.Context, device string, temp float64) (CommandResult, error) {
	return c.wrap(c.client.SetDeviceTemperature(ctx, device, temp))
}

// SetPHTarget sets the pH regulation target, clamped to [6.0, 9.0].
func (c *Controller) SetPHTarget(ctx context.Context, value float64) (CommandResult, error) {
	return c.wrap(c.client.SetPHTarget(ctx, value))
}

// SetORPTarget sets the ORP regulation target in mV, clamped to [400, 900].
func (c *Controller) SetORPTarget(ctx context.Context, value float64) (CommandResult, error) {
	return c.wrap(c.client.SetORPTarget(ctx, value))
}

// SetMinChlorineLevel sets the minimum free chlorine level in mg/l,
// clamped to [0, 5].
func (c *Controller) SetMinChlorineLevel(ctx context.Context, value float64) (CommandResult, error) {
	return c.wrap(c.client.SetMinChlorineLevel(ctx, value))
}

// SetDosingParameters writes one dosing parameter for a dosing type.
func (c *Controller) SetDosingParameters(ctx context.Context, dosingType, param string, value float64) (CommandResult, error) {
	return c.wrap(c.client.SetDosingParameters(ctx, dosingType, param, value))
}

// SetPumpSpeed runs the filtration pump at the given speed (clamped to
// [1, 3]).
func (c *Controller) SetPumpSpeed(ctx context.Context, speed int) (CommandResult, error) {
	return c.wrap(c.client.SetPumpSpeed(ctx, speed))
}

// ControlPump switches the filtration pump on or off.
//
// Switching the pump off respects safety locks on the PUMP key and, on
// success, engages the lock for the configured force-off cooldown.
func (c *Controller) ControlPump(ctx context.Context, on bool) (CommandResult, error) {
	if on {
		return c.wrap(c.client.ControlPump(ctx, on))
	}

	if err := c.checkLock("PUMP"); err != nil {
		return CommandResult{}, err
	}
	result, err := c.wrap(c.client.ControlPump(ctx, on))
	if err == nil && result.Success {
		c.locks.Engage("PUMP", c.forceOffCooldown)
	}
	return result, err
}

// RestoreCalibration restores a sensor's factory calibration.
func (c *Controller) RestoreCalibration(ctx context.Context, device string) (CommandResult, error) {
	return c.wrap(c.client.RestoreCalibration(ctx, device))
}

// SetOutputTestMode puts an output into or out of test mode.
func (c *Controller) SetOutputTestMode(ctx context.Context, output string, active bool) (CommandResult, error) {
	return c.wrap(c.client.SetOutputTestMode(ctx, output, active))
}

// wrap converts the internal command result to the public type.
func (c *Controller) wrap(result api.CommandResult, err error) (CommandResult, error) {
	if err != nil {
		return CommandResult{}, err
	}
	return CommandResult{Success: result.Success, Response: result.Response}, nil
}
