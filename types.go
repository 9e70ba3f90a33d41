package aquapoll

import (
	"fmt"
	"time"
)

// Device action constants accepted by [Controller.SetSwitchState] and the
// other switching commands.
const (
	// ActionOn switches an output on.
	ActionOn = "ON"

	// ActionOff switches an output off.
	ActionOff = "OFF"

	// ActionAuto returns an output to schedule-controlled operation.
	ActionAuto = "AUTO"

	// ActionManual places an output under manual control.
	ActionManual = "MAN"

	// ActionPush triggers a digital input rule once.
	ActionPush = "PUSH"

	// ActionLock and ActionUnlock control digital input rule locks.
	ActionLock   = "LOCK"
	ActionUnlock = "UNLOCK"

	// ActionColor advances a light's color program.
	ActionColor = "COLOR"
)

// Update is a snapshot change delivered to update callbacks.
//
// Update is immutable after creation: Values is a private copy, so
// callbacks may read it without synchronization.
type Update struct {
	// Values contains all readings keyed by device key (e.g. "pH_value").
	Values map[string]any

	// UpdatedAt is the time of the last successful poll.
	UpdatedAt time.Time

	// Available reports whether the controller was reachable when this
	// update was published.
	Available bool
}

// CommandResult reports the outcome of a write command.
//
// Success reflects the device's own response text; Response preserves the
// raw body for logging or custom handling.
type CommandResult struct {
	// Success is true when the device accepted the command.
	Success bool

	// Response is the device's raw response text.
	Response string
}

// CalibrationRecord is one entry in a sensor's calibration history.
type CalibrationRecord struct {
	// Timestamp is when the calibration was performed.
	Timestamp time.Time

	// Value is the calibrated reference value.
	Value float64

	// Type names the calibration procedure (e.g. "2-point", "offset").
	Type string
}

// SafetyLockError is returned when a dosing or forced-off command targets
// a device key that is currently safety-locked.
type SafetyLockError struct {
	// Key is the locked device key.
	Key string

	// Remaining is how long the lock stays engaged.
	Remaining time.Duration
}

// Error implements the error interface.
func (e *SafetyLockError) Error() string {
	return fmt.Sprintf("device %s is safety-locked for another %s", e.Key, e.Remaining.Round(time.Second))
}
