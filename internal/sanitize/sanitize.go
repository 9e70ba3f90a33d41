// Package sanitize normalizes and bounds untrusted values before they are
// used to build device requests or payloads.
//
// Every function is pure: the result depends only on the inputs and the
// explicit bounds, and applying a function twice with the same arguments
// yields the same value as applying it once. Values are clamped or
// defaulted rather than passed through; only the structural validators
// (DeviceKey, APIParameter) can fail outright.
package sanitize

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

// Bounds applied by the domain-specific clamps.
const (
	PHMin     = 6.0
	PHMax     = 9.0
	PHDefault = 7.2

	ORPMin     = 400.0
	ORPMax     = 900.0
	ORPDefault = 700.0

	ChlorineMin     = 0.0
	ChlorineMax     = 5.0
	ChlorineDefault = 0.6

	// DosingDurationMax caps any dosing run at 24 hours, in seconds.
	DosingDurationMax = 86400

	maxDeviceKeyLen = 50
	maxAPIParamLen  = 100
)

// ValidationError reports an input that could not be normalized into an
// acceptable value.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// String truncates v to maxLen and optionally strips special characters
// and HTML-escapes the result.
//
// With allowSpecial false, every character outside [A-Za-z0-9_-] is
// removed. Escaping happens after stripping, so escaped entities survive
// a second pass unchanged.
func String(v string, maxLen int, allowSpecial, escapeHTML bool) string {
	if maxLen > 0 && len(v) > maxLen {
		v = v[:maxLen]
	}

	if !allowSpecial {
		var b strings.Builder
		b.Grow(len(v))
		for _, r := range v {
			if isWordChar(r) {
				b.WriteRune(r)
			}
		}
		v = b.String()
	}

	if escapeHTML {
		// avoid double-escaping on repeated sanitization
		v = html.EscapeString(html.UnescapeString(v))
	}
	return v
}

// Int parses v into an integer, clamping into [min, max].
//
// Accepts integer and float numeric types, booleans, and numeric strings.
// Unparseable input yields def. Pass min > max to skip clamping.
func Int(v any, min, max, def int) int {
	n, ok := toInt(v)
	if !ok {
		return def
	}
	return clampInt(n, min, max)
}

// Float parses v into a float64, clamping into [min, max].
//
// Unparseable input yields def. Pass min > max to skip clamping.
func Float(v any, min, max, def float64) float64 {
	f, ok := toFloat(v)
	if !ok {
		return def
	}
	return clampFloat(f, min, max)
}

// Bool interprets v as a boolean.
//
// Case-insensitive "true", "1", "yes", "on", "enabled" map to true;
// "false", "0", "no", "off", "disabled" map to false. Numeric inputs use
// truthiness (non-zero is true). Anything else yields def.
func Bool(v any, def bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "on", "enabled":
			return true
		case "false", "0", "no", "off", "disabled":
			return false
		}
		return def
	default:
		if f, ok := toFloat(v); ok {
			return f != 0
		}
		return def
	}
}

// DeviceKey uppercases key and strips every character outside [A-Z0-9_].
//
// Returns a ValidationError if the normalized key exceeds 50 characters
// or is empty after stripping.
func DeviceKey(key string) (string, error) {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range strings.ToUpper(key) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	if cleaned == "" {
		return "", &ValidationError{Field: "device key", Reason: "empty after normalization"}
	}
	if len(cleaned) > maxDeviceKeyLen {
		return "", &ValidationError{
			Field:  "device key",
			Reason: fmt.Sprintf("length %d exceeds maximum %d", len(cleaned), maxDeviceKeyLen),
		}
	}
	return cleaned, nil
}

// APIParameter strips every character outside [A-Za-z0-9_-] from param.
//
// Returns a ValidationError if the raw input carries a path-traversal
// sequence ("..", "/", "\") or if the stripped result exceeds 100
// characters. The traversal check runs on the raw value so an attacker
// cannot rely on stripping to launder a traversal into a clean parameter.
func APIParameter(param string) (string, error) {
	if strings.Contains(param, "..") ||
		strings.ContainsAny(param, `/\`) {
		return "", &ValidationError{Field: "api parameter", Reason: "path traversal sequence detected"}
	}

	var b strings.Builder
	b.Grow(len(param))
	for _, r := range param {
		if isWordChar(r) {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	if len(cleaned) > maxAPIParamLen {
		return "", &ValidationError{
			Field:  "api parameter",
			Reason: fmt.Sprintf("length %d exceeds maximum %d", len(cleaned), maxAPIParamLen),
		}
	}
	return cleaned, nil
}

// PH clamps v into the plausible pool pH range [6.0, 9.0], defaulting
// unparseable input to 7.2.
func PH(v any) float64 {
	return Float(v, PHMin, PHMax, PHDefault)
}

// ORP clamps v into [400, 900] mV, defaulting unparseable input to 700.
func ORP(v any) float64 {
	return Float(v, ORPMin, ORPMax, ORPDefault)
}

// Chlorine clamps v into [0.0, 5.0] mg/L, defaulting unparseable input
// to 0.6.
func Chlorine(v any) float64 {
	return Float(v, ChlorineMin, ChlorineMax, ChlorineDefault)
}

// Temperature clamps v into the caller's configured range [min, max],
// defaulting unparseable input to def.
func Temperature(v any, min, max, def float64) float64 {
	return Float(v, min, max, def)
}

// DosingDuration clamps v into [0, 86400] seconds, defaulting unparseable
// input to 0.
func DosingDuration(v any) int {
	return Int(v, 0, DosingDurationMax, 0)
}

// PumpSpeed clamps v into [1, max], defaulting unparseable input to 1.
func PumpSpeed(v any, max int) int {
	return Int(v, 1, max, 1)
}

// isWordChar reports whether r is in [A-Za-z0-9_-].
func isWordChar(r rune) bool {
	return (r >= 'A' && r <= 'Z') ||
		(r >= 'a' && r <= 'z') ||
		(r >= '0' && r <= '9') ||
		r == '_' || r == '-'
}

func clampInt(n, min, max int) int {
	if min > max {
		return n
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

func clampFloat(f, min, max float64) float64 {
	if min > max {
		return f
	}
	if f < min {
		return min
	}
	if f > max {
		return max
	}
	return f
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int8:
		return int(t), true
	case int16:
		return int(t), true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case uint:
		return int(t), true
	case uint8:
		return int(t), true
	case uint16:
		return int(t), true
	case uint32:
		return int(t), true
	case uint64:
		return int(t), true
	case float32:
		return int(t), true
	case float64:
		return int(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return int(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f, true
		}
		return 0, false
	default:
		return 0, false
	}
}
