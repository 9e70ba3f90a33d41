package sanitize

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		maxLen       int
		allowSpecial bool
		escapeHTML   bool
		want         string
	}{
		{"passthrough", "FILTER_PUMP", 50, true, false, "FILTER_PUMP"},
		{"truncation", "abcdefghij", 4, true, false, "abcd"},
		{"strip special", "pump!@# on?", 50, false, false, "pumpon"},
		{"keeps word chars", "Key_1-b", 50, false, false, "Key_1-b"},
		{"html escape", "<b>on</b>", 50, true, true, "&lt;b&gt;on&lt;/b&gt;"},
		{"empty", "", 50, false, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := String(tt.input, tt.maxLen, tt.allowSpecial, tt.escapeHTML)
			if got != tt.want {
				t.Errorf("String(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestString_Idempotent verifies f(f(x)) == f(x) for identical arguments,
// including the HTML-escaping mode.
func TestString_Idempotent(t *testing.T) {
	inputs := []string{
		"FILTER_PUMP",
		"<script>alert('x')</script>",
		"already &amp; escaped",
		"mixed <tag> &lt;escaped&gt;",
		strings.Repeat("long", 100),
		"",
	}

	for _, in := range inputs {
		for _, allowSpecial := range []bool{true, false} {
			for _, escape := range []bool{true, false} {
				once := String(in, 64, allowSpecial, escape)
				twice := String(once, 64, allowSpecial, escape)
				if once != twice {
					t.Errorf("String not idempotent for %q (special=%v escape=%v): %q != %q",
						in, allowSpecial, escape, once, twice)
				}
			}
		}
	}
}

func TestInt(t *testing.T) {
	tests := []struct {
		name string
		v    any
		min  int
		max  int
		def  int
		want int
	}{
		{"int passthrough", 5, 0, 10, 0, 5},
		{"clamp low", -3, 0, 10, 0, 0},
		{"clamp high", 99, 0, 10, 0, 10},
		{"string parse", "7", 0, 10, 0, 7},
		{"float string", "7.9", 0, 10, 0, 7},
		{"float input", 3.2, 0, 10, 0, 3},
		{"garbage defaults", "pump", 0, 10, 4, 4},
		{"nil defaults", nil, 0, 10, 4, 4},
		{"no clamp when min>max", 500, 1, 0, 0, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Int(tt.v, tt.min, tt.max, tt.def); got != tt.want {
				t.Errorf("Int(%v) = %d, want %d", tt.v, got, tt.want)
			}
		})
	}
}

func TestFloat(t *testing.T) {
	tests := []struct {
		name string
		v    any
		min  float64
		max  float64
		def  float64
		want float64
	}{
		{"passthrough", 7.2, 6.0, 9.0, 7.2, 7.2},
		{"clamp low", 5.0, 6.0, 9.0, 7.2, 6.0},
		{"clamp high", 10.0, 6.0, 9.0, 7.2, 9.0},
		{"string parse", "8.5", 6.0, 9.0, 7.2, 8.5},
		{"int input", 7, 6.0, 9.0, 7.2, 7.0},
		{"garbage defaults", "acid", 6.0, 9.0, 7.2, 7.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Float(tt.v, tt.min, tt.max, tt.def); got != tt.want {
				t.Errorf("Float(%v) = %f, want %f", tt.v, got, tt.want)
			}
		})
	}
}

func TestBool(t *testing.T) {
	tests := []struct {
		name string
		v    any
		def  bool
		want bool
	}{
		{"true string", "true", false, true},
		{"TRUE upper", "TRUE", false, true},
		{"yes", "yes", false, true},
		{"on", "ON", false, true},
		{"enabled", "enabled", false, true},
		{"one string", "1", false, true},
		{"false string", "false", true, false},
		{"no", "No", true, false},
		{"off", "off", true, false},
		{"disabled", "DISABLED", true, false},
		{"zero string", "0", true, false},
		{"native bool", true, false, true},
		{"numeric truthy", 2, false, true},
		{"numeric falsy", 0.0, true, false},
		{"garbage uses default", "maybe", true, true},
		{"nil uses default", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Bool(tt.v, tt.def); got != tt.want {
				t.Errorf("Bool(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestDeviceKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{"already clean", "FILTER_PUMP", "FILTER_PUMP", false},
		{"lowercased input", "dos_1_cl", "DOS_1_CL", false},
		{"strips junk", "pump-1!", "PUMP1", false},
		{"too long", strings.Repeat("A", 51), "", true},
		{"exactly max", strings.Repeat("A", 50), strings.Repeat("A", 50), false},
		{"empty after strip", "!!!", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeviceKey(tt.key)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DeviceKey(%q): expected error, got %q", tt.key, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("DeviceKey(%q) failed: %v", tt.key, err)
			}
			if got != tt.want {
				t.Errorf("DeviceKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestAPIParameter(t *testing.T) {
	tests := []struct {
		name    string
		param   string
		want    string
		wantErr bool
	}{
		{"clean", "pH_target", "pH_target", false},
		{"strips junk", "speed=2", "speed2", false},
		{"path traversal", "../../../etc/passwd", "", true},
		{"forward slash", "a/b", "", true},
		{"backslash", `a\b`, "", true},
		{"too long", strings.Repeat("a", 101), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := APIParameter(tt.param)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("APIParameter(%q): expected error, got %q", tt.param, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("APIParameter(%q) failed: %v", tt.param, err)
			}
			if got != tt.want {
				t.Errorf("APIParameter(%q) = %q, want %q", tt.param, got, tt.want)
			}
		})
	}
}

// TestPH verifies the documented clamping behaviour at and beyond the
// plausible pool pH range.
func TestPH(t *testing.T) {
	tests := []struct {
		v    any
		want float64
	}{
		{5.0, 6.0},
		{10.0, 9.0},
		{7.2, 7.2},
		{"8.0", 8.0},
		{"not a ph", 7.2},
	}

	for _, tt := range tests {
		if got := PH(tt.v); got != tt.want {
			t.Errorf("PH(%v) = %f, want %f", tt.v, got, tt.want)
		}
	}
}

func TestDomainClamps(t *testing.T) {
	if got := ORP(100.0); got != 400.0 {
		t.Errorf("ORP(100) = %f, want 400", got)
	}
	if got := ORP("junk"); got != 700.0 {
		t.Errorf("ORP(junk) = %f, want default 700", got)
	}
	if got := Chlorine(9.0); got != 5.0 {
		t.Errorf("Chlorine(9) = %f, want 5", got)
	}
	if got := Temperature(45.0, 10, 40, 28); got != 40.0 {
		t.Errorf("Temperature(45) = %f, want 40", got)
	}
	if got := DosingDuration(100000); got != DosingDurationMax {
		t.Errorf("DosingDuration(100000) = %d, want %d", got, DosingDurationMax)
	}
	if got := DosingDuration(-5); got != 0 {
		t.Errorf("DosingDuration(-5) = %d, want 0", got)
	}
	if got := PumpSpeed(0, 3); got != 1 {
		t.Errorf("PumpSpeed(0) = %d, want 1", got)
	}
	if got := PumpSpeed(8, 3); got != 3 {
		t.Errorf("PumpSpeed(8) = %d, want 3", got)
	}
}
