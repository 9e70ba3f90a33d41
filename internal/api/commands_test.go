package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestCommandSucceeded(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     bool
	}{
		{"empty body", "", true},
		{"ok line", "OK", true},
		{"ok with key", "OK\nPUMP", true},
		{"lowercase error", "error: bad key", false},
		{"uppercase error", "ERROR 42", false},
		{"embedded error", "command failed with ErRoR", false},
		{"unrelated text", "done", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := commandSucceeded(tt.response); got != tt.want {
				t.Errorf("commandSucceeded(%q) = %v, want %v", tt.response, got, tt.want)
			}
		})
	}
}

// TestSetSwitchState_RendersTemplate verifies the per-key template fills
// and URL-encodes with commas preserved, and that a plain-text response is
// normalized into the uniform envelope.
func TestSetSwitchState_RendersTemplate(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("OK\nPUMP"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, Config{})

	result, err := c.SetSwitchState(context.Background(), "PUMP", ActionOn, 0, 2)
	if err != nil {
		t.Fatalf("SetSwitchState failed: %v", err)
	}
	if !result.Success {
		t.Error("expected success")
	}
	if result.Response != "OK\nPUMP" {
		t.Errorf("unexpected response %q", result.Response)
	}
	if gotQuery != "PUMP,ON,0,2" {
		t.Errorf("expected query PUMP,ON,0,2, got %q", gotQuery)
	}
}

func TestSetSwitchState_GenericFallback(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("OK"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, Config{})

	if _, err := c.SetSwitchState(context.Background(), "EXT1_1", ActionAuto, 0, 0); err != nil {
		t.Fatalf("SetSwitchState failed: %v", err)
	}
	if gotQuery != "EXT1_1,AUTO,0,0" {
		t.Errorf("expected generic key,action,duration,value shape, got %q", gotQuery)
	}
}

func TestSetSwitchState_DefaultsApplyWhenSecondaryOmitted(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("OK"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, Config{})

	// PUMP's speed slot defaults to 2 when no secondary value is given
	if _, err := c.SetSwitchState(context.Background(), "PUMP", ActionOff, 0, 0); err != nil {
		t.Fatalf("SetSwitchState failed: %v", err)
	}
	if gotQuery != "PUMP,OFF,0,2" {
		t.Errorf("expected template default in speed slot, got %q", gotQuery)
	}
}

func TestSetSwitchState_NegativeSecondaryClampedToDefault(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("OK"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, Config{})

	// a negative secondary value must never reach the device verbatim;
	// it clamps to zero, so the template default fills the slot
	if _, err := c.SetSwitchState(context.Background(), "PUMP", ActionOn, 0, -5); err != nil {
		t.Fatalf("SetSwitchState failed: %v", err)
	}
	if gotQuery != "PUMP,ON,0,2" {
		t.Errorf("expected clamped secondary to fall back to template default, got %q", gotQuery)
	}
}

func TestSetSwitchState_InvalidInputs(t *testing.T) {
	c := newTestClient(t, "", Config{})

	if _, err := c.SetSwitchState(context.Background(), "PUMP", "EXPLODE", 0, 0); !IsKind(err, KindValidation) {
		t.Errorf("unknown action: expected validation kind, got %v", err)
	}
	if _, err := c.SetSwitchState(context.Background(), "!!!", ActionOn, 0, 0); !IsKind(err, KindValidation) {
		t.Errorf("bad key: expected validation kind, got %v", err)
	}
}

func TestSetSwitchState_ErrorResponseReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ERROR: unknown output"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, Config{})

	result, err := c.SetSwitchState(context.Background(), "LIGHT", ActionOn, 0, 0)
	if err != nil {
		t.Fatalf("SetSwitchState failed: %v", err)
	}
	if result.Success {
		t.Error("expected failure for error response body")
	}
	if !strings.Contains(result.Response, "ERROR") {
		t.Errorf("response should carry the device text, got %q", result.Response)
	}
}

// TestSetAllDMXScenes_AggregatesPartialFailure verifies the fan-out hits
// all twelve scenes and reports per-scene failures without aborting.
func TestSetAllDMXScenes_AggregatesPartialFailure(t *testing.T) {
	var mu sync.Mutex
	sceneCalls := make([]string, 0, 12)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.RawQuery
		mu.Lock()
		sceneCalls = append(sceneCalls, query)
		mu.Unlock()

		if strings.HasPrefix(query, "DMX_SCENE7,") {
			_, _ = w.Write([]byte("ERROR: scene unavailable"))
			return
		}
		_, _ = w.Write([]byte("OK"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, Config{})

	result, err := c.SetAllDMXScenes(context.Background(), ActionOn)
	if err != nil {
		t.Fatalf("SetAllDMXScenes failed: %v", err)
	}
	if result.Success {
		t.Error("expected aggregate failure when one scene errors")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sceneCalls) != 12 {
		t.Errorf("expected all 12 scenes attempted, got %d", len(sceneCalls))
	}
	if !strings.Contains(result.Response, "DMX_SCENE7") {
		t.Errorf("aggregate response should name the failing scene:\n%s", result.Response)
	}
	if !strings.Contains(result.Response, "DMX_SCENE12") {
		t.Errorf("scenes after the failure should still be attempted:\n%s", result.Response)
	}
}

func TestSetTargetValue_SendsJSON(t *testing.T) {
	var gotBody string
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotContentType = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte("OK"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, Config{})

	result, err := c.SetPHTarget(context.Background(), 7.0)
	if err != nil {
		t.Fatalf("SetPHTarget failed: %v", err)
	}
	if !result.Success {
		t.Error("expected success")
	}
	if gotContentType != "application/json" {
		t.Errorf("expected JSON content type, got %q", gotContentType)
	}
	if !strings.Contains(gotBody, `"target":"pH"`) || !strings.Contains(gotBody, `"value":7`) {
		t.Errorf("unexpected body %q", gotBody)
	}
}

// TestClampedCommands verifies out-of-range domain values are clamped, not
// rejected, before reaching the wire.
func TestClampedCommands(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte("OK"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, Config{})

	if _, err := c.SetPHTarget(context.Background(), 12.5); err != nil {
		t.Fatalf("SetPHTarget failed: %v", err)
	}
	if !strings.Contains(gotBody, `"value":9`) {
		t.Errorf("expected pH clamped to 9, got %q", gotBody)
	}

	if _, err := c.SetORPTarget(context.Background(), 100); err != nil {
		t.Fatalf("SetORPTarget failed: %v", err)
	}
	if !strings.Contains(gotBody, `"value":400`) {
		t.Errorf("expected ORP clamped to 400, got %q", gotBody)
	}
}

func TestManualDosing_ClampsDuration(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("OK"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, Config{})

	if _, err := c.ManualDosing(context.Background(), "DOS_1_CL", 100000); err != nil {
		t.Fatalf("ManualDosing failed: %v", err)
	}
	if gotQuery != "DOS_1_CL,MAN,86400" {
		t.Errorf("expected clamped duration, got %q", gotQuery)
	}
}

func TestSetOutputTestMode(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("OK"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, Config{})

	if _, err := c.SetOutputTestMode(context.Background(), "relay_3", true); err != nil {
		t.Fatalf("SetOutputTestMode failed: %v", err)
	}
	if gotQuery != "RELAY_3,ON" {
		t.Errorf("expected normalized key in query, got %q", gotQuery)
	}
}
