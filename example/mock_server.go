package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

// poolState holds the mock controller's mutable state.
type poolState struct {
	mu       sync.Mutex
	pumpOn   bool
	pumpSpd  int
	ph       float64
	redox    float64
	temp     float64
	chlorine float64
}

// StartMockPoolController runs a mock pool controller that answers the
// device's path-based API. Readings drift slightly on every poll so the
// status page shows live updates.
// Call this in a goroutine before starting the adapter.
func StartMockPoolController(addr string) {
	state := &poolState{
		pumpOn:   true,
		pumpSpd:  2,
		ph:       7.2,
		redox:    720,
		temp:     26.5,
		chlorine: 0.8,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/getReadings", func(w http.ResponseWriter, r *http.Request) {
		// simulate small latency variance
		time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)

		state.mu.Lock()
		// random walk within plausible pool ranges
		state.ph = clamp(state.ph+(rand.Float64()-0.5)*0.05, 6.8, 7.6)
		state.redox = clamp(state.redox+(rand.Float64()-0.5)*10, 650, 780)
		state.temp = clamp(state.temp+(rand.Float64()-0.5)*0.2, 24, 29)
		state.chlorine = clamp(state.chlorine+(rand.Float64()-0.5)*0.05, 0.4, 1.4)

		pump := 0
		if state.pumpOn {
			pump = state.pumpSpd
		}
		readings := map[string]any{
			"pH_value":       round(state.ph, 2),
			"REDOX_value":    round(state.redox, 0),
			"onewire1_value": round(state.temp, 1),
			"CL_value":       round(state.chlorine, 2),
			"PUMP":           pump,
			"time":           time.Now().Format("15:04:05"),
		}
		state.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(readings); err != nil {
			slog.Error("failed to write readings", "error", err)
		}
	})

	mux.HandleFunc("/setFunctionManually", func(w http.ResponseWriter, r *http.Request) {
		cmd := r.URL.RawQuery
		parts := strings.Split(cmd, ",")
		if len(parts) < 2 {
			http.Error(w, "ERROR: malformed command", http.StatusBadRequest)
			return
		}

		key, action := parts[0], parts[1]
		state.mu.Lock()
		if key == "PUMP" {
			state.pumpOn = action == "ON"
			if len(parts) >= 4 {
				_, _ = fmt.Sscanf(parts[3], "%d", &state.pumpSpd)
			}
		}
		state.mu.Unlock()

		slog.Info("command received", "key", key, "action", action, "raw", cmd)
		fmt.Fprintf(w, "OK\n%s", key)
	})

	mux.HandleFunc("/startManualDosing", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("manual dosing requested", "raw", r.URL.RawQuery)
		fmt.Fprint(w, "OK")
	})

	mux.HandleFunc("/getOutputStates", func(w http.ResponseWriter, r *http.Request) {
		state.mu.Lock()
		pump := 0
		if state.pumpOn {
			pump = 1
		}
		state.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"PUMP":  pump,
			"LIGHT": 0,
		})
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock controller error", "error", err)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round(v float64, places int) float64 {
	shift := 1.0
	for i := 0; i < places; i++ {
		shift *= 10
	}
	return float64(int64(v*shift+0.5)) / shift
}
