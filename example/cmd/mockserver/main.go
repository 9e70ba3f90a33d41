// Standalone mock pool controller for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/aquapoll serve -c example/config.yaml
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

func main() {
	fmt.Println("Mock pool controller starting on :9999")
	fmt.Println("Readings drift on every poll; commands are logged")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		mu     sync.Mutex
		pumpOn = true
		ph     = 7.2
		redox  = 720.0
		temp   = 26.5
	)

	http.HandleFunc("/getReadings", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)

		mu.Lock()
		ph += (rand.Float64() - 0.5) * 0.05
		redox += (rand.Float64() - 0.5) * 10
		temp += (rand.Float64() - 0.5) * 0.2
		pump := 0
		if pumpOn {
			pump = 2
		}
		readings := map[string]any{
			"pH_value":       ph,
			"REDOX_value":    redox,
			"onewire1_value": temp,
			"PUMP":           pump,
		}
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(readings)
	})

	http.HandleFunc("/setFunctionManually", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.RawQuery, ",")
		if len(parts) < 2 {
			http.Error(w, "ERROR: malformed command", http.StatusBadRequest)
			return
		}

		mu.Lock()
		if parts[0] == "PUMP" {
			pumpOn = parts[1] == "ON"
		}
		mu.Unlock()

		slog.Info("command received", "key", parts[0], "action", parts[1])
		fmt.Fprintf(w, "OK\n%s", parts[0])
	})

	http.HandleFunc("/startManualDosing", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("manual dosing requested", "raw", r.URL.RawQuery)
		fmt.Fprint(w, "OK")
	})

	if err := http.ListenAndServe(":9999", nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
