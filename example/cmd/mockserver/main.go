// Standalone mock render server for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/pollmatch run -c example/polls.yaml
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"
)

func main() {
	fmt.Println("Mock render server starting on :9999")
	fmt.Println("Jobs finish 2-6 seconds after they are first polled")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		readyAt = make(map[string]time.Time)
		mu      sync.Mutex
	)

	http.HandleFunc("GET /history/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		mu.Lock()
		at, exists := readyAt[id]
		if !exists {
			at = time.Now().Add(time.Duration(2+rand.Intn(5)) * time.Second)
			readyAt[id] = at
			slog.Info("job queued", "id", id, "ready_at", at.Format(time.TimeOnly))
		}
		mu.Unlock()

		resp := map[string]any{}
		if time.Now().After(at) {
			resp[id] = map[string]any{
				"status": map[string]any{"status_str": "success", "completed": true},
				"outputs": map[string]any{
					"9": map[string]any{
						"images": []map[string]string{{"filename": "render_" + id + ".png"}},
					},
				},
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(":9999", nil); err != nil {
		slog.Error("mock server error", "error", err)
		os.Exit(1)
	}
}
