package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// StartMockRenderServer runs a mock render backend.
//
// GET /history/{id} returns {} until the job finishes, then a history entry
// with output images. A job finishes 2-6 seconds after it is first polled.
// GET /queue lists the jobs still pending.
// Call this in a goroutine before polling it.
func StartMockRenderServer(addr string) {
	var (
		readyAt = make(map[string]time.Time)
		mu      sync.Mutex
	)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /history/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		// simulate small latency variance
		time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)

		mu.Lock()
		at, exists := readyAt[id]
		if !exists {
			at = time.Now().Add(time.Duration(2+rand.Intn(5)) * time.Second)
			readyAt[id] = at
		}
		mu.Unlock()

		resp := map[string]any{}
		if time.Now().After(at) {
			resp[id] = map[string]any{
				"status": map[string]any{"status_str": "success", "completed": true},
				"outputs": map[string]any{
					"9": map[string]any{
						"images": []map[string]string{
							{"filename": "render_" + id + ".png", "type": "output"},
						},
					},
				},
			}
		}
		writeJSON(w, resp)
	})

	mux.HandleFunc("GET /queue", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		pending := []string{}
		for id, at := range readyAt {
			if time.Now().Before(at) {
				pending = append(pending, id)
			}
		}
		mu.Unlock()

		writeJSON(w, map[string]any{"queue_running": []string{}, "queue_pending": pending})
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
