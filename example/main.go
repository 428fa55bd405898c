package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/pollmatch"
)

func main() {
	// start mock server (see mock_server.go)
	go StartMockRenderServer(":9999")
	time.Sleep(100 * time.Millisecond)

	p, err := pollmatch.New(
		pollmatch.WithMaxConcurrency(2),
		pollmatch.WithAttemptCallback(func(a pollmatch.Attempt) {
			fmt.Printf("  attempt %d of %s: status=%d matched=%v\n", a.Number, a.PollID[:8], a.StatusCode, a.Matched)
		}),
	)
	if err != nil {
		slog.Error("failed to create poller", "error", err)
		os.Exit(1)
	}
	defer p.Close()

	// one job per render; each waits for its own history entry
	var jobs []pollmatch.Job
	for _, id := range []string{"a1", "b2", "c3"} {
		req, err := pollmatch.NewRequest("http://localhost:9999/history/" + id)
		if err != nil {
			slog.Error("failed to create request", "error", err)
			os.Exit(1)
		}
		jobs = append(jobs, pollmatch.Job{
			Name:        "render " + id,
			Request:     req,
			Match:       pollmatch.JSONSubset(`{"` + id + `":{"status":{"completed":true}}}`),
			MaxAttempts: 20,
			Delay:       500 * time.Millisecond,
			Extract:     id + ".outputs.9.images.0.filename",
		})
	}

	fmt.Println()
	fmt.Println("  pollmatch demo: 3 renders, at most 2 polled at once")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, r := range p.RunAll(ctx, jobs) {
		if r.Found {
			fmt.Printf("%s: %s after %d attempts -> %s\n", r.Job.Name, r.Outcome.State(), r.Outcome.Attempts, r.Extracted.Text())
			continue
		}
		fmt.Printf("%s: %s after %d attempts\n", r.Job.Name, r.Outcome.State(), r.Outcome.Attempts)
	}
}
