package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pollmatch"
	"github.com/jpalmerr/pollmatch/config"
	"github.com/jpalmerr/pollmatch/internal/metrics"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP poll service",
		Long: `Start the pollmatch HTTP service.

The service will:
  - Accept polls as JSON on POST /api/polls
  - Report them on GET /api/polls and GET /api/polls/{id}
  - Stream updates as Server-Sent Events on GET /api/sse
  - Expose Prometheus metrics on GET /metrics

With -c, the port and concurrency come from the config file; --port
overrides the port. The service runs until interrupted (Ctrl+C) or it
receives SIGTERM, then waits for running polls to record their outcome.

Example:
  pollmatch serve --port 8080
  pollmatch serve -c polls.yaml`,
		RunE: runServe,
	}

	cmd.Flags().StringP("config", "c", "", "path to config file")
	cmd.Flags().IntP("port", "p", 8080, "HTTP port")
	cmd.Flags().Int("max-records", 1000, "how many polls the service remembers")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	port, _ := cmd.Flags().GetInt("port")
	maxRecords, _ := cmd.Flags().GetInt("max-records")
	concurrency := 0

	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if !cmd.Flags().Changed("port") {
			port = cfg.Port
		}
		concurrency = cfg.Concurrency
		logger.Info("config loaded", "port", cfg.Port, "concurrency", cfg.Concurrency)
	}

	rec := metrics.NewRecorder()

	opts := []pollmatch.Option{
		pollmatch.WithLogger(logger),
		pollmatch.WithAttemptCallback(rec.ObserveAttempt),
		pollmatch.WithOutcomeCallback(rec.ObservePoll),
	}
	if concurrency > 0 {
		opts = append(opts, pollmatch.WithMaxConcurrency(concurrency))
	}

	p, err := pollmatch.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create poller: %w", err)
	}
	defer p.Close()

	logger.Info("starting server", "port", port)

	// blocks until the context is cancelled by SIGINT/SIGTERM
	err = p.Serve(cmd.Context(), port,
		pollmatch.WithHandler("GET /metrics", rec.Handler()),
		pollmatch.WithMaxRecords(maxRecords),
		pollmatch.WithInFlightHooks(rec.PollStarted, rec.PollFinished),
	)
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
