package pollmatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/pollmatch/internal/server"
	"github.com/jpalmerr/pollmatch/internal/store"
)

// Record states of polls that have not finished yet.
const (
	stateQueued  = "queued"
	stateRunning = "running"
)

// maxDurationMs is the largest millisecond count that fits a time.Duration.
const maxDurationMs = int64(1<<63-1) / int64(time.Millisecond)

// ErrShuttingDown is returned to HTTP clients submitting polls while
// [Poller.Serve] is stopping.
var ErrShuttingDown = errors.New("service is shutting down")

// serveConfig holds mutable state during Serve setup.
type serveConfig struct {
	handlers   map[string]http.Handler
	listener   net.Listener
	maxRecords int
	onStart    func()
	onFinish   func()
}

// ServeOption configures [Poller.Serve].
type ServeOption func(*serveConfig) error

// WithHandler mounts an extra handler on the service mux, for example a
// Prometheus handler at "GET /metrics". Patterns follow [http.ServeMux].
//
// Returns an error if the pattern is empty or the handler is nil.
func WithHandler(pattern string, h http.Handler) ServeOption {
	return func(cfg *serveConfig) error {
		if pattern == "" {
			return errors.New("handler pattern cannot be empty")
		}
		if h == nil {
			return errors.New("handler cannot be nil")
		}
		cfg.handlers[pattern] = h
		return nil
	}
}

// WithListener serves on ln instead of binding the port passed to Serve.
//
// Returns an error if the listener is nil.
func WithListener(ln net.Listener) ServeOption {
	return func(cfg *serveConfig) error {
		if ln == nil {
			return errors.New("listener cannot be nil")
		}
		cfg.listener = ln
		return nil
	}
}

// WithMaxRecords bounds how many polls the service remembers. The oldest
// finished polls are forgotten first. Defaults to 1000.
//
// Returns an error if the value is zero or negative.
func WithMaxRecords(n int) ServeOption {
	return func(cfg *serveConfig) error {
		if n <= 0 {
			return errors.New("max records must be positive")
		}
		cfg.maxRecords = n
		return nil
	}
}

// WithInFlightHooks registers functions called when a submitted poll starts
// and when it finishes. Either may be nil.
func WithInFlightHooks(started, finished func()) ServeOption {
	return func(cfg *serveConfig) error {
		cfg.onStart = started
		cfg.onFinish = finished
		return nil
	}
}

// Serve runs the HTTP poll service on port until ctx is cancelled.
//
// Clients submit polls with POST /api/polls and follow them through
// GET /api/polls, GET /api/polls/{id} and the /api/sse event stream.
// Submitted polls run in the background under ctx, at most
// [Poller.MaxConcurrency] at a time; the rest wait in the "queued" state.
// On shutdown they are
// cancelled and Serve waits for them to record their outcome before
// returning.
//
// Returns an error if the port is out of range or cannot be bound.
func (p *Poller) Serve(ctx context.Context, port int, opts ...ServeOption) error {
	cfg := &serveConfig{
		handlers:   make(map[string]http.Handler),
		maxRecords: store.DefaultMaxRecords,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return err
		}
	}

	if cfg.listener == nil && (port < 1 || port > 65535) {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}

	if ctx.Err() != nil {
		return nil
	}

	svc := &service{
		poller:   p,
		ctx:      ctx,
		store:    store.NewMemoryStore(cfg.maxRecords),
		slots:    make(chan struct{}, p.maxConcurrency),
		onStart:  cfg.onStart,
		onFinish: cfg.onFinish,
	}

	srv := server.NewServer(svc.store, port, svc.submit, p.logger, cfg.handlers)

	var err error
	if cfg.listener != nil {
		err = srv.StartListener(ctx, cfg.listener)
	} else {
		err = srv.Start(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	p.logger.Info("pollmatch service started", "addr", srv.Addr())

	<-ctx.Done()
	svc.drain()
	p.logger.Info("pollmatch service stopped")
	return nil
}

// service runs polls submitted over HTTP and records them in a store.
type service struct {
	poller   *Poller
	ctx      context.Context
	store    *store.MemoryStore
	slots    chan struct{}
	onStart  func()
	onFinish func()

	mu      sync.Mutex
	closed  bool
	running sync.WaitGroup
}

// submit validates spec and starts its poll.
func (s *service) submit(spec server.PollSpec) (string, error) {
	job, err := jobFromSpec(spec)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrShuttingDown
	}
	s.running.Add(1)
	s.mu.Unlock()

	id := uuid.NewString()
	rec := store.PollRecord{
		ID:        id,
		Name:      job.Name,
		URL:       job.Request.url,
		State:     stateQueued,
		StartedAt: time.Now(),
	}
	s.store.Update(rec)

	go func() {
		defer s.running.Done()
		s.run(job, rec)
	}()
	return id, nil
}

func (s *service) run(job Job, rec store.PollRecord) {
	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-s.ctx.Done():
		// the poll below sees the cancelled context and records no attempts
	}

	rec.State = stateRunning
	s.store.Update(rec)

	if s.onStart != nil {
		s.onStart()
	}
	if s.onFinish != nil {
		defer s.onFinish()
	}

	// attempts of one poll are reported sequentially, so rec needs no lock
	onAttempt := func(a Attempt) {
		rec.Attempts = a.Number
		if a.Err == nil {
			rec.StatusCode = a.StatusCode
		}
		s.store.Update(rec)
	}

	out := s.poller.run(s.ctx, rec.ID, job.Name, job.Request, job.Match, job.MaxAttempts, job.Delay, onAttempt)
	s.store.Update(outcomeToRecord(out, job.Extract, rec.StartedAt))
}

// drain stops accepting polls and waits for running ones to finish.
func (s *service) drain() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.running.Wait()
}

func jobFromSpec(spec server.PollSpec) (Job, error) {
	if spec.DelayMs > maxDurationMs {
		return Job{}, fmt.Errorf("delay_ms %d exceeds maximum %d", spec.DelayMs, maxDurationMs)
	}
	if spec.TimeoutMs > maxDurationMs || spec.TimeoutMs < 0 {
		return Job{}, fmt.Errorf("timeout_ms %d must be between 0 and %d", spec.TimeoutMs, maxDurationMs)
	}

	opts := []RequestOption{WithHeaderMap(spec.Headers)}
	if spec.Method != "" {
		opts = append(opts, WithMethod(spec.Method))
	}
	if spec.Body != nil {
		opts = append(opts, WithBody(*spec.Body))
	}
	if spec.TimeoutMs != 0 {
		opts = append(opts, WithTimeout(time.Duration(spec.TimeoutMs)*time.Millisecond))
	}

	req, err := NewRequest(spec.URL, opts...)
	if err != nil {
		return Job{}, err
	}

	kind, err := ParseMatchKind(spec.Match.Type)
	if err != nil {
		return Job{}, err
	}
	match, err := NewMatchSpec(kind, spec.Match.Pattern, spec.Match.Invert)
	if err != nil {
		return Job{}, err
	}

	name := spec.Name
	if name == "" {
		name = spec.URL
	}

	job := Job{
		Name:        name,
		Request:     req,
		Match:       match,
		MaxAttempts: spec.MaxAttempts,
		Delay:       time.Duration(spec.DelayMs) * time.Millisecond,
		Extract:     spec.Extract,
	}
	if err := job.Validate(); err != nil {
		return Job{}, err
	}
	return job, nil
}

// outcomeToRecord builds the final record. startedAt is the submission time;
// the outcome's own clock starts when the poll leaves the queue.
func outcomeToRecord(out Outcome, extract string, startedAt time.Time) store.PollRecord {
	finished := out.StartedAt.Add(out.Elapsed)
	rec := store.PollRecord{
		ID:         out.ID,
		Name:       out.Name,
		URL:        out.URL,
		State:      out.State().String(),
		Matched:    out.Matched,
		Attempts:   out.Attempts,
		StatusCode: out.StatusCode,
		Body:       out.BodyString(),
		StartedAt:  startedAt,
		FinishedAt: &finished,
		ElapsedMs:  out.Elapsed.Milliseconds(),
	}

	if extract != "" {
		if v, found := out.Extract(extract); found {
			text := v.Text()
			rec.Extracted = &text
		}
	}

	if out.Err != nil {
		msg := out.Err.Error()
		rec.Error = &msg
	}
	return rec
}
