package pollmatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/pollmatch/internal/poller"
)

const defaultMaxConcurrency = 10

// Argument errors returned by [Poller.Poll].
var (
	ErrInvalidAttempts = poller.ErrInvalidAttempts
	ErrInvalidDelay    = poller.ErrInvalidDelay
)

// ErrBodyTooLarge is wrapped in the attempt error when the built-in
// transport receives a response body over 1MB. The attempt counts as a
// transport failure.
var ErrBodyTooLarge = poller.ErrBodyTooLarge

// Poller repeats HTTP requests until their responses match.
//
// A Poller holds only immutable configuration, so a single instance can run
// any number of polls concurrently. Polls share no mutable state.
//
// The typical lifecycle is:
//
//	p, err := pollmatch.New(pollmatch.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	req, _ := pollmatch.NewRequest("http://localhost:8188/history/abc")
//	out, err := p.Poll(ctx, req, pollmatch.JSONSubset(`{"status":"done"}`), 30, time.Second)
type Poller struct {
	engine           *poller.Engine
	client           *poller.Client // nil when a custom transport is used
	logger           *slog.Logger
	maxConcurrency   int
	attemptCallbacks []func(Attempt)
	outcomeCallbacks []func(Outcome)
}

// New creates a [Poller] with the given options.
//
// Defaults:
//   - Transport: pooled net/http client with per-request timeouts
//   - Sleeper: timer-based, interrupted by context cancellation
//   - Logger: slog.Default()
//   - Max concurrency for [Poller.RunAll]: 10
func New(opts ...Option) (*Poller, error) {
	cfg := &pollerConfig{
		maxConcurrency: defaultMaxConcurrency,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Poller{
		logger:           logger,
		maxConcurrency:   cfg.maxConcurrency,
		attemptCallbacks: cfg.attemptCallbacks,
		outcomeCallbacks: cfg.outcomeCallbacks,
	}

	var transport poller.Transport
	if cfg.transport != nil {
		transport = transportAdapter{t: cfg.transport}
	} else {
		p.client = poller.NewClient()
		transport = p.client
	}

	var sleeper poller.Sleeper
	if cfg.sleeper != nil {
		sleeper = cfg.sleeper
	}

	var onAttempt func(poller.Attempt)
	if len(p.attemptCallbacks) > 0 {
		onAttempt = p.dispatchAttempt
	}

	p.engine = poller.NewEngine(transport, sleeper, logger, onAttempt)
	return p, nil
}

// Poll issues req up to maxAttempts times, pausing delay between attempts,
// until a response satisfies spec.
//
// A response satisfies spec when spec matches it, or, if spec is inverted,
// when spec does not match it. Transport failures consume an attempt and
// are logged, never returned. Running out of attempts is a normal outcome
// with Matched false and a nil error.
//
// The returned error is non-nil only when maxAttempts < 1 or delay < 0
// ([ErrInvalidAttempts], [ErrInvalidDelay]) or when ctx ends the poll early;
// the Outcome is valid in every case.
func (p *Poller) Poll(ctx context.Context, req Request, spec MatchSpec, maxAttempts int, delay time.Duration) (Outcome, error) {
	out := p.run(ctx, uuid.NewString(), "", req, spec, maxAttempts, delay, nil)
	return out, out.Err
}

// run executes one poll under a caller-chosen ID and name. onAttempt, if
// set, observes this poll's attempts only.
func (p *Poller) run(ctx context.Context, id, name string, req Request, spec MatchSpec, maxAttempts int, delay time.Duration, onAttempt func(Attempt)) Outcome {
	log := p.logger.With("poll_id", id)
	if name != "" {
		log = log.With("poll", name)
	}

	match, err := spec.compile()
	if err != nil {
		log.Warn("match pattern is malformed, poll cannot match", "match", spec.String(), "error", err)
	}

	res := p.engine.Run(ctx, poller.Job{
		ID:          id,
		Call:        toCall(req),
		Match:       match,
		Invert:      spec.invert,
		MaxAttempts: maxAttempts,
		Delay:       delay,
		OnAttempt:   publicHook(onAttempt),
	})

	out := Outcome{
		ID:         id,
		Name:       name,
		URL:        req.url,
		Matched:    res.Matched,
		StatusCode: res.StatusCode,
		Body:       res.Body,
		Attempts:   res.Attempts,
		Delays:     res.Delays,
		StartedAt:  res.StartedAt,
		Elapsed:    res.Elapsed,
		Err:        res.Err,
		state:      stateOf(res),
	}

	for _, cb := range p.outcomeCallbacks {
		invokeCallbackSafe(cb, out, log)
	}
	return out
}

// Close releases idle connections held by the built-in transport.
// Safe to call multiple times; the Poller remains usable afterwards.
func (p *Poller) Close() {
	if p == nil {
		return
	}
	p.client.Close()
}

// MaxConcurrency returns the concurrency limit used by [Poller.RunAll].
func (p *Poller) MaxConcurrency() int {
	return p.maxConcurrency
}

func stateOf(res poller.Result) State {
	switch {
	case res.Matched:
		return StateMatched
	case errors.Is(res.Err, poller.ErrInvalidAttempts), errors.Is(res.Err, poller.ErrInvalidDelay):
		return StateInvalid
	case res.Err != nil:
		return StateCancelled
	default:
		return StateExhausted
	}
}

func toCall(req Request) poller.Call {
	return poller.Call{
		Method:  req.method,
		URL:     req.url,
		Body:    copyBytes(req.body),
		Headers: copyMap(req.headers),
		Timeout: req.timeout,
	}
}

// transportAdapter exposes a public [Transport] as the engine's transport.
type transportAdapter struct {
	t Transport
}

func (a transportAdapter) Send(ctx context.Context, call poller.Call) (poller.Reply, error) {
	start := time.Now()
	resp, err := a.t.Send(ctx, Request{
		url:     call.URL,
		method:  call.Method,
		body:    call.Body,
		headers: call.Headers,
		timeout: call.Timeout,
	})
	if err != nil {
		return poller.Reply{}, err
	}
	return poller.Reply{
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
		Latency:    time.Since(start),
	}, nil
}

// dispatchAttempt converts and fans out an engine attempt to callbacks.
func (p *Poller) dispatchAttempt(a poller.Attempt) {
	pub := toAttempt(a)
	for _, cb := range p.attemptCallbacks {
		invokeCallbackSafe(cb, pub, p.logger)
	}
}

func publicHook(fn func(Attempt)) func(poller.Attempt) {
	if fn == nil {
		return nil
	}
	return func(a poller.Attempt) { fn(toAttempt(a)) }
}

func toAttempt(a poller.Attempt) Attempt {
	return Attempt{
		PollID:     a.JobID,
		Number:     a.Number,
		StatusCode: a.StatusCode,
		Latency:    a.Latency,
		Matched:    a.Matched,
		Err:        a.Err,
	}
}

// copyBytes returns a copy of the byte slice, or nil if input is nil.
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}

// invokeCallbackSafe calls a callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe[T any](cb func(T), arg T, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("callback panicked", "panic", r)
		}
	}()
	cb(arg)
}
