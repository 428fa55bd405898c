package pollmatch

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// pollerConfig holds mutable state during Poller construction.
type pollerConfig struct {
	logger           *slog.Logger
	transport        Transport
	sleeper          Sleeper
	maxConcurrency   int
	attemptCallbacks []func(Attempt)
	outcomeCallbacks []func(Outcome)
}

// Option configures a [Poller] during construction.
//
// Options return an error if validation fails.
//
// Built-in options: [WithLogger], [WithTransport], [WithSleeper],
// [WithMaxConcurrency], [WithAttemptCallback], [WithOutcomeCallback].
type Option func(*pollerConfig) error

// Transport sends one request per poll attempt.
//
// Send returns an error only when the request did not complete (connection
// failure, timeout, unreadable body). Any HTTP status is a completed
// response. Implementations must be safe for concurrent use and must not
// retry on their own; the poll loop owns retries.
type Transport interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// Response is a completed HTTP exchange returned by a [Transport].
type Response struct {
	StatusCode int
	Body       []byte
}

// TransportFunc adapts a function to the [Transport] interface.
type TransportFunc func(ctx context.Context, req Request) (Response, error)

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Sleeper pauses between attempts. Sleep must return early with the
// context error when ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// WithLogger sets a custom [slog.Logger].
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *pollerConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTransport replaces the built-in pooled HTTP client.
//
// Returns an error if the transport is nil.
func WithTransport(t Transport) Option {
	return func(cfg *pollerConfig) error {
		if t == nil {
			return errors.New("transport cannot be nil")
		}
		cfg.transport = t
		return nil
	}
}

// WithSleeper replaces the timer-based pause between attempts. Mostly
// useful in tests, or to plug the loop into another scheduler.
//
// Returns an error if the sleeper is nil.
func WithSleeper(s Sleeper) Option {
	return func(cfg *pollerConfig) error {
		if s == nil {
			return errors.New("sleeper cannot be nil")
		}
		cfg.sleeper = s
		return nil
	}
}

// WithMaxConcurrency limits how many polls [Poller.RunAll] runs at once.
// Defaults to 10 if not specified.
//
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *pollerConfig) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithAttemptCallback registers a function called after every attempt of
// every poll.
//
// Callbacks run synchronously on the polling goroutine and must not block.
// Panics are recovered and logged. Nil callbacks are silently ignored.
func WithAttemptCallback(cb func(Attempt)) Option {
	return func(cfg *pollerConfig) error {
		if cb == nil {
			return nil
		}
		cfg.attemptCallbacks = append(cfg.attemptCallbacks, cb)
		return nil
	}
}

// WithOutcomeCallback registers a function called once per poll with its
// terminal [Outcome].
//
// Multiple callbacks execute in registration order. Callbacks run
// synchronously and must not block. Panics are recovered and logged.
// Nil callbacks are silently ignored.
//
// Example:
//
//	p, err := pollmatch.New(
//	    pollmatch.WithOutcomeCallback(func(o pollmatch.Outcome) {
//	        if !o.Matched {
//	            log.Printf("gave up on %s after %d attempts", o.URL, o.Attempts)
//	        }
//	    }),
//	)
func WithOutcomeCallback(cb func(Outcome)) Option {
	return func(cfg *pollerConfig) error {
		if cb == nil {
			return nil
		}
		cfg.outcomeCallbacks = append(cfg.outcomeCallbacks, cb)
		return nil
	}
}
