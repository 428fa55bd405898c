package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// Transport sends one request per attempt.
//
// Implementations must be safe for concurrent use. Retries are the engine's
// job; a Transport should not retry on its own.
type Transport interface {
	Send(ctx context.Context, call Call) (Reply, error)
}

// Sleeper pauses between attempts.
//
// Sleep returns early with the context error if ctx is done first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper is the default [Sleeper], backed by time.Timer.
type TimerSleeper struct{}

// Sleep waits for d or until ctx is done, whichever comes first.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// MatchFunc reports whether a response body satisfies the predicate.
// Inversion is applied by the engine, not by the MatchFunc.
type MatchFunc func(body []byte) bool

// Job is one poll: a call repeated until its predicate is satisfied or the
// attempt budget runs out.
type Job struct {
	// ID identifies the poll in logs and callbacks.
	ID string

	// Call is issued unchanged on every attempt.
	Call Call

	// Match evaluates each successful reply.
	Match MatchFunc

	// Invert makes the poll stop on the first reply that does NOT match.
	Invert bool

	// MaxAttempts is the attempt budget, at least 1.
	MaxAttempts int

	// Delay is the pause between consecutive attempts.
	Delay time.Duration

	// OnAttempt, if set, is called after each attempt of this job only,
	// after the engine-wide hook.
	OnAttempt func(Attempt)
}

// Attempt describes one finished attempt.
type Attempt struct {
	JobID      string
	Number     int
	StatusCode int
	Latency    time.Duration
	Matched    bool
	Err        error
}

// Result is the terminal state of a [Job].
type Result struct {
	JobID string

	// Matched is true when the stop condition was met.
	Matched bool

	// StatusCode and Body come from the most recent attempt that completed.
	// They stay zero/empty when every attempt failed at transport level.
	StatusCode int
	Body       []byte

	// Attempts counts requests issued, including failed ones.
	Attempts int

	// Delays counts completed inter-attempt pauses.
	Delays int

	StartedAt time.Time
	Elapsed   time.Duration

	// Err is the context error when the poll was cancelled, nil otherwise.
	// Exhaustion is not an error.
	Err error
}

// argument errors
var (
	ErrInvalidAttempts = errors.New("max attempts must be at least 1")
	ErrInvalidDelay    = errors.New("delay cannot be negative")
)

// state is the poll loop's position.
type state int

const (
	stateAttempting state = iota
	stateWaiting
	stateMatched
	stateExhausted
	stateCancelled
)

// Engine runs [Job] values. It holds no per-poll state, so one Engine can
// run any number of jobs concurrently.
type Engine struct {
	transport Transport
	sleeper   Sleeper
	logger    *slog.Logger
	onAttempt func(Attempt)
}

// NewEngine creates an [Engine]. A nil sleeper means [TimerSleeper]; a nil
// logger means slog.Default(). onAttempt may be nil.
func NewEngine(transport Transport, sleeper Sleeper, logger *slog.Logger, onAttempt func(Attempt)) *Engine {
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		transport: transport,
		sleeper:   sleeper,
		logger:    logger,
		onAttempt: onAttempt,
	}
}

// Validate checks the job's arguments without running it.
func (j Job) Validate() error {
	if j.MaxAttempts < 1 {
		return fmt.Errorf("%w, got %d", ErrInvalidAttempts, j.MaxAttempts)
	}
	if j.Delay < 0 {
		return fmt.Errorf("%w, got %s", ErrInvalidDelay, j.Delay)
	}
	return nil
}

// Run drives job to a terminal state.
//
// Each attempt sends the call. A transport failure consumes the attempt and
// leaves the last status/body untouched. A completed reply becomes the new
// last status/body and is matched in the same iteration. The loop pauses for
// job.Delay between attempts but never after the final one. Cancellation is
// checked before every request and interrupts the pause. A request that
// fails because ctx ended cancels the poll rather than exhausting it.
func (e *Engine) Run(ctx context.Context, job Job) (res Result) {
	res = Result{JobID: job.ID, StartedAt: time.Now()}
	defer func() { res.Elapsed = time.Since(res.StartedAt) }()

	if err := job.Validate(); err != nil {
		res.Err = err
		return res
	}

	log := e.logger.With("poll_id", job.ID, "url", job.Call.URL)

	st := stateAttempting
	for {
		switch st {
		case stateAttempting:
			if err := ctx.Err(); err != nil {
				res.Err = err
				st = stateCancelled
				continue
			}
			st = e.attempt(ctx, job, &res, log)

		case stateWaiting:
			if err := e.sleeper.Sleep(ctx, job.Delay); err != nil {
				res.Err = err
				st = stateCancelled
				continue
			}
			res.Delays++
			st = stateAttempting

		case stateMatched:
			res.Matched = true
			log.Debug("poll matched", "attempts", res.Attempts)
			return res

		case stateExhausted:
			log.Info("poll exhausted", "attempts", res.Attempts, "last_status", res.StatusCode)
			return res

		case stateCancelled:
			log.Info("poll cancelled", "attempts", res.Attempts, "error", res.Err)
			return res
		}
	}
}

// attempt issues one request and returns the next state.
func (e *Engine) attempt(ctx context.Context, job Job, res *Result, log *slog.Logger) state {
	res.Attempts++
	info := Attempt{JobID: job.ID, Number: res.Attempts}

	reply, err := e.transport.Send(ctx, job.Call)
	if err != nil {
		info.Err = err
		log.Warn("poll attempt failed", "attempt", res.Attempts, "error", err)
	} else {
		res.StatusCode = reply.StatusCode
		res.Body = reply.Body
		info.StatusCode = reply.StatusCode
		info.Latency = reply.Latency

		isMatch := e.safeMatch(job.Match, reply.Body, log)
		info.Matched = isMatch != job.Invert
		log.Debug("poll attempt completed",
			"attempt", res.Attempts,
			"status_code", reply.StatusCode,
			"latency_ms", reply.Latency.Milliseconds(),
			"match", isMatch,
		)
	}

	e.notify(info, job.OnAttempt, log)

	if info.Err != nil {
		if cerr := ctx.Err(); cerr != nil {
			res.Err = cerr
			return stateCancelled
		}
	}

	switch {
	case info.Matched:
		return stateMatched
	case res.Attempts >= job.MaxAttempts:
		return stateExhausted
	default:
		return stateWaiting
	}
}

// safeMatch calls the match function with panic recovery.
// A panic is logged with a correlation ID and counts as no match.
func (e *Engine) safeMatch(match MatchFunc, body []byte, log *slog.Logger) (matched bool) {
	if match == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			log.Error("match function panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			matched = false
		}
	}()
	return match(body)
}

// notify invokes the engine and job attempt hooks with panic recovery.
func (e *Engine) notify(a Attempt, hook func(Attempt), log *slog.Logger) {
	for _, fn := range []func(Attempt){e.onAttempt, hook} {
		if fn != nil {
			e.callHook(fn, a, log)
		}
	}
}

func (e *Engine) callHook(fn func(Attempt), a Attempt, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("attempt callback panicked", "panic", r, "attempt", a.Number)
		}
	}()
	fn(a)
}
