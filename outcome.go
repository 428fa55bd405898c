package pollmatch

import (
	"time"

	"github.com/jpalmerr/pollmatch/jsontree"
)

// State names the terminal state of a poll.
type State string

const (
	// StateMatched means the stop condition was met.
	StateMatched State = "matched"

	// StateExhausted means every attempt ran without meeting the stop
	// condition. This is a normal outcome, not an error.
	StateExhausted State = "exhausted"

	// StateCancelled means the context ended the poll early.
	StateCancelled State = "cancelled"

	// StateInvalid means the poll was rejected before any attempt, for
	// example because maxAttempts was below 1.
	StateInvalid State = "invalid"
)

// String returns the state name.
func (s State) String() string {
	return string(s)
}

// Outcome is the terminal result of one poll.
//
// There is no partial result: an Outcome is produced exactly once, when the
// poll stops. StatusCode and Body reflect the most recent attempt that
// completed at HTTP level; they keep their zero values if every attempt
// failed at transport level.
type Outcome struct {
	// ID uniquely identifies the poll in logs and callbacks.
	ID string

	// Name is the job name for polls started through [Poller.RunAll] or the
	// HTTP service. Empty for direct [Poller.Poll] calls.
	Name string

	// URL is the polled URL.
	URL string

	// Matched is true when the stop condition was met.
	Matched bool

	// StatusCode is the last observed HTTP status code.
	StatusCode int

	// Body is the last observed response body, limited to 1MB.
	Body []byte

	// Attempts counts requests issued, including failed ones.
	Attempts int

	// Delays counts the pauses taken between attempts.
	Delays int

	// StartedAt is when the poll began.
	StartedAt time.Time

	// Elapsed is the total poll duration.
	Elapsed time.Duration

	// Err is set when the poll was cancelled or its arguments were invalid.
	// It is nil for both matched and exhausted polls.
	Err error

	state State
}

// State returns the terminal state.
func (o Outcome) State() State {
	return o.state
}

// BodyString returns the last observed body as a string.
func (o Outcome) BodyString() string {
	return string(o.Body)
}

// Extract parses the last body as JSON and looks up expr in it.
//
// expr is either a dotted path ("data.items.0.id") or a "$"-rooted JSONPath
// expression. found is false when the body is not JSON or nothing is at the
// path; null values count as not found.
func (o Outcome) Extract(expr string) (value jsontree.Value, found bool) {
	tree, err := jsontree.Parse(o.Body)
	if err != nil {
		return jsontree.Null(), false
	}
	v := jsontree.Lookup(tree, expr, jsontree.Null())
	return v, !v.IsNull()
}

// Attempt describes one finished attempt, passed to callbacks registered
// with [WithAttemptCallback].
type Attempt struct {
	// PollID is the [Outcome.ID] of the poll the attempt belongs to.
	PollID string

	// Number is the 1-based attempt number.
	Number int

	// StatusCode is zero when the attempt failed at transport level.
	StatusCode int

	// Latency is the request duration for completed attempts.
	Latency time.Duration

	// Matched reports whether this attempt met the stop condition.
	Matched bool

	// Err is the transport error, if any.
	Err error
}
