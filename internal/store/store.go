package store

import "time"

// PollRecord is the storage representation of a poll, optimized for JSON
// serialization (used by the REST API and SSE). It is decoupled from the
// poller's types to allow independent evolution.
type PollRecord struct {
	// ID uniquely identifies the poll.
	ID string `json:"id"`

	// Name is the caller-supplied poll name.
	Name string `json:"name"`

	// URL is the polled URL.
	URL string `json:"url"`

	// State is "running" while the poll is active, then one of
	// "matched", "exhausted", "cancelled" or "invalid".
	State string `json:"state"`

	// Matched is true once the stop condition was met.
	Matched bool `json:"matched"`

	// Attempts counts requests issued so far.
	Attempts int `json:"attempts"`

	// StatusCode is the last observed HTTP status code.
	StatusCode int `json:"status_code"`

	// Body is the last observed response body.
	Body string `json:"body"`

	// Extracted is the value found at the requested extract path, if any.
	Extracted *string `json:"extracted,omitempty"`

	// StartedAt is when the poll was accepted.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is nil while the poll is running.
	FinishedAt *time.Time `json:"finished_at"`

	// ElapsedMs is the total poll duration in milliseconds.
	ElapsedMs int64 `json:"elapsed_ms"`

	// Error contains the error message if the poll was cancelled.
	Error *string `json:"error"`
}

// Finished reports whether the poll reached a terminal state.
func (r PollRecord) Finished() bool {
	return r.FinishedAt != nil
}

// Store defines the interface for storing and subscribing to poll updates.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected clients
// (e.g., via Server-Sent Events).
type Store interface {
	// Update stores a record and notifies all subscribers.
	// Records are keyed by ID, so later updates replace earlier ones.
	Update(record PollRecord)

	// Get returns the record with the given ID.
	Get(id string) (PollRecord, bool)

	// GetAll returns all stored records, oldest first.
	// The returned slice is a snapshot; modifications do not affect the store.
	GetAll() []PollRecord

	// Subscribe returns a channel that receives record updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan PollRecord

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan PollRecord)
}
