// Package server provides the HTTP API of the pollmatch service.
//
// This package is internal to pollmatch and handles all HTTP concerns:
//
//   - REST API: submit polls at POST "/api/polls", read them back at
//     "/api/polls" and "/api/polls/{id}"
//   - Server-Sent Events: real-time poll updates at "/api/sse"
//   - Extra handlers mounted by the caller, such as "/metrics"
//
// The server does not run polls itself; accepted specs are handed to a
// [Submitter] supplied by the caller. It supports graceful shutdown via
// context cancellation, with a 5-second timeout for in-flight requests.
package server
