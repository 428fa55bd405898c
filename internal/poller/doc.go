// Package poller provides the bounded HTTP poll loop for pollmatch.
//
// This package is internal to pollmatch. It repeats a request until the
// response satisfies a predicate or the attempt budget runs out, pausing
// between attempts.
//
// The main components are:
//
//   - [Client]: pooled HTTP transport with per-request timeout and size limits
//   - [Engine]: runs a [Job] through its attempt/wait states to a [Result]
//   - [TimerSleeper]: cancellable pause between attempts
//
// Users of the pollmatch library should not need to interact with this
// package directly. Configuration is done through the main pollmatch package.
package poller
