// Package pollmatch repeatedly calls an HTTP endpoint until its response
// body matches a predicate, then reports the outcome.
//
// pollmatch is designed as an SDK-first library: a long-running remote job
// (a render queue, a build, an export) is started elsewhere, and the caller
// waits for it by polling a status URL with a bounded attempt budget and a
// fixed delay. Types are immutable and configured via the functional
// options pattern.
//
// # Quick Start
//
// Poll until a JSON document is contained in the response:
//
//	p, _ := pollmatch.New()
//	defer p.Close()
//
//	req, _ := pollmatch.NewRequest("http://localhost:8188/history/abc")
//	out, err := p.Poll(ctx, req, pollmatch.JSONSubset(`{"status":{"completed":true}}`), 30, 2*time.Second)
//	if err != nil {
//	    return err // cancelled or invalid arguments
//	}
//	if out.Matched {
//	    name, _ := out.Extract("outputs.9.images.0.filename")
//	    fmt.Println(name.Text())
//	}
//
// Running out of attempts is not an error: the [Outcome] reports
// Matched false with a nil error. Transport failures consume an attempt and
// are logged, never returned.
//
// # Match Strategies
//
// A [MatchSpec] decides when polling stops:
//
//   - [Contains]: the pattern is a substring of the body
//   - [Regex]: a Go regular expression finds a match in the body
//   - [JSONSubset]: the pattern, a JSON document, is contained in the body
//   - [JSONPath]: a "$"-rooted JSONPath expression selects a non-null value
//
// [MatchSpec.Not] inverts a spec, stopping on the first response that does
// not match. A malformed pattern never matches; [MatchSpec.Validate]
// rejects it up front.
//
// # Batches and Service
//
// [Poller.RunAll] runs many named [Job] values concurrently, bounded by
// [WithMaxConcurrency]. [Poller.Serve] exposes the same engine over HTTP
// with a JSON API and a Server-Sent Events stream.
//
// # Architecture
//
// pollmatch consists of several packages:
//
//   - jsontree: JSON values, dotted path resolution, subset containment, JSONPath
//   - config: YAML configuration of poll jobs
//   - internal/poller: Attempt loop and pooled HTTP transport
//   - internal/store: In-memory poll records with pub/sub for real-time updates
//   - internal/server: HTTP API and Server-Sent Events
//   - internal/metrics: Prometheus instruments
//
// The internal packages are not part of the public API and may change
// without notice.
package pollmatch
