package poller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

// ErrBodyTooLarge is wrapped in a *TransportError when a response body
// exceeds the 1MB read limit.
var ErrBodyTooLarge = errors.New("response body exceeds 1MB limit")

// connection pooling limits so many concurrent polls don't exhaust sockets
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second // conservative: matches common ALB defaults
)

// Call describes a single HTTP request issued by an attempt.
type Call struct {
	// Method is the HTTP method. Empty defaults to GET.
	Method string

	// URL is the target URL.
	URL string

	// Body is sent as the request body when non-nil.
	Body []byte

	// Headers are set on the request, replacing any defaults.
	Headers map[string]string

	// Timeout bounds the whole request including reading the body.
	// Zero means no per-request timeout beyond the caller's context.
	Timeout time.Duration
}

// Reply is a completed HTTP exchange. Any status code counts as completed;
// only transport-level problems produce an error instead.
type Reply struct {
	// StatusCode is the HTTP status code (e.g., 200, 404, 500).
	StatusCode int

	// Body contains the HTTP response body, limited to 1MB.
	Body []byte

	// Latency is the total time taken for the request.
	Latency time.Duration
}

// TransportError reports a request that did not complete.
//
// Op is the stage that failed: "create request", "request" or "read body".
// Timeouts surface here too, with a context error as the cause.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client is an HTTP client wrapper tuned for repeated polling.
//
// Client uses per-request timeouts via context rather than a global timeout,
// so different polls can carry different timeouts. Response bodies are
// limited to 1MB to prevent memory issues.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new polling [Client].
//
// Connection pooling configuration:
//   - MaxIdleConns: 100 total idle connections
//   - MaxIdleConnsPerHost: 10 idle connections per host
//   - MaxConnsPerHost: 10 concurrent connections per host
//   - IdleConnTimeout: 60 seconds before closing idle connections
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
}

// Send performs call and returns the completed [Reply].
//
// Any failure before the full body is read is returned as a
// *[TransportError]. Non-2xx status codes are not errors.
func (c *Client) Send(ctx context.Context, call Call) (Reply, error) {
	if call.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, call.Timeout)
		defer cancel()
	}

	start := time.Now()

	method := call.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if call.Body != nil {
		body = bytes.NewReader(call.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, call.URL, body)
	if err != nil {
		return Reply{}, &TransportError{Op: "create request", URL: call.URL, Err: err}
	}

	for key, value := range call.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Reply{}, &TransportError{Op: "request", URL: call.URL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize+1))
	if err != nil {
		return Reply{}, &TransportError{Op: "read body", URL: call.URL, Err: err}
	}
	if len(data) > maxResponseBodySize {
		return Reply{}, &TransportError{Op: "read body", URL: call.URL, Err: ErrBodyTooLarge}
	}

	return Reply{
		StatusCode: resp.StatusCode,
		Body:       data,
		Latency:    time.Since(start),
	}, nil
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times. After Close, the client remains usable but
// new connections will be established as needed.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}

	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
