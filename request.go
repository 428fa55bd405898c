package pollmatch

import (
	"errors"
	"net/http"
	"net/url"
	"time"
)

const defaultRequestTimeout = 10 * time.Second

// Request describes the HTTP call repeated on every poll attempt.
//
// Request is immutable after creation via [NewRequest]. Getters return
// copies of mutable data, so a Request can be shared between concurrent
// polls.
type Request struct {
	url     string
	method  string
	body    []byte
	headers map[string]string
	timeout time.Duration
}

// URL returns the target URL.
func (r Request) URL() string {
	return r.url
}

// Method returns the HTTP method. Defaults to GET.
func (r Request) Method() string {
	return r.method
}

// Body returns the request body and whether one was set.
func (r Request) Body() (string, bool) {
	if r.body == nil {
		return "", false
	}
	return string(r.body), true
}

// Headers returns a copy of the request headers.
// Returns nil if no headers are set.
func (r Request) Headers() map[string]string {
	return copyMap(r.headers)
}

// Timeout returns the per-attempt timeout.
// Defaults to 10 seconds if not explicitly set via [WithTimeout].
func (r Request) Timeout() time.Duration {
	return r.timeout
}

// NewRequest creates a [Request] for rawURL with the given options.
//
// The rawURL parameter must be an absolute http:// or https:// URL.
// Options are applied in order using the functional options pattern.
// See [WithMethod], [WithHeaders], [WithBody], and [WithTimeout].
//
// Example:
//
//	req, err := pollmatch.NewRequest("http://localhost:8188/history/abc",
//	    pollmatch.WithHeaders("Authorization", "Bearer token"),
//	    pollmatch.WithTimeout(5 * time.Second),
//	)
func NewRequest(rawURL string, opts ...RequestOption) (Request, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return Request{}, errors.New("invalid URL: " + err.Error())
	}
	if parsedURL.Scheme == "" {
		return Request{}, errors.New("URL must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return Request{}, errors.New("URL scheme must be http or https, got " + parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return Request{}, errors.New("URL must have a host")
	}

	cfg := &requestConfig{
		method:  http.MethodGet,
		headers: make(map[string]string),
		timeout: defaultRequestTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Request{}, err
		}
	}

	return Request{
		url:     rawURL,
		method:  cfg.method,
		body:    cfg.body,
		headers: cfg.headers,
		timeout: cfg.timeout,
	}, nil
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
