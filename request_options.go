package pollmatch

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// requestConfig holds mutable state during request construction.
type requestConfig struct {
	method  string
	body    []byte
	headers map[string]string
	timeout time.Duration
}

// RequestOption configures a [Request] during construction.
//
// Options return an error if validation fails.
//
// Built-in options: [WithMethod], [WithHeaders], [WithHeaderMap],
// [WithBody], [WithTimeout].
type RequestOption func(*requestConfig) error

// WithMethod sets the HTTP method. The method is upper-cased.
//
// Supported methods are GET (default), HEAD, POST, PUT, PATCH, DELETE and
// OPTIONS.
func WithMethod(method string) RequestOption {
	return func(cfg *requestConfig) error {
		m := strings.ToUpper(strings.TrimSpace(method))
		if !ValidMethod(m) {
			return errors.New("method must be one of GET, HEAD, POST, PUT, PATCH, DELETE, OPTIONS")
		}
		cfg.method = m
		return nil
	}
}

// ValidMethod reports whether method is accepted by [WithMethod].
// The check is case-sensitive; pass an upper-case method.
func ValidMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return true
	default:
		return false
	}
}

// WithHeaders adds HTTP headers sent on every attempt.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	req, err := pollmatch.NewRequest(url,
//	    pollmatch.WithHeaders("Authorization", "Bearer token123"),
//	)
func WithHeaders(keyValues ...string) RequestOption {
	return func(cfg *requestConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithHeaderMap adds every entry of headers. The map is copied.
func WithHeaderMap(headers map[string]string) RequestOption {
	return func(cfg *requestConfig) error {
		for k, v := range headers {
			if k == "" {
				return errors.New("header name cannot be empty")
			}
			cfg.headers[k] = v
		}
		return nil
	}
}

// WithBody sets the request body sent on every attempt.
// An empty string still sends an empty body.
func WithBody(body string) RequestOption {
	return func(cfg *requestConfig) error {
		cfg.body = []byte(body)
		return nil
	}
}

// WithTimeout sets the per-attempt timeout.
//
// An attempt that does not complete within this duration counts as a
// transport failure. Defaults to 10 seconds if not specified.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) RequestOption {
	return func(cfg *requestConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}
