package pollmatch

import (
	"testing"
	"time"
)

func TestNewRequest_Defaults(t *testing.T) {
	req, err := NewRequest("https://api.example.com/history/abc")
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	if req.URL() != "https://api.example.com/history/abc" {
		t.Errorf("URL() = %v, want %v", req.URL(), "https://api.example.com/history/abc")
	}
	if req.Method() != "GET" {
		t.Errorf("Method() = %v, want GET", req.Method())
	}
	if req.Timeout() != 10*time.Second {
		t.Errorf("Timeout() = %v, want %v", req.Timeout(), 10*time.Second)
	}
	if _, ok := req.Body(); ok {
		t.Error("Body() reported a body for a request without one")
	}
	if len(req.Headers()) != 0 {
		t.Errorf("Headers() = %v, want empty", req.Headers())
	}
}

func TestNewRequest_InvalidURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"no scheme", "api.example.com/health"},
		{"empty url", ""},
		{"just path", "/health"},
		{"ftp scheme", "ftp://example.com/file"},
		{"no host", "http:///path"},
		{"bad escape", "http://example.com/%zz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRequest(tt.url); err == nil {
				t.Errorf("NewRequest() expected error for URL %q, got nil", tt.url)
			}
		})
	}
}

func TestNewRequest_Options(t *testing.T) {
	req, err := NewRequest("http://localhost:8188/prompt",
		WithMethod("post"),
		WithHeaders("Authorization", "Bearer token", "X-Trace", "1"),
		WithHeaderMap(map[string]string{"Content-Type": "application/json"}),
		WithBody(`{"prompt":"x"}`),
		WithTimeout(3*time.Second),
	)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	if req.Method() != "POST" {
		t.Errorf("Method() = %v, want POST", req.Method())
	}
	if body, ok := req.Body(); !ok || body != `{"prompt":"x"}` {
		t.Errorf("Body() = %q, %v", body, ok)
	}
	if req.Timeout() != 3*time.Second {
		t.Errorf("Timeout() = %v, want 3s", req.Timeout())
	}

	h := req.Headers()
	if len(h) != 3 || h["Authorization"] != "Bearer token" || h["Content-Type"] != "application/json" {
		t.Errorf("Headers() = %v", h)
	}
}

func TestNewRequest_EmptyBodyIsStillABody(t *testing.T) {
	req, err := NewRequest("http://localhost", WithMethod("PUT"), WithBody(""))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if body, ok := req.Body(); !ok || body != "" {
		t.Errorf("Body() = %q, %v, want empty body present", body, ok)
	}
}

func TestNewRequest_OptionErrors(t *testing.T) {
	tests := []struct {
		name string
		opt  RequestOption
	}{
		{"unknown method", WithMethod("BREW")},
		{"odd headers", WithHeaders("X-One")},
		{"empty header name", WithHeaderMap(map[string]string{"": "v"})},
		{"zero timeout", WithTimeout(0)},
		{"negative timeout", WithTimeout(-time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRequest("http://localhost", tt.opt); err == nil {
				t.Error("NewRequest() expected error, got nil")
			}
		})
	}
}

func TestRequest_HeadersReturnsCopy(t *testing.T) {
	req, err := NewRequest("http://localhost", WithHeaders("X-Key", "original"))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	h := req.Headers()
	h["X-Key"] = "mutated"
	h["X-New"] = "added"

	if got := req.Headers(); got["X-Key"] != "original" || len(got) != 1 {
		t.Errorf("Headers() after mutation = %v, want original only", got)
	}
}

func TestValidMethod(t *testing.T) {
	for _, m := range []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"} {
		if !ValidMethod(m) {
			t.Errorf("ValidMethod(%q) = false, want true", m)
		}
	}
	for _, m := range []string{"get", "TRACE", ""} {
		if ValidMethod(m) {
			t.Errorf("ValidMethod(%q) = true, want false", m)
		}
	}
}
