package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/pollmatch"
)

func TestParse_MinimalConfig(t *testing.T) {
	yaml := `
polls:
  - name: Test
    url: https://example.com
    match: contains:ok
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Concurrency != 10 {
		t.Errorf("Concurrency = %d, want 10", cfg.Concurrency)
	}
	if cfg.Defaults.MaxAttempts != 10 {
		t.Errorf("Defaults.MaxAttempts = %d, want 10", cfg.Defaults.MaxAttempts)
	}
	if cfg.Defaults.Delay.Duration() != time.Second {
		t.Errorf("Defaults.Delay = %v, want 1s", cfg.Defaults.Delay.Duration())
	}
	if cfg.Defaults.Timeout.Duration() != 10*time.Second {
		t.Errorf("Defaults.Timeout = %v, want 10s", cfg.Defaults.Timeout.Duration())
	}
	if len(cfg.Polls) != 1 {
		t.Errorf("len(Polls) = %d, want 1", len(cfg.Polls))
	}
}

func TestParse_FullPollConfig(t *testing.T) {
	yaml := `
port: 9090
concurrency: 3
defaults:
  max_attempts: 20
  delay: 0s
  timeout: 4s

polls:
  - name: Full Test
    url: https://api.example.com/history/abc
    method: POST
    timeout: 5s
    headers:
      Authorization: Bearer token123
      X-Custom: value
    body: '{"id":"abc"}'
    match: 'json:{"status":{"completed":true}}'
    max_attempts: 30
    delay: 250ms
    extract: outputs.9.images.0.filename
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Port != 9090 || cfg.Concurrency != 3 {
		t.Errorf("Port = %d, Concurrency = %d, want 9090 and 3", cfg.Port, cfg.Concurrency)
	}
	if cfg.Defaults.Delay == nil || cfg.Defaults.Delay.Duration() != 0 {
		t.Errorf("Defaults.Delay = %v, want explicit 0s", cfg.Defaults.Delay)
	}

	p := cfg.Polls[0]
	if p.Method != "POST" {
		t.Errorf("Method = %q, want POST", p.Method)
	}
	if p.Timeout.Duration() != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", p.Timeout.Duration())
	}
	if p.Headers["Authorization"] != "Bearer token123" {
		t.Errorf("Headers[Authorization] = %q", p.Headers["Authorization"])
	}
	if p.Body == nil || *p.Body != `{"id":"abc"}` {
		t.Errorf("Body = %v", p.Body)
	}
	if p.Match.Type != "json" || p.Match.Pattern != `{"status":{"completed":true}}` || p.Match.Invert {
		t.Errorf("Match = %+v", p.Match)
	}
	if p.MaxAttempts != 30 || p.Delay.Duration() != 250*time.Millisecond {
		t.Errorf("MaxAttempts = %d, Delay = %v", p.MaxAttempts, p.Delay.Duration())
	}
	if p.Extract != "outputs.9.images.0.filename" {
		t.Errorf("Extract = %q", p.Extract)
	}
}

func TestParse_MatchShorthand(t *testing.T) {
	tests := []struct {
		name       string
		match      string
		wantType   string
		wantPat    string
		wantInvert bool
		wantErr    bool
	}{
		{"contains", `contains:done`, "contains", "done", false, false},
		{"literal", `literal:done`, "literal", "done", false, false},
		{"regex keeps later colons", `'regex:"status":\s*"ok"'`, "regex", `"status":\s*"ok"`, false, false},
		{"json", `'json:{"a":[1,2]}'`, "json", `{"a":[1,2]}`, false, false},
		{"jsonpath", `'jsonpath:$.outputs[*].images'`, "jsonpath", `$.outputs[*].images`, false, false},
		{"inverted", `not-contains:error`, "contains", "error", true, false},
		{"empty pattern", `'contains:'`, "contains", "", false, false},
		{"unknown kind", `xpath://a`, "", "", false, true},
		{"missing colon", `done`, "", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaml := "polls:\n  - name: t\n    url: https://example.com\n    match: " + tt.match + "\n"
			cfg, err := Parse([]byte(yaml))
			if tt.wantErr {
				if err == nil {
					t.Fatal("Parse() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}

			m := cfg.Polls[0].Match
			if m.Type != tt.wantType || m.Pattern != tt.wantPat || m.Invert != tt.wantInvert {
				t.Errorf("Match = %+v, want {%s %s %v}", m, tt.wantType, tt.wantPat, tt.wantInvert)
			}
		})
	}
}

func TestParse_MatchStructured(t *testing.T) {
	yaml := `
polls:
  - name: queue
    url: http://localhost:8188/queue
    match:
      type: regex
      pattern: '"queue_running":\s*\[\]'
      invert: true
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	m := cfg.Polls[0].Match
	if m.Type != "regex" || m.Pattern != `"queue_running":\s*\[\]` || !m.Invert {
		t.Errorf("Match = %+v", m)
	}

	spec, err := m.Spec()
	if err != nil {
		t.Fatalf("Spec() error = %v", err)
	}
	if spec.Kind() != pollmatch.MatchRegex || !spec.Invert() {
		t.Errorf("Spec() = %v", spec)
	}
}

func TestParse_MalformedPatternRejected(t *testing.T) {
	yaml := `
polls:
  - name: broken
    url: https://example.com
    match: 'regex:(('
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for malformed regex, got nil")
	}
	if !errors.Is(err, pollmatch.ErrMalformedPattern) {
		t.Errorf("error = %v, want ErrMalformedPattern", err)
	}
	if !strings.Contains(err.Error(), "polls[0] (broken)") {
		t.Errorf("error should name the poll, got: %v", err)
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("TEST_HOST", "render.internal:8188")
	t.Setenv("TEST_TOKEN", "secret")
	t.Setenv("TEST_ID", "abc")

	yaml := `
polls:
  - name: Test
    url: http://${TEST_HOST}/history
    headers:
      Authorization: Bearer ${TEST_TOKEN}
    body: '{"id":"${TEST_ID}"}'
    match: contains:done
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	p := cfg.Polls[0]
	if p.URL != "http://render.internal:8188/history" {
		t.Errorf("URL = %q", p.URL)
	}
	if p.Headers["Authorization"] != "Bearer secret" {
		t.Errorf("Headers[Authorization] = %q", p.Headers["Authorization"])
	}
	if *p.Body != `{"id":"abc"}` {
		t.Errorf("Body = %q", *p.Body)
	}
}

func TestParse_EnvVarDefault(t *testing.T) {
	yaml := `
polls:
  - name: Test
    url: http://${UNSET_HOST_FOR_TEST:-localhost:8188}/queue
    match: contains:ok
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Polls[0].URL != "http://localhost:8188/queue" {
		t.Errorf("URL = %q", cfg.Polls[0].URL)
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	yaml := `
polls:
  - name: Test
    url: http://${MISSING_VAR_FOR_TEST}/queue
    match: contains:ok
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for missing env var, got nil")
	}
	if !strings.Contains(err.Error(), "MISSING_VAR_FOR_TEST") {
		t.Errorf("error should name the variable, got: %v", err)
	}
}

func TestParse_GridConfig(t *testing.T) {
	yaml := `
grids:
  - name: Queue
    url_template: "http://{{.host}}/queue"
    dimensions:
      host: [gpu-1:8188, gpu-2:8188]
    match: not-contains:pending
    max_attempts: 5
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	g := cfg.Grids[0]
	if g.Name != "Queue" || len(g.Dimensions["host"]) != 2 {
		t.Errorf("Grid = %+v", g)
	}
	if !g.Match.Invert || g.MaxAttempts != 5 {
		t.Errorf("Grid match/attempts = %+v %d", g.Match, g.MaxAttempts)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no polls or grids",
			yaml:    "port: 8080\n",
			wantErr: "at least one poll or grid",
		},
		{
			name:    "poll missing name",
			yaml:    "polls:\n  - url: https://example.com\n    match: contains:x\n",
			wantErr: "polls[0]: name is required",
		},
		{
			name:    "poll missing url",
			yaml:    "polls:\n  - name: a\n    match: contains:x\n",
			wantErr: "url is required",
		},
		{
			name:    "poll missing match",
			yaml:    "polls:\n  - name: a\n    url: https://example.com\n",
			wantErr: "match is required",
		},
		{
			name:    "duplicate names",
			yaml:    "polls:\n  - name: a\n    url: https://x.com\n    match: contains:x\n  - name: a\n    url: https://y.com\n    match: contains:x\n",
			wantErr: "duplicate name",
		},
		{
			name:    "bad scheme",
			yaml:    "polls:\n  - name: a\n    url: ftp://example.com\n    match: contains:x\n",
			wantErr: "scheme must be http or https",
		},
		{
			name:    "no scheme",
			yaml:    "polls:\n  - name: a\n    url: example.com\n    match: contains:x\n",
			wantErr: "must have a scheme",
		},
		{
			name:    "bad method",
			yaml:    "polls:\n  - name: a\n    url: https://example.com\n    method: BREW\n    match: contains:x\n",
			wantErr: "method must be one of",
		},
		{
			name:    "negative attempts",
			yaml:    "polls:\n  - name: a\n    url: https://example.com\n    max_attempts: -1\n    match: contains:x\n",
			wantErr: "max_attempts must be at least 1",
		},
		{
			name:    "negative delay",
			yaml:    "polls:\n  - name: a\n    url: https://example.com\n    delay: -1s\n    match: contains:x\n",
			wantErr: "delay cannot be negative",
		},
		{
			name:    "negative timeout",
			yaml:    "polls:\n  - name: a\n    url: https://example.com\n    timeout: -1s\n    match: contains:x\n",
			wantErr: "timeout cannot be negative",
		},
		{
			name:    "negative default delay",
			yaml:    "defaults:\n  delay: -2s\npolls:\n  - name: a\n    url: https://example.com\n    match: contains:x\n",
			wantErr: "defaults: delay cannot be negative",
		},
		{
			name:    "port out of range",
			yaml:    "port: 70000\npolls:\n  - name: a\n    url: https://example.com\n    match: contains:x\n",
			wantErr: "port must be between",
		},
		{
			name:    "grid missing template",
			yaml:    "grids:\n  - name: g\n    dimensions:\n      a: [x]\n    match: contains:x\n",
			wantErr: "url_template is required",
		},
		{
			name:    "grid invalid template",
			yaml:    "grids:\n  - name: g\n    url_template: \"https://{{.a\"\n    dimensions:\n      a: [x]\n    match: contains:x\n",
			wantErr: "invalid url_template",
		},
		{
			name:    "grid no dimensions",
			yaml:    "grids:\n  - name: g\n    url_template: https://x.com\n    match: contains:x\n",
			wantErr: "at least one dimension",
		},
		{
			name:    "grid empty dimension",
			yaml:    "grids:\n  - name: g\n    url_template: https://x.com\n    dimensions:\n      a: []\n    match: contains:x\n",
			wantErr: "has no values",
		},
		{
			name:    "grid duplicate dimension value",
			yaml:    "grids:\n  - name: g\n    url_template: https://x.com\n    dimensions:\n      a: [x, x]\n    match: contains:x\n",
			wantErr: "duplicate value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("Parse() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("polls: [unclosed"))
	if err == nil {
		t.Fatal("Parse() expected error for invalid YAML, got nil")
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	yaml := `
polls:
  - name: a
    url: https://example.com
    delay: soon
    match: contains:x
`
	_, err := Parse([]byte(yaml))
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("Parse() error = %v, want invalid duration", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/pollmatch.yaml")
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Load() error = %v, want read failure", err)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")
	t.Setenv("EMPTY_VAR", "")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no vars", "plain text", "plain text", false},
		{"simple var", "${TEST_VAR}", "value", false},
		{"var in text", "prefix ${TEST_VAR} suffix", "prefix value suffix", false},
		{"multiple vars", "${TEST_VAR}-${TEST_VAR}", "value-value", false},
		{"with default (var set)", "${TEST_VAR:-default}", "value", false},
		{"with default (var unset)", "${UNSET:-default}", "default", false},
		{"missing required", "${MISSING}", "", true},
		{"empty default (var unset)", "${UNSET:-}", "", false},
		{"set but empty var", "${EMPTY_VAR}", "", false},
		{"set but empty with default", "${EMPTY_VAR:-fallback}", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnvVars(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expandEnvVars() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnvVars() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseMatch(t *testing.T) {
	tests := []struct {
		in         string
		wantKind   pollmatch.MatchKind
		wantInvert bool
		wantErr    bool
	}{
		{"contains:done", pollmatch.MatchLiteral, false, false},
		{"not-regex:^err", pollmatch.MatchRegex, true, false},
		{`json:{"ok":true}`, pollmatch.MatchJSON, false, false},
		{"jsonpath:$.items[0]", pollmatch.MatchJSONPath, false, false},
		{"", "", false, true},
		{"regex:((", "", false, true},
		{"json:{", "", false, true},
		{"bogus:x", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			spec, err := ParseMatch(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMatch(%q) expected error, got nil", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMatch(%q) error = %v", tt.in, err)
			}
			if spec.Kind() != tt.wantKind || spec.Invert() != tt.wantInvert {
				t.Errorf("ParseMatch(%q) = %v", tt.in, spec)
			}
		})
	}
}
