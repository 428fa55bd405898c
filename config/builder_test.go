package config

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/pollmatch"
)

func mustParse(t *testing.T, yaml string) *Config {
	t.Helper()
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return cfg
}

func TestBuildJobs_AppliesDefaults(t *testing.T) {
	cfg := mustParse(t, `
defaults:
  max_attempts: 7
  delay: 3s
  timeout: 2s
polls:
  - name: history
    url: http://localhost:8188/history/abc
    match: 'json:{"status":"done"}'
`)

	jobs, err := BuildJobs(cfg)
	if err != nil {
		t.Fatalf("BuildJobs() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1", len(jobs))
	}

	j := jobs[0]
	if j.Name != "history" || j.Request.URL() != "http://localhost:8188/history/abc" {
		t.Errorf("job identity = %q %q", j.Name, j.Request.URL())
	}
	if j.MaxAttempts != 7 || j.Delay != 3*time.Second || j.Request.Timeout() != 2*time.Second {
		t.Errorf("job = attempts %d delay %v timeout %v, want 7 3s 2s", j.MaxAttempts, j.Delay, j.Request.Timeout())
	}
	if j.Match.Kind() != pollmatch.MatchJSON || j.Match.Pattern() != `{"status":"done"}` {
		t.Errorf("Match = %v", j.Match)
	}
	if err := j.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestBuildJobs_PollOverrides(t *testing.T) {
	cfg := mustParse(t, `
polls:
  - name: prompt
    url: http://localhost:8188/prompt
    method: post
    headers:
      X-B: "2"
      X-A: "1"
    body: '{"prompt":{}}'
    match: not-contains:error
    max_attempts: 2
    delay: 0s
    timeout: 1s
    extract: $.prompt_id
`)

	jobs, err := BuildJobs(cfg)
	if err != nil {
		t.Fatalf("BuildJobs() error = %v", err)
	}

	j := jobs[0]
	if j.Request.Method() != "POST" {
		t.Errorf("Method() = %q, want POST", j.Request.Method())
	}
	if body, ok := j.Request.Body(); !ok || body != `{"prompt":{}}` {
		t.Errorf("Body() = %q, %v", body, ok)
	}
	if h := j.Request.Headers(); h["X-A"] != "1" || h["X-B"] != "2" {
		t.Errorf("Headers() = %v", h)
	}
	if !j.Match.Invert() || j.Match.Kind() != pollmatch.MatchLiteral {
		t.Errorf("Match = %v, want inverted literal", j.Match)
	}
	if j.MaxAttempts != 2 || j.Delay != 0 || j.Request.Timeout() != time.Second {
		t.Errorf("job = attempts %d delay %v timeout %v", j.MaxAttempts, j.Delay, j.Request.Timeout())
	}
	if j.Extract != "$.prompt_id" {
		t.Errorf("Extract = %q", j.Extract)
	}
}

func TestBuildJobs_Grid(t *testing.T) {
	cfg := mustParse(t, `
grids:
  - name: Queue
    url_template: "http://{{.host}}/{{.path}}"
    dimensions:
      host: [gpu-1, gpu-2]
      path: [queue]
    match: 'contains:"queue_pending":[]'
`)

	jobs, err := BuildJobs(cfg)
	if err != nil {
		t.Fatalf("BuildJobs() error = %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("len(jobs) = %d, want 2", len(jobs))
	}

	wantNames := []string{"Queue gpu-1 queue", "Queue gpu-2 queue"}
	wantURLs := []string{"http://gpu-1/queue", "http://gpu-2/queue"}
	for i, j := range jobs {
		if j.Name != wantNames[i] {
			t.Errorf("jobs[%d].Name = %q, want %q", i, j.Name, wantNames[i])
		}
		if j.Request.URL() != wantURLs[i] {
			t.Errorf("jobs[%d].URL = %q, want %q", i, j.Request.URL(), wantURLs[i])
		}
	}
}

func TestBuildJobs_MixedPollsAndGrids(t *testing.T) {
	cfg := mustParse(t, `
polls:
  - name: single
    url: https://example.com
    match: contains:ok
grids:
  - name: grid
    url_template: "https://{{.env}}.example.com"
    dimensions:
      env: [prod, staging]
    match: contains:ok
`)

	jobs, err := BuildJobs(cfg)
	if err != nil {
		t.Fatalf("BuildJobs() error = %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("len(jobs) = %d, want 3", len(jobs))
	}
	if jobs[0].Name != "single" {
		t.Errorf("direct polls should come first, got %q", jobs[0].Name)
	}
}

// TestBuildGridJobs_TemplateExecutionError verifies that template execution
// errors name the grid and the failing dimension combination.
func TestBuildGridJobs_TemplateExecutionError(t *testing.T) {
	cfg := &Config{
		Defaults: Defaults{MaxAttempts: 1},
		Grids: []GridConfig{
			{
				Name:        "Platform API",
				URLTemplate: "https://{{.region}}.example.com/health", // .region not in dimensions
				Dimensions: map[string][]string{
					"env": {"prod"},
					"svc": {"api"},
				},
				Match: MatchConfig{Type: "contains", Pattern: "ok"},
			},
		},
	}

	_, err := BuildJobs(cfg)
	if err == nil {
		t.Fatal("expected error for missing template variable, got nil")
	}

	errStr := err.Error()
	for _, want := range []string{"grid (Platform API)", "env:prod", "svc:api", "template execution failed", "region"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("error should contain %q, got: %s", want, errStr)
		}
	}
}

func TestBuildJobs_GridMissingScheme(t *testing.T) {
	cfg := &Config{
		Grids: []GridConfig{{
			Name:        "g",
			URLTemplate: "{{.host}}/health",
			Dimensions:  map[string][]string{"host": {"example.com"}},
			Match:       MatchConfig{Type: "contains", Pattern: "ok"},
		}},
	}

	if _, err := BuildJobs(cfg); err == nil {
		t.Fatal("BuildJobs() expected error for URL without scheme, got nil")
	}
}

func TestBuildJobs_EmptyConfig(t *testing.T) {
	jobs, err := BuildJobs(&Config{})
	if err != nil {
		t.Fatalf("BuildJobs() error = %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("len(jobs) = %d, want 0", len(jobs))
	}
}

// TestCartesianProduct_DeterministicOrder guards the key sorting that keeps
// generated job order stable across runs.
func TestCartesianProduct_DeterministicOrder(t *testing.T) {
	// keys in reverse alphabetical order to catch unsorted map iteration
	dims := map[string][]string{
		"z": {"3", "4"},
		"a": {"1", "2"},
	}

	first := cartesianProduct(dims)
	if len(first) != 4 {
		t.Fatalf("expected 4 combinations, got %d", len(first))
	}
	if first[0]["a"] != "1" || first[0]["z"] != "3" || first[3]["a"] != "2" || first[3]["z"] != "4" {
		t.Errorf("unexpected order: %v", first)
	}

	for i := 0; i < 100; i++ {
		result := cartesianProduct(dims)
		if !reflect.DeepEqual(result, first) {
			t.Fatalf("iteration %d: got %v, want %v", i, result, first)
		}
	}
}

func TestMapToKeyValuePairs_Sorted(t *testing.T) {
	got := mapToKeyValuePairs(map[string]string{"b": "2", "a": "1"})
	want := []string{"a", "1", "b", "2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mapToKeyValuePairs() = %v, want %v", got, want)
	}
}
