// Package config provides YAML configuration parsing for pollmatch.
//
// This package enables running polls from a configuration file with the
// pollmatch binary, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	concurrency: 4
//	defaults:
//	  max_attempts: 10
//	  delay: 2s
//	  timeout: 10s
//
//	polls:
//	  - name: render finished
//	    url: http://${COMFY_HOST:-localhost:8188}/history/abc
//	    match: 'json:{"status":{"completed":true}}'
//	    extract: outputs.9.images.0.filename
//
//	grids:
//	  - name: queue drained
//	    url_template: "http://{{.host}}/queue"
//	    dimensions:
//	      host: [gpu-1:8188, gpu-2:8188]
//	    match: 'not-regex:"queue_pending":\s*\[\s*\{'
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/pollmatch"
)

const (
	defaultPort        = 8080
	defaultConcurrency = 10
	defaultMaxAttempts = 10
	defaultDelay       = time.Second
	defaultTimeout     = 10 * time.Second
)

// Config is the root configuration structure for pollmatch.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Port is the HTTP port used by "pollmatch serve". Defaults to 8080.
	Port int `yaml:"port"`

	// Concurrency bounds how many polls run at once. Defaults to 10.
	Concurrency int `yaml:"concurrency"`

	// Defaults fill in fields a poll leaves unset.
	Defaults Defaults `yaml:"defaults"`

	// Polls defines individual poll jobs.
	Polls []PollConfig `yaml:"polls"`

	// Grids defines poll jobs that expand via cartesian product.
	Grids []GridConfig `yaml:"grids"`
}

// Defaults are applied to every poll that does not set the field itself.
type Defaults struct {
	// MaxAttempts defaults to 10.
	MaxAttempts int `yaml:"max_attempts"`

	// Delay between attempts. Defaults to 1s; "0s" disables the pause.
	Delay *Duration `yaml:"delay"`

	// Timeout per attempt. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`
}

// PollConfig defines a single poll job.
type PollConfig struct {
	// Name identifies the poll in logs and output.
	Name string `yaml:"name"`

	// URL is the polled URL.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Method is the HTTP method. Defaults to GET.
	Method string `yaml:"method"`

	// Headers are sent with every attempt.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Body is sent with every attempt when set.
	// Supports environment variable substitution.
	Body *string `yaml:"body"`

	// Match is the stop condition.
	// Can be shorthand ("json:{...}", "not-contains:error") or structured.
	Match MatchConfig `yaml:"match"`

	// MaxAttempts overrides defaults.max_attempts.
	MaxAttempts int `yaml:"max_attempts"`

	// Delay overrides defaults.delay.
	Delay *Duration `yaml:"delay"`

	// Timeout overrides defaults.timeout.
	Timeout Duration `yaml:"timeout"`

	// Extract is a dotted path or "$"-rooted JSONPath looked up in the
	// last response body once the poll ends.
	Extract string `yaml:"extract"`
}

// GridConfig defines polls that expand via cartesian product.
//
// For example, with dimensions {env: [prod, staging], svc: [api, web]},
// the grid expands to 4 polls: prod/api, prod/web, staging/api, staging/web.
type GridConfig struct {
	// Name is the base name for generated polls.
	Name string `yaml:"name"`

	// URLTemplate is a Go template for generating poll URLs.
	// Dimension keys are available as template variables: {{.env}}, {{.svc}}
	// Supports environment variable substitution in the template.
	URLTemplate string `yaml:"url_template"`

	// Dimensions maps dimension names to their possible values.
	// The cartesian product of all dimensions generates the polls.
	Dimensions map[string][]string `yaml:"dimensions"`

	Method      string            `yaml:"method"`
	Headers     map[string]string `yaml:"headers"`
	Body        *string           `yaml:"body"`
	Match       MatchConfig       `yaml:"match"`
	MaxAttempts int               `yaml:"max_attempts"`
	Delay       *Duration         `yaml:"delay"`
	Timeout     Duration          `yaml:"timeout"`
	Extract     string            `yaml:"extract"`
}

// MatchConfig specifies the stop condition of a poll.
//
// It supports two formats in YAML:
//
// Shorthand string:
//
//	match: contains:"done"
//	match: regex:^ok$
//	match: 'json:{"status":"done"}'
//	match: jsonpath:$.outputs[*].images
//	match: not-contains:error
//
// Structured object:
//
//	match:
//	  type: regex
//	  pattern: ^ok$
//	  invert: true
type MatchConfig struct {
	// Type is the match kind: literal (or contains), regex, json, jsonpath.
	Type string

	// Pattern is interpreted according to Type.
	Pattern string

	// Invert stops the poll on the first response that does NOT match.
	Invert bool
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler for MatchConfig.
func (m *MatchConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		return m.parseShorthand(s)
	}

	if node.Kind == yaml.MappingNode {
		// temporary struct to avoid infinite recursion
		var raw struct {
			Type    string `yaml:"type"`
			Pattern string `yaml:"pattern"`
			Invert  bool   `yaml:"invert"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		m.Type = raw.Type
		m.Pattern = raw.Pattern
		m.Invert = raw.Invert
		return nil
	}

	return fmt.Errorf("match must be a string or object, got %v", node.Kind)
}

// parseShorthand parses match shorthand syntax "[not-]kind:pattern".
// Only the first colon separates kind from pattern.
func (m *MatchConfig) parseShorthand(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	idx := strings.Index(s, ":")
	if idx == -1 {
		return fmt.Errorf("invalid match %q (expected 'contains:text', 'regex:re', 'json:doc', or 'jsonpath:expr')", s)
	}

	kind := s[:idx]
	if rest, ok := strings.CutPrefix(kind, "not-"); ok {
		m.Invert = true
		kind = rest
	}

	if _, err := pollmatch.ParseMatchKind(kind); err != nil {
		return err
	}
	m.Type = kind
	m.Pattern = s[idx+1:]
	return nil
}

// Spec converts the config into a [pollmatch.MatchSpec].
func (m MatchConfig) Spec() (pollmatch.MatchSpec, error) {
	kind, err := pollmatch.ParseMatchKind(m.Type)
	if err != nil {
		return pollmatch.MatchSpec{}, err
	}
	return pollmatch.NewMatchSpec(kind, m.Pattern, m.Invert)
}

// ParseMatch parses match shorthand ("contains:done", "not-regex:^err")
// into a compiled-checked [pollmatch.MatchSpec].
func ParseMatch(s string) (pollmatch.MatchSpec, error) {
	var m MatchConfig
	if err := m.parseShorthand(s); err != nil {
		return pollmatch.MatchSpec{}, err
	}
	if m.Type == "" {
		return pollmatch.MatchSpec{}, errors.New("match is required")
	}
	spec, err := m.Spec()
	if err != nil {
		return pollmatch.MatchSpec{}, err
	}
	if err := spec.Validate(); err != nil {
		return pollmatch.MatchSpec{}, err
	}
	return spec, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in URL, URLTemplate, header values and
// bodies. Defaults are applied for Port (8080), Concurrency (10) and the
// poll defaults (10 attempts, 1s delay, 10s timeout).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Defaults.MaxAttempts == 0 {
		cfg.Defaults.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Defaults.Delay == nil {
		d := Duration(defaultDelay)
		cfg.Defaults.Delay = &d
	}
	if cfg.Defaults.Timeout == 0 {
		cfg.Defaults.Timeout = Duration(defaultTimeout)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.Defaults.MaxAttempts < 0 {
		return fmt.Errorf("defaults: max_attempts must be at least 1, got %d", c.Defaults.MaxAttempts)
	}
	if c.Defaults.Delay.Duration() < 0 {
		return fmt.Errorf("defaults: delay cannot be negative, got %s", c.Defaults.Delay.Duration())
	}
	if c.Defaults.Timeout.Duration() < 0 {
		return fmt.Errorf("defaults: timeout cannot be negative, got %s", c.Defaults.Timeout.Duration())
	}

	names := make(map[string]struct{})

	for i := range c.Polls {
		p := &c.Polls[i]

		if p.Name == "" {
			return fmt.Errorf("polls[%d]: name is required", i)
		}
		ctx := fmt.Sprintf("polls[%d] (%s)", i, p.Name)

		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("%s: duplicate name", ctx)
		}
		names[p.Name] = struct{}{}

		if p.URL == "" {
			return fmt.Errorf("%s: url is required", ctx)
		}
		expanded, err := expandEnvVars(p.URL)
		if err != nil {
			return fmt.Errorf("%s: url: %w", ctx, err)
		}
		p.URL = expanded
		if err := validateURL(p.URL); err != nil {
			return fmt.Errorf("%s: %w", ctx, err)
		}

		if err := validateRequestFields(ctx, p.Method, p.Headers, &p.Body, p.MaxAttempts, p.Delay, p.Timeout, p.Match); err != nil {
			return err
		}
	}

	for i := range c.Grids {
		g := &c.Grids[i]

		if g.Name == "" {
			return fmt.Errorf("grids[%d]: name is required", i)
		}
		ctx := fmt.Sprintf("grids[%d] (%s)", i, g.Name)

		if g.URLTemplate == "" {
			return fmt.Errorf("%s: url_template is required", ctx)
		}
		expanded, err := expandEnvVars(g.URLTemplate)
		if err != nil {
			return fmt.Errorf("%s: url_template: %w", ctx, err)
		}
		g.URLTemplate = expanded

		// fail fast before the builder tries to use an invalid template
		if _, err := template.New("").Parse(g.URLTemplate); err != nil {
			return fmt.Errorf("%s: invalid url_template: %w", ctx, err)
		}

		if len(g.Dimensions) == 0 {
			return fmt.Errorf("%s: at least one dimension is required", ctx)
		}
		for dimName, dimValues := range g.Dimensions {
			if len(dimValues) == 0 {
				return fmt.Errorf("%s: dimension %q has no values", ctx, dimName)
			}
			seen := make(map[string]struct{}, len(dimValues))
			for _, v := range dimValues {
				if _, exists := seen[v]; exists {
					return fmt.Errorf("%s: dimension %q has duplicate value %q", ctx, dimName, v)
				}
				seen[v] = struct{}{}
			}
		}

		if err := validateRequestFields(ctx, g.Method, g.Headers, &g.Body, g.MaxAttempts, g.Delay, g.Timeout, g.Match); err != nil {
			return err
		}
	}

	if len(c.Polls) == 0 && len(c.Grids) == 0 {
		return errors.New("at least one poll or grid must be defined")
	}

	return nil
}

// validateRequestFields expands and checks the fields polls and grids share.
func validateRequestFields(ctx, method string, headers map[string]string, body **string, maxAttempts int, delay *Duration, timeout Duration, match MatchConfig) error {
	for k, v := range headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("%s: headers[%s]: %w", ctx, k, err)
		}
		headers[k] = expanded
	}

	if *body != nil {
		expanded, err := expandEnvVars(**body)
		if err != nil {
			return fmt.Errorf("%s: body: %w", ctx, err)
		}
		*body = &expanded
	}

	if method != "" && !pollmatch.ValidMethod(strings.ToUpper(method)) {
		return fmt.Errorf("%s: method must be one of GET, HEAD, POST, PUT, PATCH, DELETE, OPTIONS", ctx)
	}

	if maxAttempts < 0 {
		return fmt.Errorf("%s: max_attempts must be at least 1, got %d", ctx, maxAttempts)
	}
	if delay != nil && delay.Duration() < 0 {
		return fmt.Errorf("%s: delay cannot be negative, got %s", ctx, delay.Duration())
	}
	if timeout.Duration() < 0 {
		return fmt.Errorf("%s: timeout cannot be negative, got %s", ctx, timeout.Duration())
	}

	return validateMatch(match, ctx)
}

// validateURL checks that u is an absolute http(s) URL.
func validateURL(u string) error {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return errors.New("url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	return nil
}

// validateMatch validates a match configuration, compiling its pattern.
func validateMatch(m MatchConfig, context string) error {
	if m.Type == "" {
		return fmt.Errorf("%s: match is required", context)
	}
	spec, err := m.Spec()
	if err != nil {
		return fmt.Errorf("%s: match: %w", context, err)
	}
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("%s: match: %w", context, err)
	}
	return nil
}
