package config

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/jpalmerr/pollmatch"
)

// BuildJobs converts parsed configuration into SDK Job values.
//
// It processes both direct polls and grids, returning a combined slice.
// Grid dimensions are expanded via cartesian product. Unset per-poll fields
// take their value from cfg.Defaults.
func BuildJobs(cfg *Config) ([]pollmatch.Job, error) {
	var jobs []pollmatch.Job

	for _, pc := range cfg.Polls {
		job, err := buildJob(pc, cfg.Defaults)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	for _, gc := range cfg.Grids {
		gridJobs, err := buildGridJobs(gc, cfg.Defaults)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, gridJobs...)
	}

	return jobs, nil
}

// buildJob converts a single PollConfig to an SDK Job.
func buildJob(pc PollConfig, def Defaults) (pollmatch.Job, error) {
	var opts []pollmatch.RequestOption

	if pc.Method != "" {
		opts = append(opts, pollmatch.WithMethod(pc.Method))
	}

	timeout := def.Timeout
	if pc.Timeout != 0 {
		timeout = pc.Timeout
	}
	if timeout != 0 {
		opts = append(opts, pollmatch.WithTimeout(timeout.Duration()))
	}

	if len(pc.Headers) > 0 {
		opts = append(opts, pollmatch.WithHeaders(mapToKeyValuePairs(pc.Headers)...))
	}

	if pc.Body != nil {
		opts = append(opts, pollmatch.WithBody(*pc.Body))
	}

	req, err := pollmatch.NewRequest(pc.URL, opts...)
	if err != nil {
		return pollmatch.Job{}, fmt.Errorf("poll (%s): %w", pc.Name, err)
	}

	match, err := pc.Match.Spec()
	if err != nil {
		return pollmatch.Job{}, fmt.Errorf("poll (%s): match: %w", pc.Name, err)
	}

	maxAttempts := def.MaxAttempts
	if pc.MaxAttempts != 0 {
		maxAttempts = pc.MaxAttempts
	}

	delay := def.Delay
	if pc.Delay != nil {
		delay = pc.Delay
	}

	job := pollmatch.Job{
		Name:        pc.Name,
		Request:     req,
		Match:       match,
		MaxAttempts: maxAttempts,
		Extract:     pc.Extract,
	}
	if delay != nil {
		job.Delay = delay.Duration()
	}
	return job, nil
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}

// buildGridJobs expands a GridConfig into multiple jobs via cartesian product.
func buildGridJobs(gc GridConfig, def Defaults) ([]pollmatch.Job, error) {
	// use missingkey=error to fail fast on missing template variables
	tmpl, err := template.New("url").Option("missingkey=error").Parse(gc.URLTemplate)
	if err != nil {
		return nil, err
	}

	var jobs []pollmatch.Job
	for _, combo := range cartesianProduct(gc.Dimensions) {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, combo); err != nil {
			return nil, fmt.Errorf("grid (%s) with dimensions %v: template execution failed: %w", gc.Name, combo, err)
		}

		pc := PollConfig{
			Name:        buildGridName(gc.Name, combo),
			URL:         buf.String(),
			Method:      gc.Method,
			Headers:     gc.Headers,
			Body:        gc.Body,
			Match:       gc.Match,
			MaxAttempts: gc.MaxAttempts,
			Delay:       gc.Delay,
			Timeout:     gc.Timeout,
			Extract:     gc.Extract,
		}

		job, err := buildJob(pc, def)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// buildGridName creates a display name for a grid poll.
func buildGridName(baseName string, combo map[string]string) string {
	keys := make([]string, 0, len(combo))
	for k := range combo {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := []string{baseName}
	for _, k := range keys {
		parts = append(parts, combo[k])
	}
	return strings.Join(parts, " ")
}

// cartesianProduct generates all combinations of dimension values.
func cartesianProduct(dimensions map[string][]string) []map[string]string {
	if len(dimensions) == 0 {
		return nil
	}

	// sort dimension keys for deterministic ordering
	keys := make([]string, 0, len(dimensions))
	for k := range dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []map[string]string{{}}

	for _, key := range keys {
		var next []map[string]string
		for _, combo := range result {
			for _, val := range dimensions[key] {
				newCombo := make(map[string]string, len(combo)+1)
				for k, v := range combo {
					newCombo[k] = v
				}
				newCombo[key] = val
				next = append(next, newCombo)
			}
		}
		result = next
	}

	return result
}
