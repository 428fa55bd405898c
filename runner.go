package pollmatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/pollmatch/internal/poller"
	"github.com/jpalmerr/pollmatch/jsontree"
)

// Job is a named poll for [Poller.RunAll].
type Job struct {
	// Name identifies the job in logs and results.
	Name string

	// Request is issued on every attempt.
	Request Request

	// Match is the stop condition.
	Match MatchSpec

	// MaxAttempts is the attempt budget, at least 1.
	MaxAttempts int

	// Delay is the pause between attempts.
	Delay time.Duration

	// Extract, if set, is looked up in the last response body once the
	// poll ends. Dotted paths and "$"-rooted JSONPath are both accepted.
	Extract string
}

// Validate checks the job without running it.
func (j Job) Validate() error {
	if j.Name == "" {
		return errors.New("job name is required")
	}
	if j.Request.url == "" {
		return errors.New("job request is required")
	}
	if err := (poller.Job{MaxAttempts: j.MaxAttempts, Delay: j.Delay}).Validate(); err != nil {
		return err
	}
	return j.Match.Validate()
}

// JobResult pairs a [Job] with its [Outcome].
type JobResult struct {
	Job     Job
	Outcome Outcome

	// Extracted holds the value at Job.Extract, when found.
	Extracted jsontree.Value
	Found     bool
}

// RunAll runs every job concurrently, at most [Poller.MaxConcurrency] at a
// time, and returns one result per job in input order.
//
// Jobs are independent: one job exhausting or failing does not stop the
// others. Cancelling ctx cancels every job still running.
func (p *Poller) RunAll(ctx context.Context, jobs []Job) []JobResult {
	results := make([]JobResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(p.maxConcurrency)

	for i, job := range jobs {
		g.Go(func() error {
			out := p.run(ctx, uuid.NewString(), job.Name, job.Request, job.Match, job.MaxAttempts, job.Delay, nil)

			jr := JobResult{Job: job, Outcome: out}
			if job.Extract != "" {
				jr.Extracted, jr.Found = out.Extract(job.Extract)
			}
			results[i] = jr
			return nil
		})
	}

	// workers never return errors; jobs report failure through their Outcome
	_ = g.Wait()
	return results
}
