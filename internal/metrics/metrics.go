// Package metrics exposes Prometheus instruments for polls.
//
// A [Recorder] registers its collectors on a private registry so several
// recorders (one per test, say) never collide on the global one. Its
// ObserveAttempt and ObservePoll methods have the shapes of the
// pollmatch attempt and outcome callbacks.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/pollmatch"
)

const namespace = "pollmatch"

// Attempt result label values. Stop means the attempt met the poll's stop
// condition, which for an inverted match is the pattern being absent.
const (
	ResultStop     = "stop"
	ResultContinue = "continue"
	ResultError    = "error"
)

// Recorder records attempt and poll metrics.
type Recorder struct {
	registry *prometheus.Registry

	attempts       *prometheus.CounterVec
	attemptLatency prometheus.Histogram
	polls          *prometheus.CounterVec
	pollDuration   *prometheus.HistogramVec
	inFlight       prometheus.Gauge
}

// NewRecorder creates a Recorder with Go runtime and process collectors
// registered alongside the poll metrics.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		// attempts counts every request issued by a poll.
		// Labels: result (stop, continue, error)
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Total poll attempts by result",
		}, []string{"result"}),

		attemptLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempt_latency_seconds",
			Help:      "Latency of completed poll requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		// polls counts finished polls.
		// Labels: outcome (matched, exhausted, cancelled, invalid)
		polls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Total finished polls by outcome",
		}, []string{"outcome"}),

		pollDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Wall time from first attempt to poll outcome in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"outcome"}),

		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "polls_in_flight",
			Help:      "Polls currently running in the service",
		}),
	}
}

// ObserveAttempt records one attempt.
func (r *Recorder) ObserveAttempt(a pollmatch.Attempt) {
	switch {
	case a.Err != nil:
		r.attempts.WithLabelValues(ResultError).Inc()
		return
	case a.Matched:
		r.attempts.WithLabelValues(ResultStop).Inc()
	default:
		r.attempts.WithLabelValues(ResultContinue).Inc()
	}
	r.attemptLatency.Observe(a.Latency.Seconds())
}

// ObservePoll records a finished poll.
func (r *Recorder) ObservePoll(o pollmatch.Outcome) {
	state := o.State().String()
	r.polls.WithLabelValues(state).Inc()
	r.pollDuration.WithLabelValues(state).Observe(o.Elapsed.Seconds())
}

// PollStarted and PollFinished track the in-flight gauge.
func (r *Recorder) PollStarted()  { r.inFlight.Inc() }
func (r *Recorder) PollFinished() { r.inFlight.Dec() }

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
