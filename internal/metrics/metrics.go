// ============================================================================
// Scheduler Metrics - Prometheus
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: Counts simulation activity and exposes it in Prometheus format.
//
// Metrics:
//
//   1. Counters:
//      - sched_runs_total{algorithm}: completed simulation runs
//      - sched_transitions_total{transition}: job state transitions
//        (READY, READY->RUNNING, RUNNING->READY, RUNNING->TERMINATED)
//      - sched_preemptions_total{algorithm}: running jobs displaced by a
//        shorter arrival
//      - sched_requeues_total: round robin quantum expiries
//      - sched_ticks_simulated_total{algorithm}: ticks visited by executors
//
//   2. Histogram:
//      - sched_job_turnaround_ticks: completion minus arrival per job
//
//   3. Gauge:
//      - sched_last_makespan_ticks{algorithm}: elapsed ticks of the latest run
//
// Export:
//   - Handler() serves the registry over HTTP (/metrics)
//   - WriteTextfile() dumps it for the node exporter textfile collector
//
// Each Collector owns its registry, so several can live in one process
// (tests, the compare command) without duplicate registration.
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"

	"github.com/ChuLiYu/cpu-sched/internal/engine"
	"github.com/ChuLiYu/cpu-sched/internal/trace"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the scheduler metrics.
type Collector struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	transitions *prometheus.CounterVec
	preemptions *prometheus.CounterVec
	requeues    prometheus.Counter
	ticks       *prometheus.CounterVec

	turnaround prometheus.Histogram
	makespan   *prometheus.GaugeVec
}

// NewCollector creates a collector on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sched_runs_total",
			Help: "Total number of simulation runs",
		}, []string{"algorithm"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sched_transitions_total",
			Help: "Total number of job state transitions",
		}, []string{"transition"}),
		preemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sched_preemptions_total",
			Help: "Total number of running jobs preempted by a shorter arrival",
		}, []string{"algorithm"}),
		requeues: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sched_requeues_total",
			Help: "Total number of round robin quantum expiries",
		}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sched_ticks_simulated_total",
			Help: "Total number of ticks visited by the executors",
		}, []string{"algorithm"}),
		turnaround: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sched_job_turnaround_ticks",
			Help:    "Job turnaround (completion minus arrival) in ticks",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		makespan: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sched_last_makespan_ticks",
			Help: "Elapsed ticks of the most recent run",
		}, []string{"algorithm"}),
	}

	c.registry.MustRegister(
		c.runs,
		c.transitions,
		c.preemptions,
		c.requeues,
		c.ticks,
		c.turnaround,
		c.makespan,
	)
	return c
}

// WithRuntime adds the Go runtime and process collectors, for long running servers.
func (c *Collector) WithRuntime() *Collector {
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Emit counts a trace event. Collector is a trace.Sink.
func (c *Collector) Emit(ev trace.Event) {
	c.transitions.WithLabelValues(ev.Transition()).Inc()
}

var _ trace.Sink = (*Collector)(nil)

// RecordRun records the outcome of a finished run.
func (c *Collector) RecordRun(res engine.Result) {
	alg := string(res.Algorithm)
	c.runs.WithLabelValues(alg).Inc()
	c.preemptions.WithLabelValues(alg).Add(float64(res.Preemptions))
	c.requeues.Add(float64(res.Requeues))
	c.ticks.WithLabelValues(alg).Add(float64(res.Steps))
	c.makespan.WithLabelValues(alg).Set(float64(res.Elapsed))
	for _, j := range res.Jobs {
		c.turnaround.Observe(float64(j.Turnaround()))
	}
}

// Handler serves the registry in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// WriteTextfile writes the registry to path, replacing it atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
