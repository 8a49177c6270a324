// ============================================================================
// Run Controller
// ============================================================================
//
// Package: internal/controller
// File: controller.go
// Purpose: Coordinates one simulation run from job source to outputs.
//
// Flow of Run:
//   1. Validate the configuration and derive the immutable engine config
//   2. Resolve the job source and load the job list
//   3. Print the banner, then run the engine with a fan-out sink:
//      - Printer   (verbose only): trace lines on stdout
//      - Journal   (output.journal): checksummed JSONL records
//      - Collector (always): Prometheus counters
//   4. Print the completion lines
//   5. Flush the journal, write the report, the summary table and the
//      metrics textfile, each only when configured
//
// Compare runs all three disciplines concurrently on the worker pool over
// one shared job list and prints a comparison table.
//
// Output streams:
//   Simulation output goes to the Runner's writer. Diagnostics go to the
//   zap logger, which writes to stderr.
//
// ============================================================================

package controller

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ChuLiYu/cpu-sched/internal/config"
	"github.com/ChuLiYu/cpu-sched/internal/engine"
	"github.com/ChuLiYu/cpu-sched/internal/jobsource"
	"github.com/ChuLiYu/cpu-sched/internal/journal"
	"github.com/ChuLiYu/cpu-sched/internal/metrics"
	"github.com/ChuLiYu/cpu-sched/internal/report"
	"github.com/ChuLiYu/cpu-sched/internal/trace"
	"github.com/ChuLiYu/cpu-sched/internal/worker"
	"github.com/ChuLiYu/cpu-sched/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultCompareQuantum is the round robin quantum compare uses when none is configured.
const DefaultCompareQuantum = 2

// ============================================================================
// Data Structures
// ============================================================================

// Request describes one run.
type Request struct {
	Config *config.Config
	// Source overrides the source selected by Config. Optional.
	Source jobsource.Source
}

// Outcome is what a finished run produced.
type Outcome struct {
	RunID       string
	Result      engine.Result
	Completions []types.Completion
	Report      report.Report
}

// Runner executes runs against one output writer, logger and collector.
type Runner struct {
	out     io.Writer
	logger  *zap.Logger
	metrics *metrics.Collector
	newID   func() string
}

// NewRunner creates a runner. A nil logger logs nothing and a nil collector
// gets replaced by a private one.
func NewRunner(out io.Writer, logger *zap.Logger, collector *metrics.Collector) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &Runner{
		out:     out,
		logger:  logger,
		metrics: collector,
		newID:   uuid.NewString,
	}
}

// Metrics returns the collector fed by this runner.
func (r *Runner) Metrics() *metrics.Collector {
	return r.metrics
}

// ============================================================================
// Single Run
// ============================================================================

// Run performs one simulation. Configuration and source errors are returned
// before anything is printed.
func (r *Runner) Run(ctx context.Context, req Request) (Outcome, error) {
	cfg := req.Config
	if cfg == nil {
		return Outcome{}, config.ErrNoAlgorithm
	}
	ec, err := cfg.Engine()
	if err != nil {
		return Outcome{}, err
	}

	src := req.Source
	if src == nil {
		if err := cfg.Validate(); err != nil {
			return Outcome{}, err
		}
		if src, err = jobsource.New(cfg, r.logger); err != nil {
			return Outcome{}, err
		}
	}

	jobs, err := src.Jobs(ctx)
	if err != nil {
		return Outcome{}, err
	}
	r.dumpJobs(jobs)

	runID := r.newID()
	log := r.logger.With(zap.String("run_id", runID), zap.String("algorithm", string(ec.Algorithm)))

	printer := trace.NewPrinter(r.out)
	printer.Banner(ec.Algorithm, ec.Quantum, src.Label())

	var (
		verbose trace.Sink
		jsink   trace.Sink
		jr      *journal.Journal
	)
	if cfg.Scheduler.Verbose {
		verbose = printer
	}
	if path := cfg.Output.Journal; path != "" {
		if jr, err = journal.Open(path, runID); err != nil {
			return Outcome{}, err
		}
		jsink = jr
	}

	eng, err := engine.New(ec, trace.Multi(verbose, jsink, r.metrics))
	if err != nil {
		closeJournal(jr)
		return Outcome{}, err
	}
	res := eng.Run(jobs)
	log.Debug(fmt.Sprintf("Time : %d", res.Elapsed), zap.Int("steps", res.Steps))

	out := Outcome{
		RunID:       runID,
		Result:      res,
		Completions: res.Completions(),
	}
	printer.Completions(out.Completions)

	if jr != nil {
		if err := jr.Close(); err != nil {
			return out, err
		}
		log.Debug("journal written", zap.String("path", jr.Path()), zap.Uint64("records", jr.LastSeq()))
	}

	r.metrics.RecordRun(res)
	out.Report = report.Build(runID, src.Label(), res)

	if path := cfg.Output.Report; path != "" {
		if err := report.NewManager(path).Write(out.Report); err != nil {
			return out, err
		}
		log.Debug("report written", zap.String("path", path))
	}
	if cfg.Output.Summary {
		report.RenderJobs(r.out, out.Report)
	}
	if path := cfg.Metrics.Textfile; path != "" {
		if err := r.metrics.WriteTextfile(path); err != nil {
			return out, err
		}
	}

	if err := printer.Err(); err != nil {
		return out, fmt.Errorf("failed to write output: %w", err)
	}
	log.Info("run complete",
		zap.Int("jobs", len(res.Jobs)),
		zap.Int("elapsed", res.Elapsed),
		zap.Int("preemptions", res.Preemptions),
		zap.Int("requeues", res.Requeues),
	)
	return out, nil
}

func (r *Runner) dumpJobs(jobs []types.Job) {
	if !r.logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	for _, j := range jobs {
		r.logger.Debug(fmt.Sprintf("Job: %d, Arrival: %d, Time: %d", j.ID, j.Arrival, j.Burst))
	}
}

func closeJournal(jr *journal.Journal) {
	if jr != nil {
		_ = jr.Close()
	}
}

// ============================================================================
// Comparison
// ============================================================================

// Compare runs FCFS, SRJF and round robin with quantum over the job list of
// cfg's source and prints one comparison row per discipline. A non-positive
// quantum falls back to DefaultCompareQuantum.
func (r *Runner) Compare(ctx context.Context, cfg *config.Config, quantum int) ([]report.Report, error) {
	if cfg.Source.RandomJobs != nil {
		if err := cfg.Random.Validate(); err != nil {
			return nil, err
		}
	}
	src, err := jobsource.New(cfg, r.logger)
	if err != nil {
		return nil, err
	}
	return r.CompareSource(ctx, src, quantum)
}

// CompareSource is Compare over an explicit source.
func (r *Runner) CompareSource(ctx context.Context, src jobsource.Source, quantum int) ([]report.Report, error) {
	if quantum <= 0 {
		quantum = DefaultCompareQuantum
	}
	jobs, err := src.Jobs(ctx)
	if err != nil {
		return nil, err
	}
	r.dumpJobs(jobs)

	configs := []engine.Config{
		{Algorithm: types.AlgorithmFCFS},
		{Algorithm: types.AlgorithmSRJF},
		{Algorithm: types.AlgorithmRoundRobin, Quantum: quantum},
	}
	tasks := make([]worker.Task, len(configs))
	for i, ec := range configs {
		tasks[i] = worker.Task{Config: ec, Jobs: jobs}
	}

	results, err := worker.RunAll(ctx, len(tasks), tasks)
	if err != nil {
		return nil, err
	}

	reports := make([]report.Report, 0, len(results))
	var errs []error
	for _, res := range results {
		if !res.Success {
			errs = append(errs, res.Error)
			continue
		}
		r.metrics.RecordRun(res.Run)
		reports = append(reports, report.Build(r.newID(), src.Label(), res.Run))
		r.logger.Debug("comparison run finished",
			zap.String("algorithm", string(res.Run.Algorithm)),
			zap.Duration("duration", res.Duration),
		)
	}
	if len(errs) > 0 {
		return reports, fmt.Errorf("comparison failed: %w", errors.Join(errs...))
	}

	if _, err := fmt.Fprintf(r.out, "sched compare -R %d for %s\n", quantum, src.Label()); err != nil {
		return reports, fmt.Errorf("failed to write output: %w", err)
	}
	report.RenderComparison(r.out, reports)
	return reports, nil
}

// ============================================================================
// Journal Replay
// ============================================================================

// Replay reprints the trace lines stored in a journal. Each run starts with
// a "run <id>" header line.
func (r *Runner) Replay(path string) (int, error) {
	printer := trace.NewPrinter(r.out)
	var (
		current string
		count   int
	)
	err := journal.Replay(path, func(rec journal.Record) error {
		if rec.RunID != current {
			current = rec.RunID
			if _, err := fmt.Fprintf(r.out, "run %s\n", rec.RunID); err != nil {
				return err
			}
		}
		printer.Emit(rec.Event())
		count++
		return printer.Err()
	})
	if err != nil {
		return count, err
	}
	r.logger.Debug("journal replayed", zap.String("path", path), zap.Int("records", count))
	return count, nil
}
