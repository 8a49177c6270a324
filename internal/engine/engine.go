// ============================================================================
// Scheduling Engine
// ============================================================================
//
// Package: internal/engine
// File: engine.go
// Purpose: Runs one scheduling discipline over a fixed job list and reports
//          per-job completion ticks plus a stream of state transitions.
//
// Executors:
//   - FCFS: non-preemptive, list order, start = max(arrival, previous completion)
//   - SRJF: preemptive by remaining burst, tick-stepped
//   - RR:   FIFO with quantum based requeueing, tick-stepped
//
// Tick model (SRJF / RR):
//   The job RUNNING after the events of tick t owns the CPU during [t, t+1).
//   Tick t+1 first charges that unit of work, then handles, in this order:
//     1. termination of the running job if its remaining burst reached 0
//     2. arrivals at t+1, in list order
//     3. preemption (SRJF) or quantum expiry requeue (RR)
//     4. dispatch of the ready queue head if the CPU is idle
//
// The engine is single threaded. Run copies its input, so the caller's slice
// is never mutated and repeated runs over the same input agree.
//
// ============================================================================

package engine

import (
	"errors"
	"fmt"

	"github.com/ChuLiYu/cpu-sched/internal/trace"
	"github.com/ChuLiYu/cpu-sched/pkg/types"
)

var (
	// ErrUnknownAlgorithm is returned for an algorithm the engine does not implement.
	ErrUnknownAlgorithm = errors.New("unknown scheduling algorithm")
	// ErrInvalidQuantum is returned when round robin is configured without a positive quantum.
	ErrInvalidQuantum = errors.New("round robin requires a positive time quantum")
)

// Config selects the discipline. It is passed by value and never changes during a run.
type Config struct {
	Algorithm types.Algorithm
	Quantum   int // round robin only
}

// Validate reports configuration errors before any run starts.
func (c Config) Validate() error {
	switch c.Algorithm {
	case types.AlgorithmFCFS, types.AlgorithmSRJF:
		return nil
	case types.AlgorithmRoundRobin:
		if c.Quantum <= 0 {
			return fmt.Errorf("%w: got %d", ErrInvalidQuantum, c.Quantum)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownAlgorithm, c.Algorithm)
}

// Result is the outcome of one run.
type Result struct {
	Algorithm   types.Algorithm
	Quantum     int
	Jobs        []types.Job // list order, counters final
	Elapsed     int         // latest completion tick, 0 for an empty list
	Steps       int         // ticks visited by the executor
	Preemptions int         // SRJF: running job displaced by a shorter arrival
	Requeues    int         // RR: quantum expiries sent to the back of the queue
}

// Completions returns (job id, completion) pairs in list order.
func (r Result) Completions() []types.Completion {
	out := make([]types.Completion, len(r.Jobs))
	for i, j := range r.Jobs {
		out[i] = types.Completion{JobID: j.ID, Tick: j.Completion}
	}
	return out
}

// Engine runs a configured discipline and forwards transitions to a sink.
type Engine struct {
	cfg  Config
	sink trace.Sink
}

// New validates cfg and builds an engine. A nil sink discards events.
func New(cfg Config, sink trace.Sink) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = trace.Discard
	}
	return &Engine{cfg: cfg, sink: sink}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Run simulates jobs, which the caller guarantees to have non-negative arrival
// and burst. Invariant violations inside the engine panic.
func (e *Engine) Run(jobs []types.Job) Result {
	w := newWorkset(jobs, e.sink)

	var st stats
	switch e.cfg.Algorithm {
	case types.AlgorithmFCFS:
		st = runFCFS(w)
	case types.AlgorithmSRJF:
		st = runSRJF(w)
	case types.AlgorithmRoundRobin:
		st = runRR(w, e.cfg.Quantum)
	default:
		panic(fmt.Sprintf("engine: unvalidated algorithm %q", e.cfg.Algorithm))
	}
	w.finish()

	res := Result{
		Algorithm:   e.cfg.Algorithm,
		Quantum:     e.cfg.Quantum,
		Jobs:        w.jobs,
		Steps:       st.steps,
		Preemptions: st.preemptions,
		Requeues:    st.requeues,
	}
	for _, j := range w.jobs {
		if j.Completion > res.Elapsed {
			res.Elapsed = j.Completion
		}
	}
	return res
}

type stats struct {
	steps       int
	preemptions int
	requeues    int
}
