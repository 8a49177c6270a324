// ============================================================================
// Job State Tracking
// ============================================================================
//
// Package: internal/engine
// File: state.go
// Purpose: Owns the working copy of the job list for one run and enforces the
//          job state machine while emitting trace events.
//
// State machine:
//   NOT_ARRIVED
//      ↓ arrive()
//   READY  ⇄  RUNNING       (dispatch() / preempt())
//                ↓ complete()
//           TERMINATED
//
//   NOT_ARRIVED → TERMINATED is allowed only through retire(), used for
//   jobs with nothing to run; it emits no event.
//
// Any other transition, a decrement below zero or a job left unfinished at
// the end of a run is an engine bug and panics.
//
// ============================================================================

package engine

import (
	"fmt"
	"sort"

	"github.com/ChuLiYu/cpu-sched/internal/trace"
	"github.com/ChuLiYu/cpu-sched/pkg/types"
)

var legalTransitions = map[types.JobState][]types.JobState{
	types.StateNotArrived: {types.StateReady, types.StateTerminated},
	types.StateReady:      {types.StateRunning},
	types.StateRunning:    {types.StateReady, types.StateTerminated},
}

type workset struct {
	jobs   []types.Job
	states []types.JobState
	sink   trace.Sink
	clock  *Clock

	byArrival []int // job indices by (arrival, list index)
	next      int   // position in byArrival of the next job to arrive
	left      int   // jobs not yet terminated
}

func newWorkset(input []types.Job, sink trace.Sink) *workset {
	if sink == nil {
		sink = trace.Discard
	}
	w := &workset{
		jobs:      make([]types.Job, len(input)),
		states:    make([]types.JobState, len(input)),
		sink:      sink,
		byArrival: make([]int, len(input)),
		left:      len(input),
	}
	for i, j := range input {
		if j.Arrival < 0 || j.Burst < 0 {
			panic(fmt.Sprintf("engine: job %d has negative arrival or burst (%d, %d)", j.ID, j.Arrival, j.Burst))
		}
		j.Reset()
		w.jobs[i] = j
		w.states[i] = types.StateNotArrived
		w.byArrival[i] = i
	}
	sort.SliceStable(w.byArrival, func(a, b int) bool {
		return w.jobs[w.byArrival[a]].Arrival < w.jobs[w.byArrival[b]].Arrival
	})

	start := 0
	if len(input) > 0 {
		start = w.jobs[w.byArrival[0]].Arrival
	}
	w.clock = NewClock(start)
	return w
}

// arrivalsAt returns, in list order, the jobs whose arrival is the current tick.
func (w *workset) arrivalsAt() []int {
	now := w.clock.Now()
	var out []int
	for w.next < len(w.byArrival) {
		i := w.byArrival[w.next]
		a := w.jobs[i].Arrival
		if a > now {
			break
		}
		if a < now {
			panic(fmt.Sprintf("engine: job %d arrival %d skipped at tick %d", w.jobs[i].ID, a, now))
		}
		out = append(out, i)
		w.next++
	}
	return out
}

// nextArrival returns the arrival tick of the next job not yet arrived.
func (w *workset) nextArrival() (int, bool) {
	if w.next >= len(w.byArrival) {
		return 0, false
	}
	return w.jobs[w.byArrival[w.next]].Arrival, true
}

func (w *workset) move(i int, to types.JobState, emit bool) {
	from := w.states[i]
	ok := false
	for _, s := range legalTransitions[from] {
		if s == to {
			ok = true
			break
		}
	}
	if !ok {
		panic(fmt.Sprintf("engine: illegal transition %s->%s for job %d at tick %d",
			from, to, w.jobs[i].ID, w.clock.Now()))
	}
	w.states[i] = to
	if emit {
		w.sink.Emit(trace.Event{Tick: w.clock.Now(), JobID: w.jobs[i].ID, From: from, To: to})
	}
}

func (w *workset) arrive(i int)   { w.move(i, types.StateReady, true) }
func (w *workset) dispatch(i int) { w.move(i, types.StateRunning, true) }
func (w *workset) preempt(i int)  { w.move(i, types.StateReady, true) }

// consume charges one tick of CPU to job i.
func (w *workset) consume(i int) {
	j := &w.jobs[i]
	if w.states[i] != types.StateRunning {
		panic(fmt.Sprintf("engine: job %d consumed CPU while %s", j.ID, w.states[i]))
	}
	if j.Remaining == 0 {
		panic(fmt.Sprintf("engine: job %d remaining burst would go negative", j.ID))
	}
	j.Remaining--
	j.Running++
}

// complete terminates a running job at the current tick.
func (w *workset) complete(i int) {
	w.move(i, types.StateTerminated, true)
	w.jobs[i].Completion = w.clock.Now()
	w.left--
}

// retire terminates a job with nothing to run at its arrival tick.
func (w *workset) retire(i int) {
	if w.jobs[i].Remaining != 0 {
		panic(fmt.Sprintf("engine: retire of job %d with remaining burst %d", w.jobs[i].ID, w.jobs[i].Remaining))
	}
	w.move(i, types.StateTerminated, false)
	w.jobs[i].Completion = w.clock.Now()
	w.left--
}

// recomputeHorizon sets the horizon to now plus the work owed by arrived,
// unterminated jobs, or to the next arrival if that is later.
func (w *workset) recomputeHorizon() {
	owed := 0
	for i, s := range w.states {
		if s == types.StateReady || s == types.StateRunning {
			owed += w.jobs[i].Remaining
		}
	}
	h := w.clock.Now() + owed
	if a, ok := w.nextArrival(); ok && a > h {
		h = a
	}
	w.clock.SetHorizon(h)
}

// finish checks the end-of-run invariants.
func (w *workset) finish() {
	if w.left != 0 {
		panic(fmt.Sprintf("engine: run ended at tick %d with %d unfinished jobs", w.clock.Now(), w.left))
	}
	for _, j := range w.jobs {
		if j.Completion < j.Arrival+j.Burst {
			panic(fmt.Sprintf("engine: job %d completed at %d before arrival+burst %d", j.ID, j.Completion, j.Arrival+j.Burst))
		}
	}
}
