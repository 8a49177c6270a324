// Package trace carries the state transitions emitted by the scheduling engine.
//
// The engine only knows the Sink interface. Printing, journaling and metrics
// are separate sinks combined with Multi.
package trace

import (
	"fmt"

	"github.com/ChuLiYu/cpu-sched/pkg/types"
)

// Event is one job state transition at a tick.
type Event struct {
	Tick  int            `json:"tick"`
	JobID int            `json:"job_id"`
	From  types.JobState `json:"from"`
	To    types.JobState `json:"to"`
}

// Transition renders the transition the way trace lines show it.
// Arrival is shown as plain READY.
func (e Event) Transition() string {
	if e.From == types.StateNotArrived {
		return string(e.To)
	}
	return string(e.From) + "->" + string(e.To)
}

func (e Event) String() string {
	return fmt.Sprintf("At time %d, job %d %s", e.Tick, e.JobID, e.Transition())
}

// Sink consumes trace events. Emit is called synchronously from the engine.
type Sink interface {
	Emit(ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

type multi []Sink

func (m multi) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}

// Multi fans events out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	switch len(m) {
	case 0:
		return Discard
	case 1:
		return m[0]
	}
	return m
}

// Recorder keeps every event in memory.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(ev Event) {
	r.Events = append(r.Events, ev)
}

// Lines renders the recorded events as trace lines.
func (r *Recorder) Lines() []string {
	out := make([]string, len(r.Events))
	for i, ev := range r.Events {
		out[i] = ev.String()
	}
	return out
}
