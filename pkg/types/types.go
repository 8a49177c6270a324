// Package types defines the domain model shared by the scheduler engine and its collaborators.
package types

import (
	"fmt"
	"strings"
)

// JobState is the lifecycle state of a job inside one simulation run.
type JobState string

// Job states
const (
	StateNotArrived JobState = "NOT_ARRIVED" // arrival tick not reached yet
	StateReady      JobState = "READY"       // waiting in the ready queue
	StateRunning    JobState = "RUNNING"     // occupies the CPU
	StateTerminated JobState = "TERMINATED"  // all burst consumed, completion recorded
)

// Algorithm identifies a scheduling discipline.
type Algorithm string

const (
	AlgorithmFCFS       Algorithm = "fcfs"
	AlgorithmSRJF       Algorithm = "srjf"
	AlgorithmRoundRobin Algorithm = "rr"
)

// Algorithms lists every supported discipline in display order.
var Algorithms = []Algorithm{AlgorithmFCFS, AlgorithmSRJF, AlgorithmRoundRobin}

// ParseAlgorithm accepts the short names and a few long aliases.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fcfs", "fifo", "firstcome", "f":
		return AlgorithmFCFS, nil
	case "srjf", "shortest", "s":
		return AlgorithmSRJF, nil
	case "rr", "roundrobin", "round-robin", "r":
		return AlgorithmRoundRobin, nil
	}
	return "", fmt.Errorf("unknown algorithm %q", s)
}

// Flag returns the short command line option selecting the discipline.
func (a Algorithm) Flag() string {
	switch a {
	case AlgorithmFCFS:
		return "-F"
	case AlgorithmSRJF:
		return "-S"
	case AlgorithmRoundRobin:
		return "-R"
	}
	return "-?"
}

// Title is the human readable name used in tables.
func (a Algorithm) Title() string {
	switch a {
	case AlgorithmFCFS:
		return "First-Come-First-Served"
	case AlgorithmSRJF:
		return "Shortest-Remaining-Job-First"
	case AlgorithmRoundRobin:
		return "Round Robin"
	}
	return string(a)
}

// Job is one unit of simulated work.
//
// ID, Arrival and Burst come from the job source and never change. Remaining,
// Running and Completion are simulation counters owned by the executor of a
// single run.
type Job struct {
	ID      int `json:"id" yaml:"id"`           // identity assigned by the source
	Arrival int `json:"arrival" yaml:"arrival"` // tick at which the job becomes eligible
	Burst   int `json:"burst" yaml:"burst"`     // original service units

	Remaining  int `json:"remaining" yaml:"remaining"`   // service units still owed
	Running    int `json:"running" yaml:"running"`       // ticks spent in RUNNING
	Completion int `json:"completion" yaml:"completion"` // tick of RUNNING->TERMINATED, 0 until set
}

// NewJob builds a job with its counters reset.
func NewJob(id, arrival, burst int) Job {
	return Job{
		ID:        id,
		Arrival:   arrival,
		Burst:     burst,
		Remaining: burst,
	}
}

// Reset clears the simulation counters so the job can enter another run.
func (j *Job) Reset() {
	j.Remaining = j.Burst
	j.Running = 0
	j.Completion = 0
}

// Turnaround is completion minus arrival.
func (j Job) Turnaround() int {
	return j.Completion - j.Arrival
}

// Waiting is the turnaround time not spent on the CPU.
func (j Job) Waiting() int {
	return j.Turnaround() - j.Burst
}

// Completion pairs a job with the tick it terminated.
type Completion struct {
	JobID int `json:"id" yaml:"id"`
	Tick  int `json:"completion" yaml:"completion"`
}

func (c Completion) String() string {
	return fmt.Sprintf("%d %d", c.JobID, c.Tick)
}
