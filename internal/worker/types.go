package worker

import (
	"time"

	"github.com/ChuLiYu/cpu-sched/internal/engine"
	"github.com/ChuLiYu/cpu-sched/internal/trace"
	"github.com/ChuLiYu/cpu-sched/pkg/types"
)

// Task is one simulation to run.
type Task struct {
	ID     int           // position of the task in its batch
	Config engine.Config // validated by the engine before running
	Jobs   []types.Job   // shared read-only input; the engine copies it
	Sink   trace.Sink    // optional, must not be shared with another task
}

// Result is the outcome of a Task.
type Result struct {
	TaskID   int
	Run      engine.Result
	Success  bool
	Error    error
	Duration time.Duration
}
