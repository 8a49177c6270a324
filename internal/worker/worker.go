// ============================================================================
// Simulation Worker
// ============================================================================
//
// Package: internal/worker
// File: worker.go
// Purpose: Runs simulations pulled from the pool's task channel.
//
// How it works:
//   Each Worker is a goroutine looping over the task channel:
//   1. Receive a task (blocking)
//   2. Build an engine for the task's config and run it over the task's jobs
//   3. Send the result, unless the pool is stopping
//
// Engine invariant breaks panic. A worker recovers them and reports the
// task as failed with ErrSimulationPanic, so one bad run cannot take the
// other workers down.
//
// ============================================================================

package worker

import (
	"errors"
	"fmt"
	"time"

	"github.com/ChuLiYu/cpu-sched/internal/engine"
)

// ErrSimulationPanic wraps a recovered engine panic.
var ErrSimulationPanic = errors.New("simulation panicked")

// Worker executes tasks one at a time.
type Worker struct {
	id       int
	taskCh   <-chan Task
	resultCh chan<- Result
	stopCh   <-chan struct{}
}

func newWorker(id int, taskCh <-chan Task, resultCh chan<- Result, stopCh <-chan struct{}) *Worker {
	return &Worker{
		id:       id,
		taskCh:   taskCh,
		resultCh: resultCh,
		stopCh:   stopCh,
	}
}

// Run is the worker loop. It returns when the task channel is closed.
func (w *Worker) Run() {
	for task := range w.taskCh {
		start := time.Now()
		run, err := w.execute(task)

		result := Result{
			TaskID:   task.ID,
			Run:      run,
			Success:  err == nil,
			Error:    err,
			Duration: time.Since(start),
		}

		select {
		case w.resultCh <- result:
		case <-w.stopCh:
		}
	}
}

func (w *Worker) execute(task Task) (res engine.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: worker %d task %d: %v", ErrSimulationPanic, w.id, task.ID, r)
		}
	}()

	eng, err := engine.New(task.Config, task.Sink)
	if err != nil {
		return engine.Result{}, err
	}
	return eng.Run(task.Jobs), nil
}
