// ============================================================================
// Simulation Worker Pool
// ============================================================================
//
// Package: internal/worker
// File: worker_pool.go
// Purpose: Runs several independent simulations concurrently.
//
// Design:
//   Fixed number of Worker goroutines sharing one task channel:
//
//   ┌─────────────┐
//   │   caller    │ --Submit()--> taskCh
//   └─────────────┘
//         ↑
//   ReceiveResult()
//         ↑
//   ┌─────────────┐
//   │   Pool      │
//   │  ┌────────┐ │
//   │  │Worker 1│←── taskCh
//   │  │Worker 2│←── taskCh   ──→ resultCh
//   │  │Worker 3│←── taskCh
//   │  └────────┘ │
//   └─────────────┘
//
// Lifecycle:
//   1. NewPool() - channels sized by bufferSize
//   2. Start(n)  - n Worker goroutines
//   3. Submit()  - queue a task
//   4. ReceiveResult() / ReceiveResultContext() - collect results in
//      completion order
//   5. Stop()    - close taskCh, wait for workers, close resultCh
//
// RunAll wraps the whole lifecycle for a batch and returns results in task
// order. Each engine run owns its state, so tasks sharing one job list
// never interfere.
//
// ============================================================================

package worker

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrPoolClosed is returned when submitting to or reading from a stopped pool.
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrPoolNotStarted is returned when submitting before Start.
	ErrPoolNotStarted = errors.New("worker pool not started")
	// ErrPoolStarted is returned by a second Start.
	ErrPoolStarted = errors.New("worker pool already started")
)

// Pool manages a fixed set of workers.
type Pool struct {
	workers  []*Worker
	taskCh   chan Task
	resultCh chan Result
	stopCh   chan struct{}
	wg       sync.WaitGroup
	started  bool
	stopped  bool
	mu       sync.Mutex
}

// NewPool creates a pool whose task and result channels hold bufferSize items.
func NewPool(bufferSize int) *Pool {
	return &Pool{
		workers:  make([]*Worker, 0),
		taskCh:   make(chan Task, bufferSize),
		resultCh: make(chan Result, bufferSize),
		stopCh:   make(chan struct{}),
	}
}

// Start launches workerCount workers.
func (p *Pool) Start(workerCount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrPoolStarted
	}

	for i := 0; i < workerCount; i++ {
		worker := newWorker(i, p.taskCh, p.resultCh, p.stopCh)
		p.workers = append(p.workers, worker)

		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run()
		}(worker)
	}

	p.started = true
	return nil
}

// Submit queues a task, blocking while the task channel is full.
//
// The stopped flag is checked under the lock, then the send races only
// against stopCh, which Stop closes before taskCh.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrPoolNotStarted
	}
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	taskCh := p.taskCh
	stopCh := p.stopCh
	p.mu.Unlock()

	select {
	case taskCh <- task:
		return nil
	case <-stopCh:
		return ErrPoolClosed
	}
}

// ReceiveResult blocks for the next result.
func (p *Pool) ReceiveResult() (Result, error) {
	return p.ReceiveResultContext(context.Background())
}

// ReceiveResultContext blocks for the next result or until ctx is done.
func (p *Pool) ReceiveResultContext(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	select {
	case result, ok := <-p.resultCh:
		if !ok {
			return Result{}, ErrPoolClosed
		}
		return result, nil
	case <-p.stopCh:
		return Result{}, ErrPoolClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Stop shuts the pool down and waits for the workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.stopCh)
	close(p.taskCh)

	p.wg.Wait()

	close(p.resultCh)
}

// GetWorkerCount returns the number of started workers.
func (p *Pool) GetWorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// IsStarted reports whether Start succeeded.
func (p *Pool) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// RunAll runs tasks on a fresh pool of workerCount workers and returns the
// results indexed like tasks. Task IDs are overwritten with their index.
//
// RunAll returns ctx.Err() as soon as ctx is done. A simulation already
// running cannot be interrupted, so the pool then drains in the background.
func RunAll(ctx context.Context, workerCount int, tasks []Task) ([]Result, error) {
	if workerCount <= 0 {
		workerCount = 1
	}
	pool := NewPool(len(tasks))
	if err := pool.Start(workerCount); err != nil {
		return nil, err
	}

	for i := range tasks {
		tasks[i].ID = i
		if err := pool.Submit(tasks[i]); err != nil {
			pool.Stop()
			return nil, err
		}
	}

	results := make([]Result, len(tasks))
	for range tasks {
		r, err := pool.ReceiveResultContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				go pool.Stop()
			} else {
				pool.Stop()
			}
			return nil, err
		}
		results[r.TaskID] = r
	}
	pool.Stop()
	return results, nil
}
