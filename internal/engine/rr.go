package engine

import "github.com/ChuLiYu/cpu-sched/internal/queue"

// runRR serves the ready queue in FIFO order, giving each dispatch a slice of
// quantum ticks. When the slice runs out the job goes to the back of the queue,
// behind anything that arrived at the same tick. A job alone in the system
// keeps the CPU and starts a fresh slice.
func runRR(w *workset, quantum int) stats {
	var st stats
	ready := queue.NewFIFO[int]()

	running, slice := -1, 0
	for w.clock.Running() {
		changed := false

		if running >= 0 {
			w.consume(running)
			slice++
			if w.jobs[running].Remaining == 0 {
				w.complete(running)
				running = -1
				changed = true
			}
		}

		for _, i := range w.arrivalsAt() {
			changed = true
			if w.jobs[i].Burst == 0 {
				w.retire(i)
				continue
			}
			w.arrive(i)
			ready.Push(i)
		}

		if running >= 0 && slice >= quantum {
			if ready.Len() > 0 {
				w.preempt(running)
				ready.Push(running)
				running = -1
				st.requeues++
				changed = true
			} else {
				slice = 0
			}
		}

		if running < 0 && ready.Len() > 0 {
			running = ready.Pop()
			slice = 0
			w.dispatch(running)
			changed = true
		}

		if changed {
			w.recomputeHorizon()
		}
		st.steps++
		if !idleJump(w, running, ready.Len()) {
			w.clock.Tick()
		}
	}
	return st
}
