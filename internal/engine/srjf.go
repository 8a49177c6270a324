package engine

import (
	"fmt"

	"github.com/ChuLiYu/cpu-sched/internal/queue"
)

// runSRJF always runs the job with the least remaining burst. An arrival with
// strictly less remaining work than the running job preempts it at once; equal
// work never preempts. Ties in the ready queue go to the earlier arrival, then
// the earlier list position.
func runSRJF(w *workset) stats {
	var st stats

	// Remaining only changes for the running job, which is never queued.
	ready := queue.NewOrdered[int](func(a, b int) bool {
		ja, jb := w.jobs[a], w.jobs[b]
		if ja.Remaining != jb.Remaining {
			return ja.Remaining < jb.Remaining
		}
		if ja.Arrival != jb.Arrival {
			return ja.Arrival < jb.Arrival
		}
		return a < b
	})

	running := -1
	for w.clock.Running() {
		changed := false

		if running >= 0 {
			w.consume(running)
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
			if running >= 0 && w.jobs[i].Remaining < w.jobs[running].Remaining {
				w.preempt(running)
				ready.Push(running)
				w.dispatch(i)
				running = i
				st.preemptions++
				continue
			}
			ready.Push(i)
		}

		if running < 0 && ready.Len() > 0 {
			running = ready.Pop()
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

// idleJump moves an idle clock with nothing queued straight to the next
// arrival. It reports whether it moved.
func idleJump(w *workset, running, queued int) bool {
	if running >= 0 || queued > 0 {
		return false
	}
	next, ok := w.nextArrival()
	if !ok {
		return false
	}
	if next <= w.clock.Now() {
		panic(fmt.Sprintf("engine: pending arrival %d not after tick %d", next, w.clock.Now()))
	}
	w.clock.AdvanceTo(next)
	return true
}
