package engine

import (
	"fmt"

	"github.com/ChuLiYu/cpu-sched/internal/queue"
)

// runFCFS schedules jobs in list order. Arrival only decides when a job may
// start; a later-listed job never overtakes an earlier one even if it arrived
// first.
//
// The schedule is computed in one pass, then replayed tick by tick so the
// trace shows arrivals into the arrival-ordered ready queue, dispatches and
// terminations.
func runFCFS(w *workset) stats {
	var st stats
	n := len(w.jobs)

	starts := make([]int, n)
	prev := 0
	for i := range w.jobs {
		start := w.jobs[i].Arrival
		if start < prev {
			start = prev
		}
		starts[i] = start
		prev = start + w.jobs[i].Burst
	}
	w.clock.SetHorizon(prev)

	ready := queue.NewOrdered[int](func(a, b int) bool {
		if w.jobs[a].Arrival != w.jobs[b].Arrival {
			return w.jobs[a].Arrival < w.jobs[b].Arrival
		}
		return a < b
	})

	cur, started := 0, false
	for w.left > 0 {
		if !w.clock.Running() {
			panic(fmt.Sprintf("engine: fcfs passed horizon %d", w.clock.Horizon()))
		}
		st.steps++
		now := w.clock.Now()

		for _, i := range w.arrivalsAt() {
			w.arrive(i)
			ready.Push(i)
		}

		for cur < n {
			if !started {
				if starts[cur] != now {
					break
				}
				if !ready.Remove(func(i int) bool { return i == cur }) {
					panic(fmt.Sprintf("engine: fcfs job %d not ready at its start %d", w.jobs[cur].ID, now))
				}
				w.dispatch(cur)
				started = true
			}
			if starts[cur]+w.jobs[cur].Burst != now {
				break
			}
			for w.jobs[cur].Remaining > 0 {
				w.consume(cur)
			}
			w.complete(cur)
			cur++
			started = false
		}

		if w.left == 0 {
			break
		}
		next, ok := w.nextArrival()
		if cur < n {
			event := starts[cur]
			if started {
				event += w.jobs[cur].Burst
			}
			if !ok || event < next {
				next, ok = event, true
			}
		}
		if !ok || next <= now {
			panic(fmt.Sprintf("engine: fcfs has no future event after tick %d", now))
		}
		w.clock.AdvanceTo(next)
	}
	return st
}
