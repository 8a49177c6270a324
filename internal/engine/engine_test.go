package engine

import (
	"math/rand"
	"testing"

	"github.com/ChuLiYu/cpu-sched/internal/trace"
	"github.com/ChuLiYu/cpu-sched/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jobs(specs ...[3]int) []types.Job {
	out := make([]types.Job, len(specs))
	for i, s := range specs {
		out[i] = types.NewJob(s[0], s[1], s[2])
	}
	return out
}

func run(t *testing.T, cfg Config, in []types.Job) (Result, []string) {
	t.Helper()
	var rec trace.Recorder
	e, err := New(cfg, &rec)
	require.NoError(t, err)
	res := e.Run(in)
	return res, rec.Lines()
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		jobs        []types.Job
		completions []types.Completion
		trace       []string
	}{
		{
			name:        "fcfs two jobs",
			cfg:         Config{Algorithm: types.AlgorithmFCFS},
			jobs:        jobs([3]int{1, 0, 5}, [3]int{2, 1, 3}),
			completions: []types.Completion{{JobID: 1, Tick: 5}, {JobID: 2, Tick: 8}},
			trace: []string{
				"At time 0, job 1 READY",
				"At time 0, job 1 READY->RUNNING",
				"At time 1, job 2 READY",
				"At time 5, job 1 RUNNING->TERMINATED",
				"At time 5, job 2 READY->RUNNING",
				"At time 8, job 2 RUNNING->TERMINATED",
			},
		},
		{
			name:        "srjf shorter arrival preempts",
			cfg:         Config{Algorithm: types.AlgorithmSRJF},
			jobs:        jobs([3]int{1, 0, 8}, [3]int{2, 1, 4}),
			completions: []types.Completion{{JobID: 1, Tick: 12}, {JobID: 2, Tick: 5}},
			trace: []string{
				"At time 0, job 1 READY",
				"At time 0, job 1 READY->RUNNING",
				"At time 1, job 2 READY",
				"At time 1, job 1 RUNNING->READY",
				"At time 1, job 2 READY->RUNNING",
				"At time 5, job 2 RUNNING->TERMINATED",
				"At time 5, job 1 READY->RUNNING",
				"At time 12, job 1 RUNNING->TERMINATED",
			},
		},
		{
			name:        "round robin quantum 2",
			cfg:         Config{Algorithm: types.AlgorithmRoundRobin, Quantum: 2},
			jobs:        jobs([3]int{1, 0, 5}, [3]int{2, 1, 3}),
			completions: []types.Completion{{JobID: 1, Tick: 8}, {JobID: 2, Tick: 7}},
			trace: []string{
				"At time 0, job 1 READY",
				"At time 0, job 1 READY->RUNNING",
				"At time 1, job 2 READY",
				"At time 2, job 1 RUNNING->READY",
				"At time 2, job 2 READY->RUNNING",
				"At time 4, job 2 RUNNING->READY",
				"At time 4, job 1 READY->RUNNING",
				"At time 6, job 1 RUNNING->READY",
				"At time 6, job 2 READY->RUNNING",
				"At time 7, job 2 RUNNING->TERMINATED",
				"At time 7, job 1 READY->RUNNING",
				"At time 8, job 1 RUNNING->TERMINATED",
			},
		},
		{
			name:        "fcfs keeps list order over arrival order",
			cfg:         Config{Algorithm: types.AlgorithmFCFS},
			jobs:        jobs([3]int{1, 2, 2}, [3]int{2, 0, 3}),
			completions: []types.Completion{{JobID: 1, Tick: 4}, {JobID: 2, Tick: 7}},
			trace: []string{
				"At time 0, job 2 READY",
				"At time 2, job 1 READY",
				"At time 2, job 1 READY->RUNNING",
				"At time 4, job 1 RUNNING->TERMINATED",
				"At time 4, job 2 READY->RUNNING",
				"At time 7, job 2 RUNNING->TERMINATED",
			},
		},
		{
			name:        "srjf equal remaining does not preempt",
			cfg:         Config{Algorithm: types.AlgorithmSRJF},
			jobs:        jobs([3]int{1, 0, 3}, [3]int{2, 1, 2}),
			completions: []types.Completion{{JobID: 1, Tick: 3}, {JobID: 2, Tick: 5}},
			trace: []string{
				"At time 0, job 1 READY",
				"At time 0, job 1 READY->RUNNING",
				"At time 1, job 2 READY",
				"At time 3, job 1 RUNNING->TERMINATED",
				"At time 3, job 2 READY->RUNNING",
				"At time 5, job 2 RUNNING->TERMINATED",
			},
		},
		{
			name:        "srjf idle gap jumps to next arrival",
			cfg:         Config{Algorithm: types.AlgorithmSRJF},
			jobs:        jobs([3]int{1, 0, 2}, [3]int{2, 5, 1}),
			completions: []types.Completion{{JobID: 1, Tick: 2}, {JobID: 2, Tick: 6}},
			trace: []string{
				"At time 0, job 1 READY",
				"At time 0, job 1 READY->RUNNING",
				"At time 2, job 1 RUNNING->TERMINATED",
				"At time 5, job 2 READY",
				"At time 5, job 2 READY->RUNNING",
				"At time 6, job 2 RUNNING->TERMINATED",
			},
		},
		{
			name:        "round robin lone job keeps the cpu",
			cfg:         Config{Algorithm: types.AlgorithmRoundRobin, Quantum: 2},
			jobs:        jobs([3]int{1, 0, 5}),
			completions: []types.Completion{{JobID: 1, Tick: 5}},
			trace: []string{
				"At time 0, job 1 READY",
				"At time 0, job 1 READY->RUNNING",
				"At time 5, job 1 RUNNING->TERMINATED",
			},
		},
		{
			name:        "round robin requeues at the first boundary after an arrival",
			cfg:         Config{Algorithm: types.AlgorithmRoundRobin, Quantum: 2},
			jobs:        jobs([3]int{1, 0, 5}, [3]int{2, 3, 2}),
			completions: []types.Completion{{JobID: 1, Tick: 7}, {JobID: 2, Tick: 6}},
			trace: []string{
				"At time 0, job 1 READY",
				"At time 0, job 1 READY->RUNNING",
				"At time 3, job 2 READY",
				"At time 4, job 1 RUNNING->READY",
				"At time 4, job 2 READY->RUNNING",
				"At time 6, job 2 RUNNING->TERMINATED",
				"At time 6, job 1 READY->RUNNING",
				"At time 7, job 1 RUNNING->TERMINATED",
			},
		},
		{
			name:        "srjf zero burst completes silently at arrival",
			cfg:         Config{Algorithm: types.AlgorithmSRJF},
			jobs:        jobs([3]int{1, 0, 0}, [3]int{2, 0, 2}),
			completions: []types.Completion{{JobID: 1, Tick: 0}, {JobID: 2, Tick: 2}},
			trace: []string{
				"At time 0, job 2 READY",
				"At time 0, job 2 READY->RUNNING",
				"At time 2, job 2 RUNNING->TERMINATED",
			},
		},
		{
			name:        "clock starts at first arrival",
			cfg:         Config{Algorithm: types.AlgorithmRoundRobin, Quantum: 1},
			jobs:        jobs([3]int{7, 10, 1}),
			completions: []types.Completion{{JobID: 7, Tick: 11}},
			trace: []string{
				"At time 10, job 7 READY",
				"At time 10, job 7 READY->RUNNING",
				"At time 11, job 7 RUNNING->TERMINATED",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, lines := run(t, tt.cfg, tt.jobs)
			assert.Equal(t, tt.completions, res.Completions())
			assert.Equal(t, tt.trace, lines)
		})
	}
}

func TestCounters(t *testing.T) {
	res, _ := run(t, Config{Algorithm: types.AlgorithmSRJF}, jobs([3]int{1, 0, 8}, [3]int{2, 1, 4}))
	assert.Equal(t, 1, res.Preemptions)
	assert.Equal(t, 0, res.Requeues)
	assert.Equal(t, 12, res.Elapsed)

	res, _ = run(t, Config{Algorithm: types.AlgorithmRoundRobin, Quantum: 2}, jobs([3]int{1, 0, 5}, [3]int{2, 1, 3}))
	assert.Equal(t, 0, res.Preemptions)
	assert.Equal(t, 3, res.Requeues)
	assert.Equal(t, 8, res.Elapsed)
	assert.Equal(t, 2, res.Quantum)
}

func TestEmptyJobList(t *testing.T) {
	for _, cfg := range []Config{
		{Algorithm: types.AlgorithmFCFS},
		{Algorithm: types.AlgorithmSRJF},
		{Algorithm: types.AlgorithmRoundRobin, Quantum: 3},
	} {
		t.Run(string(cfg.Algorithm), func(t *testing.T) {
			res, lines := run(t, cfg, nil)
			assert.Empty(t, res.Completions())
			assert.Empty(t, lines)
			assert.Equal(t, 0, res.Elapsed)
		})
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Algorithm: types.AlgorithmRoundRobin}, nil)
	assert.ErrorIs(t, err, ErrInvalidQuantum)

	_, err = New(Config{Algorithm: types.AlgorithmRoundRobin, Quantum: -1}, nil)
	assert.ErrorIs(t, err, ErrInvalidQuantum)

	_, err = New(Config{Algorithm: "lottery"}, nil)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	e, err := New(Config{Algorithm: types.AlgorithmFCFS, Quantum: -5}, nil)
	require.NoError(t, err)
	assert.Equal(t, types.AlgorithmFCFS, e.Config().Algorithm)
}

func TestRunPanicsOnNegativeInput(t *testing.T) {
	e, err := New(Config{Algorithm: types.AlgorithmFCFS}, nil)
	require.NoError(t, err)
	assert.Panics(t, func() { e.Run(jobs([3]int{1, 0, -1})) })
	assert.Panics(t, func() { e.Run(jobs([3]int{1, -2, 1})) })
}

func TestRunDoesNotMutateInput(t *testing.T) {
	in := jobs([3]int{1, 0, 8}, [3]int{2, 1, 4})
	before := append([]types.Job(nil), in...)

	run(t, Config{Algorithm: types.AlgorithmSRJF}, in)
	assert.Equal(t, before, in)
}

func randomJobs(r *rand.Rand, n int) []types.Job {
	out := make([]types.Job, n)
	for i := range out {
		out[i] = types.NewJob(i+1, r.Intn(20), r.Intn(8))
	}
	return out
}

func allConfigs() []Config {
	return []Config{
		{Algorithm: types.AlgorithmFCFS},
		{Algorithm: types.AlgorithmSRJF},
		{Algorithm: types.AlgorithmRoundRobin, Quantum: 1},
		{Algorithm: types.AlgorithmRoundRobin, Quantum: 3},
	}
}

// segment is one [start, end) stretch of CPU time and the state it ended in.
type segment struct {
	job, start, end int
	to              types.JobState
}

func replay(t *testing.T, events []trace.Event) []segment {
	t.Helper()
	var segs []segment
	running := map[int]int{}
	last := -1
	for _, ev := range events {
		require.GreaterOrEqual(t, ev.Tick, last, "trace ticks must not decrease")
		last = ev.Tick
		switch {
		case ev.To == types.StateRunning:
			require.Empty(t, running, "two jobs running at tick %d", ev.Tick)
			running[ev.JobID] = ev.Tick
		case ev.From == types.StateRunning:
			start, ok := running[ev.JobID]
			require.True(t, ok)
			delete(running, ev.JobID)
			segs = append(segs, segment{job: ev.JobID, start: start, end: ev.Tick, to: ev.To})
		}
	}
	require.Empty(t, running, "job still running at end of trace")
	return segs
}

// statesAt returns every traced job's state once all events up to and
// including tick have been applied.
func statesAt(events []trace.Event, tick int) map[int]types.JobState {
	states := map[int]types.JobState{}
	for _, ev := range events {
		if ev.Tick > tick {
			break
		}
		states[ev.JobID] = ev.To
	}
	return states
}

// assertRRSlices checks that a round robin job only holds the CPU past a
// quantum boundary when nothing else is READY at that boundary, and that a
// slice ending in READY stops on a boundary.
func assertRRSlices(t *testing.T, quantum int, events []trace.Event, segs []segment) {
	t.Helper()
	for _, s := range segs {
		if s.to == types.StateReady {
			assert.GreaterOrEqual(t, s.end-s.start, quantum, "job %d requeued before its quantum ran out", s.job)
			assert.Zero(t, (s.end-s.start)%quantum, "job %d requeued off a quantum boundary", s.job)
		}
		for k := s.start + quantum; k < s.end; k += quantum {
			for id, st := range statesAt(events, k) {
				if id != s.job {
					assert.NotEqual(t, types.StateReady, st,
						"job %d kept the cpu at tick %d while job %d was READY", s.job, k, id)
				}
			}
		}
	}
}

func TestProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		in := randomJobs(r, 1+r.Intn(8))

		for _, cfg := range allConfigs() {
			var rec trace.Recorder
			e, err := New(cfg, &rec)
			require.NoError(t, err)
			res := e.Run(in)

			total := 0
			for i, j := range res.Jobs {
				assert.Equal(t, in[i].ID, j.ID)
				assert.GreaterOrEqual(t, j.Completion, j.Arrival+j.Burst, "%s job %d", cfg.Algorithm, j.ID)
				assert.Equal(t, 0, j.Remaining)
				assert.Equal(t, j.Burst, j.Running)
				total += j.Burst
			}

			segs := replay(t, rec.Events)
			busy := 0
			for _, s := range segs {
				busy += s.end - s.start
				if cfg.Algorithm == types.AlgorithmFCFS {
					assert.Equal(t, types.StateTerminated, s.to, "fcfs never preempts")
				}
			}
			assert.Equal(t, total, busy)
			if cfg.Algorithm == types.AlgorithmRoundRobin {
				assertRRSlices(t, cfg.Quantum, rec.Events, segs)
			}

			again, err := New(cfg, nil)
			require.NoError(t, err)
			assert.Equal(t, res.Completions(), again.Run(in).Completions(), "%s not deterministic", cfg.Algorithm)
		}
	}
}

func TestFCFSCompletionsFollowListOrder(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 100; round++ {
		in := randomJobs(r, 1+r.Intn(10))
		res, _ := run(t, Config{Algorithm: types.AlgorithmFCFS}, in)

		prev := 0
		for _, j := range res.Jobs {
			start := j.Arrival
			if start < prev {
				start = prev
			}
			assert.Equal(t, start+j.Burst, j.Completion)
			prev = j.Completion
		}
	}
}

func TestSRJFNeverRunsLongerJobWhileShorterWaits(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for round := 0; round < 100; round++ {
		in := randomJobs(r, 2+r.Intn(6))
		var rec trace.Recorder
		e, err := New(Config{Algorithm: types.AlgorithmSRJF}, &rec)
		require.NoError(t, err)
		e.Run(in)

		burst := map[int]int{}
		for _, j := range in {
			burst[j.ID] = j.Burst
		}
		arrived, done := map[int]int{}, map[int]int{}
		end := 0
		for _, ev := range rec.Events {
			switch {
			case ev.From == types.StateNotArrived:
				arrived[ev.JobID] = ev.Tick
			case ev.To == types.StateTerminated:
				done[ev.JobID] = ev.Tick
			}
			end = ev.Tick
		}

		owner := make([]int, end)
		for i := range owner {
			owner[i] = -1
		}
		for _, s := range replay(t, rec.Events) {
			for tick := s.start; tick < s.end; tick++ {
				owner[tick] = s.job
			}
		}

		// Each tick the CPU goes to an arrived, unfinished job with the
		// least remaining work, or stays idle when there is none.
		served := map[int]int{}
		for tick, id := range owner {
			for other, at := range arrived {
				if at > tick || done[other] <= tick || other == id {
					continue
				}
				require.NotEqual(t, -1, id, "cpu idle at tick %d while job %d waits", tick, other)
				assert.LessOrEqual(t, burst[id]-served[id], burst[other]-served[other],
					"round %d tick %d: job %d ran with %d left while job %d had %d left",
					round, tick, id, burst[id]-served[id], other, burst[other]-served[other])
			}
			if id >= 0 {
				served[id]++
			}
		}
	}
}
