package server

import (
	"errors"
	"fmt"
	"math"

	"github.com/ChuLiYu/cpu-sched/internal/engine"
	"github.com/ChuLiYu/cpu-sched/internal/trace"
	"github.com/ChuLiYu/cpu-sched/pkg/types"
	"google.golang.org/protobuf/types/known/structpb"
)

var errEmptyRequest = errors.New("empty request")

// Limits bounds the work one Simulate call may ask for. The engine runs
// one step per tick of CPU time, so the tick horizon (latest arrival plus
// the sum of all bursts) is what bounds the call's duration.
type Limits struct {
	MaxJobs  int
	MaxTicks int
}

// DefaultLimits applies when a Limits field is zero.
var DefaultLimits = Limits{MaxJobs: 10000, MaxTicks: 1000000}

func (l Limits) withDefaults() Limits {
	if l.MaxJobs <= 0 {
		l.MaxJobs = DefaultLimits.MaxJobs
	}
	if l.MaxTicks <= 0 {
		l.MaxTicks = DefaultLimits.MaxTicks
	}
	return l
}

// checkHorizon rejects job lists whose schedule could run past MaxTicks.
func (l Limits) checkHorizon(jobs []types.Job) error {
	var latest, work int64
	for _, j := range jobs {
		if int64(j.Arrival) > latest {
			latest = int64(j.Arrival)
		}
		work += int64(j.Burst)
	}
	if latest+work > int64(l.MaxTicks) {
		return fmt.Errorf("schedule horizon of %d ticks exceeds the limit of %d", latest+work, l.MaxTicks)
	}
	return nil
}

// simulateRequest is the decoded form of a Simulate request.
type simulateRequest struct {
	Config engine.Config
	Jobs   []types.Job
	Trace  bool
}

func decodeRequest(req *structpb.Struct, limits Limits) (simulateRequest, error) {
	var sr simulateRequest
	if req == nil {
		return sr, errEmptyRequest
	}
	fields := req.GetFields()

	name, ok := fields["algorithm"]
	if !ok {
		return sr, errors.New("algorithm is required")
	}
	alg, err := types.ParseAlgorithm(name.GetStringValue())
	if err != nil {
		return sr, err
	}
	sr.Config.Algorithm = alg

	if v, ok := fields["quantum"]; ok && alg == types.AlgorithmRoundRobin {
		q, err := toInt("quantum", v)
		if err != nil {
			return sr, err
		}
		sr.Config.Quantum = q
	}
	if err := sr.Config.Validate(); err != nil {
		return sr, err
	}

	sr.Trace = fields["trace"].GetBoolValue()

	values := fields["jobs"].GetListValue().GetValues()
	if len(values) > limits.MaxJobs {
		return sr, fmt.Errorf("%d jobs exceed the limit of %d", len(values), limits.MaxJobs)
	}
	for i, v := range values {
		job, err := decodeJob(v)
		if err != nil {
			return sr, fmt.Errorf("jobs[%d]: %w", i, err)
		}
		sr.Jobs = append(sr.Jobs, job)
	}
	if err := limits.checkHorizon(sr.Jobs); err != nil {
		return sr, err
	}
	return sr, nil
}

func decodeJob(v *structpb.Value) (types.Job, error) {
	s := v.GetStructValue()
	if s == nil {
		return types.Job{}, errors.New("job must be an object")
	}
	var vals [3]int
	for i, key := range []string{"id", "arrival", "burst"} {
		f, ok := s.GetFields()[key]
		if !ok {
			return types.Job{}, fmt.Errorf("%s is required", key)
		}
		n, err := toInt(key, f)
		if err != nil {
			return types.Job{}, err
		}
		if key != "id" && n < 0 {
			return types.Job{}, fmt.Errorf("%s must not be negative, got %d", key, n)
		}
		vals[i] = n
	}
	return types.NewJob(vals[0], vals[1], vals[2]), nil
}

func toInt(key string, v *structpb.Value) (int, error) {
	num, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	f := num.NumberValue
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%s must be an integer, got %v", key, f)
	}
	return int(f), nil
}

func encodeResponse(res engine.Result, rec *trace.Recorder) (*structpb.Struct, error) {
	completions := make([]any, 0, len(res.Jobs))
	for _, c := range res.Completions() {
		completions = append(completions, map[string]any{
			"id":         c.JobID,
			"completion": c.Tick,
		})
	}

	out := map[string]any{
		"algorithm":   string(res.Algorithm),
		"elapsed":     res.Elapsed,
		"preemptions": res.Preemptions,
		"requeues":    res.Requeues,
		"completions": completions,
	}
	if res.Quantum > 0 {
		out["quantum"] = res.Quantum
	}
	if rec != nil {
		events := make([]any, 0, len(rec.Events))
		for _, line := range rec.Lines() {
			events = append(events, line)
		}
		out["events"] = events
	}
	return structpb.NewStruct(out)
}
