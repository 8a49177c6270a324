// ============================================================================
// Job Sources
// ============================================================================
//
// Package: internal/jobsource
// File: jobsource.go
// Purpose: Produces the job list a simulation runs over, either from a text
//          file or from a seeded random generator.
//
// File format, one job per line:
//   <job_id>,<arrival>,<burst>
//
//   The id is the text before the first comma, the arrival the text between
//   the first and the last comma, the burst the text after the last comma.
//   Each field is converted leniently: leading blanks and a sign are
//   accepted, conversion stops at the first non-digit and text without a
//   leading number reads as 0. Blank lines are skipped.
//
//   Negative arrival or burst values are clamped to 0 with a warning, so the
//   engine only ever sees non-negative work.
//
// ============================================================================

package jobsource

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/ChuLiYu/cpu-sched/internal/config"
	"github.com/ChuLiYu/cpu-sched/pkg/types"
	"go.uber.org/zap"
)

// RandomLabel is the banner label of generated job lists.
const RandomLabel = "random jobs"

var (
	// ErrNoFilename is returned by a file source without a path.
	ErrNoFilename = errors.New("job file name not given")
)

// Source produces a job list in list order.
type Source interface {
	Jobs(ctx context.Context) ([]types.Job, error)
	// Label names the source in the run banner.
	Label() string
}

// New builds the source selected by cfg.
func New(cfg *config.Config, logger *zap.Logger) (Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch {
	case cfg.Source.Filename != "":
		return &FileSource{Path: cfg.Source.Filename, Logger: logger}, nil
	case cfg.Source.RandomJobs != nil:
		return &RandomSource{Count: *cfg.Source.RandomJobs, Settings: cfg.Random, Logger: logger}, nil
	}
	return nil, config.ErrNoSource
}

// Static serves a fixed job list. It backs the gRPC service and tests.
type Static struct {
	List []types.Job
	Name string
}

func (s Static) Jobs(context.Context) ([]types.Job, error) {
	out := make([]types.Job, len(s.List))
	copy(out, s.List)
	return out, nil
}

func (s Static) Label() string { return s.Name }

// FileSource reads jobs from a text file.
type FileSource struct {
	Path   string
	Logger *zap.Logger
}

func (f *FileSource) Label() string { return f.Path }

// Jobs opens and parses the file.
func (f *FileSource) Jobs(ctx context.Context) ([]types.Job, error) {
	if f.Path == "" {
		return nil, ErrNoFilename
	}
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open job file %s: %w", f.Path, err)
	}
	defer file.Close()

	jobs, err := Parse(ctx, file, f.logger())
	if err != nil {
		return nil, fmt.Errorf("failed to read job file %s: %w", f.Path, err)
	}
	return jobs, nil
}

func (f *FileSource) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}

// Parse reads job lines from r.
func Parse(ctx context.Context, r io.Reader, logger *zap.Logger) ([]types.Job, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var jobs []types.Job
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		logger.Debug("parsing job line", zap.Int("line", lineNo), zap.String("text", line))

		id, arrival, burst := splitLine(line)
		job := types.NewJob(atoi(id), clamp(logger, lineNo, "arrival", atoi(arrival)), clamp(logger, lineNo, "burst", atoi(burst)))
		logger.Debug("inserting job",
			zap.Int("job", job.ID),
			zap.Int("arrival", job.Arrival),
			zap.Int("burst", job.Burst),
			zap.Int("list_size", len(jobs)+1))
		jobs = append(jobs, job)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

// splitLine cuts a line at its first and last comma.
func splitLine(line string) (id, arrival, burst string) {
	first := strings.Index(line, ",")
	if first < 0 {
		return line, line, line
	}
	last := strings.LastIndex(line, ",")
	id = line[:first]
	if last > first {
		arrival = line[first+1 : last]
	} else {
		arrival = line[first+1:]
	}
	burst = line[last+1:]
	return id, arrival, burst
}

// atoi converts the leading integer of s, ignoring anything after it.
func atoi(s string) int {
	s = strings.TrimLeft(s, " \t\n\v\f\r")
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n := 0
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		if n > (1<<31-1)/10 {
			break
		}
		n = n*10 + int(s[i]-'0')
	}
	if neg {
		return -n
	}
	return n
}

func clamp(logger *zap.Logger, line int, field string, v int) int {
	if v >= 0 {
		return v
	}
	logger.Warn("negative value clamped to 0",
		zap.Int("line", line),
		zap.String("field", field),
		zap.Int("value", v))
	return 0
}

// RandomSource generates Count jobs with ids 0..Count-1. Each arrival is the
// previous one plus a gap drawn from [GapMin, GapMax]; bursts are drawn from
// [BurstMin, BurstMax].
type RandomSource struct {
	Count    int
	Settings config.RandomConfig
	Logger   *zap.Logger
}

func (r *RandomSource) Label() string { return RandomLabel }

// Jobs generates the list. A zero seed draws from the current time.
func (r *RandomSource) Jobs(ctx context.Context) ([]types.Job, error) {
	if err := r.Settings.Validate(); err != nil {
		return nil, err
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	seed := r.Settings.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	logger.Debug("generating random jobs", zap.Int("count", r.Count), zap.Int64("seed", seed))

	jobs := make([]types.Job, 0, r.Count)
	arrival := 0
	for i := 0; i < r.Count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		arrival += between(rng, r.Settings.GapMin, r.Settings.GapMax)
		burst := between(rng, r.Settings.BurstMin, r.Settings.BurstMax)
		logger.Info("creating job", zap.Int("job", i), zap.Int("arrival", arrival), zap.Int("burst", burst))
		jobs = append(jobs, types.NewJob(i, arrival, burst))
	}
	return jobs, nil
}

func between(rng *rand.Rand, lo, hi int) int {
	return lo + rng.Intn(hi-lo+1)
}
