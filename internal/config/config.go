// ============================================================================
// Run Configuration
// ============================================================================
//
// Package: internal/config
// File: config.go
// Purpose: YAML backed configuration for the sched binary, merged with the
//          command line and validated once before anything runs.
//
// Example file:
//   scheduler:
//     algorithm: rr
//     quantum: 2
//     verbose: true
//   source:
//     filename: jobs.txt
//   random:
//     seed: 42
//     gap_min: 1
//     gap_max: 5
//     burst_min: 1
//     burst_max: 29
//   output:
//     journal: trace.jsonl
//     report: report.yaml
//     summary: true
//   metrics:
//     enabled: true
//     textfile: sched.prom
//     port: 9090
//   server:
//     port: 50051
//     max_jobs: 10000
//     max_ticks: 1000000
//   log:
//     level: info
//
// Precedence: defaults < config file < command line flags.
//
// ============================================================================

package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ChuLiYu/cpu-sched/internal/engine"
	"github.com/ChuLiYu/cpu-sched/pkg/types"
	"gopkg.in/yaml.v3"
)

// ErrConfig is wrapped by every configuration error.
var ErrConfig = errors.New("invalid configuration")

var (
	ErrNoAlgorithm        = fmt.Errorf("%w: no scheduling policy selected (use -F, -S or -R)", ErrConfig)
	ErrMultipleAlgorithms = fmt.Errorf("%w: more than one scheduling policy selected", ErrConfig)
	ErrUnknownAlgorithm   = fmt.Errorf("%w: unknown scheduling policy", ErrConfig)
	ErrInvalidQuantum     = fmt.Errorf("%w: round robin time quantum must be positive", ErrConfig)
	ErrNoSource           = fmt.Errorf("%w: no job source selected (use -f or -r)", ErrConfig)
	ErrMultipleSources    = fmt.Errorf("%w: more than one job source selected", ErrConfig)
	ErrInvalidRandom      = fmt.Errorf("%w: invalid random job settings", ErrConfig)
	ErrInvalidPort        = fmt.Errorf("%w: port out of range", ErrConfig)
	ErrInvalidLimit       = fmt.Errorf("%w: server limits must be positive", ErrConfig)
)

// SchedulerConfig selects the discipline.
type SchedulerConfig struct {
	Algorithm string `yaml:"algorithm"`
	Quantum   int    `yaml:"quantum"`
	Verbose   bool   `yaml:"verbose"`
}

// SourceConfig selects where jobs come from. Exactly one must be set.
type SourceConfig struct {
	Filename   string `yaml:"filename"`
	RandomJobs *int   `yaml:"random_jobs"`
}

// RandomConfig shapes generated jobs. Ranges are inclusive.
type RandomConfig struct {
	Seed     int64 `yaml:"seed"` // 0 seeds from the clock
	GapMin   int   `yaml:"gap_min"`
	GapMax   int   `yaml:"gap_max"`
	BurstMin int   `yaml:"burst_min"`
	BurstMax int   `yaml:"burst_max"`
}

// OutputConfig enables the optional artifacts of a run.
type OutputConfig struct {
	Journal string `yaml:"journal"`
	Report  string `yaml:"report"`
	Summary bool   `yaml:"summary"`
}

// MetricsConfig controls the Prometheus collector.
type MetricsConfig struct {
	// Enabled and Port only affect `sched serve`; a simulation run writes
	// metrics through Textfile.
	Enabled  bool   `yaml:"enabled"`
	Textfile string `yaml:"textfile"`
	Port     int    `yaml:"port"`
}

// ServerConfig controls `sched serve`.
type ServerConfig struct {
	Port     int `yaml:"port"`
	MaxJobs  int `yaml:"max_jobs"`
	MaxTicks int `yaml:"max_ticks"`
}

// LogConfig controls diagnostics.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Config is the complete configuration of the sched binary.
type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Source    SourceConfig    `yaml:"source"`
	Random    RandomConfig    `yaml:"random"`
	Output    OutputConfig    `yaml:"output"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Random: RandomConfig{
			GapMin:   1,
			GapMax:   5,
			BurstMin: 1,
			BurstMax: 29,
		},
		Metrics: MetricsConfig{Port: 9090},
		Server:  ServerConfig{Port: 50051, MaxJobs: 10000, MaxTicks: 1000000},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return cfg, nil
}

// Overrides carries the command line. Nil pointers mean "not given".
type Overrides struct {
	FirstCome  bool
	Shortest   bool
	RoundRobin *int
	Filename   string
	Random     *int
	Verbose    bool
	Debug      bool
}

// Apply merges command line choices into c. Policy and source flags replace
// the file's values; giving two of either kind is an error.
func (c *Config) Apply(o Overrides) error {
	var chosen []types.Algorithm
	if o.RoundRobin != nil {
		chosen = append(chosen, types.AlgorithmRoundRobin)
	}
	if o.Shortest {
		chosen = append(chosen, types.AlgorithmSRJF)
	}
	if o.FirstCome {
		chosen = append(chosen, types.AlgorithmFCFS)
	}
	switch len(chosen) {
	case 0:
	case 1:
		c.Scheduler.Algorithm = string(chosen[0])
		if o.RoundRobin != nil {
			c.Scheduler.Quantum = *o.RoundRobin
		}
	default:
		return ErrMultipleAlgorithms
	}

	switch {
	case o.Filename != "" && o.Random != nil:
		return ErrMultipleSources
	case o.Filename != "":
		c.Source.Filename = o.Filename
		c.Source.RandomJobs = nil
	case o.Random != nil:
		n := *o.Random
		c.Source.RandomJobs = &n
		c.Source.Filename = ""
	}

	if o.Verbose {
		c.Scheduler.Verbose = true
	}
	if o.Debug {
		c.Log.Level = "debug"
	}
	return nil
}

// Validate checks everything a simulation run needs.
func (c *Config) Validate() error {
	if _, err := c.Engine(); err != nil {
		return err
	}

	switch {
	case c.Source.Filename != "" && c.Source.RandomJobs != nil:
		return ErrMultipleSources
	case c.Source.Filename == "" && c.Source.RandomJobs == nil:
		return ErrNoSource
	case c.Source.RandomJobs != nil:
		if *c.Source.RandomJobs < 0 {
			return fmt.Errorf("%w: job count %d", ErrInvalidRandom, *c.Source.RandomJobs)
		}
		if err := c.Random.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateServer checks the settings `sched serve` needs.
func (c *Config) ValidateServer() error {
	if err := validPort(c.Server.Port); err != nil {
		return err
	}
	if c.Server.MaxJobs <= 0 || c.Server.MaxTicks <= 0 {
		return fmt.Errorf("%w: max_jobs %d, max_ticks %d", ErrInvalidLimit, c.Server.MaxJobs, c.Server.MaxTicks)
	}
	if c.Metrics.Enabled {
		return validPort(c.Metrics.Port)
	}
	return nil
}

// Validate checks the random ranges.
func (r RandomConfig) Validate() error {
	if r.GapMin < 0 || r.GapMax < r.GapMin {
		return fmt.Errorf("%w: gap range [%d, %d]", ErrInvalidRandom, r.GapMin, r.GapMax)
	}
	if r.BurstMin < 0 || r.BurstMax < r.BurstMin {
		return fmt.Errorf("%w: burst range [%d, %d]", ErrInvalidRandom, r.BurstMin, r.BurstMax)
	}
	return nil
}

// Engine returns the immutable engine configuration.
func (c *Config) Engine() (engine.Config, error) {
	if c.Scheduler.Algorithm == "" {
		return engine.Config{}, ErrNoAlgorithm
	}
	alg, err := types.ParseAlgorithm(c.Scheduler.Algorithm)
	if err != nil {
		return engine.Config{}, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, c.Scheduler.Algorithm)
	}
	if alg == types.AlgorithmRoundRobin && c.Scheduler.Quantum <= 0 {
		return engine.Config{}, fmt.Errorf("%w: got %d", ErrInvalidQuantum, c.Scheduler.Quantum)
	}

	ec := engine.Config{Algorithm: alg}
	if alg == types.AlgorithmRoundRobin {
		ec.Quantum = c.Scheduler.Quantum
	}
	return ec, nil
}

func validPort(p int) error {
	if p <= 0 || p > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, p)
	}
	return nil
}
