// ============================================================================
// sched CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Cobra command tree of the sched binary
//
// Command Structure:
//   sched                          # Run one simulation
//   │   ├── -F, --firstcome        # First-Come-First-Served
//   │   ├── -S, --shortest         # Shortest-Remaining-Job-First
//   │   ├── -R, --roundrobin N     # Round Robin with time quantum N
//   │   ├── -f, --filename FILE    # Jobs from FILE
//   │   ├── -r, --random N         # N random jobs
//   │   ├── -v, --verbose          # Print the state transition trace
//   │   ├── --journal FILE         # Append the trace to a JSONL journal
//   │   ├── --report FILE          # Write a JSON or YAML run report
//   │   ├── --summary              # Print a per-job summary table
//   │   └── --metrics-textfile F   # Write Prometheus metrics after the run
//   ├── compare                    # Run all three disciplines side by side
//   ├── replay FILE                # Reprint the trace stored in a journal
//   └── serve                      # gRPC Simulator service + /metrics
//
//   Persistent flags: -c/--config FILE, -d/--debug
//
// Configuration:
//   defaults < YAML config file < flags. Exactly one policy and one job
//   source must be chosen for a simulation. Configuration errors print the
//   usage text and exit non-zero.
//
// Output:
//   Simulation output goes to stdout, diagnostics (zap) go to stderr.
//
// Examples:
//   sched -F -f jobs.txt
//   sched -v -R 2 -f jobs.txt --journal trace.jsonl
//   sched -S -r 10 --summary
//   sched compare -R 4 -r 50
//   sched replay trace.jsonl
//   sched serve -c configs/default.yaml
//
// ============================================================================

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ChuLiYu/cpu-sched/internal/config"
	"github.com/ChuLiYu/cpu-sched/internal/controller"
	"github.com/ChuLiYu/cpu-sched/internal/logging"
	"github.com/ChuLiYu/cpu-sched/internal/metrics"
	"github.com/ChuLiYu/cpu-sched/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version of the sched binary.
const Version = "1.0.0"

// options holds the raw flag values of one command tree.
type options struct {
	configFile string
	debug      bool

	firstCome  bool
	shortest   bool
	roundRobin int
	filename   string
	random     int
	verbose    bool

	journal         string
	report          string
	summary         bool
	metricsTextfile string

	port        int
	metricsPort int
}

// BuildCLI returns the root command.
func BuildCLI() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "sched",
		Short: "sched: a CPU scheduling simulator",
		Long: `sched simulates FCFS, SRJF and Round Robin scheduling over a job list
read from a file (id,arrival,burst per line) or generated at random, and
prints the completion tick of every job.`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsage(cmd, runSimulation(cmd, opts))
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "config file path (YAML)")
	pf.BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")
	pf.StringVarP(&opts.filename, "filename", "f", "", "read jobs from FILE")
	pf.IntVarP(&opts.random, "random", "r", 0, "generate N random jobs")
	pf.IntVarP(&opts.roundRobin, "roundrobin", "R", 0, "Round Robin with time quantum N")

	f := rootCmd.Flags()
	f.BoolVarP(&opts.firstCome, "firstcome", "F", false, "First-Come-First-Served")
	f.BoolVarP(&opts.shortest, "shortest", "S", false, "Shortest-Remaining-Job-First")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "print every state transition")
	f.StringVar(&opts.journal, "journal", "", "append the trace to a JSONL journal FILE")
	f.StringVar(&opts.report, "report", "", "write a run report to FILE (.yaml/.yml for YAML, JSON otherwise)")
	f.BoolVar(&opts.summary, "summary", false, "print a per-job summary table")
	f.StringVar(&opts.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to FILE after the run")

	rootCmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return withUsage(c, fmt.Errorf("%w: %v", config.ErrConfig, err))
	})

	rootCmd.AddCommand(buildCompareCommand(opts))
	rootCmd.AddCommand(buildReplayCommand(opts))
	rootCmd.AddCommand(buildServeCommand(opts))

	return rootCmd
}

func buildCompareCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "compare",
		Short: "Run FCFS, SRJF and Round Robin on the same jobs and compare them",
		Long: `Runs all three disciplines concurrently over one job list and prints a
table of makespan, average turnaround, average waiting, throughput,
preemptions and requeues. The Round Robin quantum comes from -R, the
config file, or defaults to 2.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsage(cmd, runCompare(cmd, opts))
		},
	}
}

func buildReplayCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "replay FILE",
		Short: "Reprint the trace stored in a journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(opts, "")
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			runner := controller.NewRunner(cmd.OutOrStdout(), logger, nil)
			_, err = runner.Replay(args[0])
			return err
		},
	}
}

func buildServeCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Simulator gRPC service",
		Long: `Starts the cpusched.v1.Simulator gRPC service. When metrics are enabled
in the config file an HTTP listener serves /metrics and /healthz.
SIGINT and SIGTERM stop both listeners gracefully.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsage(cmd, runServe(cmd, opts))
		},
	}
	cmd.Flags().IntVar(&opts.port, "port", 0, "gRPC port (overrides server.port)")
	cmd.Flags().IntVar(&opts.metricsPort, "metrics-port", 0, "metrics port, enables the HTTP listener")
	return cmd
}

// ============================================================================
// Command implementations
// ============================================================================

func runSimulation(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts, true)
	if err != nil {
		return err
	}
	if opts.journal != "" {
		cfg.Output.Journal = opts.journal
	}
	if opts.report != "" {
		cfg.Output.Report = opts.report
	}
	if opts.summary {
		cfg.Output.Summary = true
	}
	if opts.metricsTextfile != "" {
		cfg.Metrics.Textfile = opts.metricsTextfile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(opts, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	runner := controller.NewRunner(cmd.OutOrStdout(), logger, nil)
	_, err = runner.Run(cmd.Context(), controller.Request{Config: cfg})
	return err
}

func runCompare(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts, false)
	if err != nil {
		return err
	}

	logger, err := newLogger(opts, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	runner := controller.NewRunner(cmd.OutOrStdout(), logger, nil)
	_, err = runner.Compare(cmd.Context(), cfg, cfg.Scheduler.Quantum)
	return err
}

func runServe(cmd *cobra.Command, opts *options) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return err
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}
	if opts.metricsPort != 0 {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Port = opts.metricsPort
	}
	if opts.debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	logger, err := newLogger(opts, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveOpts := server.Options{
		GRPCPort: cfg.Server.Port,
		Logger:   logger,
		Metrics:  metrics.NewCollector().WithRuntime(),
		Limits: server.Limits{
			MaxJobs:  cfg.Server.MaxJobs,
			MaxTicks: cfg.Server.MaxTicks,
		},
	}
	if cfg.Metrics.Enabled {
		serveOpts.MetricsPort = cfg.Metrics.Port
	}
	return server.Serve(ctx, serveOpts)
}

// ============================================================================
// Helpers
// ============================================================================

// loadConfig reads the config file and merges the command line into it.
// Policy flags are only honoured when withPolicy is set; compare takes just
// the quantum from -R.
func loadConfig(cmd *cobra.Command, opts *options, withPolicy bool) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}

	o := config.Overrides{
		Filename: opts.filename,
		Debug:    opts.debug,
	}
	if cmd.Flags().Changed("random") {
		n := opts.random
		o.Random = &n
	}
	if cmd.Flags().Changed("roundrobin") {
		q := opts.roundRobin
		if withPolicy {
			o.RoundRobin = &q
		} else {
			cfg.Scheduler.Quantum = q
		}
	}
	if withPolicy {
		o.FirstCome = opts.firstCome
		o.Shortest = opts.shortest
		o.Verbose = opts.verbose
	}

	if err := cfg.Apply(o); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(opts *options, level string) (*zap.Logger, error) {
	if opts.debug {
		level = "debug"
	}
	logger, err := logging.New(level)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}
	return logger, nil
}

// withUsage prints the usage text after configuration errors.
func withUsage(cmd *cobra.Command, err error) error {
	if errors.Is(err, config.ErrConfig) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n%s", err, cmd.UsageString())
	}
	return err
}

// Execute runs the command tree with ctx and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	cmd := BuildCLI()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, config.ErrConfig) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		return 1
	}
	return 0
}
