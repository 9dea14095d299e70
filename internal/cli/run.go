package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ppos/internal/job"
	"ppos/internal/kernel"
	"ppos/internal/logging"
	"ppos/internal/sched"
	"ppos/internal/task"
)

func newRunCmd() *cobra.Command {
	var (
		scenario  string
		cfgPath   string
		tracePath string
		console   bool
		quantum   int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario as the main task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := job.Lookup(scenario)
			if err != nil {
				return err
			}
			cfg, err := sched.Load(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("trace") {
				cfg.TraceCSV = tracePath
			}
			if quantum > 0 {
				cfg.Quantum = quantum
			}
			if flagLogLevel != "" {
				cfg.LogLevel = flagLogLevel
			}
			if flagLogFormat != "" {
				cfg.LogFormat = flagLogFormat
			}

			logger := logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
			code, err := runScenario(cmd.OutOrStdout(), s, cfg, logger, console)
			if err != nil {
				return err
			}
			if code != 0 {
				return &ExitError{Code: code}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&scenario, "scenario", "s", "pingpong", "Scenario to run (see 'ppos scenarios')")
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "config.yml", "Path to the YAML config; missing file means defaults")
	cmd.Flags().StringVar(&tracePath, "trace", "", "Write scheduler events as CSV to this path")
	cmd.Flags().BoolVar(&console, "console", false, "Print scheduler events to stdout")
	cmd.Flags().IntVar(&quantum, "quantum", 0, "Override the quantum in ticks")

	return cmd
}

func runScenario(out io.Writer, s job.Scenario, cfg sched.Config, logger *slog.Logger, console bool) (int, error) {
	runID := uuid.NewString()

	var recs sched.Recorders
	if cfg.TraceCSV != "" {
		csvRec, err := sched.NewCSVRecorder(cfg.TraceCSV, runID)
		if err != nil {
			return 0, fmt.Errorf("open trace: %w", err)
		}
		defer func() {
			if err := csvRec.Close(); err != nil {
				logger.Error("close trace", "path", cfg.TraceCSV, "error", err)
			}
		}()
		recs = append(recs, csvRec)
	}
	if console {
		recs = append(recs, sched.NewConsoleRecorder(out))
	}

	ledger := task.NewLedger(cfg.MaxTasks, logger)
	k := kernel.New(cfg,
		kernel.WithLogger(logger),
		kernel.WithRunID(runID),
		kernel.WithRecorder(recs),
		kernel.WithStackLedger(ledger),
	)

	logger.Info("running scenario", "scenario", s.Name, "run", runID)
	code, err := k.Run(s.Main(k, out), nil)
	if err != nil {
		return 0, fmt.Errorf("run %s: %w", s.Name, err)
	}

	report(out, k, cfg)
	if live := ledger.Live(); live > 0 {
		logger.Warn("stacks still registered after halt", "live", live, "bytes", humanize.IBytes(ledger.LiveBytes()))
	}
	return code, nil
}

func report(w io.Writer, k *kernel.Kernel, cfg sched.Config) {
	tasks := k.Tasks()
	fmt.Fprintf(w, "\nrun %s: %d tasks, clock %s ms, stack %s each\n",
		k.RunID(), len(tasks), humanize.Comma(k.Now()), humanize.IBytes(uint64(cfg.StackSize)))
	for _, t := range tasks {
		fmt.Fprintf(w, "  task %04d %-6s %-10s exit=%-3d cpu=%s ms activations=%d\n",
			t.ID, t.Type, t.Status, t.ExitCode, humanize.Comma(t.Times.CPU), t.Times.Activations)
	}
}
