package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/deqvm/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
}

// RunSummary is one journaled run in list output.
type RunSummary struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	ExitCode int64  `json:"exit_code"`
	Steps    int64  `json:"steps"`
	Started  string `json:"started"`
	Error    string `json:"error,omitempty"`
}

// StepEntry is one journaled instruction execution.
type StepEntry struct {
	Seq       int64  `json:"seq"`
	IP        int    `json:"ip"`
	Op        string `json:"op"`
	Direction string `json:"direction"`
	Depth     int    `json:"depth"`
}

// TraceResult holds the full trace output for one run.
type TraceResult struct {
	Run    RunSummary  `json:"run"`
	Source string      `json:"source"`
	Steps  []StepEntry `json:"steps"`
}

// RunListResult holds the run list output.
type RunListResult struct {
	Runs []RunSummary `json:"runs"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Inspect journaled runs",
		Long: `Inspect runs recorded by 'run --journal'.

Without an argument, lists all journaled runs, most recent first.
With a run ID, prints that run's outcome and its step-by-step
execution trace: sequence number, instruction pointer, operation,
deque end, and deque depth before the instruction ran.

Examples:
  deqvm trace --db ./runs.db
  deqvm trace --db ./runs.db 5a3c2e9f-...
  deqvm trace --db ./runs.db 5a3c2e9f-... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runTraceList(opts, cmd)
			}
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runTraceList(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	runs, err := j.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	result := RunListResult{Runs: make([]RunSummary, 0, len(runs))}
	for _, run := range runs {
		result.Runs = append(result.Runs, summarizeRun(run))
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	if len(result.Runs) == 0 {
		fmt.Fprintln(w, "No journaled runs.")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-7s  %6s  %5s  %s\n", "ID", "STATUS", "STEPS", "EXIT", "STARTED")
	for _, run := range result.Runs {
		fmt.Fprintf(w, "%-36s  %-7s  %6d  %5d  %s\n", run.ID, run.Status, run.Steps, run.ExitCode, run.Started)
	}
	return nil
}

func runTrace(opts *TraceOptions, runID string, cmd *cobra.Command) error {
	ctx := context.Background()

	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	run, err := j.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, journal.ErrRunNotFound) {
			return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", runID))
		}
		return WrapExitError(ExitCommandError, "failed to get run", err)
	}

	steps, err := j.ReadSteps(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read steps", err)
	}

	result := TraceResult{
		Run:    summarizeRun(run),
		Source: run.Source,
		Steps:  make([]StepEntry, 0, len(steps)),
	}
	for _, s := range steps {
		result.Steps = append(result.Steps, StepEntry{
			Seq:       s.Seq,
			IP:        s.IP,
			Op:        s.Op,
			Direction: s.Direction,
			Depth:     s.Depth,
		})
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}

	return outputTraceText(cmd, result, opts.Verbose)
}

// summarizeRun converts a journal row to its display form.
func summarizeRun(run journal.Run) RunSummary {
	return RunSummary{
		ID:       run.ID,
		Status:   run.Status,
		ExitCode: run.ExitCode,
		Steps:    run.Steps,
		Started:  run.StartedAt.Format(time.RFC3339),
		Error:    run.Error,
	}
}

// outputTraceText prints a run trace as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Run: %s\n", result.Run.ID)
	fmt.Fprintf(w, "Status: %s\n", result.Run.Status)
	fmt.Fprintf(w, "Steps: %d\n", result.Run.Steps)
	fmt.Fprintf(w, "Exit code: %d\n", result.Run.ExitCode)
	if result.Run.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", result.Run.Error)
	}
	if verbose {
		fmt.Fprintf(w, "Source: %s\n", result.Source)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Trace ===")
	if len(result.Steps) == 0 {
		fmt.Fprintln(w, "  (no steps recorded)")
		return nil
	}
	fmt.Fprintf(w, "  %6s  %5s  %-10s  %-5s  %s\n", "SEQ", "IP", "OP", "DIR", "DEPTH")
	for _, s := range result.Steps {
		fmt.Fprintf(w, "  %6d  %5d  %-10s  %-5s  %d\n", s.Seq, s.IP, s.Op, s.Direction, s.Depth)
	}
	return nil
}
