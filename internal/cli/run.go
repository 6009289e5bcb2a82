package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/deqvm/internal/journal"
	"github.com/roach88/deqvm/internal/vm"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Journal  string
	MaxSteps int64
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <program>",
		Short: "Execute a program",
		Long: `Execute a program file on the deque machine.

The program is tokenized on whitespace: !op targets the front of the
deque, op! the back, and name: defines a label at that address. The
machine reads stdin for the read/readc opcodes and writes results to
stdout.

Exit codes:
  0 - Program ran to completion (or exited with code 0)
  1 - Machine error (underflow, unknown label, bad input)
  2 - Command error (unreadable file, malformed program)
  N - Program exited with nonzero code N

Examples:
  deqvm run countdown.dq
  deqvm run countdown.dq --max-steps 100000
  deqvm run countdown.dq --journal ./runs.db --verbose`,
		// Usage mistakes are command errors (exit 2), not runtime
		// failures, so the stock ExactArgs error is not enough.
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return NewExitError(ExitCommandError, "expected exactly one program file argument")
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal database (optional)")
	cmd.Flags().Int64Var(&opts.MaxSteps, "max-steps", 0, "abort the run after this many instructions (0 = unbounded)")

	return cmd
}

func runProgram(opts *RunOptions, programPath string, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if !opts.Verbose {
		logLevel = slog.LevelWarn
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	source, err := os.ReadFile(programPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read program", err)
	}

	prog, err := vm.Load(string(source))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load program", err)
	}
	slog.Info("program loaded", "path", programPath, "instructions", prog.Len(), "labels", len(prog.Labels))

	machineOpts := []vm.Option{
		vm.WithInput(cmd.InOrStdin()),
		vm.WithOutput(cmd.OutOrStdout()),
	}
	if opts.MaxSteps > 0 {
		machineOpts = append(machineOpts, vm.WithMaxSteps(opts.MaxSteps))
	}

	// Optionally journal the run to SQLite
	var recorder *journal.Recorder
	if opts.Journal != "" {
		j, err := journal.Open(opts.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				slog.Error("error closing journal", "error", closeErr)
			}
		}()

		recorder, err = j.StartRun(context.Background(), string(source))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start journal run", err)
		}
		slog.Info("journaling run", "run_id", recorder.RunID(), "db", opts.Journal)
		machineOpts = append(machineOpts, vm.WithObserver(recorder))
	}

	m := vm.New(prog, machineOpts...)

	// Setup signal handling for clean cancellation
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, aborting run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	execErr := m.Execute(ctx)

	if recorder != nil {
		if finishErr := recorder.Finish(execErr); finishErr != nil {
			slog.Error("error finishing journal run", "error", finishErr)
		}
	}

	if execErr != nil {
		if code, ok := vm.ExitCode(execErr); ok {
			// The program's own exit code becomes the process exit code.
			return NewExitError(int(code), fmt.Sprintf("program exited with code %d", code))
		}
		return WrapExitError(ExitFailure, "machine error", execErr)
	}

	slog.Info("run complete", "steps", m.Steps(), "depth", m.Depth())
	return nil
}
