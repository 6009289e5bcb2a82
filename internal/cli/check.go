package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/deqvm/internal/vm"
)

// CheckResult holds the static analysis of a loaded program.
type CheckResult struct {
	Instructions []ListingEntry `json:"instructions"`
	Labels       []LabelEntry   `json:"labels"`
	Warnings     []string       `json:"warnings,omitempty"`
}

// ListingEntry describes one decoded instruction.
type ListingEntry struct {
	Addr int    `json:"addr"`
	Op   string `json:"op"`
	Dir  string `json:"dir"`
	Kind string `json:"kind"` // "opcode" | "literal" | "label-ref" | "label"
}

// LabelEntry is one label table row.
type LabelEntry struct {
	Name string `json:"name"`
	Addr int    `json:"addr"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <program>",
		Short: "Load a program and print its listing",
		Long: `Load a program without executing it and print the decoded
instruction listing and label table.

Each token is classified as an opcode, an integer literal, a label
reference, or a label definition. A bare name that is neither an
opcode, a literal, nor a known label is reported as a warning: it
would abort the run at execution time.

Examples:
  deqvm check countdown.dq
  deqvm check countdown.dq --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runCheck(opts *RootOptions, programPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	source, err := os.ReadFile(programPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read program", err)
	}

	prog, err := vm.Load(string(source))
	if err != nil {
		_ = formatter.Error("PARSE_ERROR", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load program", err)
	}

	result := analyzeProgram(prog)

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	return outputCheckText(cmd, result)
}

// analyzeProgram classifies every instruction the way the machine's
// dispatch would, without running anything.
func analyzeProgram(prog *vm.Program) CheckResult {
	known := vm.Opcodes()

	// Invert the label table so label definitions list under their names.
	names := make(map[int]string, len(prog.Labels))
	for name, addr := range prog.Labels {
		names[addr] = name
	}

	result := CheckResult{
		Instructions: make([]ListingEntry, 0, prog.Len()),
		Labels:       make([]LabelEntry, 0, len(prog.Labels)),
	}

	for addr, in := range prog.Instructions {
		entry := ListingEntry{Addr: addr, Op: in.Op, Dir: in.Dir.String()}
		switch {
		case in.Op == vm.OpLabel:
			entry.Kind = "label"
			entry.Op = names[addr]
			entry.Dir = "" // direction is meaningless for a label no-op
		case known[in.Op]:
			entry.Kind = "opcode"
		default:
			if _, err := strconv.ParseInt(in.Op, 10, 64); err == nil {
				entry.Kind = "literal"
			} else if _, ok := prog.Labels[strings.ToLower(in.Op)]; ok {
				entry.Kind = "label-ref"
			} else {
				entry.Kind = "label-ref"
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("addr %d: %q is not an opcode, literal, or known label", addr, in.Op))
			}
		}
		result.Instructions = append(result.Instructions, entry)
	}

	for name, addr := range prog.Labels {
		result.Labels = append(result.Labels, LabelEntry{Name: name, Addr: addr})
	}
	sort.Slice(result.Labels, func(i, j int) bool {
		return result.Labels[i].Addr < result.Labels[j].Addr
	})

	return result
}

// outputCheckText prints the listing and label table as text.
func outputCheckText(cmd *cobra.Command, result CheckResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, "=== Instructions ===")
	if len(result.Instructions) == 0 {
		fmt.Fprintln(w, "  (empty program)")
	}
	for _, entry := range result.Instructions {
		if entry.Kind == "label" {
			fmt.Fprintf(w, "  %4d  %s:\n", entry.Addr, entry.Op)
			continue
		}
		fmt.Fprintf(w, "  %4d  %-10s %-5s %s\n", entry.Addr, entry.Op, entry.Dir, entry.Kind)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Labels ===")
	if len(result.Labels) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, label := range result.Labels {
		fmt.Fprintf(w, "  %-16s -> %d\n", label.Name, label.Addr)
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Warnings ===")
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "  %s\n", warning)
		}
	}

	return nil
}
