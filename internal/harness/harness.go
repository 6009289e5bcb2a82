package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/roach88/deqvm/internal/vm"
)

// Result holds the outcome of one scenario execution.
type Result struct {
	Name string

	// Stdout is everything the program printed.
	Stdout string

	// ExitCode is the program's exit code (0 unless exit fired with a
	// nonzero value).
	ExitCode int64

	// RunError is the raw execution or load error, nil on clean
	// termination. A nonzero exit surfaces here as a vm.ExitError.
	RunError error

	// Steps is the number of instructions executed.
	Steps int64

	// Pass reports whether the result satisfied the scenario's
	// expectations.
	Pass bool

	// Errors lists the expectation violations when Pass is false.
	Errors []string
}

// Run executes a scenario and evaluates its expectations.
//
// Returns an error only for harness-level failures (unreadable
// program file). Program load and execution failures land in the
// Result so scenarios can expect them.
func Run(scenario *Scenario) (*Result, error) {
	source := scenario.Source
	if scenario.Program != "" {
		data, err := os.ReadFile(scenario.Program)
		if err != nil {
			return nil, fmt.Errorf("failed to read program: %w", err)
		}
		source = string(data)
	}

	result := &Result{Name: scenario.Name}

	maxSteps := scenario.MaxSteps
	if maxSteps == 0 {
		maxSteps = DefaultMaxSteps
	}

	var out bytes.Buffer
	prog, err := vm.Load(source)
	if err != nil {
		result.RunError = err
	} else {
		m := vm.New(prog,
			vm.WithInput(strings.NewReader(scenario.Stdin)),
			vm.WithOutput(&out),
			vm.WithMaxSteps(maxSteps),
		)
		result.RunError = m.Execute(context.Background())
		result.Steps = m.Steps()
	}

	result.Stdout = out.String()
	if code, ok := vm.ExitCode(result.RunError); ok {
		result.ExitCode = code
	}

	evaluate(scenario, result)
	return result, nil
}

// evaluate checks the result against the scenario's expect clause and
// fills Pass/Errors.
func evaluate(scenario *Scenario, result *Result) {
	expect := scenario.Expect

	if expect.Error != "" {
		if result.RunError == nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("expected error containing %q, run succeeded", expect.Error))
		} else if !strings.Contains(result.RunError.Error(), expect.Error) {
			result.Errors = append(result.Errors,
				fmt.Sprintf("expected error containing %q, got %q", expect.Error, result.RunError.Error()))
		}
	} else if result.RunError != nil {
		if _, isExit := vm.ExitCode(result.RunError); !isExit || result.ExitCode != expect.ExitCode {
			result.Errors = append(result.Errors,
				fmt.Sprintf("unexpected run error: %v", result.RunError))
		}
	}

	if expect.Error == "" && result.ExitCode != expect.ExitCode {
		result.Errors = append(result.Errors,
			fmt.Sprintf("expected exit code %d, got %d", expect.ExitCode, result.ExitCode))
	}

	if expect.Stdout != nil && result.Stdout != *expect.Stdout {
		result.Errors = append(result.Errors,
			fmt.Sprintf("stdout mismatch:\nwant: %q\ngot:  %q", *expect.Stdout, result.Stdout))
	}

	result.Pass = len(result.Errors) == 0
}
