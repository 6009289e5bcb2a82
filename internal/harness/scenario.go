package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test for one machine program.
// Scenarios execute a program against fixed input and assert on the
// produced output and termination.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names the
	// golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is a path to the program file, relative to the scenario
	// file location. Exactly one of Program and Source must be set.
	Program string `yaml:"program,omitempty"`

	// Source is the program text inline, for small scenarios.
	Source string `yaml:"source,omitempty"`

	// Stdin is fed to the read/readc opcodes. Optional.
	Stdin string `yaml:"stdin,omitempty"`

	// MaxSteps bounds the run. Zero uses DefaultMaxSteps so a broken
	// scenario cannot hang the suite.
	MaxSteps int64 `yaml:"max_steps,omitempty"`

	// Expect specifies the required outcome.
	Expect ExpectClause `yaml:"expect"`
}

// ExpectClause specifies expected program behavior.
type ExpectClause struct {
	// Stdout is the exact expected output. Nil means stdout is only
	// asserted through the golden file, if any.
	Stdout *string `yaml:"stdout,omitempty"`

	// ExitCode is the expected program exit code.
	ExitCode int64 `yaml:"exit_code,omitempty"`

	// Error, when non-empty, requires the run to fail with an error
	// containing this substring (load failures included).
	Error string `yaml:"error,omitempty"`
}

// DefaultMaxSteps bounds scenario runs that don't set their own
// limit. Generous for test programs, small enough that an accidental
// infinite loop fails fast.
const DefaultMaxSteps = 1_000_000

// LoadScenario reads and parses a scenario YAML file. Program paths
// are resolved relative to the scenario file. Returns an error if the
// file is malformed, contains unknown fields (typos), or is missing
// required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "expects:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Program != "" && !filepath.IsAbs(scenario.Program) {
		scenario.Program = filepath.Join(filepath.Dir(path), scenario.Program)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Program == "" && s.Source == "" {
		return fmt.Errorf("one of program or source is required")
	}
	if s.Program != "" && s.Source != "" {
		return fmt.Errorf("program and source are mutually exclusive")
	}

	if s.Program != "" {
		if _, err := os.Stat(s.Program); os.IsNotExist(err) {
			return fmt.Errorf("program file not found: %s", s.Program)
		}
	}

	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}

	if s.Expect.ExitCode < 0 {
		return fmt.Errorf("expect.exit_code must be non-negative")
	}

	return nil
}
