// Package harness runs conformance scenarios against the machine.
//
// A scenario is a YAML file pairing a program (inline source or a
// file reference) with fixed stdin and an expected outcome: stdout,
// exit code, or a required error. The harness executes the program
// against in-memory streams and evaluates the expectations; golden
// files under testdata/golden pin exact stdout for regression runs.
//
// Scenarios are used two ways:
//   - from Go tests, via Run and RunWithGolden
//   - from the CLI, via `deqvm test <scenarios-dir>`
package harness
