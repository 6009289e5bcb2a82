package vm

import (
	"errors"
	"fmt"
)

// MachineError represents a failure detected while executing a loaded
// program.
//
// Machine errors include:
//   - Stack underflow: pop requested on an empty deque end
//   - Unknown label: a bare token is neither an integer nor a label
//   - Non-integer input: read received unparseable text
//   - Illegal address: a jump target is negative
//   - Quota exceeded: the run passed its configured step limit
//
// MachineError includes the instruction context for diagnostics; there
// is no recovery mechanism inside the executed program, so every
// machine error aborts the run.
type MachineError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// IP is the instruction pointer at the time of failure.
	IP int

	// Op is the operation that failed.
	Op string

	// Dir is the deque end the operation targeted.
	Dir Direction
}

// ErrorCode categorizes machine errors.
type ErrorCode string

const (
	// ErrCodeUnderflow indicates a pop from an empty deque end.
	ErrCodeUnderflow ErrorCode = "STACK_UNDERFLOW"

	// ErrCodeUnknownLabel indicates an operand token that is neither a
	// valid integer literal nor a known label.
	ErrCodeUnknownLabel ErrorCode = "UNKNOWN_LABEL"

	// ErrCodeNonIntegerInput indicates read received a line that does
	// not parse as an integer.
	ErrCodeNonIntegerInput ErrorCode = "NON_INTEGER_INPUT"

	// ErrCodeIllegalAddress indicates a negative jump target.
	ErrCodeIllegalAddress ErrorCode = "ILLEGAL_ADDRESS"

	// ErrCodeIllegalShift indicates a negative shift count.
	ErrCodeIllegalShift ErrorCode = "ILLEGAL_SHIFT"

	// ErrCodeQuotaExceeded indicates the run exceeded its step limit.
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"
)

// Error implements the error interface.
func (e *MachineError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (ip=%d, op=%s, dir=%s)", e.Code, e.Message, e.IP, e.Op, e.Dir)
	}
	return fmt.Sprintf("%s: %s (ip=%d)", e.Code, e.Message, e.IP)
}

// IsUnderflow returns true if the error is a stack underflow.
// Uses errors.As to handle wrapped errors.
func IsUnderflow(err error) bool {
	return hasCode(err, ErrCodeUnderflow)
}

// IsUnknownLabel returns true if the error is an unknown label failure.
func IsUnknownLabel(err error) bool {
	return hasCode(err, ErrCodeUnknownLabel)
}

// IsQuotaExceeded returns true if the error is a step quota failure.
func IsQuotaExceeded(err error) bool {
	return hasCode(err, ErrCodeQuotaExceeded)
}

func hasCode(err error, code ErrorCode) bool {
	var me *MachineError
	if errors.As(err, &me) {
		return me.Code == code
	}
	return false
}

// ExitError reports explicit termination through the exit opcode with
// a nonzero code. It is a failure carrying the code, not a crash:
// exit 0 terminates the run with a nil error instead.
type ExitError struct {
	Code int64
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode extracts the program exit code from an error. Returns
// (0, false) if the error is not an ExitError.
func ExitCode(err error) (int64, bool) {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code, true
	}
	return 0, false
}

// errHalted is the internal sentinel for exit 0: terminate the loop,
// report success.
var errHalted = errors.New("halted")
