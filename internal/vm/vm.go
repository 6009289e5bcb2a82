package vm

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Observer receives one callback per executed instruction, before the
// handler runs. Implemented by journal.Recorder (production) and test
// doubles. Observers must not mutate the machine.
type Observer interface {
	Step(seq int64, ip int, in Instruction, depth int)
}

// VM executes a loaded Program against a single double-ended deque.
//
// The deque and instruction pointer are exclusively owned by the VM
// for the run's duration; no other component holds a reference to
// them, so no locking is needed. Program and label table are read-only
// after Load.
//
// A VM runs exactly once. Reconstruct with New to run again.
type VM struct {
	prog  *Program
	data  deque
	ip    int
	clock *Clock

	in  *bufio.Reader
	out io.Writer

	maxSteps int64 // 0 = unbounded
	observer Observer

	// jumped is set by control-flow handlers to suppress the usual
	// pointer increment for the current instruction.
	jumped bool
}

// Option configures a VM.
type Option func(*VM)

// WithInput sets the stream read and readc consume from.
// Defaults to os.Stdin.
func WithInput(r io.Reader) Option {
	return func(m *VM) {
		m.in = bufio.NewReader(r)
	}
}

// WithOutput sets the stream print, printc and trace write to.
// Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(m *VM) {
		m.out = w
	}
}

// WithMaxSteps bounds the run to n executed instructions. Exceeding
// the bound fails the run with ErrCodeQuotaExceeded. Zero (the
// default) means unbounded, matching the original machine, which can
// loop forever.
func WithMaxSteps(n int64) Option {
	return func(m *VM) {
		m.maxSteps = n
	}
}

// WithObserver registers a step observer, e.g. a journal recorder.
func WithObserver(o Observer) Option {
	return func(m *VM) {
		m.observer = o
	}
}

// New creates a VM for one run of prog with an empty deque and the
// instruction pointer at zero.
func New(prog *Program, opts ...Option) *VM {
	m := &VM{
		prog:  prog,
		clock: NewClock(),
		in:    bufio.NewReader(os.Stdin),
		out:   os.Stdout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Steps returns the number of instructions executed so far.
func (m *VM) Steps() int64 {
	return m.clock.Current()
}

// Depth returns the current deque depth.
func (m *VM) Depth() int {
	return m.data.len()
}

// Snapshot returns a copy of the deque contents, front to back.
// Used by tests and diagnostics.
func (m *VM) Snapshot() []int64 {
	return m.data.snapshot()
}

// Execute runs the fetch-decode-execute loop until the instruction
// pointer reaches the program length, an exit opcode fires, or an
// error aborts the run.
//
// The pointer is compared against the program length before each
// fetch, so it may legally equal the length (the loop ends) but is
// never dereferenced out of bounds. A nonzero exit surfaces as an
// ExitError; exit 0 and falling off the end both return nil.
//
// The context is checked between instructions. Cancellation aborts
// the run with the context's error; it cannot interrupt a read opcode
// already blocked on the input stream.
func (m *VM) Execute(ctx context.Context) error {
	for m.ip < len(m.prog.Instructions) {
		if err := ctx.Err(); err != nil {
			return err
		}

		in := m.prog.Instructions[m.ip]
		if m.maxSteps > 0 && m.clock.Current() >= m.maxSteps {
			return &MachineError{
				Code:    ErrCodeQuotaExceeded,
				Message: "run exceeded max steps",
				IP:      m.ip,
				Op:      in.Op,
				Dir:     in.Dir,
			}
		}
		seq := m.clock.Next()
		if m.observer != nil {
			m.observer.Step(seq, m.ip, in, m.data.len())
		}
		slog.Debug("step",
			"seq", seq,
			"ip", m.ip,
			"op", in.Op,
			"dir", in.Dir,
			"depth", m.data.len(),
		)

		m.jumped = false
		var err error
		if h, ok := opcodes[in.Op]; ok {
			err = h(m, in)
		} else {
			err = m.pushOperand(in)
		}
		if err != nil {
			if errors.Is(err, errHalted) {
				return nil
			}
			return err
		}

		if !m.jumped {
			m.ip++
		}
	}
	return nil
}

// pushOperand is the dispatch fallthrough for operation names with no
// handler: parse as a base-10 int64 literal, else resolve as a label
// reference and push the address, else fail with UnknownLabel.
func (m *VM) pushOperand(in Instruction) error {
	if v, err := strconv.ParseInt(in.Op, 10, 64); err == nil {
		m.data.push(in.Dir, v)
		return nil
	}
	if addr, ok := m.prog.Labels[strings.ToLower(in.Op)]; ok {
		m.data.push(in.Dir, int64(addr))
		return nil
	}
	return m.fail(ErrCodeUnknownLabel, in, "label "+strconv.Quote(in.Op)+" does not exist")
}

// pop removes one value from the end selected by dir, failing with
// StackUnderflow if that end is empty.
func (m *VM) pop(dir Direction, in Instruction) (int64, error) {
	v, ok := m.data.pop(dir)
	if !ok {
		return 0, m.fail(ErrCodeUnderflow, in, "pop from empty deque")
	}
	return v, nil
}

// pop2 pops the two operands of a binary opcode: a is the value most
// recently pushed to dir's end, b the one beneath it.
func (m *VM) pop2(dir Direction, in Instruction) (a, b int64, err error) {
	if a, err = m.pop(dir, in); err != nil {
		return 0, 0, err
	}
	if b, err = m.pop(dir, in); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// jump redirects the instruction pointer. Negative targets fail with
// IllegalAddress; targets at or past the program length simply end the
// loop on the next fetch check.
func (m *VM) jump(addr int64, in Instruction) error {
	if addr < 0 {
		return m.fail(ErrCodeIllegalAddress, in, "jump to negative address "+strconv.FormatInt(addr, 10))
	}
	m.ip = int(addr)
	m.jumped = true
	return nil
}

// fail builds a MachineError carrying the current instruction context.
func (m *VM) fail(code ErrorCode, in Instruction, msg string) error {
	return &MachineError{
		Code:    code,
		Message: msg,
		IP:      m.ip,
		Op:      in.Op,
		Dir:     in.Dir,
	}
}
