package vm

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// handler executes one opcode against the machine. The instruction is
// passed whole so handlers can attach full context to failures.
type handler func(m *VM, in Instruction) error

// opcodes is the dispatch table. Names absent from the table fall
// through to the operand-push path in Execute.
//
// Binary opcodes pop a (most recent) then b from the instruction's
// end and push the result back to that same end.
var opcodes = map[string]handler{
	"add":    opAdd,
	"sub":    opSub,
	"swap":   opSwap,
	"move":   opMove,
	"over":   opOver,
	"drop":   opDrop,
	"dup":    opDup,
	"shr":    opShr,
	"shl":    opShl,
	"eq":     opEq,
	"or":     opOr,
	"and":    opAnd,
	"xor":    opXor,
	"not":    opNot,
	">":      opGt,
	"<":      opLt,
	">=":     opGe,
	"<=":     opLe,
	"print":  opPrint,
	"printc": opPrintc,
	"read":   opRead,
	"readc":  opReadc,
	"trace":  opTrace,
	"jmp":    opJmp,
	"jmpif":  opJmpif,
	"exit":   opExit,
	OpLabel:  opNop,
}

// Opcodes returns the recognized opcode names. Used by the check
// command to distinguish opcodes from operand pushes in listings.
func Opcodes() map[string]bool {
	names := make(map[string]bool, len(opcodes))
	for name := range opcodes {
		names[name] = true
	}
	return names
}

func opAdd(m *VM, in Instruction) error {
	a, b, err := m.pop2(in.Dir, in)
	if err != nil {
		return err
	}
	m.data.push(in.Dir, a+b)
	return nil
}

// sub: a is the subtrahend.
func opSub(m *VM, in Instruction) error {
	a, b, err := m.pop2(in.Dir, in)
	if err != nil {
		return err
	}
	m.data.push(in.Dir, b-a)
	return nil
}

func opSwap(m *VM, in Instruction) error {
	a, b, err := m.pop2(in.Dir, in)
	if err != nil {
		return err
	}
	m.data.push(in.Dir, a)
	m.data.push(in.Dir, b)
	return nil
}

// move re-pushes the popped value to the inverted direction's end.
func opMove(m *VM, in Instruction) error {
	a, err := m.pop(in.Dir, in)
	if err != nil {
		return err
	}
	m.data.push(in.Dir.Invert(), a)
	return nil
}

func opOver(m *VM, in Instruction) error {
	a, b, err := m.pop2(in.Dir, in)
	if err != nil {
		return err
	}
	m.data.push(in.Dir, b)
	m.data.push(in.Dir, a)
	m.data.push(in.Dir, b)
	return nil
}

func opDrop(m *VM, in Instruction) error {
	_, err := m.pop(in.Dir, in)
	return err
}

func opDup(m *VM, in Instruction) error {
	a, err := m.pop(in.Dir, in)
	if err != nil {
		return err
	}
	m.data.push(in.Dir, a)
	m.data.push(in.Dir, a)
	return nil
}

// shr shifts b right by a (arithmetic, as int64 in the source
// language). Negative shift counts are an explicit failure instead of
// a runtime panic.
func opShr(m *VM, in Instruction) error {
	a, b, err := m.pop2(in.Dir, in)
	if err != nil {
		return err
	}
	if a < 0 {
		return m.fail(ErrCodeIllegalShift, in, "negative shift count "+strconv.FormatInt(a, 10))
	}
	m.data.push(in.Dir, b>>a)
	return nil
}

func opShl(m *VM, in Instruction) error {
	a, b, err := m.pop2(in.Dir, in)
	if err != nil {
		return err
	}
	if a < 0 {
		return m.fail(ErrCodeIllegalShift, in, "negative shift count "+strconv.FormatInt(a, 10))
	}
	m.data.push(in.Dir, b<<a)
	return nil
}

func opEq(m *VM, in Instruction) error {
	a, b, err := m.pop2(in.Dir, in)
	if err != nil {
		return err
	}
	m.data.push(in.Dir, boolToInt(a == b))
	return nil
}

func opOr(m *VM, in Instruction) error {
	a, b, err := m.pop2(in.Dir, in)
	if err != nil {
		return err
	}
	m.data.push(in.Dir, a|b)
	return nil
}

func opAnd(m *VM, in Instruction) error {
	a, b, err := m.pop2(in.Dir, in)
	if err != nil {
		return err
	}
	m.data.push(in.Dir, a&b)
	return nil
}

func opXor(m *VM, in Instruction) error {
	a, b, err := m.pop2(in.Dir, in)
	if err != nil {
		return err
	}
	m.data.push(in.Dir, a^b)
	return nil
}

func opNot(m *VM, in Instruction) error {
	a, err := m.pop(in.Dir, in)
	if err != nil {
		return err
	}
	m.data.push(in.Dir, ^a)
	return nil
}

func opGt(m *VM, in Instruction) error {
	a, b, err := m.pop2(in.Dir, in)
	if err != nil {
		return err
	}
	m.data.push(in.Dir, boolToInt(a > b))
	return nil
}

func opLt(m *VM, in Instruction) error {
	a, b, err := m.pop2(in.Dir, in)
	if err != nil {
		return err
	}
	m.data.push(in.Dir, boolToInt(a < b))
	return nil
}

func opGe(m *VM, in Instruction) error {
	a, b, err := m.pop2(in.Dir, in)
	if err != nil {
		return err
	}
	m.data.push(in.Dir, boolToInt(a >= b))
	return nil
}

func opLe(m *VM, in Instruction) error {
	a, b, err := m.pop2(in.Dir, in)
	if err != nil {
		return err
	}
	m.data.push(in.Dir, boolToInt(a <= b))
	return nil
}

func opPrint(m *VM, in Instruction) error {
	a, err := m.pop(in.Dir, in)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(m.out, "%d\n", a)
	return err
}

// printc truncates the value to one byte and writes it as a character.
func opPrintc(m *VM, in Instruction) error {
	a, err := m.pop(in.Dir, in)
	if err != nil {
		return err
	}
	_, err = m.out.Write([]byte{byte(a)})
	return err
}

// read blocks on one line of input and pushes it as an integer.
func opRead(m *VM, in Instruction) error {
	line, err := m.readLine()
	if err != nil {
		return m.fail(ErrCodeNonIntegerInput, in, "read input: "+err.Error())
	}
	v, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
	if err != nil {
		return m.fail(ErrCodeNonIntegerInput, in, "input "+strconv.Quote(strings.TrimSpace(line))+" is not an integer")
	}
	m.data.push(in.Dir, v)
	return nil
}

// readc blocks on one line of input and pushes the code of its first
// character, or a space if the line is empty.
func opReadc(m *VM, in Instruction) error {
	line, err := m.readLine()
	if err != nil {
		return fmt.Errorf("readc: %w", err)
	}
	r := ' '
	for _, c := range line {
		r = c
		break
	}
	m.data.push(in.Dir, int64(r))
	return nil
}

// trace emits one glyph per deque element, front to back: '*' for
// elements equal to 1, a space otherwise.
func opTrace(m *VM, in Instruction) error {
	var sb strings.Builder
	for _, v := range m.data.snapshot() {
		if v == 1 {
			sb.WriteByte('*')
		} else {
			sb.WriteByte(' ')
		}
	}
	_, err := fmt.Fprintln(m.out, sb.String())
	return err
}

func opJmp(m *VM, in Instruction) error {
	addr, err := m.pop(in.Dir, in)
	if err != nil {
		return err
	}
	return m.jump(addr, in)
}

// jmpif pops the target address then the condition, branching iff the
// condition is nonzero. When not taken, execution falls through to the
// next instruction.
func opJmpif(m *VM, in Instruction) error {
	addr, err := m.pop(in.Dir, in)
	if err != nil {
		return err
	}
	cond, err := m.pop(in.Dir, in)
	if err != nil {
		return err
	}
	if cond != 0 {
		return m.jump(addr, in)
	}
	return nil
}

// exit terminates the run: success for code 0, ExitError otherwise.
func opExit(m *VM, in Instruction) error {
	code, err := m.pop(in.Dir, in)
	if err != nil {
		return err
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return errHalted
}

func opNop(m *VM, in Instruction) error {
	return nil
}

// readLine reads one newline-terminated line, tolerating a final line
// without a trailing newline. EOF with no data reads as an empty line.
func (m *VM) readLine() (string, error) {
	line, err := m.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSuffix(line, "\n"), nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
