package vm

import (
	"fmt"
	"strings"
)

// OpLabel is the no-op operation emitted for label-definition tokens.
// It exists only to keep instruction addresses aligned with the
// original token stream.
const OpLabel = "label"

// Instruction is one decoded program token: an operation name (opcode,
// integer literal, or label reference) plus the deque end it targets.
type Instruction struct {
	Op  string
	Dir Direction
}

// Token re-serializes the instruction to its source token form.
// Label no-ops cannot be reconstructed without the label table and are
// handled by Program.Tokens.
func (in Instruction) Token() string {
	if in.Dir == Left {
		return "!" + in.Op
	}
	return in.Op + "!"
}

// Program is an immutable loaded program: the instruction sequence and
// the label table. Built once by Load, read-only afterwards.
type Program struct {
	Instructions []Instruction
	// Labels maps lowercased label names to instruction addresses.
	Labels map[string]int
}

// ParseError reports a token that carries neither a direction marker
// nor a label marker. Loading fails fast: no partial program is ever
// executed.
type ParseError struct {
	Token string // the offending token
	Pos   int    // token index, which would have been its address
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at token %d: %q has no direction or label marker", e.Pos, e.Token)
}

// Load tokenizes program text on whitespace and decodes each token in
// a single left-to-right pass. The token index is its instruction
// address, so the label table is complete before execution starts and
// forward references need no second pass.
//
// Token forms:
//
//	name:  label definition at the current address (case-insensitive)
//	!op    instruction op, Left direction
//	op!    instruction op, Right direction
//
// Anything else is a ParseError.
func Load(text string) (*Program, error) {
	tokens := strings.Fields(text)

	prog := &Program{
		Instructions: make([]Instruction, 0, len(tokens)),
		Labels:       make(map[string]int),
	}
	for addr, tok := range tokens {
		switch {
		case strings.HasSuffix(tok, ":"):
			name := strings.ToLower(strings.TrimSuffix(tok, ":"))
			prog.Labels[name] = addr
			// Direction is irrelevant for the no-op but must be a
			// defined value.
			prog.Instructions = append(prog.Instructions, Instruction{Op: OpLabel, Dir: Left})
		case strings.HasPrefix(tok, "!"):
			prog.Instructions = append(prog.Instructions, Instruction{Op: strings.TrimPrefix(tok, "!"), Dir: Left})
		case strings.HasSuffix(tok, "!"):
			prog.Instructions = append(prog.Instructions, Instruction{Op: strings.TrimSuffix(tok, "!"), Dir: Right})
		default:
			return nil, &ParseError{Token: tok, Pos: addr}
		}
	}
	return prog, nil
}

// Len returns the number of instructions.
func (p *Program) Len() int {
	return len(p.Instructions)
}

// Tokens re-serializes the program to its token stream. Loading the
// result yields an executionally equivalent program: same label table,
// same instruction sequence modulo whitespace.
func (p *Program) Tokens() []string {
	// Invert the label table so label no-ops round-trip with their
	// names. Addresses are unique by construction.
	names := make(map[int]string, len(p.Labels))
	for name, addr := range p.Labels {
		names[addr] = name
	}

	out := make([]string, 0, len(p.Instructions))
	for addr, in := range p.Instructions {
		if in.Op == OpLabel {
			out = append(out, names[addr]+":")
			continue
		}
		out = append(out, in.Token())
	}
	return out
}
