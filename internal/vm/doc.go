// Package vm implements the deqvm execution engine.
//
// The machine executes a whitespace-tokenized program against a single
// double-ended queue of int64 values. Every instruction carries a
// Direction selecting which end of the deque it touches, so one shared
// store supports two independent stack disciplines at once.
//
// ARCHITECTURE:
//
// Fetch-Decode-Execute Loop:
// Execute runs a synchronous loop over an immutable instruction slice
// with an explicit instruction pointer. All mutation (deque, pointer)
// happens inside that loop. This ensures:
//   - Deterministic execution order
//   - A journaled run replays as an identical step sequence
//   - Simple reasoning about control flow
//
// Instruction Flow:
//  1. Load tokenizes the program text; the token index is the address
//  2. Labels are recorded in the same pass, before execution starts
//  3. Execute dispatches each operation through the handler table
//  4. Unrecognized names fall through to the operand-push path
//     (integer literal first, then label reference)
//  5. The pointer auto-increments unless a handler jumped
//
// The machine is designed for correctness and determinism, not
// throughput. There is no concurrency anywhere in the run: the only
// blocking points are the read and readc opcodes, which block the
// whole machine on the input stream.
package vm
