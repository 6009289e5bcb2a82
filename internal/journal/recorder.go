package journal

import (
	"context"
	"fmt"

	"github.com/roach88/deqvm/internal/vm"
)

// flushBatchSize bounds the recorder's in-memory buffer. Long runs
// flush to SQLite every flushBatchSize steps instead of holding the
// whole trace.
const flushBatchSize = 256

// Recorder implements vm.Observer, journaling each executed
// instruction under a run row. Create with StartRun, attach via
// vm.WithObserver, then call Finish exactly once after Execute
// returns.
//
// Step is called from the machine's synchronous loop only, so the
// recorder needs no locking.
type Recorder struct {
	journal *Journal
	run     Run
	ctx     context.Context
	buf     []Step
	steps   int64 // highest seq recorded
	err     error // first write failure, surfaced by Finish
}

// StartRun opens a run row and returns a recorder bound to it.
// The context is retained for writes made from inside the machine
// loop, which has no context parameter of its own.
func (j *Journal) StartRun(ctx context.Context, source string) (*Recorder, error) {
	run, err := j.BeginRun(ctx, source)
	if err != nil {
		return nil, err
	}
	return &Recorder{
		journal: j,
		run:     run,
		ctx:     ctx,
		buf:     make([]Step, 0, flushBatchSize),
	}, nil
}

// RunID returns the journaled run's UUID.
func (r *Recorder) RunID() string {
	return r.run.ID
}

// Step records one executed instruction. Write failures are deferred
// to Finish: the machine's run is never aborted by journal trouble.
func (r *Recorder) Step(seq int64, ip int, in vm.Instruction, depth int) {
	r.buf = append(r.buf, Step{
		RunID:     r.run.ID,
		Seq:       seq,
		IP:        ip,
		Op:        in.Op,
		Direction: in.Dir.String(),
		Depth:     depth,
	})
	r.steps = seq
	if len(r.buf) >= flushBatchSize {
		r.flush()
	}
}

// Finish flushes buffered steps and closes the run row with the
// machine's outcome. A nonzero program exit code is extracted from
// execErr when present.
func (r *Recorder) Finish(execErr error) error {
	r.flush()

	var exitCode int64
	if code, ok := vm.ExitCode(execErr); ok {
		exitCode = code
	}

	if err := r.journal.FinishRun(r.ctx, r.run.ID, r.steps, exitCode, execErr); err != nil {
		return err
	}
	if r.err != nil {
		return fmt.Errorf("journal recording incomplete: %w", r.err)
	}
	return nil
}

func (r *Recorder) flush() {
	if len(r.buf) == 0 {
		return
	}
	if err := r.journal.WriteSteps(r.ctx, r.buf); err != nil && r.err == nil {
		r.err = err
	}
	r.buf = r.buf[:0]
}
