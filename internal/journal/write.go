package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusError   = "error"
)

// Run is one recorded Execute invocation.
type Run struct {
	ID        string
	Source    string
	Status    string
	Error     string
	ExitCode  int64
	Steps     int64
	StartedAt time.Time
	EndedAt   time.Time // zero while the run is open
}

// Step is one recorded instruction execution. IP and Depth are
// captured before the handler runs.
type Step struct {
	RunID     string
	Seq       int64
	IP        int
	Op        string
	Direction string
	Depth     int
}

// BeginRun inserts a new run row in the running state and returns it.
// Run IDs are UUIDs.
func (j *Journal) BeginRun(ctx context.Context, source string) (Run, error) {
	run := Run{
		ID:        uuid.NewString(),
		Source:    source,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, source, status, started_at)
		VALUES (?, ?, ?, ?)
	`,
		run.ID,
		run.Source,
		run.Status,
		run.StartedAt.Unix(),
	)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}

	return run, nil
}

// WriteSteps appends a batch of step rows in a single transaction.
// Steps within a run are keyed by seq; writing the same seq twice is
// a constraint violation, which the single-writer loop never does.
func (j *Journal) WriteSteps(ctx context.Context, steps []Step) error {
	if len(steps) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write steps: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO steps (run_id, seq, ip, op, direction, depth)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write steps: prepare: %w", err)
	}
	defer stmt.Close()

	for _, s := range steps {
		if _, err := stmt.ExecContext(ctx, s.RunID, s.Seq, s.IP, s.Op, s.Direction, s.Depth); err != nil {
			return fmt.Errorf("write step %d: %w", s.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write steps: commit: %w", err)
	}
	return nil
}

// FinishRun closes a run row with its outcome. A nil runErr records
// status ok; otherwise the error message is stored verbatim.
func (j *Journal) FinishRun(ctx context.Context, id string, steps int64, exitCode int64, runErr error) error {
	status := StatusOK
	msg := ""
	if runErr != nil {
		status = StatusError
		msg = runErr.Error()
	}

	_, err := j.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, error = ?, exit_code = ?, steps = ?, ended_at = ?
		WHERE id = ?
	`,
		status,
		msg,
		exitCode,
		steps,
		time.Now().Unix(),
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	return nil
}
