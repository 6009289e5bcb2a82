package journal

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deqvm/internal/vm"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()

	j, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_OpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	j1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j1.Close())

	j2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j2.Close())
}

func TestJournal_BeginAndFinishRun(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	run, err := j.BeginRun(ctx, "prog.dq")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, StatusRunning, run.Status)

	require.NoError(t, j.FinishRun(ctx, run.ID, 12, 0, nil))

	got, err := j.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, got.Status)
	assert.Equal(t, int64(12), got.Steps)
	assert.Empty(t, got.Error)
	assert.False(t, got.EndedAt.IsZero())
}

func TestJournal_FinishRunRecordsFailure(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	run, err := j.BeginRun(ctx, "prog.dq")
	require.NoError(t, err)

	require.NoError(t, j.FinishRun(ctx, run.ID, 3, 7, &vm.ExitError{Code: 7}))

	got, err := j.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, int64(7), got.ExitCode)
	assert.Contains(t, got.Error, "exit code 7")
}

func TestJournal_GetRunNotFound(t *testing.T) {
	j := openTestJournal(t)

	_, err := j.GetRun(context.Background(), "no-such-run")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestJournal_WriteAndReadSteps(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	run, err := j.BeginRun(ctx, "prog.dq")
	require.NoError(t, err)

	steps := []Step{
		{RunID: run.ID, Seq: 1, IP: 0, Op: "10", Direction: "left", Depth: 0},
		{RunID: run.ID, Seq: 2, IP: 1, Op: "dup", Direction: "left", Depth: 1},
		{RunID: run.ID, Seq: 3, IP: 2, Op: "print", Direction: "left", Depth: 2},
	}
	require.NoError(t, j.WriteSteps(ctx, steps))

	got, err := j.ReadSteps(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, steps, got)
}

func TestJournal_ReadStepsEmptyRun(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	run, err := j.BeginRun(ctx, "empty.dq")
	require.NoError(t, err)

	got, err := j.ReadSteps(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestJournal_ListRuns(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	r1, err := j.BeginRun(ctx, "a.dq")
	require.NoError(t, err)
	r2, err := j.BeginRun(ctx, "b.dq")
	require.NoError(t, err)

	runs, err := j.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	ids := []string{runs[0].ID, runs[1].ID}
	assert.Contains(t, ids, r1.ID)
	assert.Contains(t, ids, r2.ID)
}

func TestRecorder_JournalsAFullRun(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	rec, err := j.StartRun(ctx, "add.dq")
	require.NoError(t, err)

	prog, err := vm.Load("!1 !2 !add !print")
	require.NoError(t, err)

	var out bytes.Buffer
	m := vm.New(prog,
		vm.WithInput(strings.NewReader("")),
		vm.WithOutput(&out),
		vm.WithObserver(rec),
	)
	execErr := m.Execute(ctx)
	require.NoError(t, execErr)
	require.NoError(t, rec.Finish(execErr))

	run, err := j.GetRun(ctx, rec.RunID())
	require.NoError(t, err)
	assert.Equal(t, StatusOK, run.Status)
	assert.Equal(t, int64(4), run.Steps)

	steps, err := j.ReadSteps(ctx, rec.RunID())
	require.NoError(t, err)
	require.Len(t, steps, 4)
	assert.Equal(t, "add", steps[2].Op)
	assert.Equal(t, "left", steps[2].Direction)
	assert.Equal(t, 2, steps[2].Depth)
	assert.Equal(t, "3\n", out.String())
}

func TestRecorder_RecordsNonzeroExit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	rec, err := j.StartRun(ctx, "exit.dq")
	require.NoError(t, err)

	prog, err := vm.Load("!3 !exit")
	require.NoError(t, err)

	m := vm.New(prog, vm.WithOutput(&bytes.Buffer{}), vm.WithObserver(rec))
	execErr := m.Execute(ctx)
	require.Error(t, execErr)
	require.NoError(t, rec.Finish(execErr))

	run, err := j.GetRun(ctx, rec.RunID())
	require.NoError(t, err)
	assert.Equal(t, StatusError, run.Status)
	assert.Equal(t, int64(3), run.ExitCode)
}

func TestRecorder_FlushesLargeRuns(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	rec, err := j.StartRun(ctx, "loop.dq")
	require.NoError(t, err)

	// Infinite loop bounded by the step quota; well past one flush
	// batch so intermediate flushes happen mid-run.
	prog, err := vm.Load("loop: !loop !jmp")
	require.NoError(t, err)

	m := vm.New(prog,
		vm.WithOutput(&bytes.Buffer{}),
		vm.WithObserver(rec),
		vm.WithMaxSteps(1000),
	)
	execErr := m.Execute(ctx)
	require.Error(t, execErr)
	assert.True(t, vm.IsQuotaExceeded(execErr))
	require.NoError(t, rec.Finish(execErr))

	steps, err := j.ReadSteps(ctx, rec.RunID())
	require.NoError(t, err)
	assert.Len(t, steps, 1000)
	assert.Equal(t, int64(1), steps[0].Seq)
	assert.Equal(t, int64(1000), steps[len(steps)-1].Seq)
}
