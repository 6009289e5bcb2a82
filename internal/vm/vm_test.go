package vm

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run loads src and executes it against in-memory streams, returning
// the machine, its stdout, and the execution error.
func run(t *testing.T, src, stdin string, opts ...Option) (*VM, string, error) {
	t.Helper()

	prog, err := Load(src)
	require.NoError(t, err)

	var out bytes.Buffer
	all := append([]Option{
		WithInput(strings.NewReader(stdin)),
		WithOutput(&out),
	}, opts...)
	m := New(prog, all...)
	execErr := m.Execute(context.Background())
	return m, out.String(), execErr
}

func TestVM_OperandPushLiteral(t *testing.T) {
	m, _, err := run(t, "!1 2! !-3", "")
	require.NoError(t, err)

	// Front to back: -3 pushed front last, 2 pushed back.
	assert.Equal(t, []int64{-3, 1, 2}, m.Snapshot())
}

func TestVM_OperandPushLabelAddress(t *testing.T) {
	m, _, err := run(t, "!here here:", "")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, m.Snapshot())
}

func TestVM_OperandPushLabelCaseInsensitive(t *testing.T) {
	m, _, err := run(t, "!TARGET Target:", "")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, m.Snapshot())
}

func TestVM_UnknownLabel(t *testing.T) {
	_, _, err := run(t, "!bogus", "")
	require.Error(t, err)
	assert.True(t, IsUnknownLabel(err))

	var me *MachineError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "bogus", me.Op)
	assert.Equal(t, 0, me.IP)
}

func TestVM_EmptyProgram(t *testing.T) {
	_, out, err := run(t, "", "")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestVM_Jmp(t *testing.T) {
	// Jump over the print; addr 4 is the end label.
	_, out, err := run(t, "!end !jmp !99 !print end:", "")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestVM_JmpPastEndTerminates(t *testing.T) {
	// A target equal to (or past) the program length just ends the
	// loop, as when the pointer walks off the end.
	_, out, err := run(t, "!100 !jmp !1 !print", "")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestVM_JmpNegativeAddress(t *testing.T) {
	_, _, err := run(t, "!-1 !jmp", "")
	require.Error(t, err)

	var me *MachineError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeIllegalAddress, me.Code)
}

func TestVM_JmpifTaken(t *testing.T) {
	// Condition below the address; any nonzero condition branches.
	for _, cond := range []string{"1", "2", "-7"} {
		_, out, err := run(t, "!"+cond+" !end !jmpif !99 !print end:", "")
		require.NoError(t, err)
		assert.Empty(t, out, "cond=%s should branch", cond)
	}
}

func TestVM_JmpifNotTaken(t *testing.T) {
	_, out, err := run(t, "!0 !end !jmpif !99 !print end:", "")
	require.NoError(t, err)
	assert.Equal(t, "99\n", out, "zero condition falls through")
}

func TestVM_ExitZero(t *testing.T) {
	// Terminates successfully before the print executes.
	_, out, err := run(t, "!0 !exit !1 !print", "")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestVM_ExitNonzero(t *testing.T) {
	_, _, err := run(t, "!1 !exit", "")
	require.Error(t, err)

	code, ok := ExitCode(err)
	require.True(t, ok)
	assert.Equal(t, int64(1), code)
}

func TestVM_ExitCodeFromRight(t *testing.T) {
	_, _, err := run(t, "5! exit!", "")
	code, ok := ExitCode(err)
	require.True(t, ok)
	assert.Equal(t, int64(5), code)
}

func TestVM_Countdown(t *testing.T) {
	src := "!10 loop: !dup !0 !> !end !jmpif !dup !print !1 !sub !loop !jmp end:"
	_, out, err := run(t, src, "")
	require.NoError(t, err)

	want := "10\n9\n8\n7\n6\n5\n4\n3\n2\n1\n0\n"
	assert.Equal(t, want, out)
}

func TestVM_SharedStoreAcrossDirections(t *testing.T) {
	// sub! pops from the back of the same shared deque the front
	// pushes landed in: a=3, b=5, pushes 2 to the back.
	m, out, err := run(t, "3! !5 !2 sub! !add !print", "")
	require.NoError(t, err)
	assert.Equal(t, "4\n", out)
	assert.Equal(t, 0, m.Depth())
}

func TestVM_MaxStepsQuota(t *testing.T) {
	_, _, err := run(t, "loop: !loop !jmp", "", WithMaxSteps(10))
	require.Error(t, err)
	assert.True(t, IsQuotaExceeded(err))
}

func TestVM_MaxStepsAllowsExactLimit(t *testing.T) {
	_, out, err := run(t, "!1 !print", "", WithMaxSteps(2))
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
}

func TestVM_ContextCancellation(t *testing.T) {
	prog, err := Load("loop: !loop !jmp")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := New(prog, WithOutput(&bytes.Buffer{}))
	err = m.Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingObserver struct {
	seqs []int64
	ips  []int
	ops  []string
}

func (r *recordingObserver) Step(seq int64, ip int, in Instruction, depth int) {
	r.seqs = append(r.seqs, seq)
	r.ips = append(r.ips, ip)
	r.ops = append(r.ops, in.Op)
}

func TestVM_ObserverSeesEveryStep(t *testing.T) {
	obs := &recordingObserver{}
	m, _, err := run(t, "!1 !2 !add !drop", "", WithObserver(obs))
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3, 4}, obs.seqs)
	assert.Equal(t, []int{0, 1, 2, 3}, obs.ips)
	assert.Equal(t, []string{"1", "2", "add", "drop"}, obs.ops)
	assert.Equal(t, int64(4), m.Steps())
}

func TestVM_ObserverSeesJumpTargets(t *testing.T) {
	obs := &recordingObserver{}
	_, _, err := run(t, "!3 !jmp !99 end: !0 !exit", "", WithObserver(obs))
	require.NoError(t, err)

	// ip 2 is skipped by the jump.
	assert.Equal(t, []int{0, 1, 3, 4, 5}, obs.ips)
}

func TestVM_UnderflowCarriesContext(t *testing.T) {
	_, _, err := run(t, "!1 !add", "")
	require.Error(t, err)
	assert.True(t, IsUnderflow(err))

	var me *MachineError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, 1, me.IP)
	assert.Equal(t, "add", me.Op)
	assert.Equal(t, Left, me.Dir)
}
