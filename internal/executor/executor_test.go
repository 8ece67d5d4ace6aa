package executor

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"ghostshell/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestExecutor(t *testing.T) (*Executor, *state.State) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests assume a POSIX shell")
	}

	orig, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(orig) })

	st, err := state.New()
	require.NoError(t, err)
	return New(st, zap.NewNop(), Options{Timeout: 30 * time.Second}), st
}

func TestExecute_Echo(t *testing.T) {
	e, st := newTestExecutor(t)

	result, err := e.Execute(context.Background(), "echo hello")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hello\n", result.Stdout)
	assert.Empty(t, result.Stderr)
	assert.Equal(t, 0, st.LastExitCode())
}

func TestExecute_EmptyAndComment(t *testing.T) {
	e, st := newTestExecutor(t)
	st.SetLastExitCode(42)

	result, err := e.Execute(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Empty(t, result.Stdout)

	result, err = e.Execute(context.Background(), "# just a comment")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)

	// Neither touched the recorded exit code.
	assert.Equal(t, 42, st.LastExitCode())
}

func TestExecute_BareInterpreterIsNoop(t *testing.T) {
	e, _ := newTestExecutor(t)

	result, err := e.Execute(context.Background(), "bash")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Empty(t, result.Stdout)
}

func TestExecute_NonZeroExit(t *testing.T) {
	e, st := newTestExecutor(t)

	result, err := e.Execute(context.Background(), "sh -c 'exit 3'")
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, 3, st.LastExitCode())
}

func TestExecute_CommandNotFound(t *testing.T) {
	e, st := newTestExecutor(t)

	result, err := e.Execute(context.Background(), "definitely-not-a-binary-xyz")
	require.NoError(t, err, "launch failures must never propagate as faults")
	assert.NotEqual(t, 0, result.ExitCode)
	assert.NotEmpty(t, result.Stderr)
	assert.NotEqual(t, 0, st.LastExitCode())
}

func TestExecute_Timeout(t *testing.T) {
	e, _ := newTestExecutor(t)
	e.SetTimeout(100 * time.Millisecond)

	start := time.Now()
	result, err := e.Execute(context.Background(), "sleep 5")
	require.NoError(t, err)
	assert.Equal(t, 124, result.ExitCode)
	assert.Contains(t, result.Stderr, "timed out")
	assert.Less(t, time.Since(start), 3*time.Second, "timeout must terminate the child")
}

func TestExecute_Cancellation(t *testing.T) {
	e, st := newTestExecutor(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	result, err := e.Execute(ctx, "sleep 5")
	require.NoError(t, err)
	assert.Equal(t, 130, result.ExitCode)
	assert.Equal(t, 130, st.LastExitCode())
}

func TestExecute_EnvironmentSnapshot(t *testing.T) {
	e, st := newTestExecutor(t)
	require.NoError(t, st.SetEnvVar("GHOSTSHELL_EXEC_TEST", "visible"))
	t.Cleanup(func() { _ = os.Unsetenv("GHOSTSHELL_EXEC_TEST") })

	result, err := e.Execute(context.Background(), "printf '%s' \"$GHOSTSHELL_EXEC_TEST\"")
	require.NoError(t, err)
	assert.Equal(t, "visible", result.Stdout)
}

func TestExecute_WorkingDirectory(t *testing.T) {
	e, st := newTestExecutor(t)
	tmp := t.TempDir()

	result, err := e.Execute(context.Background(), "cd "+tmp)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)

	result, err = e.Execute(context.Background(), "pwd")
	require.NoError(t, err)
	assert.Equal(t, st.WorkingDirectory()+"\n", result.Stdout)
}

func TestBuiltinCd_NotFound(t *testing.T) {
	e, st := newTestExecutor(t)
	before := st.WorkingDirectory()

	result, err := e.Execute(context.Background(), "cd /nonexistent-path-xyz")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitCode)
	assert.Contains(t, result.Stderr, "cd: /nonexistent-path-xyz: No such directory")
	assert.Equal(t, before, st.WorkingDirectory())
}

func TestBuiltinCd_QuotedPathWithSpaces(t *testing.T) {
	e, st := newTestExecutor(t)
	tmp := t.TempDir()
	spaced := tmp + "/has space"
	require.NoError(t, os.Mkdir(spaced, 0o755))

	result, err := e.Execute(context.Background(), `cd "`+spaced+`"`)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.True(t, strings.HasSuffix(st.WorkingDirectory(), "has space"))
}

func TestBuiltinExport(t *testing.T) {
	e, _ := newTestExecutor(t)
	t.Cleanup(func() { _ = os.Unsetenv("FOO") })

	result, err := e.Execute(context.Background(), "export FOO=bar")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)

	result, err = e.Execute(context.Background(), "export")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, strings.Split(result.Stdout, "\n"), "FOO=bar")
}

func TestBuiltinMode(t *testing.T) {
	e, st := newTestExecutor(t)

	result, err := e.Execute(context.Background(), "mode")
	require.NoError(t, err)
	assert.Contains(t, result.Stdout, "Current mode: nl")
	assert.Contains(t, result.Stdout, "Available: shell, nl, ai")

	result, err = e.Execute(context.Background(), "mode SHELL")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, state.ModeShell, st.Mode())
	assert.Contains(t, result.Stdout, "Switched to shell mode")

	result, err = e.Execute(context.Background(), "mode turbo")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitCode)
	assert.Contains(t, result.Stderr, "Invalid mode: turbo")
	assert.Equal(t, state.ModeShell, st.Mode())
}

func TestBuiltinExit(t *testing.T) {
	e, _ := newTestExecutor(t)

	_, err := e.Execute(context.Background(), "exit")
	var req *ExitRequest
	require.ErrorAs(t, err, &req)
	assert.Equal(t, 0, req.Code)

	_, err = e.Execute(context.Background(), "exit 7")
	require.ErrorAs(t, err, &req)
	assert.Equal(t, 7, req.Code)

	// Non-numeric arguments are treated as absent, not an error.
	_, err = e.Execute(context.Background(), "exit later")
	require.ErrorAs(t, err, &req)
	assert.Equal(t, 0, req.Code)
}

func TestRecordResult(t *testing.T) {
	e, st := newTestExecutor(t)

	_, err := e.Execute(context.Background(), "echo recorded")
	require.NoError(t, err)
	assert.Equal(t, "echo recorded", st.LastResult().Command)
	assert.Equal(t, "recorded\n", st.LastResult().Stdout)
}

func TestExitRequestError(t *testing.T) {
	err := error(&ExitRequest{Code: 2})
	assert.True(t, errors.As(err, new(*ExitRequest)))
	assert.Contains(t, err.Error(), "2")
}
