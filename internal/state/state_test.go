package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	s, err := New()
	require.NoError(t, err)
	return s
}

func TestNew_SeedsFromProcess(t *testing.T) {
	s := newTestState(t)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, cwd, s.WorkingDirectory())
	assert.Equal(t, ModeNL, s.Mode())
	assert.NotEmpty(t, s.SessionID())
	assert.Zero(t, s.LastExitCode())

	// Environment is seeded from the process.
	t.Setenv("GHOSTSHELL_STATE_SEED_TEST", "yes")
	s2 := newTestState(t)
	v, ok := s2.EnvVar("GHOSTSHELL_STATE_SEED_TEST")
	assert.True(t, ok)
	assert.Equal(t, "yes", v)
}

func TestSetWorkingDirectory(t *testing.T) {
	orig, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(orig) })

	s := newTestState(t)
	tmp := t.TempDir()
	// Resolve symlinks so the comparison is stable on macOS /tmp.
	resolved, err := filepath.EvalSymlinks(tmp)
	require.NoError(t, err)

	require.NoError(t, s.SetWorkingDirectory(resolved))
	assert.Equal(t, resolved, s.WorkingDirectory())

	// The real process working directory moved too.
	procCwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, resolved, procCwd)

	// Relative path resolution against the current cwd.
	sub := filepath.Join(resolved, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, s.SetWorkingDirectory("sub"))
	assert.Equal(t, sub, s.WorkingDirectory())
}

func TestSetWorkingDirectory_NotFound(t *testing.T) {
	s := newTestState(t)
	before := s.WorkingDirectory()

	err := s.SetWorkingDirectory("/nonexistent-path-xyz")
	require.ErrorIs(t, err, ErrDirectoryNotFound)
	assert.Equal(t, before, s.WorkingDirectory(), "failed cd must leave state unchanged")
}

func TestSetWorkingDirectory_FileIsNotDirectory(t *testing.T) {
	s := newTestState(t)
	tmp := t.TempDir()
	file := filepath.Join(tmp, "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	err := s.SetWorkingDirectory(file)
	assert.ErrorIs(t, err, ErrDirectoryNotFound)
}

func TestSetEnvVar(t *testing.T) {
	s := newTestState(t)

	require.NoError(t, s.SetEnvVar("GHOSTSHELL_TEST_VAR", "bar"))
	t.Cleanup(func() { _ = os.Unsetenv("GHOSTSHELL_TEST_VAR") })

	v, ok := s.EnvVar("GHOSTSHELL_TEST_VAR")
	assert.True(t, ok)
	assert.Equal(t, "bar", v)

	// Mirrored into the real process environment.
	assert.Equal(t, "bar", os.Getenv("GHOSTSHELL_TEST_VAR"))

	// Visible in child snapshots.
	assert.Contains(t, s.Environ(), "GHOSTSHELL_TEST_VAR=bar")
}

func TestSetEnvVar_RejectsInvalidNames(t *testing.T) {
	s := newTestState(t)
	assert.Error(t, s.SetEnvVar("FOO=BAR", "x"))
	assert.Error(t, s.SetEnvVar("", "x"))
}

func TestEnviron_IsSnapshot(t *testing.T) {
	s := newTestState(t)
	snap := s.Environ()

	require.NoError(t, s.SetEnvVar("GHOSTSHELL_SNAP_TEST", "1"))
	t.Cleanup(func() { _ = os.Unsetenv("GHOSTSHELL_SNAP_TEST") })

	assert.NotContains(t, snap, "GHOSTSHELL_SNAP_TEST=1")
}

func TestSetMode(t *testing.T) {
	s := newTestState(t)

	require.NoError(t, s.SetMode("SHELL"))
	assert.Equal(t, ModeShell, s.Mode(), "mode names normalize to lowercase")

	require.NoError(t, s.SetMode("ai"))
	assert.Equal(t, ModeAI, s.Mode())

	err := s.SetMode("turbo")
	require.ErrorIs(t, err, ErrInvalidMode)
	assert.Equal(t, ModeAI, s.Mode(), "invalid mode must not change state")
}

func TestHistory(t *testing.T) {
	s := newTestState(t)
	s.AppendHistory("ls -la")
	s.AppendHistory("git status")
	s.AppendHistory("show me the files")

	assert.Equal(t, []string{"ls -la", "git status", "show me the files"}, s.History())
	assert.Equal(t, []string{"git status", "show me the files"}, s.RecentHistory(2))
	assert.Equal(t, s.History(), s.RecentHistory(10))
	assert.Nil(t, s.RecentHistory(0))
}

func TestRecordResult(t *testing.T) {
	s := newTestState(t)
	s.RecordResult(Result{Command: "false", ExitCode: 1, Stderr: "boom"})

	assert.Equal(t, 1, s.LastExitCode())
	assert.Equal(t, "false", s.LastResult().Command)
	assert.Equal(t, "boom", s.LastResult().Stderr)
}

func TestPrompt(t *testing.T) {
	s := newTestState(t)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	orig, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(orig) })

	require.NoError(t, s.SetWorkingDirectory(home))
	p := s.Prompt("kord", "openai", "gpt-4o-mini")
	assert.Contains(t, p, "kord@openai/gpt-4o-mini")
	assert.Contains(t, p, "~")
	assert.Contains(t, p, "$")

	require.NoError(t, s.SetMode("ai"))
	assert.Contains(t, s.Prompt("kord", "openai", "gpt-4o-mini"), "ai>")
}
