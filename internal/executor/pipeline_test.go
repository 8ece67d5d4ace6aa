package executor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPipeline(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"ls", []string{"ls"}},
		{"printf 'b\na\nc' | sort", []string{"printf 'b\na\nc'", "sort"}},
		{"cat f | grep x | wc -l", []string{"cat f", "grep x", "wc -l"}},
		{"true || false", []string{"true || false"}},
		{"a | b || c", []string{"a", "b || c"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitPipeline(tt.input), "SplitPipeline(%q)", tt.input)
	}
}

func TestPipeline_TwoStages(t *testing.T) {
	e, _ := newTestExecutor(t)

	result, err := e.Execute(context.Background(), "printf 'b\na\nc' | sort")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "a\nb\nc\n", result.Stdout)
}

func TestPipeline_ThreeStages(t *testing.T) {
	e, _ := newTestExecutor(t)

	result, err := e.Execute(context.Background(), "printf 'x\ny\nx' | sort | uniq -c")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Stdout, "2")
	assert.Contains(t, result.Stdout, "x")
}

func TestPipeline_LastStageExitCodeWins(t *testing.T) {
	e, st := newTestExecutor(t)

	result, err := e.Execute(context.Background(), "echo hi | sh -c 'exit 4'")
	require.NoError(t, err)
	assert.Equal(t, 4, result.ExitCode)
	assert.Equal(t, 4, st.LastExitCode())
}

func TestPipeline_UpstreamStderrIsCaptured(t *testing.T) {
	e, _ := newTestExecutor(t)

	result, err := e.Execute(context.Background(),
		"sh -c 'echo upstream-problem >&2; echo data' | cat")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "data\n", result.Stdout)
	assert.Contains(t, result.Stderr, "upstream-problem",
		"upstream stage stderr must not be silently lost")
}

func TestPipeline_LargeStreamDoesNotDeadlock(t *testing.T) {
	e, _ := newTestExecutor(t)

	// Well past the 64KiB kernel pipe buffer: the stages must run
	// concurrently for this to finish.
	result, err := e.Execute(context.Background(), "head -c 1048576 /dev/zero | wc -c")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "1048576", strings.TrimSpace(result.Stdout))
}

func TestPipeline_Timeout(t *testing.T) {
	e, _ := newTestExecutor(t)
	e.SetTimeout(200 * time.Millisecond)

	start := time.Now()
	result, err := e.Execute(context.Background(), "sleep 5 | cat")
	require.NoError(t, err)
	assert.Equal(t, 124, result.ExitCode)
	assert.Contains(t, result.Stderr, "timed out")
	assert.Less(t, time.Since(start), 3*time.Second,
		"every stage must be terminated and reaped on timeout")
}

func TestPipeline_DanglingPipeGoesToShell(t *testing.T) {
	e, _ := newTestExecutor(t)

	// "ls |" is a shell syntax error, not an engine fault.
	result, err := e.Execute(context.Background(), "ls |")
	require.NoError(t, err)
	assert.NotEqual(t, 0, result.ExitCode)
}
