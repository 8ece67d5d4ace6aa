// Package executor runs commands on behalf of the session: built-ins are
// dispatched in-process against the session state, everything else is
// spawned through the OS shell with a hard timeout, and pipelines are
// wired stage-to-stage through kernel pipes. Every failure mode — timeout,
// launch failure, interrupt — is captured as a Result with a non-zero exit
// code; nothing propagates to the resolution loop as a fault.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ghostshell/internal/state"
)

// Exit code conventions shared with common shells.
const (
	exitTimeout     = 124 // matches timeout(1)
	exitInterrupted = 130 // 128 + SIGINT
	exitLaunchFail  = 127
)

// Result is the immutable outcome of one execution.
type Result struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

// ExitRequest is returned (as an error) by the exit built-in. The
// resolution loop detects it with errors.As and shuts the session down
// with the requested status.
type ExitRequest struct {
	Code int
}

func (e *ExitRequest) Error() string {
	return fmt.Sprintf("exit requested with status %d", e.Code)
}

// Options bound executor behavior.
type Options struct {
	// Timeout is the wall-clock bound for one command or one whole
	// pipeline. Zero means the 300s default.
	Timeout time.Duration

	// MaxOutputBytes caps captured stdout/stderr. Zero means 1 MiB.
	MaxOutputBytes int64
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 300 * time.Second
	}
	if o.MaxOutputBytes <= 0 {
		o.MaxOutputBytes = 1 << 20
	}
	return o
}

type builtinFunc func(args []string) (*Result, error)

// Executor executes built-ins and external commands against one session.
type Executor struct {
	state    *state.State
	logger   *zap.Logger
	opts     Options
	builtins map[string]builtinFunc
}

// interpreters are bare shell invocations that translators sometimes emit;
// executing them would hang on an interactive child, so they are swallowed
// as no-ops.
var interpreters = map[string]bool{
	"cmd": true, "bash": true, "sh": true,
	"powershell": true, "pwsh": true, "zsh": true,
}

// New creates an executor bound to st.
func New(st *state.State, logger *zap.Logger, opts Options) *Executor {
	e := &Executor{
		state:  st,
		logger: logger,
		opts:   opts.withDefaults(),
	}
	e.builtins = map[string]builtinFunc{
		"cd":     e.builtinCd,
		"pwd":    e.builtinPwd,
		"export": e.builtinExport,
		"mode":   e.builtinMode,
		"exit":   e.builtinExit,
	}
	return e
}

// SetTimeout updates the command timeout; the resolution loop applies the
// latest config snapshot before each execution.
func (e *Executor) SetTimeout(d time.Duration) {
	if d > 0 {
		e.opts.Timeout = d
	}
}

// Execute runs one command line. Built-ins mutate state in-process;
// anything else runs through the OS shell. The returned error is non-nil
// only for an ExitRequest — every other failure is encoded in the Result.
func (e *Executor) Execute(ctx context.Context, commandText string) (*Result, error) {
	command := strings.TrimSpace(commandText)

	if command == "" || strings.HasPrefix(command, "#") {
		return &Result{Command: command}, nil
	}

	if interpreters[strings.ToLower(command)] {
		e.logger.Debug("skipping bare shell interpreter invocation",
			zap.String("command", command))
		return e.record(&Result{Command: command}), nil
	}

	tokens := tokenize(command)
	if len(tokens) > 0 {
		if fn, ok := e.builtins[tokens[0]]; ok {
			result, err := fn(tokens[1:])
			if err != nil {
				return nil, err
			}
			result.Command = command
			return e.record(result), nil
		}
	}

	if stages := SplitPipeline(command); len(stages) > 1 && allNonEmpty(stages) {
		return e.record(e.runPipeline(ctx, command, stages)), nil
	}
	return e.record(e.runSingle(ctx, command)), nil
}

// record persists the result on session state and returns it unchanged.
func (e *Executor) record(r *Result) *Result {
	e.state.RecordResult(state.Result{
		Command:  r.Command,
		ExitCode: r.ExitCode,
		Stdout:   r.Stdout,
		Stderr:   r.Stderr,
	})
	return r
}

// runSingle spawns command as one OS-shell invocation so the shell handles
// quoting and single-command metacharacters.
func (e *Executor) runSingle(ctx context.Context, command string) *Result {
	requestID := uuid.NewString()
	e.logger.Debug("executing command",
		zap.String("request_id", requestID),
		zap.String("command", command),
		zap.String("cwd", e.state.WorkingDirectory()),
		zap.Duration("timeout", e.opts.Timeout))

	execCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	cmd := e.shellCommand(execCtx, command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdout, max: e.opts.MaxOutputBytes}
	cmd.Stderr = &limitedWriter{w: &stderr, max: e.opts.MaxOutputBytes}

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	result := &Result{
		Command: command,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}

	switch {
	case err == nil:
		result.ExitCode = 0
	case execCtx.Err() == context.DeadlineExceeded:
		result.ExitCode = exitTimeout
		result.Stderr = appendLine(result.Stderr,
			fmt.Sprintf("command timed out after %s", e.opts.Timeout))
		e.logger.Warn("command timed out",
			zap.String("request_id", requestID),
			zap.String("command", command),
			zap.Duration("timeout", e.opts.Timeout))
	case execCtx.Err() == context.Canceled:
		result.ExitCode = exitInterrupted
		result.Stderr = appendLine(result.Stderr, "interrupted")
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			// The shell itself failed to launch.
			result.ExitCode = exitLaunchFail
			result.Stderr = appendLine(result.Stderr,
				fmt.Sprintf("failed to launch command: %v", err))
			e.logger.Error("process launch failed",
				zap.String("request_id", requestID),
				zap.String("command", command),
				zap.Error(err))
		}
	}

	e.logger.Debug("command completed",
		zap.String("request_id", requestID),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("elapsed", elapsed),
		zap.Int("stdout_bytes", len(result.Stdout)))

	return result
}

// shellCommand builds the platform shell invocation with the session's
// working directory and an environment snapshot taken at invocation time.
func (e *Executor) shellCommand(ctx context.Context, command string) *exec.Cmd {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	cmd.Dir = e.state.WorkingDirectory()
	cmd.Env = e.state.Environ()
	return cmd
}

// allNonEmpty reports whether every pipeline stage has content. A dangling
// pipe is left to the OS shell, which produces the proper syntax error.
func allNonEmpty(stages []string) bool {
	for _, s := range stages {
		if s == "" {
			return false
		}
	}
	return true
}

func appendLine(existing, line string) string {
	if existing != "" && !strings.HasSuffix(existing, "\n") {
		existing += "\n"
	}
	return existing + line + "\n"
}

// limitedWriter caps total bytes written, discarding the rest so a noisy
// child cannot balloon engine memory.
type limitedWriter struct {
	w       io.Writer
	max     int64
	written int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		return n, nil
	}
	if remaining := lw.max - lw.written; int64(n) > remaining {
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}
	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}

// tokenize splits a command line on whitespace, honoring single and double
// quotes just enough for built-in arguments (cd paths with spaces, export
// values). Full shell quoting belongs to the OS shell.
func tokenize(text string) []string {
	var tokens []string
	var current strings.Builder
	inToken := false
	var quote rune

	for _, r := range text {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case r == ' ' || r == '\t':
			if inToken {
				tokens = append(tokens, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(r)
			inToken = true
		}
	}
	if inToken {
		tokens = append(tokens, current.String())
	}
	return tokens
}
