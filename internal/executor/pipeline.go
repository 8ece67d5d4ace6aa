package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SplitPipeline splits a command line on the pipe metacharacter, skipping
// `||` which is a logical OR and belongs to the OS shell. A single-element
// result means the text is not a pipeline.
func SplitPipeline(text string) []string {
	var stages []string
	var current strings.Builder
	runes := []rune(text)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '|' {
			if i+1 < len(runes) && runes[i+1] == '|' {
				current.WriteString("||")
				i++
				continue
			}
			stages = append(stages, strings.TrimSpace(current.String()))
			current.Reset()
			continue
		}
		current.WriteRune(r)
	}
	stages = append(stages, strings.TrimSpace(current.String()))
	return stages
}

// runPipeline executes stages as simultaneously live processes connected
// by kernel pipes, so a slow consumer applies natural backpressure without
// this process buffering the stream. The result reports the last stage's
// exit code and stdout; stderr from every stage is concatenated. One
// timeout bound covers the whole pipeline, and every spawned process is
// reaped on every path.
func (e *Executor) runPipeline(ctx context.Context, command string, stages []string) *Result {
	requestID := uuid.NewString()
	e.logger.Debug("executing pipeline",
		zap.String("request_id", requestID),
		zap.Int("stages", len(stages)),
		zap.String("command", command))

	execCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	cmds := make([]*exec.Cmd, len(stages))
	stderrs := make([]bytes.Buffer, len(stages))
	for i, stage := range stages {
		cmds[i] = e.shellCommand(execCtx, stage)
		cmds[i].Stderr = &limitedWriter{w: &stderrs[i], max: e.opts.MaxOutputBytes}
	}

	// Wire stage i's stdout directly to stage i+1's stdin. The parent
	// keeps its pipe ends only until all stages have started.
	parentEnds := make([]*os.File, 0, 2*(len(stages)-1))
	for i := 0; i < len(cmds)-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			closeAll(parentEnds)
			return &Result{
				Command:  command,
				ExitCode: exitLaunchFail,
				Stderr:   fmt.Sprintf("failed to create pipe: %v\n", err),
			}
		}
		cmds[i].Stdout = w
		cmds[i+1].Stdin = r
		parentEnds = append(parentEnds, r, w)
	}

	var stdout bytes.Buffer
	last := cmds[len(cmds)-1]
	last.Stdout = &limitedWriter{w: &stdout, max: e.opts.MaxOutputBytes}

	// Start every stage before reading any output, so a full pipe buffer
	// cannot block an upstream stage whose consumer is not running yet.
	started := 0
	var startErr error
	for i, cmd := range cmds {
		if err := cmd.Start(); err != nil {
			startErr = fmt.Errorf("pipeline stage %d failed to start: %w", i+1, err)
			break
		}
		started++
	}

	// The children hold their own duplicated pipe ends now; the parent
	// must drop its copies or downstream stages never see EOF.
	closeAll(parentEnds)

	if startErr != nil {
		// Kill and reap whatever did start.
		cancel()
		for i := 0; i < started; i++ {
			_ = cmds[i].Wait()
		}
		e.logger.Error("pipeline launch failed",
			zap.String("request_id", requestID), zap.Error(startErr))
		return &Result{
			Command:  command,
			ExitCode: exitLaunchFail,
			Stderr:   startErr.Error() + "\n",
		}
	}

	// Reap all stages. Each Wait collects the stage's exit status; the
	// group ensures none is left a zombie even when siblings fail.
	waitErrs := make([]error, len(cmds))
	var g errgroup.Group
	start := time.Now()
	for i, cmd := range cmds {
		i, cmd := i, cmd
		g.Go(func() error {
			waitErrs[i] = cmd.Wait()
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	result := &Result{
		Command: command,
		Stdout:  stdout.String(),
	}
	for i := range stderrs {
		result.Stderr += stderrs[i].String()
	}

	lastErr := waitErrs[len(waitErrs)-1]
	switch {
	case execCtx.Err() == context.DeadlineExceeded:
		result.ExitCode = exitTimeout
		result.Stderr = appendLine(result.Stderr,
			fmt.Sprintf("pipeline timed out after %s", e.opts.Timeout))
		e.logger.Warn("pipeline timed out",
			zap.String("request_id", requestID),
			zap.Duration("timeout", e.opts.Timeout))
	case execCtx.Err() == context.Canceled:
		result.ExitCode = exitInterrupted
		result.Stderr = appendLine(result.Stderr, "interrupted")
	case lastErr == nil:
		result.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(lastErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = exitLaunchFail
			result.Stderr = appendLine(result.Stderr,
				fmt.Sprintf("pipeline failed: %v", lastErr))
		}
	}

	e.logger.Debug("pipeline completed",
		zap.String("request_id", requestID),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("elapsed", elapsed))

	return result
}

func closeAll(files []*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
