// Package shell runs the interactive resolution loop: read a line,
// assemble context, classify, then execute directly or route through the
// translation gateway. The loop is single-threaded and cooperative; one
// input is fully resolved before the next is accepted. Translated commands
// pass through a staging queue so anything that is not obviously safe
// waits for the user before it runs.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"os/user"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"

	"ghostshell/internal/config"
	"ghostshell/internal/executor"
	"ghostshell/internal/inputbuf"
	"ghostshell/internal/parser"
	"ghostshell/internal/state"
	"ghostshell/internal/translate"
)

// Options configure a Loop. Zero values fall back to the process stdin,
// stdout, and user.
type Options struct {
	Username string
	Version  string
	Input    io.Reader
	Output   io.Writer

	// Config returns the latest configuration snapshot. Called once per
	// iteration so hot-reloaded values apply to the next command.
	Config func() *config.Config
}

// Loop is the interactive session driver.
type Loop struct {
	state   *state.State
	buffer  *inputbuf.Buffer
	exec    *executor.Executor
	gateway translate.Gateway
	logger  *zap.Logger
	opts    Options

	out   io.Writer
	queue stagedQueue

	mu       sync.Mutex
	inflight context.CancelFunc
}

// New wires a Loop over already-constructed collaborators.
func New(st *state.State, buf *inputbuf.Buffer, exec *executor.Executor,
	gateway translate.Gateway, logger *zap.Logger, opts Options) *Loop {

	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Username == "" {
		opts.Username = defaultUsername()
	}
	if opts.Config == nil {
		snapshot := config.DefaultConfig()
		opts.Config = func() *config.Config { return snapshot }
	}

	return &Loop{
		state:   st,
		buffer:  buf,
		exec:    exec,
		gateway: gateway,
		logger:  logger,
		opts:    opts,
		out:     opts.Output,
	}
}

// Run drives the session until exit or end of input and returns the exit
// status requested by the user.
func (l *Loop) Run(ctx context.Context) (int, error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-sigCh:
				// During execution the interrupt cancels the in-flight
				// context; at the prompt it is just a hint.
				if !l.interrupt() {
					fmt.Fprintln(l.out, "\nUse 'exit' to quit")
				}
			}
		}
	}()

	cfg := l.opts.Config()
	fmt.Fprint(l.out, banner(l.opts.Version, cfg.Translator.Provider, cfg.Translator.Model))

	l.logger.Info("session started",
		zap.String("session_id", l.state.SessionID()),
		zap.String("mode", string(l.state.Mode())))

	scanner := bufio.NewScanner(l.opts.Input)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	for {
		cfg = l.opts.Config()
		l.exec.SetTimeout(cfg.CommandTimeout())

		fmt.Fprint(l.out, promptStyle.Render(
			l.state.Prompt(l.opts.Username, cfg.Translator.Provider, cfg.Translator.Model)))

		if !scanner.Scan() {
			fmt.Fprintln(l.out, "\nGoodbye!")
			return 0, scanner.Err()
		}

		code, quit := l.handle(ctx, scanner.Text(), cfg)
		if quit {
			fmt.Fprintln(l.out, "Goodbye!")
			return code, nil
		}
	}
}

// handle resolves one raw input line. The returned flag is true when the
// session should end, with the requested exit status.
func (l *Loop) handle(ctx context.Context, raw string, cfg *config.Config) (int, bool) {
	bundle := l.buffer.Assemble(raw)

	cls := parser.Classify(bundle.Command)
	// "exit" is a session built-in, not a recognized command token, so the
	// loop routes it to the executor itself. It must work from any mode.
	if cls == parser.NaturalLanguage {
		if fields := strings.Fields(bundle.Command); len(fields) > 0 && fields[0] == "exit" {
			cls = parser.ShellCommand
		}
	}

	switch cls {
	case parser.Empty:
		// An empty line confirms the staged command, if any.
		if command, ok := l.queue.pop(); ok {
			if code, quit := l.runStaged(ctx, command); quit {
				return code, true
			}
			return l.drainAutoRuns(ctx)
		}
		return 0, false

	case parser.Comment:
		l.state.AppendHistory(raw)
		return 0, false

	case parser.AIRequest:
		request := parser.ExtractAIRequest(bundle.Command)
		l.queue.clear()
		fmt.Fprintln(l.out, noticeStyle.Render(
			"Assistant mode is not available yet. Request noted: "+request))
		l.state.AppendHistory(raw)
		return 0, false

	case parser.ShellCommand:
		if head, ok := l.queue.peek(); ok && head == bundle.Command {
			l.queue.pop()
		} else {
			l.queue.clear()
		}
		code, quit := l.execute(ctx, bundle.Command)
		l.state.AppendHistory(raw)
		if quit {
			return code, true
		}
		return l.drainAutoRuns(ctx)

	default: // natural language
		code, quit := l.handleNatural(ctx, raw, bundle, cfg)
		l.state.AppendHistory(raw)
		return code, quit
	}
}

// handleNatural routes natural-language input by mode: literal in shell
// mode, stub notice in assistant mode, translation otherwise.
func (l *Loop) handleNatural(ctx context.Context, raw string,
	bundle *inputbuf.Bundle, cfg *config.Config) (int, bool) {

	switch l.state.Mode() {
	case state.ModeShell:
		l.queue.clear()
		return l.execute(ctx, bundle.Command)

	case state.ModeAI:
		l.queue.clear()
		fmt.Fprintln(l.out, noticeStyle.Render(
			"Assistant mode is not available yet. Request noted: "+bundle.Command))
		return 0, false
	}

	if isRunShortcut(bundle.Command) {
		return l.drainAll(ctx)
	}

	l.queue.clear()
	if err := l.translate(ctx, bundle, cfg); err != nil {
		fmt.Fprintln(l.out, errorStyle.Render("translation failed: "+err.Error()))
		l.logger.Warn("translation failed", zap.String("request", bundle.Command), zap.Error(err))
		return 0, false
	}
	return l.drainAutoRuns(ctx)
}

// translate sends the request through the gateway and stages the
// executable lines it returns.
func (l *Loop) translate(ctx context.Context, bundle *inputbuf.Bundle, cfg *config.Config) error {
	callCtx, cancel := context.WithTimeout(ctx, cfg.TranslatorTimeout())
	l.setInflight(cancel)
	output, err := l.gateway.Translate(callCtx, bundle.Command, l.translationContext(bundle))
	l.setInflight(nil)
	cancel()
	if err != nil {
		return err
	}

	for _, comment := range translate.CommentLines(output) {
		fmt.Fprintln(l.out, commentStyle.Render(comment))
	}

	lines := translate.ExecutableLines(output)
	if len(lines) == 0 {
		fmt.Fprintln(l.out, commentStyle.Render("# nothing to run"))
		return nil
	}
	l.queue.push(lines...)
	return nil
}

// drainAutoRuns executes staged commands from the head of the queue while
// they pass the auto-run heuristic, then echoes the first one that needs
// confirmation.
func (l *Loop) drainAutoRuns(ctx context.Context) (int, bool) {
	for {
		head, ok := l.queue.peek()
		if !ok {
			return 0, false
		}
		if !ShouldAutoRun(head, l.state.WorkingDirectory()) {
			hint := "press Enter to run"
			if l.queue.size() > 1 {
				hint = fmt.Sprintf("press Enter to run, %d more queued", l.queue.size()-1)
			}
			fmt.Fprintln(l.out, stagedStyle.Render("Prepared: "+head+"  ("+hint+")"))
			return 0, false
		}
		l.queue.pop()
		if code, quit := l.runStaged(ctx, head); quit {
			return code, true
		}
	}
}

// drainAll runs every staged command unconditionally, in order. Used by
// the run shortcuts, which are an explicit confirmation.
func (l *Loop) drainAll(ctx context.Context) (int, bool) {
	if l.queue.size() == 0 {
		fmt.Fprintln(l.out, commentStyle.Render("# nothing staged to run"))
		return 0, false
	}
	for {
		command, ok := l.queue.pop()
		if !ok {
			return 0, false
		}
		if code, quit := l.runStaged(ctx, command); quit {
			return code, true
		}
	}
}

func (l *Loop) runStaged(ctx context.Context, command string) (int, bool) {
	fmt.Fprintln(l.out, stagedStyle.Render("Running: "+command))
	return l.execute(ctx, command)
}

// execute runs one command, prints its output, and traps the exit
// built-in. The in-flight cancel hook is exposed for the interrupt
// handler while the command runs.
func (l *Loop) execute(ctx context.Context, command string) (int, bool) {
	execCtx, cancel := context.WithCancel(ctx)
	l.setInflight(cancel)
	result, err := l.exec.Execute(execCtx, command)
	l.setInflight(nil)
	cancel()

	if err != nil {
		var req *executor.ExitRequest
		if errors.As(err, &req) {
			return req.Code, true
		}
		fmt.Fprintln(l.out, errorStyle.Render(err.Error()))
		return 0, false
	}

	if result.Stdout != "" {
		fmt.Fprint(l.out, result.Stdout)
		if !strings.HasSuffix(result.Stdout, "\n") {
			fmt.Fprintln(l.out)
		}
	}
	if result.Stderr != "" {
		fmt.Fprintln(l.out, errorStyle.Render(strings.TrimRight(result.Stderr, "\n")))
	}
	return 0, false
}

// translationContext snapshots the session facts that ride along with a
// translation request.
func (l *Loop) translationContext(bundle *inputbuf.Bundle) translate.Context {
	last := l.state.LastResult()
	return translate.Context{
		WorkingDirectory: l.state.WorkingDirectory(),
		RecentCommands:   l.state.RecentHistory(3),
		FileBlocks:       bundle.ContextStrings(),
		LastCommand:      last.Command,
		LastStdout:       last.Stdout,
		LastStderr:       last.Stderr,
		LastExitCode:     last.ExitCode,
		Platform:         runtime.GOOS,
		Shell:            shellName(),
	}
}

func (l *Loop) setInflight(cancel context.CancelFunc) {
	l.mu.Lock()
	l.inflight = cancel
	l.mu.Unlock()
}

// interrupt cancels the in-flight execution, if any, and reports whether
// there was one.
func (l *Loop) interrupt() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inflight == nil {
		return false
	}
	l.inflight()
	return true
}

func shellName() string {
	if runtime.GOOS == "windows" {
		if comspec := os.Getenv("ComSpec"); comspec != "" {
			return comspec
		}
		return "cmd"
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

func defaultUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "user"
}
