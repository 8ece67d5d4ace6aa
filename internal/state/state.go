// Package state holds the mutable record of an interactive session: the
// working directory, environment, active mode, history, and the outcome of
// the last executed command. Every mutation goes through a named operation
// so each mutation site is auditable, and directory/environment changes are
// mirrored into the real process so spawned children inherit them.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Mode selects the default routing for ambiguous input.
type Mode string

const (
	ModeShell Mode = "shell" // literal shell commands
	ModeNL    Mode = "nl"    // natural-language translation (default)
	ModeAI    Mode = "ai"    // assistant mode
)

// ValidModes lists the recognized mode names in display order.
var ValidModes = []Mode{ModeShell, ModeNL, ModeAI}

// ErrDirectoryNotFound is returned by SetWorkingDirectory when the target
// is not an existing directory.
var ErrDirectoryNotFound = errors.New("no such directory")

// ErrInvalidMode is returned by SetMode for unrecognized mode names.
var ErrInvalidMode = errors.New("invalid mode")

// Result captures the outcome of one executed command. It is immutable:
// the executor builds it once and the state records a copy.
type Result struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

// State is the per-session state container. It is owned by the resolution
// loop and must only be mutated from that single goroutine.
type State struct {
	sessionID string

	cwd     string
	env     map[string]string
	mode    Mode
	history []string
	aliases map[string]string

	lastExitCode int
	lastResult   Result
}

// New creates session state seeded from the current process: working
// directory from os.Getwd, environment from os.Environ.
func New() (*State, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}

	return &State{
		sessionID: uuid.NewString(),
		cwd:       cwd,
		env:       env,
		mode:      ModeNL,
		aliases:   make(map[string]string),
	}, nil
}

// SessionID returns the unique ID assigned at session start.
func (s *State) SessionID() string { return s.sessionID }

// WorkingDirectory returns the current logical working directory.
func (s *State) WorkingDirectory() string { return s.cwd }

// SetWorkingDirectory resolves path against the current working directory
// when relative, expands a leading ~, normalizes it, and updates both the
// logical state and the real process working directory. The target must be
// an existing directory.
func (s *State) SetWorkingDirectory(path string) error {
	target := expandHome(path)
	if !filepath.IsAbs(target) {
		target = filepath.Join(s.cwd, target)
	}
	target = filepath.Clean(target)

	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%s: %w", target, ErrDirectoryNotFound)
	}

	if err := os.Chdir(target); err != nil {
		return fmt.Errorf("%s: %w", target, ErrDirectoryNotFound)
	}
	s.cwd = target
	return nil
}

// EnvVar returns the value of name and whether it is set.
func (s *State) EnvVar(name string) (string, bool) {
	v, ok := s.env[name]
	return v, ok
}

// SetEnvVar updates the logical environment and the real process
// environment in the same operation. Names containing '=' are rejected.
func (s *State) SetEnvVar(name, value string) error {
	if name == "" || strings.Contains(name, "=") {
		return fmt.Errorf("invalid environment variable name: %q", name)
	}
	if err := os.Setenv(name, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", name, err)
	}
	s.env[name] = value
	return nil
}

// Environ returns a sorted NAME=VALUE snapshot for spawned children.
// Mutations after the call do not affect the returned slice.
func (s *State) Environ() []string {
	out := make([]string, 0, len(s.env))
	for k, v := range s.env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// Mode returns the active mode.
func (s *State) Mode() Mode { return s.mode }

// SetMode switches the active mode. Names are case-insensitive on input
// and stored normalized to lowercase.
func (s *State) SetMode(name string) error {
	m := Mode(strings.ToLower(strings.TrimSpace(name)))
	for _, valid := range ValidModes {
		if m == valid {
			s.mode = m
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidMode, name)
}

// AppendHistory records one accepted raw input. Appended after execution
// completes so a crashing command is still recorded.
func (s *State) AppendHistory(raw string) {
	s.history = append(s.history, raw)
}

// History returns the full history in order.
func (s *State) History() []string {
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

// RecentHistory returns the last n history entries, oldest first.
func (s *State) RecentHistory(n int) []string {
	if n <= 0 || len(s.history) == 0 {
		return nil
	}
	if n > len(s.history) {
		n = len(s.history)
	}
	out := make([]string, n)
	copy(out, s.history[len(s.history)-n:])
	return out
}

// Alias returns the expansion for name, if defined.
func (s *State) Alias(name string) (string, bool) {
	v, ok := s.aliases[name]
	return v, ok
}

// SetAlias defines or replaces an alias.
func (s *State) SetAlias(name, expansion string) {
	s.aliases[name] = expansion
}

// LastExitCode returns the exit code of the most recent execution.
func (s *State) LastExitCode() int { return s.lastExitCode }

// SetLastExitCode overwrites the last exit code. Called after every
// executed command, never by context-assembly failures.
func (s *State) SetLastExitCode(code int) {
	s.lastExitCode = code
}

// RecordResult persists the last command, output, and exit code so the
// translator can feed recent outcomes back into its context.
func (s *State) RecordResult(r Result) {
	s.lastResult = r
	s.lastExitCode = r.ExitCode
}

// LastResult returns the most recently recorded command result.
func (s *State) LastResult() Result { return s.lastResult }

// Prompt renders the shell prompt for the current state, shortening the
// home directory to ~ and picking the mode indicator.
func (s *State) Prompt(username, provider, model string) string {
	display := s.cwd
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		if display == home {
			display = "~"
		} else if strings.HasPrefix(display, home+string(os.PathSeparator)) {
			display = "~" + display[len(home):]
		}
	}

	indicator := "$"
	if s.mode == ModeAI {
		indicator = "ai>"
	}
	return fmt.Sprintf("%s@%s/%s %s %s ", username, provider, model, display, indicator)
}

func expandHome(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	}
	if strings.HasPrefix(path, "~"+string(os.PathSeparator)) || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
