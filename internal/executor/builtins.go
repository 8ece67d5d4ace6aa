package executor

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// builtinCd changes the working directory. No argument means home.
func (e *Executor) builtinCd(args []string) (*Result, error) {
	target := "~"
	if len(args) > 0 {
		target = args[0]
	}

	if err := e.state.SetWorkingDirectory(target); err != nil {
		return &Result{
			ExitCode: 1,
			Stderr:   fmt.Sprintf("cd: %s: No such directory\n", target),
		}, nil
	}
	return &Result{}, nil
}

// builtinPwd prints the working directory. Read-only.
func (e *Executor) builtinPwd(_ []string) (*Result, error) {
	return &Result{Stdout: e.state.WorkingDirectory() + "\n"}, nil
}

// builtinExport sets NAME=VALUE pairs, or with no arguments lists the full
// environment one pair per line in lexicographic order. Arguments without
// an '=' are ignored.
func (e *Executor) builtinExport(args []string) (*Result, error) {
	if len(args) == 0 {
		env := e.state.Environ()
		sort.Strings(env)
		return &Result{Stdout: strings.Join(env, "\n") + "\n"}, nil
	}

	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			continue
		}
		if err := e.state.SetEnvVar(name, value); err != nil {
			return &Result{
				ExitCode: 1,
				Stderr:   fmt.Sprintf("export: %v\n", err),
			}, nil
		}
	}
	return &Result{}, nil
}

// builtinMode reports or switches the routing mode.
func (e *Executor) builtinMode(args []string) (*Result, error) {
	if len(args) == 0 {
		return &Result{
			Stdout: fmt.Sprintf("Current mode: %s\nAvailable: shell, nl, ai\n", e.state.Mode()),
		}, nil
	}

	if err := e.state.SetMode(args[0]); err != nil {
		return &Result{
			ExitCode: 1,
			Stderr:   fmt.Sprintf("Invalid mode: %s. Use: shell, nl, or ai\n", strings.ToLower(args[0])),
		}, nil
	}
	return &Result{
		Stdout: fmt.Sprintf("Switched to %s mode\n", e.state.Mode()),
	}, nil
}

// builtinExit requests session termination. An optional numeric argument
// sets the process exit status; non-numeric arguments mean 0.
func (e *Executor) builtinExit(args []string) (*Result, error) {
	code := 0
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			code = n
		}
	}
	return nil, &ExitRequest{Code: code}
}
