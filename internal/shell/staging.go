package shell

import (
	"os"
	"path/filepath"
	"strings"
)

// autoRunPrefixes are command heads safe enough to run without
// confirmation. Matched against the start of the lowercased command.
var autoRunPrefixes = []string{
	"ls", "pwd", "cd", "whoami", "date", "cat", "echo",
	"git status", "git diff", "head", "tail", "dir",
}

// riskyKeywords veto auto-run anywhere they appear as a word, even when
// the command also starts with a safe prefix.
var riskyKeywords = []string{
	"rm", "mv", "chmod", "chown", "docker", "kubectl",
	"git push", "git commit", "pip install", "npm install",
	"apt", "brew", "systemctl", "shutdown", "reboot",
}

// runShortcuts are natural-language phrases that mean "run the staged
// commands" and skip the translation round-trip entirely.
var runShortcuts = map[string]bool{
	"run it":          true,
	"run that":        true,
	"execute it":      true,
	"do it":           true,
	"go ahead":        true,
	"please run it":   true,
	"run the command": true,
	"run those":       true,
}

// isRunShortcut reports whether text is a staged-queue confirmation
// phrase. Trailing punctuation is ignored.
func isRunShortcut(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.TrimRight(normalized, ".!?")
	return runShortcuts[strings.TrimSpace(normalized)]
}

// ShouldAutoRun decides whether a translated command is safe to execute
// without confirmation. Risky keywords always veto; safe prefixes allow;
// running an existing Python script is allowed as a special case;
// everything else waits for the user.
func ShouldAutoRun(command, workingDir string) bool {
	lower := strings.ToLower(strings.TrimSpace(command))
	if lower == "" {
		return false
	}

	padded := " " + lower + " "
	for _, kw := range riskyKeywords {
		if strings.Contains(padded, " "+kw+" ") {
			return false
		}
	}

	for _, prefix := range autoRunPrefixes {
		if lower == prefix || strings.HasPrefix(lower, prefix+" ") {
			return true
		}
	}

	return isScriptRun(command, workingDir)
}

// isScriptRun matches "python <script>.py" (or python3) where the script
// exists under the working directory.
func isScriptRun(command, workingDir string) bool {
	fields := strings.Fields(command)
	if len(fields) != 2 {
		return false
	}
	if fields[0] != "python" && fields[0] != "python3" {
		return false
	}
	if !strings.HasSuffix(fields[1], ".py") {
		return false
	}

	script := fields[1]
	if !filepath.IsAbs(script) {
		script = filepath.Join(workingDir, script)
	}
	info, err := os.Stat(script)
	return err == nil && info.Mode().IsRegular()
}

// stagedQueue holds translated commands waiting to run, in gateway order.
type stagedQueue struct {
	commands []string
}

func (q *stagedQueue) push(cmds ...string) {
	q.commands = append(q.commands, cmds...)
}

func (q *stagedQueue) peek() (string, bool) {
	if len(q.commands) == 0 {
		return "", false
	}
	return q.commands[0], true
}

func (q *stagedQueue) pop() (string, bool) {
	if len(q.commands) == 0 {
		return "", false
	}
	head := q.commands[0]
	q.commands = q.commands[1:]
	return head, true
}

func (q *stagedQueue) clear() {
	q.commands = nil
}

func (q *stagedQueue) size() int {
	return len(q.commands)
}
