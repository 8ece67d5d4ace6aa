// Package translate turns natural-language requests into shell command
// text through an external gateway. The gateway is an opaque text-to-text
// service; this package owns the prompt contract, the session context that
// rides along with each request, and the cleanup of whatever the gateway
// returns (code fences, comments, interpreter lines).
package translate

import (
	"context"
	"strconv"
	"strings"
)

// Gateway is the external translation collaborator.
type Gateway interface {
	// Translate converts a natural-language request into shell command
	// text, possibly interleaved with '#' comment lines.
	Translate(ctx context.Context, request string, tctx Context) (string, error)
}

// Context carries the session facts the translator may use.
type Context struct {
	WorkingDirectory string
	RecentCommands   []string
	FileBlocks       []string

	LastCommand  string
	LastStdout   string
	LastStderr   string
	LastExitCode int

	Platform string // runtime.GOOS
	Shell    string // $SHELL or %ComSpec%
}

// systemPrompt pins the gateway to command-only output.
const systemPrompt = "You are a shell command translator. Output only shell commands and comments."

// translationPrompt is the instruction block sent ahead of every request.
const translationPrompt = `You are a shell command translator. Convert natural language requests into shell commands.

Rules:
1. Output ONLY shell commands and comments (valid shell syntax)
2. Use comments (starting with #) to explain what you're doing
3. Generate actual executable commands that will run deterministically
4. Use the user's operating system conventions (PowerShell/Windows syntax when on Windows, POSIX shell otherwise)
5. Be concise - prefer single commands over complex scripts
6. If the request is ambiguous, make reasonable assumptions and note them in comments
7. For destructive operations, add a comment warning and, when appropriate, suggest user confirmation
8. If prior command output indicates an error, address it or adjust the strategy before suggesting new commands
9. NEVER output shell interpreter commands (cmd, bash, sh, powershell) - just output the actual commands to run

Examples:

Input: "show me all python files"
Output:
# Listing all Python files in current directory
ls *.py

Input: "what's the git status"
Output:
# Checking git repository status
git status

Input: "find large files over 100MB"
Output:
# Finding files larger than 100MB in current directory
find . -type f -size +100M

Input: "commit these changes with message fix bug"
Output:
# Staging all changes and committing
git add -A
git commit -m "fix bug"

Now translate this request:`

// BuildPrompt assembles the full user prompt: the instruction block, the
// session context, and the request itself.
func BuildPrompt(request string, tctx Context) string {
	var b strings.Builder
	b.WriteString(translationPrompt)

	if tctx.WorkingDirectory != "" {
		b.WriteString("\n\nCurrent directory: " + tctx.WorkingDirectory)
	}

	if len(tctx.RecentCommands) > 0 {
		recent := tctx.RecentCommands
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		b.WriteString("\n\nRecent commands:\n" + strings.Join(recent, "\n"))
	}

	if tctx.Platform != "" || tctx.Shell != "" {
		b.WriteString("\n\nEnvironment:\n")
		b.WriteString("- Platform: " + orUnknown(tctx.Platform) + "\n")
		b.WriteString("- Shell: " + orUnknown(tctx.Shell) + "\n")
	}

	if tctx.LastCommand != "" {
		b.WriteString("\n\nPrevious command: " + tctx.LastCommand)
		b.WriteString("\nExit code: ")
		b.WriteString(strconv.Itoa(tctx.LastExitCode))
		if tctx.LastStdout != "" {
			b.WriteString("\nStdout:\n" + tail(tctx.LastStdout, 2000))
		}
		if tctx.LastStderr != "" {
			b.WriteString("\nStderr:\n" + tail(tctx.LastStderr, 2000))
		}
	}

	if len(tctx.FileBlocks) > 0 {
		b.WriteString("\n\nFile contents referenced:\n")
		for _, block := range tctx.FileBlocks {
			b.WriteString("\n" + block + "\n")
		}
	}

	b.WriteString("\n\nUser request: " + request)
	return b.String()
}

// CleanOutput strips markdown code-fence wrapping from gateway output,
// preferring a bash/sh fence when more than one is present.
func CleanOutput(text string) string {
	if !strings.Contains(text, "```") {
		return strings.TrimSpace(text)
	}

	parts := strings.Split(text, "```")
	// Fenced segments sit at odd indices.
	for i := 1; i < len(parts); i += 2 {
		if tag, rest := splitFence(parts[i]); tag == "bash" || tag == "sh" {
			return strings.TrimSpace(rest)
		}
	}
	if len(parts) > 1 {
		_, rest := splitFence(parts[1])
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(text)
}

// splitFence separates a fenced segment into its language tag (the fence
// line, if it is a single word) and the body.
func splitFence(body string) (tag, rest string) {
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		return "", body
	}
	line := strings.TrimSpace(body[:nl])
	if line == "" || strings.ContainsAny(line, " \t") {
		return "", body
	}
	return line, body[nl+1:]
}

// ExecutableLines returns the non-empty, non-comment lines of translated
// output, trimmed, in the order returned by the gateway.
func ExecutableLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines = append(lines, trimmed)
	}
	return lines
}

// CommentLines returns the '#' comment lines of translated output for
// display, in order.
func CommentLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
