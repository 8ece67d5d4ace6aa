// Package parser classifies raw user input into one of five kinds: empty,
// comment, shell command, natural language, or an explicit assistant
// request. Classification is a pure function of the trimmed text so it can
// be tested in isolation; it never consults session state.
package parser

import (
	"runtime"
	"strings"
)

// Classification tags one piece of user input.
type Classification int

const (
	Empty Classification = iota
	Comment
	ShellCommand
	NaturalLanguage
	AIRequest
)

// String returns the tag name for logs and tests.
func (c Classification) String() string {
	switch c {
	case Empty:
		return "empty"
	case Comment:
		return "comment"
	case ShellCommand:
		return "shell"
	case NaturalLanguage:
		return "nl"
	case AIRequest:
		return "ai"
	default:
		return "unknown"
	}
}

// AIPrefix triggers assistant mode when it leads the input
// (case-insensitive).
const AIPrefix = "ai:"

// shellCommands is the fixed recognized-command set. The heuristic is a
// deliberate allowlist with no user extension path.
var shellCommands = map[string]bool{
	"ls": true, "cd": true, "pwd": true, "cat": true, "echo": true,
	"grep": true, "find": true, "git": true,
	"python": true, "node": true, "npm": true, "pip": true,
	"docker": true, "kubectl": true,
	"mkdir": true, "rm": true, "cp": true, "mv": true, "touch": true,
	"chmod": true, "chown": true,
	"ps": true, "kill": true, "top": true, "df": true, "du": true,
	"tar": true, "gzip": true, "curl": true, "wget": true,
	"export": true, "mode": true,
}

func init() {
	if runtime.GOOS == "windows" {
		for _, c := range []string{"dir", "type", "cls", "copy", "del"} {
			shellCommands[c] = true
		}
	}
}

// shellOperators are the metacharacters that force shell classification.
// A metacharacter always wins over "looks like prose".
var shellOperators = []string{"|", ">", "<", "&&", "||", ";", ">>"}

// Classify maps input text to its classification. Rules are checked in
// order, first match wins:
//  1. empty after trimming
//  2. leading '#' (full-line comment only; '#' elsewhere is literal)
//  3. leading "ai:" prefix, case-insensitive (wins over metacharacters)
//  4. shell indicators (known first token, operator, path, or NAME=VALUE)
//  5. natural language
func Classify(text string) Classification {
	stripped := strings.TrimSpace(text)

	if stripped == "" {
		return Empty
	}
	if strings.HasPrefix(stripped, "#") {
		return Comment
	}
	if strings.HasPrefix(strings.ToLower(stripped), AIPrefix) {
		return AIRequest
	}
	if isShellCommand(stripped) {
		return ShellCommand
	}
	return NaturalLanguage
}

func isShellCommand(text string) bool {
	fields := strings.Fields(text)
	firstWord := ""
	if len(fields) > 0 {
		firstWord = fields[0]
	}

	if shellCommands[firstWord] {
		return true
	}

	for _, op := range shellOperators {
		if strings.Contains(text, op) {
			return true
		}
	}

	if strings.HasPrefix(firstWord, "./") || strings.HasPrefix(firstWord, "/") {
		return true
	}

	// NAME=VALUE assignment: '=' in the first token, no embedded whitespace.
	if strings.Contains(firstWord, "=") {
		return true
	}

	return false
}

// ExtractAIRequest strips the "ai:" prefix from an assistant request and
// trims the remainder. Input without the prefix is returned unchanged.
func ExtractAIRequest(text string) string {
	stripped := strings.TrimSpace(text)
	if strings.HasPrefix(strings.ToLower(stripped), AIPrefix) {
		return strings.TrimSpace(stripped[len(AIPrefix):])
	}
	return text
}
