package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Classification
	}{
		{"empty", "", Empty},
		{"whitespace only", "   \t  ", Empty},
		{"comment", "# note", Comment},
		{"comment no space", "#note", Comment},
		{"comment after spaces", "   # indented", Comment},
		{"known command", "ls -la", ShellCommand},
		{"known command alone", "pwd", ShellCommand},
		{"git", "git status", ShellCommand},
		{"pipe operator", "printf 'b\na' | sort", ShellCommand},
		{"redirect", "something > out.txt", ShellCommand},
		{"and chain", "make && make test", ShellCommand},
		{"semicolon", "true; false", ShellCommand},
		{"append redirect", "log >> file.log", ShellCommand},
		{"relative path", "./build.sh", ShellCommand},
		{"absolute path", "/usr/bin/env", ShellCommand},
		{"env assignment", "FOO=bar", ShellCommand},
		{"env assignment with command", "FOO=bar run things", ShellCommand},
		{"natural language", "show me the files", NaturalLanguage},
		{"prose question", "what changed since yesterday", NaturalLanguage},
		{"ai request", "ai: summarize this", AIRequest},
		{"ai request uppercase", "AI: help me out", AIRequest},
		{"ai wins over pipe", "ai: explain foo | bar", AIRequest},
		{"operator wins over prose", "count the lines | wc -l", ShellCommand},
		{"hash mid-line is literal", "echo '#not a comment'", ShellCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.input),
				"Classify(%q)", tt.input)
		})
	}
}

func TestClassify_ReferentiallyTransparent(t *testing.T) {
	inputs := []string{"", "# c", "ls", "hello there", "ai: hi", "a | b"}
	for _, in := range inputs {
		first := Classify(in)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, Classify(in))
		}
	}
}

func TestExtractAIRequest(t *testing.T) {
	assert.Equal(t, "summarize this", ExtractAIRequest("ai: summarize this"))
	assert.Equal(t, "no spaces", ExtractAIRequest("AI:no spaces"))
	assert.Equal(t, "trimmed", ExtractAIRequest("  ai:   trimmed  "))
	assert.Equal(t, "plain text", ExtractAIRequest("plain text"))
}

func TestClassificationString(t *testing.T) {
	assert.Equal(t, "shell", ShellCommand.String())
	assert.Equal(t, "nl", NaturalLanguage.String())
	assert.Equal(t, "ai", AIRequest.String())
	assert.Equal(t, "empty", Empty.String())
	assert.Equal(t, "comment", Comment.String())
}
