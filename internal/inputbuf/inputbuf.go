// Package inputbuf assembles execution context out of raw input text. It
// solves the "paste problem" for an AI shell: @file references, the
// {clipboard} marker, and piped standard input are each extracted into
// tagged context blocks, and the markers are stripped from the command
// text handed to the classifier.
//
// All scans run against the original text independently; a single final
// cleanup pass removes every recognized marker, so overlapping markers are
// never double-processed.
package inputbuf

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"ghostshell/internal/state"
)

// Source tags where a context block came from.
type Source string

const (
	SourceFile      Source = "file"
	SourceClipboard Source = "clipboard"
	SourceStdin     Source = "stdin"
)

// Block is one unit of extracted reference content. A file reference that
// could not be read still produces a block, with Notice set and the notice
// text in Content, so downstream consumers see symmetrical structure.
type Block struct {
	Source  Source
	Ref     string // the marker that produced this block ("" for stdin)
	Content string
	Notice  bool // true when Content is a not-found/unreadable notice
}

// Bundle is the assembler output: the command text with every recognized
// marker removed, the ordered context blocks, and the file paths that were
// actually read.
type Bundle struct {
	Command string
	Blocks  []Block
	Files   []string
}

// ContextStrings renders the blocks in the flat form the translator
// consumes, one string per block.
func (b *Bundle) ContextStrings() []string {
	out := make([]string, 0, len(b.Blocks))
	for _, blk := range b.Blocks {
		out = append(out, blk.Content)
	}
	return out
}

var fileRefPattern = regexp.MustCompile(`@([^\s]+)`)

// clipboardReadAll is a package-level variable to allow mocking in tests.
var clipboardReadAll = clipboard.ReadAll

// Buffer assembles context bundles against a session's state. It holds no
// per-call state beyond the one-time stdin capture, so assembling the same
// text twice yields an identical bundle.
type Buffer struct {
	state  *state.State
	logger *zap.Logger

	stdin       io.Reader
	stdinIsPipe bool
	stdinRead   bool
	stdinCache  string
}

// New creates a Buffer reading piped input from the process stdin.
func New(st *state.State, logger *zap.Logger) *Buffer {
	fd := os.Stdin.Fd()
	piped := !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
	return &Buffer{
		state:       st,
		logger:      logger,
		stdin:       os.Stdin,
		stdinIsPipe: piped,
	}
}

// NewWithStdin creates a Buffer with an explicit stdin source, used by
// tests and by callers that already consumed the real stdin.
func NewWithStdin(st *state.State, logger *zap.Logger, stdin io.Reader, piped bool) *Buffer {
	return &Buffer{
		state:       st,
		logger:      logger,
		stdin:       stdin,
		stdinIsPipe: piped,
	}
}

// Assemble extracts every context reference from text and returns the
// cleaned command plus the ordered blocks. Reference failures become
// notice blocks, never errors; clipboard failures contribute nothing.
func (b *Buffer) Assemble(text string) *Bundle {
	bundle := &Bundle{}

	// 1. Piped standard input, read in full exactly once per process.
	if content := b.readStdin(); content != "" {
		bundle.Blocks = append(bundle.Blocks, Block{
			Source:  SourceStdin,
			Content: "# Stdin:\n" + content,
		})
	}

	// 2. File references (@file.py, @**/*.go).
	refs := fileRefPattern.FindAllStringSubmatch(text, -1)
	for _, m := range refs {
		ref := m[1]
		blocks, files := b.resolveFileRef(ref)
		bundle.Blocks = append(bundle.Blocks, blocks...)
		bundle.Files = append(bundle.Files, files...)
	}

	// 3. Clipboard reference ({clipboard}, {clip}). One read per assemble
	// regardless of how many markers appear; best-effort only.
	if strings.Contains(text, "{clipboard}") || strings.Contains(text, "{clip}") {
		content, err := clipboardReadAll()
		if err != nil {
			b.logger.Debug("clipboard unavailable", zap.Error(err))
		} else if content != "" {
			bundle.Blocks = append(bundle.Blocks, Block{
				Source:  SourceClipboard,
				Ref:     "{clipboard}",
				Content: "# Clipboard:\n" + content,
			})
		}
	}

	// 4. Cleanup: remove every recognized marker in one sweep.
	clean := text
	for _, m := range refs {
		clean = strings.ReplaceAll(clean, "@"+m[1], "")
	}
	clean = strings.ReplaceAll(clean, "{clipboard}", "")
	clean = strings.ReplaceAll(clean, "{clip}", "")
	bundle.Command = strings.TrimSpace(clean)

	return bundle
}

// readStdin captures piped input the first time it is called and returns
// the cached content on every later call.
func (b *Buffer) readStdin() string {
	if !b.stdinIsPipe {
		return ""
	}
	if !b.stdinRead {
		b.stdinRead = true
		data, err := io.ReadAll(b.stdin)
		if err != nil {
			b.logger.Debug("failed to read piped stdin", zap.Error(err))
			return ""
		}
		b.stdinCache = toValidText(data)
	}
	return b.stdinCache
}

// resolveFileRef turns one @ref into context blocks. A glob expands to one
// block per match (lexicographic order); zero matches or an unreadable
// path yields a single notice block so no reference is silently dropped.
func (b *Buffer) resolveFileRef(ref string) ([]Block, []string) {
	if strings.ContainsAny(ref, "*?[") {
		matches := b.expandGlob(ref)
		if len(matches) == 0 {
			return []Block{{
				Source:  SourceFile,
				Ref:     ref,
				Content: "# Error: No files match: " + ref + "\n",
				Notice:  true,
			}}, nil
		}

		var blocks []Block
		var files []string
		for _, path := range matches {
			blk, ok := b.readFile(path)
			blocks = append(blocks, blk)
			if ok {
				files = append(files, path)
			}
		}
		return blocks, files
	}

	path := b.absolute(ref)
	blk, ok := b.readFile(path)
	if !ok {
		return []Block{blk}, nil
	}
	return []Block{blk}, []string{path}
}

// expandGlob expands a wildcard reference against the session working
// directory. Patterns containing ** walk the tree; matches come back in
// lexicographic order for determinism.
func (b *Buffer) expandGlob(ref string) []string {
	pattern := b.absolute(ref)

	var matches []string
	if strings.Contains(pattern, "**") {
		matches = walkGlob(pattern)
	} else {
		found, err := filepath.Glob(pattern)
		if err != nil {
			b.logger.Debug("bad glob pattern", zap.String("pattern", ref), zap.Error(err))
			return nil
		}
		matches = found
	}

	// Keep regular files only.
	files := matches[:0]
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

// walkGlob handles ** patterns of the form <root>/**/<suffix> by walking
// the tree under root and matching the suffix pattern against each
// basename.
func walkGlob(pattern string) []string {
	idx := strings.Index(pattern, "**")
	root := filepath.Dir(pattern[:idx+1])
	suffix := strings.TrimPrefix(pattern[idx+2:], string(os.PathSeparator))
	if suffix == "" {
		suffix = "*"
	}

	var matches []string
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(suffix, d.Name()); ok {
			matches = append(matches, path)
		}
		return nil
	})
	return matches
}

// readFile reads one regular file with permissive decoding and returns it
// as a block with a "# File:" header. Failures produce a notice block.
func (b *Buffer) readFile(path string) (Block, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return Block{
			Source:  SourceFile,
			Ref:     path,
			Content: "# Error: File not found: " + path + "\n",
			Notice:  true,
		}, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Block{
			Source:  SourceFile,
			Ref:     path,
			Content: "# Error reading " + path + ": " + err.Error() + "\n",
			Notice:  true,
		}, false
	}

	label := path
	if rel, err := filepath.Rel(b.state.WorkingDirectory(), path); err == nil && !strings.HasPrefix(rel, "..") {
		label = rel
	}

	return Block{
		Source:  SourceFile,
		Ref:     path,
		Content: "# File: " + label + "\n" + toValidText(data) + "\n",
	}, true
}

func (b *Buffer) absolute(ref string) string {
	if filepath.IsAbs(ref) {
		return filepath.Clean(ref)
	}
	return filepath.Join(b.state.WorkingDirectory(), ref)
}

// toValidText replaces invalid byte sequences instead of failing; file and
// stdin context is best-effort text.
func toValidText(data []byte) string {
	return strings.ToValidUTF8(string(data), "�")
}
