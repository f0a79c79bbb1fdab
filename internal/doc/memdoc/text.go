package memdoc

import (
	"errors"
	"strings"

	"github.com/dshills/autofmt/internal/doc"
)

// Errors returned by buffer operations.
var (
	ErrInvalidRange = errors.New("range outside buffer bounds")
	ErrDestroyed    = errors.New("document destroyed")
	ErrIntercepted  = errors.New("save already intercepted")
)

// splitLines breaks normalized text into lines. Every buffer has at least
// one line; an empty buffer is a single empty line.
func splitLines(text string) []string {
	return strings.Split(text, "\n")
}

// normalize converts CRLF and bare CR line endings to LF.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// validRange reports whether r is well formed and within lines.
func validRange(lines []string, r doc.Range) bool {
	if r.End.Before(r.Start) {
		return false
	}
	return validPos(lines, r.Start) && validPos(lines, r.End)
}

func validPos(lines []string, p doc.Position) bool {
	if p.Line < 0 || p.Line >= len(lines) {
		return false
	}
	if p.Col < 0 || p.Col > len([]rune(lines[p.Line])) {
		return false
	}
	return true
}

// clampPos pins p inside the buffer bounds.
func clampPos(lines []string, p doc.Position) doc.Position {
	if p.Line < 0 {
		p.Line = 0
	}
	if p.Line >= len(lines) {
		p.Line = len(lines) - 1
	}
	runes := len([]rune(lines[p.Line]))
	if p.Col < 0 {
		p.Col = 0
	}
	if p.Col > runes {
		p.Col = runes
	}
	return p
}

// textInRange returns the text covered by r. The range must be valid.
func textInRange(lines []string, r doc.Range) string {
	if r.Start.Line == r.End.Line {
		line := []rune(lines[r.Start.Line])
		return string(line[r.Start.Col:r.End.Col])
	}

	var b strings.Builder
	first := []rune(lines[r.Start.Line])
	b.WriteString(string(first[r.Start.Col:]))
	for i := r.Start.Line + 1; i < r.End.Line; i++ {
		b.WriteByte('\n')
		b.WriteString(lines[i])
	}
	last := []rune(lines[r.End.Line])
	b.WriteByte('\n')
	b.WriteString(string(last[:r.End.Col]))
	return b.String()
}

// replaceRange returns a new line slice with the text in r replaced.
// The range must be valid.
func replaceRange(lines []string, r doc.Range, text string) []string {
	startLine := []rune(lines[r.Start.Line])
	endLine := []rune(lines[r.End.Line])

	prefix := string(startLine[:r.Start.Col])
	suffix := string(endLine[r.End.Col:])

	middle := splitLines(prefix + text + suffix)

	result := make([]string, 0, len(lines)-(r.End.Line-r.Start.Line+1)+len(middle))
	result = append(result, lines[:r.Start.Line]...)
	result = append(result, middle...)
	result = append(result, lines[r.End.Line+1:]...)
	return result
}
