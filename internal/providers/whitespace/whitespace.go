// Package whitespace is the builtin formatting provider. It trims trailing
// whitespace from every line and normalizes the file to end with exactly one
// newline. It supports whole-document and range operations; it has no
// on-type behavior.
package whitespace

import (
	"context"
	"strings"

	"github.com/dshills/autofmt/internal/doc"
	"github.com/dshills/autofmt/internal/registry"
)

// New builds the provider for the given content types and priority.
func New(selector string, priority int) *registry.Provider {
	return &registry.Provider{
		Name:           "whitespace",
		Selector:       selector,
		Priority:       priority,
		FormatDocument: formatDocument,
		FormatRange:    formatRange,
	}
}

// formatDocument rewrites the whole text: trailing whitespace stripped,
// exactly one final newline.
func formatDocument(_ context.Context, req *registry.DocumentRequest) (*doc.EditSet, error) {
	lines := strings.Split(req.Text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	out := strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n"
	if out == req.Text {
		return &doc.EditSet{}, nil
	}
	return &doc.EditSet{FullText: &out}, nil
}

// formatRange trims trailing whitespace on the lines the range touches,
// emitting one targeted edit per dirty line. Final-newline normalization is
// a whole-document concern and is skipped here.
func formatRange(_ context.Context, req *registry.RangeRequest) (*doc.EditSet, error) {
	lines := strings.Split(req.Text, "\n")

	first := req.Range.Start.Line
	last := req.Range.End.Line
	if req.Range.End.Col == 0 && last > first {
		last--
	}
	if first < 0 {
		first = 0
	}
	if last >= len(lines) {
		last = len(lines) - 1
	}

	set := &doc.EditSet{}
	for i := first; i <= last; i++ {
		trimmed := strings.TrimRight(lines[i], " \t")
		if trimmed == lines[i] {
			continue
		}
		set.Edits = append(set.Edits, doc.TextEdit{
			Range: doc.Range{
				Start: doc.Position{Line: i, Col: len([]rune(trimmed))},
				End:   doc.Position{Line: i, Col: len([]rune(lines[i]))},
			},
		})
	}
	return set, nil
}
