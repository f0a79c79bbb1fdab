package trigger

import (
	"testing"

	"github.com/dshills/autofmt/internal/doc"
)

func TestShouldTrigger(t *testing.T) {
	tests := []struct {
		name     string
		old      string
		new      string
		wantChar rune
		want     bool
	}{
		{"single insert", "", "x", 'x', true},
		{"closing brace", "", "}", '}', true},
		{"deletion", "a", "", 0, false},
		{"replacement", "a", "b", 0, false},
		{"degenerate", "", "", 0, false},
		{"multi-char paste", "", "ab", 0, false},
		{"brace pair completion", "", "{}", '}', true},
		{"paren pair completion", "", "()", ')', true},
		{"quote pair completion", "", `""`, '"', true},
		{"reversed pair is not a completion", "", "}{", 0, false},
		{"long paste with brackets", "", "{a}", 0, false},
		{"multibyte insert", "", "é", 'é', true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edit := doc.ChangeEvent{OldText: tt.old, NewText: tt.new}
			char, ok := ShouldTrigger(edit, DefaultBracketPairs)
			if ok != tt.want {
				t.Fatalf("ShouldTrigger(%q->%q) = %v, want %v", tt.old, tt.new, ok, tt.want)
			}
			if ok && char != tt.wantChar {
				t.Errorf("trigger char = %q, want %q", char, tt.wantChar)
			}
		})
	}
}

func TestShouldTrigger_CustomPairs(t *testing.T) {
	pairs := []string{"<>"}
	if _, ok := ShouldTrigger(doc.ChangeEvent{NewText: "<>"}, pairs); !ok {
		t.Error("ShouldTrigger(<>) = false with custom pair list")
	}
	if _, ok := ShouldTrigger(doc.ChangeEvent{NewText: "{}"}, pairs); ok {
		t.Error("ShouldTrigger({}) = true with custom pair list excluding it")
	}
}
