package trigger

import "github.com/dshills/autofmt/internal/doc"

// DefaultBracketPairs is the allowlist of two-character auto-completion
// sequences that still count as a single keystroke for on-type formatting.
var DefaultBracketPairs = []string{"{}", "[]", "()", `""`, "''", "``"}

// ShouldTrigger decides whether a buffer change warrants on-type formatting
// and, if so, which character is the formatting trigger.
//
// Deletions and replacements (non-empty old text) never trigger. Degenerate
// edits with no inserted text never trigger. Multi-character insertions
// trigger only when they are a recognized bracket-pair completion, in which
// case the closing character is the trigger; the closing bracket is the
// meaningful position, not the opening one.
func ShouldTrigger(edit doc.ChangeEvent, bracketPairs []string) (rune, bool) {
	if edit.OldText != "" {
		return 0, false
	}
	if edit.NewText == "" {
		return 0, false
	}

	runes := []rune(edit.NewText)
	if len(runes) > 1 && !isBracketPair(edit.NewText, bracketPairs) {
		return 0, false
	}
	return runes[len(runes)-1], true
}

func isBracketPair(text string, pairs []string) bool {
	for _, pair := range pairs {
		if text == pair {
			return true
		}
	}
	return false
}
