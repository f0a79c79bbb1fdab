package doc

// Position is a zero-based line and column coordinate in a document.
// Column is a rune index within the line.
type Position struct {
	Line int
	Col  int
}

// Before reports whether p is strictly before other in document order.
func (p Position) Before(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Col < other.Col
}

// After reports whether p is strictly after other in document order.
func (p Position) After(other Position) bool {
	return other.Before(p)
}

// Range is a span between two positions. Start is inclusive, End exclusive.
// A range with Start == End is empty.
type Range struct {
	Start Position
	End   Position
}

// IsEmpty reports whether the range covers no text.
func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

// Contains reports whether p falls within the range.
func (r Range) Contains(p Position) bool {
	return !p.Before(r.Start) && p.Before(r.End)
}

// TextEdit is a single proposed replacement: the text within Range is
// replaced by NewText. NewText may be empty (a deletion) and Range may be
// empty (an insertion).
type TextEdit struct {
	Range   Range
	NewText string
}

// EditSet is a formatting backend's proposed result. Exactly one of the two
// modes is populated:
//
//   - Edits: an ordered sequence of targeted text edits
//   - FullText: a whole-document replacement, optionally with a new cursor
//
// An EditSet is consumed exactly once by the applier.
type EditSet struct {
	// Edits holds targeted replacements, in document order.
	Edits []TextEdit

	// FullText, when non-nil, replaces the entire document text.
	FullText *string

	// Cursor, when non-nil alongside FullText, is the cursor position to
	// restore after the replacement.
	Cursor *Position
}

// IsEmpty reports whether applying the set would be a no-op.
func (es *EditSet) IsEmpty() bool {
	if es == nil {
		return true
	}
	return len(es.Edits) == 0 && es.FullText == nil
}

// ChangeEvent describes a single buffer mutation as reported by the host:
// OldText was removed and NewText inserted at Pos.
type ChangeEvent struct {
	OldText string
	NewText string
	Pos     Position
}
