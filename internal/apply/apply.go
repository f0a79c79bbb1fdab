// Package apply commits a formatter's proposed edits to a live document.
//
// Apply enforces the staleness invariant: the document's current text must
// still equal the snapshot captured when the formatting operation started.
// Any mismatch fails the operation with StaleContentError; a stale result is
// never merged, partially or otherwise.
//
// Two edit modes are supported, mirroring what formatting backends produce:
// targeted text edits, applied in reverse document order so earlier edits
// cannot shift later ranges, and whole-document replacement with optional
// cursor repositioning.
package apply

import (
	"sort"

	"github.com/dshills/autofmt/internal/doc"
)

// Options controls how an EditSet is committed.
type Options struct {
	// SeparateUndo applies the edits inside their own undo transaction so
	// the user can undo the formatting without losing the edit that
	// triggered it.
	SeparateUndo bool
}

// Apply commits set to d after verifying d's text still matches snapshot.
// An empty set is a no-op. Host rejections are wrapped in ApplyFailedError.
func Apply(d doc.Document, snapshot string, set *doc.EditSet, opts Options) error {
	if set.IsEmpty() {
		return nil
	}

	if d.Text() != snapshot {
		return &StaleContentError{DocumentID: d.ID()}
	}

	commit := func() error {
		if set.FullText != nil {
			if err := d.SetText(*set.FullText); err != nil {
				return err
			}
			if set.Cursor != nil {
				d.SetCursor(*set.Cursor)
			}
			return nil
		}
		return applyEdits(d, set.Edits)
	}

	var err error
	if opts.SeparateUndo {
		err = d.Transact(commit)
	} else {
		err = commit()
	}
	if err != nil {
		return &ApplyFailedError{Err: err}
	}
	return nil
}

// applyEdits commits targeted edits in reverse document order.
func applyEdits(d doc.Document, edits []doc.TextEdit) error {
	ordered := make([]doc.TextEdit, len(edits))
	copy(ordered, edits)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[j].Range.Start.Before(ordered[i].Range.Start)
	})

	// In reverse order each edit must end at or before the previous edit's
	// start, otherwise the set is ambiguous.
	for i := 0; i < len(ordered)-1; i++ {
		if ordered[i+1].Range.End.After(ordered[i].Range.Start) {
			return ErrEditsOverlap
		}
	}

	for _, edit := range ordered {
		if err := d.Replace(edit.Range, edit.NewText); err != nil {
			return err
		}
	}
	return nil
}
