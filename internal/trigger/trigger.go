package trigger

import (
	"github.com/dshills/autofmt/internal/doc"
)

// Kind discriminates the trigger variants.
type Kind int

const (
	// KindCommand is an explicit user format action.
	KindCommand Kind = iota

	// KindType is a debounced buffer-change event.
	KindType

	// KindSave is an intercepted save request.
	KindSave
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindType:
		return "type"
	case KindSave:
		return "save"
	default:
		return "unknown"
	}
}

// Trigger is a single formatting trigger. It is created by a Builder and
// consumed exactly once by the arbiter; triggers are never persisted.
type Trigger struct {
	// Kind selects the variant.
	Kind Kind

	// Doc is the document the trigger belongs to. Partitioning downstream
	// keys on Doc.ID(), never on the payload.
	Doc doc.Document

	// Edit is the raw buffer change. Type triggers only.
	Edit doc.ChangeEvent

	// Persist runs the underlying persistence action and reports its
	// outcome. Save triggers only. The pipeline must call it exactly once
	// regardless of the formatting outcome; repeated calls are absorbed
	// and return the first call's result.
	Persist func() error
}

// NewCommand creates a command trigger. Scope (selection or whole document)
// is read from the document at dispatch time.
func NewCommand(d doc.Document) *Trigger {
	return &Trigger{Kind: KindCommand, Doc: d}
}

// NewType creates a type trigger carrying the coalesced change.
func NewType(d doc.Document, edit doc.ChangeEvent) *Trigger {
	return &Trigger{Kind: KindType, Doc: d, Edit: edit}
}

// NewSave creates a save trigger. persist must be safe to call exactly once.
func NewSave(d doc.Document, persist func() error) *Trigger {
	return &Trigger{Kind: KindSave, Doc: d, Persist: persist}
}
