package doc

// Document is an open, live, mutable text buffer owned by the host editor.
//
// The engine treats a Document as a transient collaborator: it reads a text
// snapshot when a formatting operation starts, and mutates the buffer only
// through Replace/SetText after verifying the snapshot still matches. The
// host signals destruction through OnDestroy; after destruction every
// mutating method fails and the engine must abandon pending work.
type Document interface {
	// ID returns a stable identity for the underlying buffer handle. Two
	// Document values with the same ID refer to the same buffer.
	ID() string

	// Path returns the file path backing the document, or "" if unsaved.
	Path() string

	// ContentType returns the document's grammar/language identifier,
	// e.g. "source.go" or "text.plain".
	ContentType() string

	// Text returns the current full text snapshot.
	Text() string

	// LineCount returns the number of lines in the buffer.
	LineCount() int

	// Cursor returns the current cursor position.
	Cursor() Position

	// SetCursor moves the cursor, clamping to the buffer bounds.
	SetCursor(p Position)

	// Selection returns the current selection range, empty if none.
	Selection() Range

	// Replace substitutes the text within r with text.
	Replace(r Range, text string) error

	// SetText replaces the entire buffer content.
	SetText(text string) error

	// Transact runs fn so that every edit made inside it forms a single
	// undo step, separate from any preceding edits. If fn returns an
	// error the transaction is discarded.
	Transact(fn func() error) error

	// OnChange registers fn to be invoked for every buffer mutation.
	// The returned function removes the registration.
	OnChange(fn func(ChangeEvent)) (cancel func())

	// OnDestroy registers fn to be invoked when the buffer is destroyed.
	// The returned function removes the registration.
	OnDestroy(fn func()) (cancel func())

	// InterceptSave replaces the document's save action with fn: a user
	// save request invokes fn instead of persisting. The returned restore
	// function reinstates the default behavior and must be called exactly
	// once, including on abnormal teardown. InterceptSave fails if another
	// interception is already installed.
	InterceptSave(fn func()) (restore func(), err error)

	// Persist runs the underlying persistence action directly, bypassing
	// any installed interception.
	Persist() error

	// Destroyed reports whether the buffer has been destroyed.
	Destroyed() bool
}

// Editor is the host editor boundary: it enumerates open documents and
// announces newly opened ones.
type Editor interface {
	// Documents returns the currently open documents.
	Documents() []Document

	// OnDocumentOpen registers fn to be invoked for every document opened
	// after the registration. The returned function removes the
	// registration.
	OnDocumentOpen(fn func(Document)) (cancel func())
}
