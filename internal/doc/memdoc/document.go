package memdoc

import (
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/autofmt/internal/doc"
)

// Document is an in-memory text buffer implementing doc.Document.
type Document struct {
	mu sync.Mutex

	id          string
	path        string
	contentType string
	lines       []string

	cursor    doc.Position
	selection doc.Range

	// undo holds full-text snapshots, one per undo step.
	undo []string
	// inTransaction suppresses per-edit snapshots inside Transact.
	inTransaction bool

	changeSubs  map[string]func(doc.ChangeEvent)
	destroySubs map[string]func()

	saveHook func()

	destroyed    bool
	persistCount int
}

// Option configures a Document.
type Option func(*Document)

// WithPath sets the backing file path. Persist writes the buffer to it.
func WithPath(path string) Option {
	return func(d *Document) {
		d.path = path
	}
}

// WithContentType sets the document's content-type identifier.
func WithContentType(ct string) Option {
	return func(d *Document) {
		d.contentType = ct
	}
}

// New creates a document with the given initial text.
func New(text string, opts ...Option) *Document {
	d := &Document{
		id:          uuid.NewString(),
		contentType: "text.plain",
		lines:       splitLines(normalize(text)),
		changeSubs:  make(map[string]func(doc.ChangeEvent)),
		destroySubs: make(map[string]func()),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open creates a document from the contents of path. The content type is
// taken from opts; WithPath is applied implicitly.
func Open(path string, opts ...Option) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithPath(path)}, opts...)
	return New(string(data), opts...), nil
}

// ID returns the document's stable buffer identity.
func (d *Document) ID() string { return d.id }

// Path returns the backing file path, or "" if unsaved.
func (d *Document) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path
}

// ContentType returns the grammar/language identifier.
func (d *Document) ContentType() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.contentType
}

// Text returns the full buffer content.
func (d *Document) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.Join(d.lines, "\n")
}

// LineCount returns the number of lines.
func (d *Document) LineCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lines)
}

// Cursor returns the current cursor position.
func (d *Document) Cursor() doc.Position {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor
}

// SetCursor moves the cursor, clamped to the buffer bounds.
func (d *Document) SetCursor(p doc.Position) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cursor = clampPos(d.lines, p)
}

// Selection returns the current selection, empty if none.
func (d *Document) Selection() doc.Range {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selection
}

// Select sets the selection range. Host-side helper, not part of
// doc.Document.
func (d *Document) Select(r doc.Range) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selection = doc.Range{
		Start: clampPos(d.lines, r.Start),
		End:   clampPos(d.lines, r.End),
	}
}

// Replace substitutes the text in r with text and notifies change
// observers.
func (d *Document) Replace(r doc.Range, text string) error {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return ErrDestroyed
	}
	if !validRange(d.lines, r) {
		d.mu.Unlock()
		return ErrInvalidRange
	}

	old := textInRange(d.lines, r)
	if !d.inTransaction {
		d.pushSnapshotLocked()
	}
	d.lines = replaceRange(d.lines, r, text)
	d.cursor = clampPos(d.lines, d.cursor)
	d.selection = doc.Range{}
	subs := d.changeSubsLocked()
	d.mu.Unlock()

	ev := doc.ChangeEvent{OldText: old, NewText: text, Pos: r.Start}
	for _, fn := range subs {
		fn(ev)
	}
	return nil
}

// SetText replaces the entire buffer content.
func (d *Document) SetText(text string) error {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return ErrDestroyed
	}

	old := strings.Join(d.lines, "\n")
	if !d.inTransaction {
		d.pushSnapshotLocked()
	}
	d.lines = splitLines(normalize(text))
	d.cursor = clampPos(d.lines, d.cursor)
	d.selection = doc.Range{}
	subs := d.changeSubsLocked()
	d.mu.Unlock()

	ev := doc.ChangeEvent{OldText: old, NewText: text, Pos: doc.Position{}}
	for _, fn := range subs {
		fn(ev)
	}
	return nil
}

// Transact runs fn as a single undo step. On error the buffer is restored
// to its state before fn ran.
func (d *Document) Transact(fn func() error) error {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return ErrDestroyed
	}
	d.pushSnapshotLocked()
	d.inTransaction = true
	d.mu.Unlock()

	err := fn()

	d.mu.Lock()
	d.inTransaction = false
	if err != nil && len(d.undo) > 0 {
		// Roll back to the snapshot taken on entry.
		last := d.undo[len(d.undo)-1]
		d.undo = d.undo[:len(d.undo)-1]
		d.lines = splitLines(last)
		d.cursor = clampPos(d.lines, d.cursor)
	}
	d.mu.Unlock()
	return err
}

// Undo reverts the most recent undo step. It reports whether anything was
// undone.
func (d *Document) Undo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.undo) == 0 {
		return false
	}
	last := d.undo[len(d.undo)-1]
	d.undo = d.undo[:len(d.undo)-1]
	d.lines = splitLines(last)
	d.cursor = clampPos(d.lines, d.cursor)
	return true
}

// OnChange registers a change observer.
func (d *Document) OnChange(fn func(doc.ChangeEvent)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.NewString()
	d.changeSubs[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.changeSubs, id)
	}
}

// OnDestroy registers a destruction observer.
func (d *Document) OnDestroy(fn func()) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.NewString()
	d.destroySubs[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.destroySubs, id)
	}
}

// InterceptSave installs fn as the save action. Save invokes fn instead of
// persisting until the returned restore function runs. Only one
// interception may be installed at a time.
func (d *Document) InterceptSave(fn func()) (func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.saveHook != nil {
		return nil, ErrIntercepted
	}
	d.saveHook = fn

	var once sync.Once
	restore := func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			d.saveHook = nil
		})
	}
	return restore, nil
}

// Save is the user-level save action: it runs the installed interception,
// or persists directly when none is installed. Host-side helper.
func (d *Document) Save() error {
	d.mu.Lock()
	hook := d.saveHook
	d.mu.Unlock()

	if hook != nil {
		hook()
		return nil
	}
	return d.Persist()
}

// Persist runs the underlying persistence action: the buffer is written to
// the backing path when one is set.
func (d *Document) Persist() error {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return ErrDestroyed
	}
	d.persistCount++
	path := d.path
	text := strings.Join(d.lines, "\n")
	d.mu.Unlock()

	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(text), 0o644)
}

// PersistCount returns how many times Persist has run. Test helper.
func (d *Document) PersistCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.persistCount
}

// Destroy marks the document destroyed and notifies observers. Further
// mutation fails with ErrDestroyed.
func (d *Document) Destroy() {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.destroyed = true
	subs := make([]func(), 0, len(d.destroySubs))
	for _, fn := range d.destroySubs {
		subs = append(subs, fn)
	}
	d.changeSubs = make(map[string]func(doc.ChangeEvent))
	d.destroySubs = make(map[string]func())
	d.saveHook = nil
	d.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// Destroyed reports whether Destroy has been called.
func (d *Document) Destroyed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

// pushSnapshotLocked records the current text as a new undo step.
// Must be called with d.mu held.
func (d *Document) pushSnapshotLocked() {
	d.undo = append(d.undo, strings.Join(d.lines, "\n"))
}

// changeSubsLocked copies the change observer list for invocation outside
// the lock. Must be called with d.mu held.
func (d *Document) changeSubsLocked() []func(doc.ChangeEvent) {
	subs := make([]func(doc.ChangeEvent), 0, len(d.changeSubs))
	for _, fn := range d.changeSubs {
		subs = append(subs, fn)
	}
	return subs
}
