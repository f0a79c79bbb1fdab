package memdoc

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/autofmt/internal/doc"
)

// Interface compliance.
var (
	_ doc.Document = (*Document)(nil)
	_ doc.Editor   = (*Editor)(nil)
)

// Editor is an in-memory implementation of doc.Editor.
type Editor struct {
	mu       sync.Mutex
	docs     []*Document
	openSubs map[string]func(doc.Document)
}

// NewEditor creates an empty editor.
func NewEditor() *Editor {
	return &Editor{
		openSubs: make(map[string]func(doc.Document)),
	}
}

// Documents returns the currently open documents.
func (e *Editor) Documents() []doc.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]doc.Document, 0, len(e.docs))
	for _, d := range e.docs {
		if !d.Destroyed() {
			out = append(out, d)
		}
	}
	return out
}

// OnDocumentOpen registers an observer for newly opened documents.
func (e *Editor) OnDocumentOpen(fn func(doc.Document)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := uuid.NewString()
	e.openSubs[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.openSubs, id)
	}
}

// Add opens d in the editor and notifies observers.
func (e *Editor) Add(d *Document) {
	e.mu.Lock()
	e.docs = append(e.docs, d)
	subs := make([]func(doc.Document), 0, len(e.openSubs))
	for _, fn := range e.openSubs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()

	for _, fn := range subs {
		fn(d)
	}
}
