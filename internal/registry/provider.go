package registry

import (
	"context"
	"strings"

	"github.com/dshills/autofmt/internal/doc"
)

// DocumentRequest asks a provider to format an entire document.
type DocumentRequest struct {
	// Doc is the live document. Providers should treat it as read-only.
	Doc doc.Document

	// Text is the document snapshot taken when the operation started.
	Text string
}

// RangeRequest asks a provider to format a range within a document.
type RangeRequest struct {
	Doc  doc.Document
	Text string

	// Range is the normalized span to format.
	Range doc.Range
}

// CursorRequest asks a provider to format around a cursor position after a
// keystroke.
type CursorRequest struct {
	Doc  doc.Document
	Text string

	// Pos is the position just before the trigger character.
	Pos doc.Position

	// Trigger is the character that triggered formatting.
	Trigger rune
}

// FormatDocumentFunc formats a whole document.
type FormatDocumentFunc func(ctx context.Context, req *DocumentRequest) (*doc.EditSet, error)

// FormatRangeFunc formats a range within a document.
type FormatRangeFunc func(ctx context.Context, req *RangeRequest) (*doc.EditSet, error)

// FormatAtCursorFunc formats at a cursor position.
type FormatAtCursorFunc func(ctx context.Context, req *CursorRequest) (*doc.EditSet, error)

// Provider is a formatting backend. Each Format* field is optional; a
// provider implements whichever operations it supports. A provider with no
// operations at all is a configuration error, surfaced at dispatch time
// rather than at registration.
type Provider struct {
	// Name identifies the provider in logs and error messages.
	Name string

	// Selector is a comma-separated list of content-type identifiers this
	// provider applies to, e.g. "source.go,source.gomod".
	Selector string

	// Priority orders providers during resolution; higher wins. Providers
	// with priority <= 0 are never resolved.
	Priority int

	FormatDocument FormatDocumentFunc
	FormatRange    FormatRangeFunc
	FormatAtCursor FormatAtCursorFunc
}

// Supports reports whether the provider's selector contains contentType.
func (p *Provider) Supports(contentType string) bool {
	for _, part := range strings.Split(p.Selector, ",") {
		if strings.TrimSpace(part) == contentType {
			return true
		}
	}
	return false
}

// CanFormat reports whether the provider implements at least one operation.
func (p *Provider) CanFormat() bool {
	return p.FormatDocument != nil || p.FormatRange != nil || p.FormatAtCursor != nil
}

// DisplayName returns Name, or a selector-derived fallback when unnamed.
func (p *Provider) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return "provider(" + p.Selector + ")"
}
