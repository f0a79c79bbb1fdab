package luafmt

import (
	"context"
	"errors"
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/autofmt/internal/doc"
	"github.com/dshills/autofmt/internal/registry"
)

func TestLoadSource_ProviderTable(t *testing.T) {
	s, err := LoadSource("test.lua", `
		return {
			name     = "upper",
			selector = "text.plain,text.markdown",
			priority = 7,
			format_document = function(text) return string.upper(text) end,
		}
	`)
	if err != nil {
		t.Fatalf("LoadSource() error = %v", err)
	}
	defer s.Close()

	p := s.Provider()
	if p.Name != "upper" || p.Priority != 7 {
		t.Errorf("provider = %s/%d, want upper/7", p.Name, p.Priority)
	}
	if !p.Supports("text.markdown") {
		t.Error("Supports(text.markdown) = false")
	}
	if p.FormatDocument == nil || p.FormatRange != nil || p.FormatAtCursor != nil {
		t.Error("operation set does not match script table")
	}
}

func TestLoadSource_DefaultPriority(t *testing.T) {
	s, err := LoadSource("test.lua", `return { selector = "text.plain" }`)
	if err != nil {
		t.Fatalf("LoadSource() error = %v", err)
	}
	defer s.Close()
	if got := s.Provider().Priority; got != 1 {
		t.Errorf("Priority = %d, want default 1", got)
	}
}

func TestLoadSource_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"syntax error", `return {`},
		{"non-table return", `return 42`},
		{"missing selector", `return { priority = 1 }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSource("bad.lua", tt.source)
			var serr *ScriptError
			if !errors.As(err, &serr) {
				t.Errorf("LoadSource() error = %v, want ScriptError", err)
			}
		})
	}
}

func TestScript_FormatDocumentFullText(t *testing.T) {
	s, err := LoadSource("test.lua", `
		return {
			selector = "text.plain",
			format_document = function(text) return string.upper(text) end,
		}
	`)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	set, err := s.Provider().FormatDocument(context.Background(), &registry.DocumentRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("FormatDocument() error = %v", err)
	}
	if set.FullText == nil || *set.FullText != "HELLO" {
		t.Errorf("FullText = %v, want HELLO", set.FullText)
	}
}

func TestScript_FormatDocumentNilMeansNoChange(t *testing.T) {
	s, err := LoadSource("test.lua", `
		return {
			selector = "text.plain",
			format_document = function(text) return nil end,
		}
	`)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	set, err := s.Provider().FormatDocument(context.Background(), &registry.DocumentRequest{Text: "x"})
	if err != nil {
		t.Fatalf("FormatDocument() error = %v", err)
	}
	if !set.IsEmpty() {
		t.Errorf("edit set = %+v, want empty", set)
	}
}

func TestScript_FormatRangeTargetedEdits(t *testing.T) {
	s, err := LoadSource("test.lua", `
		return {
			selector = "text.plain",
			format_range = function(text, sl, sc, el, ec)
				return {
					{ start_line = sl, start_col = sc, end_line = el, end_col = ec, text = "replaced" },
				}
			end,
		}
	`)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	req := &registry.RangeRequest{
		Text: "abc\ndef",
		Range: doc.Range{
			Start: doc.Position{Line: 0, Col: 1},
			End:   doc.Position{Line: 1, Col: 2},
		},
	}
	set, err := s.Provider().FormatRange(context.Background(), req)
	if err != nil {
		t.Fatalf("FormatRange() error = %v", err)
	}
	if len(set.Edits) != 1 {
		t.Fatalf("edits = %d, want 1", len(set.Edits))
	}
	edit := set.Edits[0]
	if edit.Range != req.Range || edit.NewText != "replaced" {
		t.Errorf("edit = %+v, want the request range with text %q", edit, "replaced")
	}
}

func TestScript_FormatAtCursorWithCursorReturn(t *testing.T) {
	s, err := LoadSource("test.lua", `
		return {
			selector = "text.plain",
			format_at_cursor = function(text, line, col, trigger)
				return text .. trigger, { line = line, col = col + 1 }
			end,
		}
	`)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	req := &registry.CursorRequest{
		Text:    "ab",
		Pos:     doc.Position{Line: 0, Col: 1},
		Trigger: '}',
	}
	set, err := s.Provider().FormatAtCursor(context.Background(), req)
	if err != nil {
		t.Fatalf("FormatAtCursor() error = %v", err)
	}
	if set.FullText == nil || *set.FullText != "ab}" {
		t.Errorf("FullText = %v, want ab}", set.FullText)
	}
	if set.Cursor == nil || *set.Cursor != (doc.Position{Line: 0, Col: 2}) {
		t.Errorf("Cursor = %v, want {0 2}", set.Cursor)
	}
}

func TestScript_RuntimeError(t *testing.T) {
	s, err := LoadSource("test.lua", `
		return {
			selector = "text.plain",
			format_document = function(text) error("formatter exploded") end,
		}
	`)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	_, err = s.Provider().FormatDocument(context.Background(), &registry.DocumentRequest{Text: "x"})
	var serr *ScriptError
	if !errors.As(err, &serr) {
		t.Fatalf("FormatDocument() error = %v, want ScriptError", err)
	}
	if !strings.Contains(err.Error(), "formatter exploded") {
		t.Errorf("error = %v, want the script's message", err)
	}
}

func TestScript_BadReturnValue(t *testing.T) {
	s, err := LoadSource("test.lua", `
		return {
			selector = "text.plain",
			format_document = function(text) return 42 end,
		}
	`)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	_, err = s.Provider().FormatDocument(context.Background(), &registry.DocumentRequest{Text: "x"})
	if err == nil {
		t.Fatal("FormatDocument() error = nil, want decode failure")
	}
}

func TestExecutor_CancelWhileRunning(t *testing.T) {
	exec := NewExecutor(lua.NewState())
	defer exec.Close()

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = exec.Execute(context.Background(), func(_ *lua.LState) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	// The worker is busy; a canceled caller stops waiting immediately.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := exec.Execute(ctx, func(_ *lua.LState) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
	close(release)
}

func TestExecutor_Closed(t *testing.T) {
	s, err := LoadSource("test.lua", `
		return {
			selector = "text.plain",
			format_document = function(text) return text end,
		}
	`)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
	s.Close() // idempotent

	_, err = s.Provider().FormatDocument(context.Background(), &registry.DocumentRequest{Text: "x"})
	if !errors.Is(err, ErrExecutorClosed) {
		t.Errorf("FormatDocument() after Close error = %v, want ErrExecutorClosed", err)
	}
}
