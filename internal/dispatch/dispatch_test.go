package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dshills/autofmt/internal/apply"
	"github.com/dshills/autofmt/internal/doc"
	"github.com/dshills/autofmt/internal/doc/memdoc"
	"github.com/dshills/autofmt/internal/registry"
	"github.com/dshills/autofmt/internal/trigger"
)

func fixedSettings(st Settings) SettingsFunc {
	return func() Settings { return st }
}

func defaultSettings() SettingsFunc {
	return fixedSettings(Settings{OnSave: true, OnType: true})
}

// recordingNotifier captures user-facing messages.
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *recordingNotifier) Notify(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.msgs))
	copy(out, n.msgs)
	return out
}

// fullTextProvider rewrites the whole document to text.
func fullTextProvider(name string, priority int, text string) *registry.Provider {
	return &registry.Provider{
		Name:     name,
		Selector: "text.plain",
		Priority: priority,
		FormatDocument: func(_ context.Context, _ *registry.DocumentRequest) (*doc.EditSet, error) {
			out := text
			return &doc.EditSet{FullText: &out}, nil
		},
	}
}

func TestDispatcher_CommandUsesHighestPriority(t *testing.T) {
	reg := registry.New()
	reg.Register(fullTextProvider("low", 1, "from-low"))
	reg.Register(fullTextProvider("high", 5, "from-high"))

	d := memdoc.New("original")
	disp := New(reg, defaultSettings())

	err := disp.Dispatch(context.Background(), trigger.NewCommand(d), nil)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if got := d.Text(); got != "from-high" {
		t.Errorf("Text() = %q, want the priority-5 provider's output", got)
	}
}

func TestDispatcher_CommandNoProvider(t *testing.T) {
	d := memdoc.New("x")
	n := &recordingNotifier{}
	disp := New(registry.New(), defaultSettings(), WithNotifier(n))

	err := disp.Dispatch(context.Background(), trigger.NewCommand(d), nil)

	var noProv *NoProviderError
	if !errors.As(err, &noProv) {
		t.Fatalf("Dispatch() error = %v, want NoProviderError", err)
	}
	if msgs := n.messages(); len(msgs) != 1 {
		t.Errorf("notifier messages = %v, want one failure report", msgs)
	}
}

func TestDispatcher_CommandProviderWithNoOperations(t *testing.T) {
	reg := registry.New()
	reg.Register(&registry.Provider{Name: "empty", Selector: "text.plain", Priority: 1})

	d := memdoc.New("x")
	disp := New(reg, defaultSettings())

	err := disp.Dispatch(context.Background(), trigger.NewCommand(d), nil)
	if !errors.Is(err, ErrNoOperations) {
		t.Fatalf("Dispatch() error = %v, want ErrNoOperations", err)
	}
}

func TestDispatcher_CommandSelectionNormalization(t *testing.T) {
	tests := []struct {
		name string
		sel  doc.Range
		want doc.Range
	}{
		{
			name: "mid-line selection promoted to whole lines",
			sel:  doc.Range{Start: doc.Position{Line: 2, Col: 5}, End: doc.Position{Line: 2, Col: 10}},
			want: doc.Range{Start: doc.Position{Line: 2, Col: 0}, End: doc.Position{Line: 3, Col: 0}},
		},
		{
			name: "end already at column zero kept",
			sel:  doc.Range{Start: doc.Position{Line: 1, Col: 3}, End: doc.Position{Line: 4, Col: 0}},
			want: doc.Range{Start: doc.Position{Line: 1, Col: 0}, End: doc.Position{Line: 4, Col: 0}},
		},
		{
			name: "promotion past last line clipped to end of document",
			sel:  doc.Range{Start: doc.Position{Line: 4, Col: 1}, End: doc.Position{Line: 4, Col: 3}},
			want: doc.Range{Start: doc.Position{Line: 4, Col: 0}, End: doc.Position{Line: 4, Col: 12}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got doc.Range
			reg := registry.New()
			reg.Register(&registry.Provider{
				Name:     "ranger",
				Selector: "text.plain",
				Priority: 1,
				FormatRange: func(_ context.Context, req *registry.RangeRequest) (*doc.EditSet, error) {
					got = req.Range
					return &doc.EditSet{}, nil
				},
			})

			// Five lines of twelve characters each.
			d := memdoc.New("aaaaaaaaaaaa\nbbbbbbbbbbbb\ncccccccccccc\ndddddddddddd\neeeeeeeeeeee")
			d.Select(tt.sel)

			disp := New(reg, defaultSettings())
			if err := disp.Dispatch(context.Background(), trigger.NewCommand(d), nil); err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("provider saw range %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDispatcher_CommandWholeDocumentWithoutSelection(t *testing.T) {
	docCalled := false
	reg := registry.New()
	reg.Register(&registry.Provider{
		Name:     "both",
		Selector: "text.plain",
		Priority: 1,
		FormatDocument: func(_ context.Context, _ *registry.DocumentRequest) (*doc.EditSet, error) {
			docCalled = true
			return &doc.EditSet{}, nil
		},
		FormatRange: func(_ context.Context, _ *registry.RangeRequest) (*doc.EditSet, error) {
			t.Error("FormatRange called with empty selection")
			return &doc.EditSet{}, nil
		},
	})

	d := memdoc.New("text")
	disp := New(reg, defaultSettings())
	if err := disp.Dispatch(context.Background(), trigger.NewCommand(d), nil); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !docCalled {
		t.Error("FormatDocument not called")
	}
}

func TestDispatcher_CommandStaleResultDiscarded(t *testing.T) {
	d := memdoc.New("original")
	reg := registry.New()
	reg.Register(&registry.Provider{
		Name:     "racer",
		Selector: "text.plain",
		Priority: 1,
		FormatDocument: func(_ context.Context, _ *registry.DocumentRequest) (*doc.EditSet, error) {
			// The user types while the formatter runs.
			if err := d.SetText("user typed this"); err != nil {
				return nil, err
			}
			out := "formatted"
			return &doc.EditSet{FullText: &out}, nil
		},
	})

	disp := New(reg, defaultSettings())
	err := disp.Dispatch(context.Background(), trigger.NewCommand(d), nil)

	var stale *apply.StaleContentError
	if !errors.As(err, &stale) {
		t.Fatalf("Dispatch() error = %v, want StaleContentError", err)
	}
	if got := d.Text(); got != "user typed this" {
		t.Errorf("Text() = %q; stale formatter output must never be merged", got)
	}
}

func TestDispatcher_SupersededResultNotApplied(t *testing.T) {
	reg := registry.New()
	reg.Register(fullTextProvider("fmt", 1, "formatted"))

	d := memdoc.New("original")
	disp := New(reg, defaultSettings())

	err := disp.Dispatch(context.Background(), trigger.NewCommand(d), func() bool { return false })
	if err != nil {
		t.Fatalf("Dispatch() error = %v, abandonment must be silent", err)
	}
	if got := d.Text(); got != "original" {
		t.Errorf("Text() = %q, want unchanged after superseded operation", got)
	}
}

func TestDispatcher_CommandExcludedPath(t *testing.T) {
	called := false
	reg := registry.New()
	reg.Register(&registry.Provider{
		Name:     "fmt",
		Selector: "text.plain",
		Priority: 1,
		FormatDocument: func(_ context.Context, _ *registry.DocumentRequest) (*doc.EditSet, error) {
			called = true
			return &doc.EditSet{}, nil
		},
	})

	d := memdoc.New("x", memdoc.WithPath("/tmp/gen/schema_gen.txt"))
	disp := New(reg, fixedSettings(Settings{OnSave: true, Exclude: []string{"*_gen.txt"}}))

	if err := disp.Dispatch(context.Background(), trigger.NewCommand(d), nil); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if called {
		t.Error("provider invoked for excluded path")
	}
}

func TestDispatcher_TypeFormatsAtCursor(t *testing.T) {
	var req *registry.CursorRequest
	reg := registry.New()
	reg.Register(&registry.Provider{
		Name:     "cursor",
		Selector: "text.plain",
		Priority: 1,
		FormatAtCursor: func(_ context.Context, r *registry.CursorRequest) (*doc.EditSet, error) {
			req = r
			out := "done;"
			return &doc.EditSet{FullText: &out}, nil
		},
	})

	d := memdoc.New("done ;")
	d.SetCursor(doc.Position{Line: 0, Col: 6})
	disp := New(reg, defaultSettings())

	trig := trigger.NewType(d, doc.ChangeEvent{NewText: ";", Pos: doc.Position{Line: 0, Col: 5}})
	if err := disp.Dispatch(context.Background(), trig, nil); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if req == nil {
		t.Fatal("FormatAtCursor not called")
	}
	if want := (doc.Position{Line: 0, Col: 5}); req.Pos != want {
		t.Errorf("request position = %+v, want cursor minus one column %+v", req.Pos, want)
	}
	if req.Trigger != ';' {
		t.Errorf("trigger char = %q, want ';'", req.Trigger)
	}
	if got := d.Text(); got != "done;" {
		t.Errorf("Text() = %q, want %q", got, "done;")
	}

	// The formatting is its own undo step.
	if !d.Undo() {
		t.Fatal("Undo() = false")
	}
	if got := d.Text(); got != "done ;" {
		t.Errorf("Text() after undo = %q, want the pre-format text", got)
	}
}

func TestDispatcher_TypeGating(t *testing.T) {
	tests := []struct {
		name   string
		onType bool
		edit   doc.ChangeEvent
	}{
		{"disabled in settings", false, doc.ChangeEvent{NewText: "x"}},
		{"deletion never triggers", true, doc.ChangeEvent{OldText: "x"}},
		{"multi-char paste never triggers", true, doc.ChangeEvent{NewText: "ab"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			reg := registry.New()
			reg.Register(&registry.Provider{
				Name:     "cursor",
				Selector: "text.plain",
				Priority: 1,
				FormatAtCursor: func(_ context.Context, _ *registry.CursorRequest) (*doc.EditSet, error) {
					called = true
					return &doc.EditSet{}, nil
				},
			})

			d := memdoc.New("x")
			disp := New(reg, fixedSettings(Settings{OnType: tt.onType}))
			if err := disp.Dispatch(context.Background(), trigger.NewType(d, tt.edit), nil); err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
			if called {
				t.Error("provider invoked for non-qualifying change")
			}
		})
	}
}

func TestDispatcher_TypeNoCursorProviderIsNoOp(t *testing.T) {
	reg := registry.New()
	reg.Register(fullTextProvider("doc-only", 5, "whatever"))

	d := memdoc.New("x")
	disp := New(reg, defaultSettings())

	trig := trigger.NewType(d, doc.ChangeEvent{NewText: "}"})
	if err := disp.Dispatch(context.Background(), trig, nil); err != nil {
		t.Fatalf("Dispatch() error = %v, want silent no-op", err)
	}
	if got := d.Text(); got != "x" {
		t.Errorf("Text() = %q, want unchanged", got)
	}
}

func TestDispatcher_SavePersistsExactlyOnce(t *testing.T) {
	blockForever := func(ctx context.Context, _ *registry.DocumentRequest) (*doc.EditSet, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	failing := func(_ context.Context, _ *registry.DocumentRequest) (*doc.EditSet, error) {
		return nil, errors.New("backend crashed")
	}

	tests := []struct {
		name     string
		settings Settings
		format   registry.FormatDocumentFunc // nil = no provider registered
		wantErr  bool
	}{
		{
			name:     "success",
			settings: Settings{OnSave: true},
			format: func(_ context.Context, _ *registry.DocumentRequest) (*doc.EditSet, error) {
				out := "formatted"
				return &doc.EditSet{FullText: &out}, nil
			},
		},
		{
			name:     "provider failure",
			settings: Settings{OnSave: true},
			format:   failing,
			wantErr:  true,
		},
		{
			name:     "timeout",
			settings: Settings{OnSave: true, SaveTimeout: 20 * time.Millisecond},
			format:   blockForever,
			wantErr:  true,
		},
		{
			name:     "no provider",
			settings: Settings{OnSave: true},
			wantErr:  true,
		},
		{
			name:     "format on save disabled",
			settings: Settings{OnSave: false},
			format: func(_ context.Context, _ *registry.DocumentRequest) (*doc.EditSet, error) {
				t.Error("provider invoked with on-save formatting disabled")
				return &doc.EditSet{}, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := registry.New()
			if tt.format != nil {
				reg.Register(&registry.Provider{
					Name:           "saver",
					Selector:       "text.plain",
					Priority:       1,
					FormatDocument: tt.format,
				})
			}

			d := memdoc.New("content")
			disp := New(reg, fixedSettings(tt.settings))

			persists := 0
			trig := trigger.NewSave(d, func() error {
				persists++
				return nil
			})

			err := disp.Dispatch(context.Background(), trig, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("Dispatch() error = %v, wantErr %v", err, tt.wantErr)
			}
			if persists != 1 {
				t.Errorf("persist calls = %d, want exactly 1", persists)
			}
		})
	}
}

func TestDispatcher_SaveTimeoutError(t *testing.T) {
	reg := registry.New()
	reg.Register(&registry.Provider{
		Name:     "slow",
		Selector: "text.plain",
		Priority: 1,
		FormatDocument: func(ctx context.Context, _ *registry.DocumentRequest) (*doc.EditSet, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	d := memdoc.New("content")
	disp := New(reg, fixedSettings(Settings{OnSave: true, SaveTimeout: 10 * time.Millisecond}))

	err := disp.Dispatch(context.Background(), trigger.NewSave(d, func() error { return nil }), nil)

	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("Dispatch() error = %v, want TimeoutError", err)
	}
	if got := d.Text(); got != "content" {
		t.Errorf("Text() = %q, want unchanged after timeout", got)
	}
}

func TestDispatcher_SaveAppliesBeforePersist(t *testing.T) {
	reg := registry.New()
	reg.Register(fullTextProvider("fmt", 1, "formatted"))

	d := memdoc.New("original")
	disp := New(reg, fixedSettings(Settings{OnSave: true}))

	var persisted string
	trig := trigger.NewSave(d, func() error {
		persisted = d.Text()
		return nil
	})

	if err := disp.Dispatch(context.Background(), trig, nil); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if persisted != "formatted" {
		t.Errorf("persisted text = %q, want the formatted result", persisted)
	}
}

func TestDispatcher_SavePersistFailureReturned(t *testing.T) {
	reg := registry.New()
	reg.Register(fullTextProvider("fmt", 1, "formatted"))

	d := memdoc.New("original")
	disp := New(reg, fixedSettings(Settings{OnSave: true}))

	diskFull := errors.New("disk full")
	trig := trigger.NewSave(d, func() error { return diskFull })

	err := disp.Dispatch(context.Background(), trig, nil)
	if !errors.Is(err, diskFull) {
		t.Fatalf("Dispatch() error = %v, want the persistence failure", err)
	}
	// Formatting itself still landed.
	if got := d.Text(); got != "formatted" {
		t.Errorf("Text() = %q, want %q", got, "formatted")
	}
}

func TestDispatcher_UnresponsiveProviderHonorsCancel(t *testing.T) {
	reg := registry.New()
	reg.Register(&registry.Provider{
		Name:     "stuck",
		Selector: "text.plain",
		Priority: 1,
		FormatDocument: func(_ context.Context, _ *registry.DocumentRequest) (*doc.EditSet, error) {
			// Ignores its context entirely.
			time.Sleep(5 * time.Second)
			out := "late"
			return &doc.EditSet{FullText: &out}, nil
		},
	})

	d := memdoc.New("content")
	disp := New(reg, defaultSettings())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- disp.Dispatch(ctx, trigger.NewCommand(d), nil)
	}()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Dispatch() error = %v, cancelation must be silent", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Dispatch() did not return after cancel; stuck on unresponsive provider")
	}
	if got := d.Text(); got != "content" {
		t.Errorf("Text() = %q, want unchanged", got)
	}
}
