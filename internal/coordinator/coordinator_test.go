package coordinator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/autofmt/internal/config"
	"github.com/dshills/autofmt/internal/doc"
	"github.com/dshills/autofmt/internal/doc/memdoc"
	"github.com/dshills/autofmt/internal/providers/whitespace"
	"github.com/dshills/autofmt/internal/registry"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newCoordinator(t *testing.T, providers ...*registry.Provider) (*memdoc.Editor, *Coordinator) {
	t.Helper()
	reg := registry.New()
	for _, p := range providers {
		if _, err := reg.Register(p); err != nil {
			t.Fatal(err)
		}
	}
	editor := memdoc.NewEditor()
	c := New(editor, config.New(), reg)
	if err := c.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(c.Stop)
	return editor, c
}

func TestCoordinator_SaveFormatsThenPersists(t *testing.T) {
	editor, coord := newCoordinator(t, whitespace.New("text.plain", 1))

	d := memdoc.New("hello   \nworld")
	editor.Add(d)

	if err := d.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	waitFor(t, func() bool { return d.PersistCount() == 1 })
	if got := d.Text(); got != "hello\nworld\n" {
		t.Errorf("Text() = %q, want formatted before persistence", got)
	}

	// A second save persists exactly once more.
	if err := d.Save(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return d.PersistCount() == 2 })

	if s := coord.Stats(); s.Completed < 2 {
		t.Errorf("Stats().Completed = %d, want at least 2", s.Completed)
	}
}

func TestCoordinator_PersistFailureCountsAsFailed(t *testing.T) {
	editor, coord := newCoordinator(t, whitespace.New("text.plain", 1))

	// A backing path in a directory that does not exist makes the write
	// fail after formatting succeeds.
	d := memdoc.New("oops  ", memdoc.WithPath(filepath.Join(t.TempDir(), "missing", "out.txt")))
	editor.Add(d)

	if err := d.Save(); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return coord.Stats().Failed == 1 })
	if got := d.Text(); got != "oops\n" {
		t.Errorf("Text() = %q, want formatting applied despite the failed write", got)
	}
}

func TestCoordinator_FormatCommand(t *testing.T) {
	editor, coord := newCoordinator(t, whitespace.New("text.plain", 1))

	d := memdoc.New("trailing  ")
	editor.Add(d)

	if err := coord.Format(d); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	waitFor(t, func() bool { return d.Text() == "trailing\n" })
}

func TestCoordinator_FormatUntracked(t *testing.T) {
	_, coord := newCoordinator(t, whitespace.New("text.plain", 1))

	d := memdoc.New("x")
	if err := coord.Format(d); !errors.Is(err, ErrNotTracked) {
		t.Errorf("Format() error = %v, want ErrNotTracked", err)
	}
}

func TestCoordinator_AttachesExistingDocuments(t *testing.T) {
	reg := registry.New()
	reg.Register(whitespace.New("text.plain", 1))
	editor := memdoc.NewEditor()

	d := memdoc.New("pre-open  ")
	editor.Add(d)

	coord := New(editor, config.New(), reg)
	if err := coord.Start(); err != nil {
		t.Fatal(err)
	}
	defer coord.Stop()

	if err := coord.Format(d); err != nil {
		t.Fatalf("Format() error = %v, document open before Start must be tracked", err)
	}
	waitFor(t, func() bool { return d.Text() == "pre-open\n" })
}

func TestCoordinator_OnTypeAppliesAtCursor(t *testing.T) {
	p := &registry.Provider{
		Name:     "semi",
		Selector: "text.plain",
		Priority: 1,
		FormatAtCursor: func(_ context.Context, req *registry.CursorRequest) (*doc.EditSet, error) {
			if req.Trigger != ';' {
				return &doc.EditSet{}, nil
			}
			out := "x := 1;"
			return &doc.EditSet{FullText: &out}, nil
		},
	}
	editor, _ := newCoordinator(t, p)

	d := memdoc.New("x := 1 ")
	editor.Add(d)

	// The user types a semicolon at the end of the line.
	ins := doc.Position{Line: 0, Col: 7}
	if err := d.Replace(doc.Range{Start: ins, End: ins}, ";"); err != nil {
		t.Fatal(err)
	}
	d.SetCursor(doc.Position{Line: 0, Col: 8})

	waitFor(t, func() bool { return d.Text() == "x := 1;" })
}

func TestCoordinator_DestroyedDocumentUntracked(t *testing.T) {
	editor, coord := newCoordinator(t, whitespace.New("text.plain", 1))

	d := memdoc.New("x")
	editor.Add(d)
	d.Destroy()

	waitFor(t, func() bool { return errors.Is(coord.Format(d), ErrNotTracked) })
}

func TestCoordinator_StopRestoresDefaultSave(t *testing.T) {
	editor, coord := newCoordinator(t, whitespace.New("text.plain", 1))

	d := memdoc.New("raw  ")
	editor.Add(d)

	coord.Stop()

	if err := d.Save(); err != nil {
		t.Fatal(err)
	}
	if got := d.PersistCount(); got != 1 {
		t.Errorf("PersistCount() = %d, want direct persistence after Stop", got)
	}
	if got := d.Text(); got != "raw  " {
		t.Errorf("Text() = %q, want unformatted after Stop", got)
	}

	if err := coord.Format(d); !errors.Is(err, ErrStopped) {
		t.Errorf("Format() after Stop error = %v, want ErrStopped", err)
	}
}
