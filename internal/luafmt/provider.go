package luafmt

import (
	"context"
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/autofmt/internal/doc"
	"github.com/dshills/autofmt/internal/registry"
)

// Script is a loaded provider script: the provider it exposes plus the
// executor that owns its Lua state.
type Script struct {
	path     string
	exec     *Executor
	provider *registry.Provider
}

// Load evaluates the script at path and builds its provider.
func Load(path string) (*Script, error) {
	return load(path, func(L *lua.LState) error { return L.DoFile(path) })
}

// LoadSource evaluates source directly. name stands in for the path in
// error messages.
func LoadSource(name, source string) (*Script, error) {
	return load(name, func(L *lua.LState) error { return L.DoString(source) })
}

func load(path string, run func(L *lua.LState) error) (*Script, error) {
	L := lua.NewState()
	exec := NewExecutor(L)
	s := &Script{path: path, exec: exec}

	err := exec.Execute(context.Background(), func(L *lua.LState) error {
		if err := run(L); err != nil {
			return err
		}
		ret := L.Get(-1)
		L.SetTop(0)

		tbl, ok := ret.(*lua.LTable)
		if !ok {
			return fmt.Errorf("script must return a provider table, got %s", ret.Type())
		}
		return s.decodeProvider(L, tbl)
	})
	if err != nil {
		exec.Close()
		return nil, &ScriptError{Path: path, Err: err}
	}
	return s, nil
}

// Provider returns the provider described by the script.
func (s *Script) Provider() *registry.Provider { return s.provider }

// Close shuts down the script's Lua state. In-flight calls fail with
// ErrExecutorClosed.
func (s *Script) Close() { s.exec.Close() }

// decodeProvider reads the provider table. Runs on the executor goroutine.
func (s *Script) decodeProvider(L *lua.LState, tbl *lua.LTable) error {
	selector, ok := tableString(tbl, "selector")
	if !ok || selector == "" {
		return errors.New("provider table needs a selector string")
	}

	p := &registry.Provider{
		Selector: selector,
		Priority: 1,
	}
	if name, ok := tableString(tbl, "name"); ok {
		p.Name = name
	}
	if prio, ok := tbl.RawGetString("priority").(lua.LNumber); ok {
		p.Priority = int(prio)
	}

	if fn, ok := tbl.RawGetString("format_document").(*lua.LFunction); ok {
		p.FormatDocument = func(ctx context.Context, req *registry.DocumentRequest) (*doc.EditSet, error) {
			return s.callFormat(ctx, fn, lua.LString(req.Text))
		}
	}
	if fn, ok := tbl.RawGetString("format_range").(*lua.LFunction); ok {
		p.FormatRange = func(ctx context.Context, req *registry.RangeRequest) (*doc.EditSet, error) {
			return s.callFormat(ctx, fn,
				lua.LString(req.Text),
				lua.LNumber(req.Range.Start.Line), lua.LNumber(req.Range.Start.Col),
				lua.LNumber(req.Range.End.Line), lua.LNumber(req.Range.End.Col),
			)
		}
	}
	if fn, ok := tbl.RawGetString("format_at_cursor").(*lua.LFunction); ok {
		p.FormatAtCursor = func(ctx context.Context, req *registry.CursorRequest) (*doc.EditSet, error) {
			return s.callFormat(ctx, fn,
				lua.LString(req.Text),
				lua.LNumber(req.Pos.Line), lua.LNumber(req.Pos.Col),
				lua.LString(string(req.Trigger)),
			)
		}
	}
	s.provider = p
	return nil
}

// callFormat invokes fn on the executor goroutine and decodes its return
// values into an edit set.
func (s *Script) callFormat(ctx context.Context, fn *lua.LFunction, args ...lua.LValue) (*doc.EditSet, error) {
	var set *doc.EditSet
	err := s.exec.Execute(ctx, func(L *lua.LState) error {
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 2, Protect: true}, args...); err != nil {
			return err
		}
		primary := L.Get(-2)
		cursor := L.Get(-1)
		L.Pop(2)

		decoded, err := decodeEditSet(primary)
		if err != nil {
			return err
		}
		if ctbl, ok := cursor.(*lua.LTable); ok && decoded != nil {
			if pos, ok := decodePosition(ctbl); ok {
				decoded.Cursor = &pos
			}
		}
		set = decoded
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrExecutorClosed) {
			return nil, err
		}
		return nil, &ScriptError{Path: s.path, Err: err}
	}
	if set == nil {
		set = &doc.EditSet{}
	}
	return set, nil
}

// decodeEditSet maps a format function's first return value to edits:
// nil/false means no change, a string replaces the full text, and an array
// of edit tables becomes targeted edits.
func decodeEditSet(v lua.LValue) (*doc.EditSet, error) {
	switch val := v.(type) {
	case *lua.LNilType:
		return &doc.EditSet{}, nil
	case lua.LBool:
		if !bool(val) {
			return &doc.EditSet{}, nil
		}
		return nil, errors.New("format function returned true; expected nil, string, or edit table")
	case lua.LString:
		text := string(val)
		return &doc.EditSet{FullText: &text}, nil
	case *lua.LTable:
		return decodeEdits(val)
	default:
		return nil, fmt.Errorf("format function returned %s; expected nil, string, or edit table", v.Type())
	}
}

func decodeEdits(tbl *lua.LTable) (*doc.EditSet, error) {
	set := &doc.EditSet{}
	n := tbl.Len()
	for i := 1; i <= n; i++ {
		entry, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("edit %d is not a table", i)
		}
		edit, err := decodeEdit(entry)
		if err != nil {
			return nil, fmt.Errorf("edit %d: %w", i, err)
		}
		set.Edits = append(set.Edits, edit)
	}
	return set, nil
}

func decodeEdit(tbl *lua.LTable) (doc.TextEdit, error) {
	var edit doc.TextEdit
	fields := []struct {
		key string
		dst *int
	}{
		{"start_line", &edit.Range.Start.Line},
		{"start_col", &edit.Range.Start.Col},
		{"end_line", &edit.Range.End.Line},
		{"end_col", &edit.Range.End.Col},
	}
	for _, f := range fields {
		num, ok := tbl.RawGetString(f.key).(lua.LNumber)
		if !ok {
			return edit, fmt.Errorf("missing numeric field %q", f.key)
		}
		*f.dst = int(num)
	}
	if text, ok := tableString(tbl, "text"); ok {
		edit.NewText = text
	}
	return edit, nil
}

func decodePosition(tbl *lua.LTable) (doc.Position, bool) {
	line, ok := tbl.RawGetString("line").(lua.LNumber)
	if !ok {
		return doc.Position{}, false
	}
	col, ok := tbl.RawGetString("col").(lua.LNumber)
	if !ok {
		return doc.Position{}, false
	}
	return doc.Position{Line: int(line), Col: int(col)}, true
}

func tableString(tbl *lua.LTable, key string) (string, bool) {
	if s, ok := tbl.RawGetString(key).(lua.LString); ok {
		return string(s), true
	}
	return "", false
}
