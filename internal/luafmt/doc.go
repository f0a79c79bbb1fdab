// Package luafmt loads formatting providers written as Lua scripts.
//
// A script evaluates to a table describing one provider:
//
//	return {
//	    name     = "markdown-tidy",
//	    selector = "text.markdown",
//	    priority = 10,
//	    format_document  = function(text) ... end,
//	    format_range     = function(text, start_line, start_col, end_line, end_col) ... end,
//	    format_at_cursor = function(text, line, col, trigger) ... end,
//	}
//
// Each format_* entry is optional and maps to the matching provider
// operation. A function may return nil (no change), a string (full
// replacement text), or an array of edit tables with start_line, start_col,
// end_line, end_col, and text keys. format_at_cursor may additionally return
// a second value, a table with line and col keys, to reposition the cursor.
// Line and column numbers are zero-based on both sides of the boundary.
//
// gopher-lua's LState is not goroutine-safe, so every call into a script is
// serialized through a single worker goroutine owned by the script's
// Executor. Provider callbacks block on that worker but honor their context:
// a canceled operation stops waiting even if the script keeps running.
package luafmt
