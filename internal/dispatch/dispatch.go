package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/autofmt/internal/apply"
	"github.com/dshills/autofmt/internal/doc"
	"github.com/dshills/autofmt/internal/logging"
	"github.com/dshills/autofmt/internal/registry"
	"github.com/dshills/autofmt/internal/trigger"
)

const defaultSettleDelay = time.Millisecond

// ErrNoOperations reports a registered provider that implements none of the
// formatting operations. This is a configuration error surfaced at dispatch
// time, not at registration.
var ErrNoOperations = errors.New("provider implements no formatting operations")

// Dispatcher resolves a provider for each trigger and runs the formatting
// operation to a terminal outcome.
type Dispatcher struct {
	registry *registry.Registry
	settings SettingsFunc
	notifier Notifier
	log      *logging.Logger
	settle   time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithNotifier sets the user-facing error surface.
func WithNotifier(n Notifier) Option {
	return func(d *Dispatcher) {
		d.notifier = n
	}
}

// WithLogger sets the dispatcher's logger.
func WithLogger(log *logging.Logger) Option {
	return func(d *Dispatcher) {
		d.log = log
	}
}

// WithSettleDelay sets how long the Type path waits after a keystroke
// before reading the cursor position. The default is one millisecond,
// standing in for one scheduling tick.
func WithSettleDelay(delay time.Duration) Option {
	return func(d *Dispatcher) {
		d.settle = delay
	}
}

// New creates a dispatcher over reg. settings is consulted once per trigger.
func New(reg *registry.Registry, settings SettingsFunc, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		settings: settings,
		notifier: NotifierFunc(func(string) {}),
		log:      logging.Nop(),
		settle:   defaultSettleDelay,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs the state machine for t. alive reports whether this
// operation is still the document's current one; it is consulted before any
// buffer mutation so a superseded operation can never commit. alive may be
// nil.
//
// The returned error reflects the operation's outcome. Abandonment through
// supersession or document destruction is not an error; it returns nil.
func (d *Dispatcher) Dispatch(ctx context.Context, t *trigger.Trigger, alive func() bool) error {
	switch t.Kind {
	case trigger.KindCommand:
		err := d.command(ctx, t.Doc, alive)
		if err != nil {
			d.notifier.Notify("Formatting failed: " + err.Error())
		}
		return err
	case trigger.KindType:
		err := d.typed(ctx, t, alive)
		if err != nil {
			d.log.Warn("on-type formatting failed for %s: %v", t.Doc.ID(), err)
		}
		return err
	case trigger.KindSave:
		return d.save(ctx, t, alive)
	default:
		return nil
	}
}

// command formats the selection (promoted to whole lines) when one exists
// and the provider supports ranges, the whole document otherwise.
func (d *Dispatcher) command(ctx context.Context, dc doc.Document, alive func() bool) error {
	st := d.settings()
	if excluded(st.Exclude, dc.Path()) {
		return nil
	}

	p, err := d.selectProvider(dc.ContentType(), func(p *registry.Provider) bool {
		return p.FormatRange != nil || p.FormatDocument != nil
	})
	if err != nil {
		return err
	}

	snapshot := dc.Text()
	sel := dc.Selection()

	var set *doc.EditSet
	switch {
	case !sel.IsEmpty() && p.FormatRange != nil:
		rng := normalizeSelection(snapshot, sel)
		set, err = d.invoke(ctx, func(ctx context.Context) (*doc.EditSet, error) {
			return p.FormatRange(ctx, &registry.RangeRequest{Doc: dc, Text: snapshot, Range: rng})
		})
	case p.FormatDocument != nil:
		set, err = d.invoke(ctx, func(ctx context.Context) (*doc.EditSet, error) {
			return p.FormatDocument(ctx, &registry.DocumentRequest{Doc: dc, Text: snapshot})
		})
	default:
		rng := wholeRange(snapshot)
		set, err = d.invoke(ctx, func(ctx context.Context) (*doc.EditSet, error) {
			return p.FormatRange(ctx, &registry.RangeRequest{Doc: dc, Text: snapshot, Range: rng})
		})
	}
	return d.finish(dc, p, snapshot, set, err, alive, apply.Options{})
}

// typed formats at the cursor after a qualifying keystroke.
func (d *Dispatcher) typed(ctx context.Context, t *trigger.Trigger, alive func() bool) error {
	st := d.settings()
	if !st.OnType {
		return nil
	}
	dc := t.Doc
	if excluded(st.Exclude, dc.Path()) {
		return nil
	}

	pairs := st.BracketPairs
	if pairs == nil {
		pairs = trigger.DefaultBracketPairs
	}
	char, ok := trigger.ShouldTrigger(t.Edit, pairs)
	if !ok {
		return nil
	}

	var p *registry.Provider
	for _, cand := range d.registry.Resolve(dc.ContentType()) {
		if cand.FormatAtCursor != nil {
			p = cand
			break
		}
	}
	if p == nil {
		// No cursor-capable provider: the Type path is a no-op.
		return nil
	}

	// A cooperating auto-insert feature (bracket completion) may still be
	// repositioning the cursor; reading it before it settles would target
	// the wrong offset.
	select {
	case <-time.After(d.settle):
	case <-ctx.Done():
		return nil
	}

	snapshot := dc.Text()
	pos := dc.Cursor()
	if pos.Col > 0 {
		pos.Col--
	}

	set, err := d.invoke(ctx, func(ctx context.Context) (*doc.EditSet, error) {
		return p.FormatAtCursor(ctx, &registry.CursorRequest{Doc: dc, Text: snapshot, Pos: pos, Trigger: char})
	})

	// Applied as its own undo step so the user can revert the formatting
	// without losing the keystroke that triggered it.
	return d.finish(dc, p, snapshot, set, err, alive, apply.Options{SeparateUndo: true})
}

// save formats the whole document under the save budget. The persistence
// action runs exactly once as the final step no matter what happens here;
// a persistence failure becomes the operation's error when formatting
// itself succeeded.
func (d *Dispatcher) save(ctx context.Context, t *trigger.Trigger, alive func() bool) (err error) {
	if t.Persist != nil {
		defer func() {
			if perr := t.Persist(); perr != nil && err == nil {
				err = perr
			}
		}()
	}

	st := d.settings()
	if !st.OnSave {
		return nil
	}
	dc := t.Doc
	if excluded(st.Exclude, dc.Path()) {
		return nil
	}

	timeout := st.SaveTimeout
	if timeout <= 0 {
		timeout = DefaultSaveTimeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := d.wholeDocument(tctx, dc, alive); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = &TimeoutError{Timeout: timeout}
		}
		d.log.Warn("format on save failed for %s: %v", dc.ID(), err)
		return err
	}
	return nil
}

// wholeDocument is the command logic restricted to whole-document scope.
func (d *Dispatcher) wholeDocument(ctx context.Context, dc doc.Document, alive func() bool) error {
	p, err := d.selectProvider(dc.ContentType(), func(p *registry.Provider) bool {
		return p.FormatRange != nil || p.FormatDocument != nil
	})
	if err != nil {
		return err
	}

	snapshot := dc.Text()

	var set *doc.EditSet
	if p.FormatDocument != nil {
		set, err = d.invoke(ctx, func(ctx context.Context) (*doc.EditSet, error) {
			return p.FormatDocument(ctx, &registry.DocumentRequest{Doc: dc, Text: snapshot})
		})
	} else {
		rng := wholeRange(snapshot)
		set, err = d.invoke(ctx, func(ctx context.Context) (*doc.EditSet, error) {
			return p.FormatRange(ctx, &registry.RangeRequest{Doc: dc, Text: snapshot, Range: rng})
		})
	}
	return d.finish(dc, p, snapshot, set, err, alive, apply.Options{})
}

// finish is the shared terminal step: classify the invocation outcome, then
// commit the edits unless the operation has been superseded.
func (d *Dispatcher) finish(dc doc.Document, p *registry.Provider, snapshot string, set *doc.EditSet, err error, alive func() bool, opts apply.Options) error {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Superseded or torn down: abandoned silently.
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &ProviderInvocationError{Provider: p.DisplayName(), Err: err}
	}
	if set.IsEmpty() {
		return nil
	}
	// alive is advisory, not atomic with the arbiter's generation bump: a
	// supersession landing between this check and the commit is not caught
	// here. The snapshot comparison inside Apply bounds that window, since
	// the first commit to land invalidates every other in-flight snapshot.
	if alive != nil && !alive() {
		return nil
	}
	return apply.Apply(dc, snapshot, set, opts)
}

// invoke runs a provider call on its own goroutine so an unresponsive
// backend cannot outlive the trigger's context. The abandoned call's
// eventual result, if any, is discarded.
func (d *Dispatcher) invoke(ctx context.Context, call func(context.Context) (*doc.EditSet, error)) (*doc.EditSet, error) {
	type result struct {
		set *doc.EditSet
		err error
	}
	ch := make(chan result, 1)
	go func() {
		set, err := call(ctx)
		ch <- result{set: set, err: err}
	}()

	select {
	case res := <-ch:
		return res.set, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// selectProvider resolves the first provider for contentType satisfying
// want. Resolution order is priority descending, registration order on
// ties; the first match wins outright.
func (d *Dispatcher) selectProvider(contentType string, want func(*registry.Provider) bool) (*registry.Provider, error) {
	resolved := d.registry.Resolve(contentType)
	if len(resolved) == 0 {
		return nil, &NoProviderError{ContentType: contentType}
	}
	for _, p := range resolved {
		if want(p) {
			return p, nil
		}
	}
	for _, p := range resolved {
		if !p.CanFormat() {
			return nil, &ProviderInvocationError{Provider: p.DisplayName(), Err: ErrNoOperations}
		}
	}
	return nil, &NoProviderError{ContentType: contentType}
}

// normalizeSelection promotes a selection to whole lines: the range starts
// at column 0 of the selection's first row and ends at column 0 of the row
// after its last row. A selection already ending at column 0 keeps its end.
// The result is clipped to the document's final position.
func normalizeSelection(snapshot string, sel doc.Range) doc.Range {
	start := doc.Position{Line: sel.Start.Line, Col: 0}

	end := sel.End
	if end.Col != 0 {
		end = doc.Position{Line: sel.End.Line + 1, Col: 0}
	}

	lines := strings.Split(snapshot, "\n")
	if end.Line >= len(lines) {
		end = endOfText(lines)
	}
	return doc.Range{Start: start, End: end}
}

// wholeRange spans the entire snapshot.
func wholeRange(snapshot string) doc.Range {
	lines := strings.Split(snapshot, "\n")
	return doc.Range{Start: doc.Position{}, End: endOfText(lines)}
}

func endOfText(lines []string) doc.Position {
	last := len(lines) - 1
	return doc.Position{Line: last, Col: len([]rune(lines[last]))}
}

// excluded reports whether path matches any exclusion glob, by base name or
// full path.
func excluded(patterns []string, path string) bool {
	if path == "" || len(patterns) == 0 {
		return false
	}
	clean := filepath.Clean(path)
	base := filepath.Base(clean)
	for _, pattern := range patterns {
		if matched, err := filepath.Match(pattern, base); err == nil && matched {
			return true
		}
		if matched, err := filepath.Match(pattern, clean); err == nil && matched {
			return true
		}
	}
	return false
}
