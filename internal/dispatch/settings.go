package dispatch

import "time"

// DefaultSaveTimeout is the hard budget for save-path formatting.
const DefaultSaveTimeout = 2500 * time.Millisecond

// Settings is the configuration snapshot a dispatch reads at trigger time.
type Settings struct {
	// OnSave enables formatting before persistence.
	OnSave bool

	// OnType enables formatting after qualifying keystrokes.
	OnType bool

	// SaveTimeout bounds save-path formatting. Zero means
	// DefaultSaveTimeout.
	SaveTimeout time.Duration

	// BracketPairs is the allowlist of two-character auto-completions that
	// still trigger on-type formatting. Nil means the trigger package
	// default.
	BracketPairs []string

	// Exclude holds glob patterns for file paths never formatted.
	Exclude []string
}

// SettingsFunc supplies the current settings. It is called once per
// trigger; implementations must not assume the result is cached.
type SettingsFunc func() Settings

// Notifier is the user-facing error surface. Command-path failures are
// reported through it as a one-line message.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(msg string)

// Notify implements Notifier.
func (f NotifierFunc) Notify(msg string) { f(msg) }
