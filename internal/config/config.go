// Package config loads and watches the autofmt configuration.
//
// Configuration lives in a single TOML file. Accessors return snapshot
// structs under a read lock so consumers can honor the "read at trigger
// time" rule: nothing here is cached for the process lifetime, and a live
// reload through the file watcher is visible to the very next trigger.
package config

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/autofmt/internal/logging"
)

// ErrWatcherRunning is returned when Watch is called twice.
var ErrWatcherRunning = errors.New("config watcher already running")

// FormatSection holds the formatting behavior switches.
type FormatSection struct {
	// OnSave formats documents before persistence.
	OnSave bool `toml:"on_save"`

	// OnType formats after qualifying keystrokes.
	OnType bool `toml:"on_type"`

	// SaveTimeoutMS bounds save-path formatting, in milliseconds.
	SaveTimeoutMS int `toml:"save_timeout_ms"`

	// BracketPairs lists two-character auto-completions that count as a
	// single keystroke for on-type formatting.
	BracketPairs []string `toml:"bracket_pairs"`

	// Exclude lists glob patterns for paths never formatted.
	Exclude []string `toml:"exclude"`
}

// SaveTimeout returns the save budget as a duration.
func (f FormatSection) SaveTimeout() time.Duration {
	return time.Duration(f.SaveTimeoutMS) * time.Millisecond
}

// LogSection holds logging settings.
type LogSection struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `toml:"level"`
}

// LuaProvider describes one Lua-scripted formatting provider to load.
type LuaProvider struct {
	// Path is the script location.
	Path string `toml:"path"`
}

// ProviderSection lists configured formatting backends.
type ProviderSection struct {
	Lua []LuaProvider `toml:"lua"`
}

// File is the full configuration document.
type File struct {
	Format   FormatSection   `toml:"format"`
	Log      LogSection      `toml:"log"`
	Provider ProviderSection `toml:"provider"`
}

// Default returns the built-in configuration.
func Default() File {
	return File{
		Format: FormatSection{
			OnSave:        true,
			OnType:        true,
			SaveTimeoutMS: 2500,
		},
		Log: LogSection{Level: "info"},
	}
}

// Config provides concurrent access to the loaded configuration.
type Config struct {
	mu   sync.RWMutex
	path string
	data File
	log  *logging.Logger

	watchMu  sync.Mutex
	watchrun bool
	stop     chan struct{}
	done     chan struct{}

	subMu sync.Mutex
	subs  map[int]func()
	next  int
}

// Option configures a Config.
type Option func(*Config)

// WithPath sets the configuration file location.
func WithPath(path string) Option {
	return func(c *Config) {
		c.path = path
	}
}

// WithLogger sets the logger used by the watcher.
func WithLogger(log *logging.Logger) Option {
	return func(c *Config) {
		c.log = log
	}
}

// New creates a Config holding the defaults. Call Load to read the file.
func New(opts ...Option) *Config {
	c := &Config{
		data: Default(),
		log:  logging.Nop(),
		subs: make(map[int]func()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load reads the configuration file. A missing file leaves the defaults in
// place and is not an error; a malformed file is.
func (c *Config) Load() error {
	if c.path == "" {
		return nil
	}

	raw, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	data := Default()
	if err := toml.Unmarshal(raw, &data); err != nil {
		return err
	}

	c.mu.Lock()
	c.data = data
	c.mu.Unlock()

	c.notify()
	return nil
}

// Format returns the current formatting section.
func (c *Config) Format() FormatSection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Format
}

// Log returns the current logging section.
func (c *Config) Log() LogSection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Log
}

// LuaProviders returns the configured Lua provider scripts.
func (c *Config) LuaProviders() []LuaProvider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]LuaProvider, len(c.data.Provider.Lua))
	copy(out, c.data.Provider.Lua)
	return out
}

// OnChange registers fn to run after every successful reload. The returned
// function removes the registration.
func (c *Config) OnChange(fn func()) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.next
	c.next++
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

// notify invokes the change subscribers.
func (c *Config) notify() {
	c.subMu.Lock()
	subs := make([]func(), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, fn := range subs {
		fn()
	}
}
