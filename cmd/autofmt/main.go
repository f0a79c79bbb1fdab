// Package main is the autofmt batch formatter: it opens the named files,
// drives each one through the save pipeline (format, then persist), and
// writes the results back.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/autofmt/internal/config"
	"github.com/dshills/autofmt/internal/coordinator"
	"github.com/dshills/autofmt/internal/doc/memdoc"
	"github.com/dshills/autofmt/internal/logging"
	"github.com/dshills/autofmt/internal/luafmt"
	"github.com/dshills/autofmt/internal/providers/whitespace"
	"github.com/dshills/autofmt/internal/registry"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

type options struct {
	configPath  string
	contentType string
	logLevel    string
	showVersion bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, files := parseFlags()

	if opts.showVersion {
		fmt.Printf("autofmt %s (%s)\n", version, commit)
		return 0
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: autofmt [flags] FILE...")
		flag.PrintDefaults()
		return 2
	}

	cfg := config.New(config.WithPath(opts.configPath))
	if err := cfg.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot load config: %v\n", err)
		return 1
	}

	level := cfg.Log().Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(level)
	log := logging.New(logCfg)

	reg := registry.New()
	reg.Register(whitespace.New(builtinSelector(opts.contentType), 1))

	scripts, err := loadScripts(cfg, reg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer func() {
		for _, s := range scripts {
			s.Close()
		}
	}()

	editor := memdoc.NewEditor()
	coord := coordinator.New(editor, cfg, reg, coordinator.WithLogger(log))
	if err := coord.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer coord.Stop()

	failed := 0
	for _, path := range files {
		if err := formatFile(editor, path, opts.contentType); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", path, err)
			failed++
		}
	}

	// The save pipeline is asynchronous past the trigger; give in-flight
	// work the full save budget before tearing down.
	deadline := time.After(cfg.Format().SaveTimeout() + 100*time.Millisecond)
	for {
		stats := coord.Stats()
		if stats.Completed+stats.Failed >= stats.Started {
			break
		}
		select {
		case <-deadline:
			log.Warn("timed out waiting for formatting to finish")
			return 1
		case <-time.After(10 * time.Millisecond):
		}
	}

	// Failed operations include persistence failures surfaced through the
	// save pipeline.
	if s := coord.Stats(); s.Failed > 0 {
		failed += int(s.Failed)
	}

	if failed > 0 {
		return 1
	}
	return 0
}

// formatFile opens path in the editor and drives its save action. The
// coordinator's save interception formats the buffer before persistence.
func formatFile(editor *memdoc.Editor, path, fallbackType string) error {
	ct := contentTypeFor(path)
	if ct == "" {
		ct = fallbackType
	}
	d, err := memdoc.Open(path, memdoc.WithContentType(ct))
	if err != nil {
		return err
	}
	editor.Add(d)
	return d.Save()
}

// loadScripts loads the configured Lua providers into reg.
func loadScripts(cfg *config.Config, reg *registry.Registry, log *logging.Logger) ([]*luafmt.Script, error) {
	var scripts []*luafmt.Script
	for _, lp := range cfg.LuaProviders() {
		s, err := luafmt.Load(lp.Path)
		if err != nil {
			for _, prev := range scripts {
				prev.Close()
			}
			return nil, err
		}
		reg.Register(s.Provider())
		log.Info("loaded lua provider %s from %s", s.Provider().DisplayName(), lp.Path)
		scripts = append(scripts, s)
	}
	return scripts, nil
}

// builtinSelector lists every content type the CLI can assign, so the
// builtin provider covers all of them.
func builtinSelector(fallback string) string {
	types := []string{"source.go", "text.markdown", "text.plain", "source.lua", "source.toml"}
	for _, t := range types {
		if t == fallback {
			return strings.Join(types, ",")
		}
	}
	return strings.Join(append(types, fallback), ",")
}

// contentTypeFor maps common file extensions to content-type identifiers.
func contentTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".go":
		return "source.go"
	case ".md":
		return "text.markdown"
	case ".txt":
		return "text.plain"
	case ".lua":
		return "source.lua"
	case ".toml":
		return "source.toml"
	default:
		return ""
	}
}

func parseFlags() (options, []string) {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.contentType, "type", "text.plain", "Content type for files with unknown extensions")
	flag.StringVar(&opts.logLevel, "log", "", "Log level (debug, info, warn, error); overrides config")
	flag.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	flag.Parse()
	return opts, flag.Args()
}
