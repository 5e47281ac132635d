// Package main is the jsondb command line tool.
//
// jsondb manipulates tables stored as JSON arrays, one file per table in a
// data directory (or one bbolt file). Configuration is read from CLI flags,
// JSONDB_* environment variables and jsondb.yaml in the data directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/maruel/jsondb/internal/config"
	"github.com/maruel/jsondb/internal/jsonldb"
	"github.com/maruel/jsondb/internal/storage"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "jsondb: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	dataDir := flag.String("data-dir", "./data", "Data directory")
	backend := flag.String("backend", config.BackendDir, "Storage backend (dir, bolt)")
	boltFile := flag.String("bolt-file", "jsondb.db", "bbolt file for the bolt backend, relative to -data-dir")
	configPath := flag.String("config", "", "Configuration file (default: <data-dir>/"+config.FileName+")")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	caseSensitive := flag.Bool("case-sensitive", false, "Compare text case-sensitively in conditions")
	flag.Usage = usage
	flag.Parse()

	if *version {
		printVersion()
		return nil
	}
	if flag.NArg() == 0 {
		usage()
		return errors.New("no command given")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			val := a.Value.Any()
			skip := false
			switch t := val.(type) {
			case string:
				skip = t == ""
			case bool:
				skip = !t
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	// Flags explicitly set win over the environment, which wins over the
	// configuration file.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	if !set["config"] {
		dir := *dataDir
		if !set["data-dir"] {
			if v := os.Getenv("JSONDB_DATA_DIR"); v != "" {
				dir = v
			}
		}
		*configPath = filepath.Join(dir, config.FileName)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(os.Getenv, set)
	if set["data-dir"] {
		cfg.DataDir = *dataDir
	}
	if set["backend"] {
		cfg.Backend = *backend
	}
	if set["bolt-file"] {
		cfg.BoltFile = *boltFile
	}
	if set["log-level"] {
		cfg.LogLevel = *logLevel
	}
	if set["case-sensitive"] {
		cfg.CaseSensitive = *caseSensitive
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	ll.Set(level)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	db, err := jsonldb.Open(store, &jsonldb.Options{CaseSensitive: cfg.CaseSensitive, Logger: logger})
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.WarnContext(ctx, "Failed to close store", "err", err)
		}
	}()
	slog.DebugContext(ctx, "Opened database", "backend", cfg.Backend, "data_dir", cfg.DataDir, "tables", len(db.Tables()))
	return run(ctx, &env{db: db, stdin: os.Stdin, stdout: os.Stdout}, flag.Args())
}

func openStore(cfg *config.Config) (storage.FileStore, error) {
	switch cfg.Backend {
	case config.BackendBolt:
		store, err := storage.OpenBoltStore(cfg.BoltPath())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize bolt store: %w", err)
		}
		return store, nil
	default:
		store, err := storage.NewDirStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file store: %w", err)
		}
		return store, nil
	}
}

func usage() {
	out := flag.CommandLine.Output()
	_, _ = fmt.Fprintf(out, "usage: jsondb [flags] <command> [command flags]\n\ncommands:\n")
	for _, c := range commands {
		_, _ = fmt.Fprintf(out, "  %-9s %s\n", c.name, c.help)
	}
	_, _ = fmt.Fprintf(out, "\nflags:\n")
	flag.PrintDefaults()
}

func printVersion() {
	v := versionOf(debug.ReadBuildInfo())
	fmt.Printf("jsondb %s\n", v.version)
	fmt.Printf("  Go version: %s\n", v.goVersion)
	fmt.Printf("  Revision:   %s\n", v.revision)
	if v.dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

type buildVersion struct {
	version   string
	goVersion string
	revision  string
	dirty     bool
}

// versionOf extracts what -version prints from the embedded build info.
func versionOf(info *debug.BuildInfo, ok bool) buildVersion {
	v := buildVersion{version: "unknown", goVersion: "unknown", revision: "unknown"}
	if !ok || info == nil {
		return v
	}
	v.version = info.Main.Version
	if v.version == "" || v.version == "(devel)" {
		v.version = "dev"
	}
	v.goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			v.revision = setting.Value
		case "vcs.modified":
			v.dirty = setting.Value == "true"
		}
	}
	return v
}
