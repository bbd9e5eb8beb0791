// Copyright 2025 The MentionServe Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the mention typeahead server and CLI [DBG] application.

Note: This is a BETA release. APIs and functionality may rapidly change.

MentionServe watches the text before the cursor for a mention trigger
("@Han") or a capitalized name ("Luke Skywalker"), looks the query up in an
entity directory and keeps a small ranked menu of matches. Selecting an
option yields the edit that turns the typed span into a mention.

# Usage

Start the IPC server with the built-in sample directory:

	mentionserve

Serve names from a text or TOML file, reloaded when it changes:

	mentionserve --data people.txt -d

Use a SQLite directory (created and seeded when empty):

	mentionserve --sqlite entities.db

Simulate a slow remote directory in the interactive CLI:

	mentionserve -c --latency 300ms

# Configuration

Runtime configuration is read from a TOML file, created with defaults at
<config dir>/mentionserve/config.toml when missing:

	[trigger]
	chars = "@"
	max_length = 75
	capitalized_names = true
	competing = "/"

	[suggest]
	limit = 5
	cache_size = 256
	lookup_timeout_ms = 3000

	[lookup]
	latency_ms = 0
	rate_limit = 0.0
	directory = ""
	watch = true

	[server]
	max_text = 1000

Invalid values in one key do not discard the rest of the file.

# IPC Protocol

The server speaks MessagePack over stdin/stdout, see package server:

	{"id": "1", "action": "text", "text": "Hi @Han"}
	{"id": "2", "action": "select", "key": "Han Solo"}

Logs are written to stderr.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bastiangx/mentionserve/internal/cli"
	"github.com/bastiangx/mentionserve/internal/logger"
	"github.com/bastiangx/mentionserve/internal/utils"
	"github.com/bastiangx/mentionserve/pkg/config"
	"github.com/bastiangx/mentionserve/pkg/directory"
	"github.com/bastiangx/mentionserve/pkg/lookup"
	"github.com/bastiangx/mentionserve/pkg/server"
	"github.com/bastiangx/mentionserve/pkg/suggest"
	"github.com/bastiangx/mentionserve/pkg/trigger"
	"github.com/bastiangx/mentionserve/pkg/typeahead"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

const (
	Version = "0.1.0-beta"
	AppName = "mentionserve"
	gh      = "https://github.com/bastiangx/mentionserve"
)

type options struct {
	configPath  string
	debug       bool
	cliMode     bool
	dataFile    string
	sqlitePath  string
	latency     time.Duration
	showVersion bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Mention typeahead over MessagePack IPC",
		Long:          "Detects mention queries in typed text, looks them up in an entity directory and serves a ranked menu.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.showVersion {
				showVersion()
				return nil
			}
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "Path to a config.toml (default <config dir>/mentionserve/config.toml)")
	flags.BoolVarP(&opts.debug, "debug", "d", false, "Toggle debug mode")
	flags.BoolVarP(&opts.cliMode, "cli", "c", false, "Run CLI -- useful for testing and debugging")
	flags.StringVar(&opts.dataFile, "data", "", "Entity list (.txt, .list or .toml) instead of the built-in sample")
	flags.StringVar(&opts.sqlitePath, "sqlite", "", "SQLite entity directory, seeded with --data or the sample when empty")
	flags.DurationVar(&opts.latency, "latency", 0, "Artificial lookup latency, e.g. 250ms")
	flags.BoolVar(&opts.showVersion, "version", false, "Show current version")
	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	if opts.debug {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else {
		log.SetLevel(log.WarnLevel)
	}
	log.SetOutput(os.Stderr)

	// component loggers carry timestamps in debug mode, like the global one
	newLogger := logger.Default
	if opts.debug {
		newLogger = logger.New
	}

	cfg, configPath, err := config.LoadConfigWithPriority(opts.configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Debugf("Using config file: (%s)", config.GetActiveConfigPath(configPath))

	if cmd.Flags().Changed("data") {
		cfg.Lookup.Directory = opts.dataFile
	}
	if cmd.Flags().Changed("sqlite") {
		cfg.Lookup.SQLite = opts.sqlitePath
	}
	if cmd.Flags().Changed("latency") {
		cfg.Lookup.LatencyMs = int(opts.latency / time.Millisecond)
	}

	// --data and --sqlite together means "import the file into the database"
	importFile := ""
	if cfg.Lookup.Directory != "" && cfg.Lookup.SQLite != "" {
		importFile, cfg.Lookup.Directory = cfg.Lookup.Directory, ""
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	matcher, err := trigger.NewMatcher(cfg.TriggerConfig())
	if err != nil {
		log.Fatalf("Failed to build trigger grammar: %v", err)
	}

	baseDirs := searchDirs(configPath)
	svc, watcher, cleanup, source, err := openDirectory(cfg, importFile, baseDirs, newLogger("directory"))
	if err != nil {
		log.Fatalf("Failed to open entity directory: %v", err)
	}
	defer cleanup()
	sigHandler(cleanup)

	svc = shapeService(svc, cfg)

	build := func(editor typeahead.Editor) *typeahead.Controller {
		cache := suggest.NewQueryCache(cfg.Suggest.CacheSize, cfg.LookupTimeout())
		if watcher != nil {
			watcher.OnReload(cache.Purge)
		}
		return typeahead.New(matcher, svc, editor,
			typeahead.WithCache(cache),
			typeahead.WithRanker(suggest.NewRanker(cfg.Suggest.Limit)),
			typeahead.WithLookupTimeout(cfg.LookupTimeout()),
			typeahead.WithLogger(newLogger("typeahead")),
		)
	}

	// CLI would be mainly used for testing and dbg purposes.
	if opts.cliMode {
		log.SetReportTimestamp(false)
		log.Debug("Input info:",
			"source", source,
			"limit", cfg.Suggest.Limit,
			"latency", cfg.Latency(),
			"triggers", cfg.Trigger.Chars)

		inputHandler := cli.NewInputHandler(os.Stdin, os.Stdout, build, cfg.CLI.MenuWidth, cfg.CLI.ShowPending)
		if err := inputHandler.Start(); err != nil {
			log.Errorf("CLI error: %v", err)
			return err
		}
		return nil
	}

	log.Debug("spawning IPC")
	srv := server.NewServer(os.Stdin, os.Stdout, build,
		server.WithMaxText(cfg.Server.MaxText),
		server.WithLogger(newLogger("server")))

	showStartupInfo(source, srv.Controller().SessionID())

	if err := srv.Start(); err != nil {
		log.Errorf("Server stopped: %v", err)
		return err
	}
	return nil
}

// openDirectory picks the entity backend: SQLite, a (watched) file, or the
// built-in sample. The watcher is nil unless the file is watched. The
// returned cleanup is safe to call more than once.
func openDirectory(cfg *config.Config, importFile string, baseDirs []string, dirLogger *log.Logger) (lookup.Service, *directory.Watcher, func(), string, error) {
	lc := cfg.Lookup
	noop := func() {}

	switch {
	case lc.SQLite != "":
		db, err := directory.OpenSQLite(lc.SQLite)
		if err != nil {
			return nil, nil, noop, "", err
		}
		if err := seedSQLite(db, importFile, baseDirs); err != nil {
			db.Close()
			return nil, nil, noop, "", err
		}
		return db, nil, func() { db.Close() }, "sqlite:" + lc.SQLite, nil

	case lc.Directory != "":
		path, err := utils.ResolveFile(lc.Directory, baseDirs...)
		if err != nil {
			return nil, nil, noop, "", err
		}
		mem := directory.NewMemory(nil)
		if !lc.Watch {
			names, err := directory.LoadFile(path)
			if err != nil {
				return nil, nil, noop, "", err
			}
			mem.Replace(names)
			return mem, nil, noop, path, nil
		}
		w, err := directory.Watch(path, mem, dirLogger)
		if err != nil {
			return nil, nil, noop, "", err
		}
		return mem, w, func() { w.Stop() }, path + " (watched)", nil

	default:
		return directory.NewMemory(directory.Sample()), nil, noop, "sample", nil
	}
}

func seedSQLite(db *directory.SQLite, importFile string, baseDirs []string) error {
	ctx := context.Background()
	if importFile != "" {
		path, err := utils.ResolveFile(importFile, baseDirs...)
		if err != nil {
			return err
		}
		names, err := directory.LoadFile(path)
		if err != nil {
			return err
		}
		log.Debugf("Importing %d entities from %s", len(names), path)
		return db.Add(ctx, names...)
	}

	n, err := db.Len(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		log.Debug("Empty SQLite directory, seeding with the sample")
		return db.Add(ctx, directory.Sample()...)
	}
	return nil
}

// shapeService wraps the backend with the configured latency and rate limit.
func shapeService(svc lookup.Service, cfg *config.Config) lookup.Service {
	if cfg.Lookup.RateLimit > 0 {
		svc = lookup.WithRateLimit(svc, rate.NewLimiter(rate.Limit(cfg.Lookup.RateLimit), cfg.Lookup.Burst))
	}
	return lookup.WithLatency(svc, cfg.Latency())
}

func searchDirs(configPath string) []string {
	var dirs []string
	if configPath != "" {
		dirs = append(dirs, filepath.Dir(configPath))
	}
	if execDir, err := utils.GetExecutableDir(); err == nil {
		dirs = append(dirs, execDir)
	}
	return dirs
}

// sigHandler is a simple handler for OS signals to exit normally.
func sigHandler(cleanup func()) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		cleanup()
		os.Exit(0)
	}()
}

func showVersion() {
	banner := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}).
		Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	banner.SetStyles(styles)

	banner.Print("")
	banner.Print("[ MentionServe ] Mention typeahead for editors")
	banner.Print("", "version", Version)
	banner.Print("")
	banner.Print("use -h or --help to see available options")
	banner.Print("Github Repo", "gh", gh)
}

// showStartupInfo displays some basic info about the init process.
func showStartupInfo(source, session string) {
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)
	defer log.SetLevel(currentLevel)

	log.Info("===========")
	log.Info(" MentionServe ")
	log.Info("===========")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", os.Getpid())
	log.Infof("directory: ( %s )", source)
	log.Infof("session: %s", session)
	log.Info("status: ready")
}
