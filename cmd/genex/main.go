package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/M0hit1029/GenEx/internal/config"
	"github.com/M0hit1029/GenEx/internal/db"
	"github.com/M0hit1029/GenEx/internal/extract"
	"github.com/M0hit1029/GenEx/internal/history"
	"github.com/M0hit1029/GenEx/internal/keylock"
	"github.com/M0hit1029/GenEx/internal/logger"
	"github.com/M0hit1029/GenEx/internal/metrics"
	"github.com/M0hit1029/GenEx/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// deps are the long-lived collaborators shared by every command.
type deps struct {
	db  *sql.DB
	cfg *config.Config
	env *ops.Env
	log *logger.Logger
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return true
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// baseDir returns GENEX_HOME, or ~/.genex when it is unset.
func baseDir() (string, error) {
	if dir := os.Getenv("GENEX_HOME"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".genex"), nil
}

// newDeps loads configuration and opens the store under dir.
func newDeps(dir string) (*deps, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	database, err := db.Init(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db.ConfigurePool(database, cfg)

	env := &ops.Env{
		History: history.New(history.Options{
			Root:        cfg.HistoryRoot,
			RemoteURL:   cfg.HistoryRemoteURL,
			Branch:      cfg.HistoryBranch,
			AuthorEmail: cfg.CommitEmail,
			PushTimeout: time.Duration(cfg.PushTimeoutSeconds) * time.Second,
			Log:         log.With("component", "history"),
		}),
		Extractor: &extract.CommandRunner{
			Command: cfg.ExtractorCommand,
			Timeout: time.Duration(cfg.ExtractorTimeoutSeconds) * time.Second,
			Log:     log.With("component", "extract"),
		},
		Metrics: metrics.New(),
		Log:     log,
		Locks:   keylock.New(),
	}

	return &deps{db: database, cfg: cfg, env: env, log: log}, nil
}

func (d *deps) Close() {
	if d == nil {
		return
	}
	d.db.Close()
	d.log.Sync()
}

func main() {
	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	dir, err := baseDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	d, err := newDeps(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := newCLIApp(d)
	err = app.Run(os.Args)
	d.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
