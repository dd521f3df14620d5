// Package cmd provides the CLI commands for riftindex.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/riftindex/riftindex/internal/config"
	"github.com/riftindex/riftindex/internal/engine"
	"github.com/riftindex/riftindex/internal/logging"
	"github.com/riftindex/riftindex/pkg/version"
)

var dbPathFlag string

// NewRootCmd creates the root command for the riftindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "riftindex",
		Short:   "Hybrid lexical+semantic retrieval over a local Markdown corpus",
		Version: version.Version,
		Long: `riftindex incrementally indexes a tree of Markdown files into a single
SQLite file, then serves hybrid (BM25 + cosine) search over it — either
as a CLI or as an MCP server for a coding assistant to call as a tool.`,
	}
	cmd.SetVersionTemplate("riftindex version {{.Version}}\n")
	cmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "override the configured database path")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// buildEngine loads configuration from the current project root (applying
// --db as an override to db_path) and constructs an Engine over it.
func buildEngine() (*engine.Engine, *config.Config, error) {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if dbPathFlag != "" {
		cfg.DBPath = dbPathFlag
	}

	return engine.New(cfg), cfg, nil
}

// setupLogging initializes file-plus-stderr structured logging per cfg and
// returns a cleanup func to run on exit. Errors here are non-fatal: a CLI
// invocation still runs with the default logger if file logging can't be
// set up (e.g. unwritable home directory).
func setupLogging(cfg *config.Config) func() {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	if cfg.LogPath != "" {
		logCfg.FilePath = cfg.LogPath
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		slog.Warn("failed to set up file logging, continuing with default logger", slog.String("error", err.Error()))
		return func() {}
	}
	slog.SetDefault(logger)
	return cleanup
}
