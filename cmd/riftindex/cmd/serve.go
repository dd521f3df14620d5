package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/riftindex/riftindex/internal/mcp"
)

// shutdownTimeout bounds how long runServe waits for the background
// indexer's in-flight job and the file watcher to stop on exit.
const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var transport string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), transport, watch)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "MCP transport (only stdio is implemented)")
	cmd.Flags().BoolVar(&watch, "watch", false, "start the filesystem watcher alongside the server")

	return cmd
}

func runServe(ctx context.Context, transport string, watch bool) error {
	eng, cfg, err := buildEngine()
	if err != nil {
		return err
	}

	cleanup := setupLogging(cfg)
	defer cleanup()

	// stdio framing needs stdout reserved for JSON-RPC, so all process
	// lifecycle logging below goes to slog (file + stderr), never stdout.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if watch || cfg.FileWatcherEnabled {
		eng.StartWatcher(ctx)
		slog.Info("file watcher started", slog.Any("paths", cfg.FileWatcherPaths))
	}

	server := mcp.NewServer(eng)

	// Process-exit hook: whatever stops the Run loop (signal, transport
	// close) falls through to here and shuts the background indexer and
	// watcher down before the process exits.
	defer func() {
		if err := eng.Shutdown(shutdownTimeout); err != nil {
			slog.Warn("engine shutdown did not complete cleanly", slog.String("error", err.Error()))
		}
	}()

	slog.Info("riftindex mcp server starting", slog.String("db_path", cfg.DBPath))
	return server.Serve(ctx, transport)
}
