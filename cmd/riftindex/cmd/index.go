package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/riftindex/riftindex/internal/engine"
)

func newIndexCmd() *cobra.Command {
	var force, pruneMissing, background bool

	cmd := &cobra.Command{
		Use:   "index [paths...]",
		Short: "Index one or more roots into the database",
		Long: `Walks each given root (default ".") for Markdown files matching the
configured include/exclude globs, chunking and embedding any file whose
stat or content hash has changed since the last run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			roots := args
			if len(roots) == 0 {
				roots = []string{"."}
			}
			return runIndex(cmd, roots, force, pruneMissing, background)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "re-chunk and re-embed every file regardless of stat/hash match")
	cmd.Flags().BoolVar(&pruneMissing, "prune", false, "delete files no longer present under any root")
	cmd.Flags().BoolVar(&background, "background", false, "submit to the background queue instead of running inline")

	return cmd
}

func runIndex(cmd *cobra.Command, roots []string, force, pruneMissing, background bool) error {
	eng, cfg, err := buildEngine()
	if err != nil {
		return err
	}
	cleanup := setupLogging(cfg)
	defer cleanup()

	resp, err := eng.Reindex(cmd.Context(), engine.ReindexRequest{
		Roots:        roots,
		Force:        force,
		PruneMissing: pruneMissing,
		Background:   background,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if background {
		fmt.Fprintf(out, "reindex job %s submitted (%s)\n", resp.JobID, resp.Status)
		return nil
	}

	fmt.Fprintf(out, "indexed: %d, skipped: %d, errored: %d, deleted: %d\n", resp.IndexedFiles, resp.SkippedFiles, resp.ErroredFiles, resp.DeletedFiles)
	return nil
}
