package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health: row counts, embedder, globs, background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
	eng, cfg, err := buildEngine()
	if err != nil {
		return err
	}
	cleanup := setupLogging(cfg)
	defer cleanup()

	resp, err := eng.IndexStatus(cmd.Context(), "")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintf(out, "db: %s\n", resp.DBPath)
	if resp.Counts != nil {
		fmt.Fprintf(out, "files: %d  chunks: %d  embeddings: %d\n", resp.Counts.Files, resp.Counts.Chunks, resp.Counts.Embeddings)
	}
	fmt.Fprintf(out, "embedder: %s (%s)\n", resp.EmbeddingModel, resp.EmbeddingBackend)
	fmt.Fprintf(out, "include: %v\n", resp.IncludeGlobs)
	fmt.Fprintf(out, "exclude: %v\n", resp.ExcludeGlobs)
	if resp.GitFingerprint != nil {
		fmt.Fprintf(out, "git: %s@%s (dirty=%v)\n", resp.GitFingerprint.Branch, resp.GitFingerprint.Head[:min(8, len(resp.GitFingerprint.Head))], resp.GitFingerprint.Dirty)
	}
	for _, j := range resp.BackgroundJobs {
		fmt.Fprintf(out, "job %s: %s (retries=%d)\n", j.ID, j.Status, j.Retries)
	}
	return nil
}
