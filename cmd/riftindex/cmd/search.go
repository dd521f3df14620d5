package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/riftindex/riftindex/internal/engine"
	"github.com/riftindex/riftindex/internal/search"
)

func newSearchCmd() *cobra.Command {
	var topK int
	var mode string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed corpus",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), topK, mode, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "n", 10, "number of results to return (1-100)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "hybrid", "retrieval mode: lexical, semantic, hybrid")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, topK int, mode string, jsonOutput bool) error {
	eng, cfg, err := buildEngine()
	if err != nil {
		return err
	}
	cleanup := setupLogging(cfg)
	defer cleanup()

	resp, err := eng.Search(cmd.Context(), engine.SearchRequest{
		Query: query,
		TopK:  topK,
		Mode:  search.Mode(mode),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp.Results)
	}

	for i, r := range resp.Results {
		fmt.Fprintf(out, "%d. %s  [%s]\n", i+1, r.FilePath, r.HeadingPath)
		fmt.Fprintf(out, "   %s\n", truncate(r.Content, 200))
	}
	fmt.Fprintf(out, "\n%d result(s), mode=%s, embedder=%s\n", resp.Count, resp.Mode, resp.EmbeddingModel)
	return nil
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
