package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/riftindex/riftindex/internal/engine"
	"github.com/riftindex/riftindex/internal/search"
	"github.com/riftindex/riftindex/pkg/version"
)

// Server is the MCP tool surface over an Engine: five tools (search,
// get_chunk, get_file, index_status, reindex), each resolving its own
// database connection and runtime from an optional per-call db_path.
type Server struct {
	mcp    *mcp.Server
	engine *engine.Engine
	logger *slog.Logger
}

// NewServer builds a Server over eng and registers its tools.
func NewServer(eng *engine.Engine) *Server {
	s := &Server{
		engine: eng,
		logger: slog.Default(),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "riftindex",
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s
}

// MCPServer returns the underlying SDK server, for transport wiring.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Serve runs the server over the given transport until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("mcp server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp server stopped")
		return nil
	default:
		return fmt.Errorf("unsupported transport %q (only stdio is implemented; streamable-http is an external transport concern)", transport)
	}
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid lexical+semantic search over the indexed Markdown corpus. Use mode=hybrid (default) for the best general-purpose ranking, lexical for exact-term lookups, or semantic for conceptual similarity.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_chunk",
		Description: "Fetch a single chunk by its stable chunk id, as returned in search results.",
	}, s.handleGetChunk)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_file",
		Description: "Fetch a file and all of its chunks, in order, by path.",
	}, s.handleGetFile)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Report index row counts, the active embedding backend/model, configured globs, the persisted git fingerprint, and background job history.",
	}, s.handleIndexStatus)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "reindex",
		Description: "(Re)index one or more roots. Runs inline by default; set background=true to enqueue it on the server's background worker instead.",
	}, s.handleReindex)

	s.logger.Info("mcp tools registered", slog.Int("count", 5))
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query is required and must not be blank")
	}

	topK := input.TopK
	if topK == 0 {
		topK = 10
	}
	if topK < 1 || topK > 100 {
		return nil, SearchOutput{}, NewInvalidParamsError("top_k must be between 1 and 100")
	}

	mode := search.Mode(input.Mode)
	switch mode {
	case "":
		mode = search.ModeHybrid
	case search.ModeLexical, search.ModeSemantic, search.ModeHybrid:
	default:
		return nil, SearchOutput{}, NewInvalidParamsError(fmt.Sprintf("mode must be one of lexical, semantic, hybrid, got %q", input.Mode))
	}

	resp, err := s.engine.Search(ctx, engine.SearchRequest{
		DBPath: input.DBPath,
		Query:  input.Query,
		TopK:   topK,
		Mode:   mode,
	})
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}
	return nil, toSearchOutput(input.Query, mode, resp), nil
}

func (s *Server) handleGetChunk(ctx context.Context, _ *mcp.CallToolRequest, input GetChunkInput) (*mcp.CallToolResult, GetChunkOutput, error) {
	if strings.TrimSpace(input.ChunkID) == "" {
		return nil, GetChunkOutput{}, NewInvalidParamsError("chunk_id is required")
	}
	resp, err := s.engine.GetChunk(ctx, input.DBPath, input.ChunkID)
	if err != nil {
		return nil, GetChunkOutput{}, MapError(err)
	}
	return nil, GetChunkOutput{Chunk: toChunkOutput(resp.Chunk)}, nil
}

func (s *Server) handleGetFile(ctx context.Context, _ *mcp.CallToolRequest, input GetFileInput) (*mcp.CallToolResult, GetFileOutput, error) {
	if strings.TrimSpace(input.Path) == "" {
		return nil, GetFileOutput{}, NewInvalidParamsError("path is required")
	}
	resp, err := s.engine.GetFile(ctx, input.DBPath, input.Path)
	if err != nil {
		return nil, GetFileOutput{}, MapError(err)
	}
	return nil, GetFileOutput{File: toFileOutput(resp.File)}, nil
}

func (s *Server) handleIndexStatus(ctx context.Context, _ *mcp.CallToolRequest, input IndexStatusInput) (*mcp.CallToolResult, *IndexStatusOutput, error) {
	resp, err := s.engine.IndexStatus(ctx, input.DBPath)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, toIndexStatusOutput(resp), nil
}

func (s *Server) handleReindex(ctx context.Context, _ *mcp.CallToolRequest, input ReindexInput) (*mcp.CallToolResult, ReindexOutput, error) {
	roots := input.Paths
	if len(roots) == 0 && input.Path != "" {
		roots = []string{input.Path}
	}
	if len(roots) == 0 {
		return nil, ReindexOutput{}, NewInvalidParamsError("one of path or paths is required")
	}

	resp, err := s.engine.Reindex(ctx, engine.ReindexRequest{
		DBPath:       input.DBPath,
		Roots:        roots,
		Force:        input.Force,
		PruneMissing: input.PruneMissing,
		Background:   input.Background,
	})
	if err != nil {
		return nil, ReindexOutput{}, MapError(err)
	}
	return nil, toReindexOutput(resp), nil
}
