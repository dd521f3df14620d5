package chunk

import "context"

// Size thresholds for the Markdown chunker. Overridable via config.
const (
	DefaultMaxChunkChars = 2000
	DefaultMinChunkChars = 120
)

// Chunk is a heading-scoped span of a Markdown file with a stable id.
type Chunk struct {
	ChunkID     string // 16-hex truncation of sha256(normalized_path::chunk_index)
	ChunkIndex  int    // dense, monotone per file starting at 0
	HeadingPath string // breadcrumb like "Top > Mid > Leaf"
	Content     string
	TokenCount  int
}

// FileInput is the input to Chunk: a Markdown document's bytes plus its
// normalized path relative to the index root.
type FileInput struct {
	Path    string
	Content []byte
}

// Options configures the chunk size thresholds.
type Options struct {
	MaxChunkChars int
	MinChunkChars int
}

// DefaultOptions returns the spec-default thresholds.
func DefaultOptions() Options {
	return Options{
		MaxChunkChars: DefaultMaxChunkChars,
		MinChunkChars: DefaultMinChunkChars,
	}
}

// Chunker splits a Markdown file into heading-scoped chunks.
type Chunker interface {
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)
	SupportedExtensions() []string
}
