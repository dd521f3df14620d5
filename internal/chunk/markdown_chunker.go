package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownChunker implements heading-scoped Markdown chunking over a
// goldmark AST.
type MarkdownChunker struct {
	options Options
}

// NewMarkdownChunker creates a chunker with default size thresholds.
func NewMarkdownChunker() *MarkdownChunker {
	return NewMarkdownChunkerWithOptions(DefaultOptions())
}

// NewMarkdownChunkerWithOptions creates a chunker with custom thresholds.
func NewMarkdownChunkerWithOptions(opts Options) *MarkdownChunker {
	if opts.MaxChunkChars == 0 {
		opts.MaxChunkChars = DefaultMaxChunkChars
	}
	if opts.MinChunkChars == 0 {
		opts.MinChunkChars = DefaultMinChunkChars
	}
	return &MarkdownChunker{options: opts}
}

// SupportedExtensions returns file extensions this chunker handles.
func (c *MarkdownChunker) SupportedExtensions() []string {
	return []string{".md", ".markdown"}
}

// NormalizePath converts a path to forward slashes with no leading separator.
func NormalizePath(path string) string {
	p := strings.ReplaceAll(path, "\\", "/")
	return strings.TrimLeft(p, "/")
}

// MakeChunkID derives the stable chunk id from a normalized path and a
// chunk index: the first 16 hex characters of sha256("path::index").
func MakeChunkID(path string, chunkIndex int) string {
	raw := fmt.Sprintf("%s::%d", NormalizePath(path), chunkIndex)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:8])
}

// section is one heading-scoped accumulation bucket. The first section
// (heading path "") holds any content preceding the first heading.
type section struct {
	headingPath string
	parts       []string
}

// headingEntry is one level of the pruned heading stack.
type headingEntry struct {
	level int
	text  string
}

// Chunk splits a Markdown file into heading-scoped chunks. A linear walk
// over the document's top-level block nodes groups content into sections
// keyed by the heading breadcrumb active at that point; within a section,
// blocks are accumulated by concatenation until the next block would push
// the buffer over MaxChunkChars, at which point the buffer is flushed (if
// it meets MinChunkChars) and accumulation restarts with that block. Fenced
// code blocks are always emitted whole, including their info string and
// backtick fences, so they never split across chunks.
func (c *MarkdownChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	source := file.Content

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	sections := []*section{{headingPath: ""}}
	var headingStack []headingEntry

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch n.Kind() {
		case ast.KindHeading:
			h := n.(*ast.Heading)
			title := strings.TrimSpace(inlineText(h, source))

			pruned := headingStack[:0:0]
			for _, he := range headingStack {
				if he.level < h.Level {
					pruned = append(pruned, he)
				}
			}
			pruned = append(pruned, headingEntry{level: h.Level, text: title})
			headingStack = pruned

			var crumbs []string
			for _, he := range headingStack {
				if he.text != "" {
					crumbs = append(crumbs, he.text)
				}
			}
			sections = append(sections, &section{headingPath: strings.Join(crumbs, " > ")})

		case ast.KindFencedCodeBlock:
			block := strings.TrimSpace(fencedCodeText(n.(*ast.FencedCodeBlock), source))
			if block != "" {
				cur := sections[len(sections)-1]
				cur.parts = append(cur.parts, block)
			}

		default:
			blockText := strings.TrimSpace(blockSourceText(n, source))
			if blockText != "" {
				cur := sections[len(sections)-1]
				cur.parts = append(cur.parts, blockText)
			}
		}
	}

	return c.emit(file.Path, sections), nil
}

// emit runs the accumulate-and-flush algorithm per section, with
// chunk_index monotone across the whole file.
func (c *MarkdownChunker) emit(path string, sections []*section) []*Chunk {
	var chunks []*Chunk
	chunkIndex := 0

	for _, sec := range sections {
		if len(sec.parts) == 0 {
			continue
		}

		var current string
		for _, part := range sec.parts {
			proposal := part
			if current != "" {
				proposal = current + "\n\n" + part
			}

			if len(proposal) <= c.options.MaxChunkChars {
				current = proposal
				continue
			}

			if len(current) >= c.options.MinChunkChars {
				chunks = append(chunks, c.newChunk(path, chunkIndex, sec.headingPath, current))
				chunkIndex++
			}
			current = part
		}

		if len(strings.TrimSpace(current)) >= c.options.MinChunkChars {
			chunks = append(chunks, c.newChunk(path, chunkIndex, sec.headingPath, current))
			chunkIndex++
		}
	}

	return chunks
}

func (c *MarkdownChunker) newChunk(path string, index int, headingPath, content string) *Chunk {
	content = strings.TrimSpace(content)
	return &Chunk{
		ChunkID:     MakeChunkID(path, index),
		ChunkIndex:  index,
		HeadingPath: headingPath,
		Content:     content,
		TokenCount:  len(strings.Fields(content)),
	}
}

// inlineText concatenates the literal text of an inline subtree, the way
// a Markdown renderer would strip emphasis/code-span markers but keep the
// underlying characters.
func inlineText(n ast.Node, source []byte) string {
	var sb strings.Builder
	var walk func(ast.Node)
	walk = func(node ast.Node) {
		switch t := node.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
		case *ast.String:
			sb.Write(t.Value)
		default:
			for child := node.FirstChild(); child != nil; child = child.NextSibling() {
				walk(child)
			}
		}
	}
	walk(n)
	return sb.String()
}

// blockLiner is satisfied by goldmark block nodes that carry a raw source
// line range (ast.BaseBlock.Lines).
type blockLiner interface {
	Lines() *text.Segments
}

// blockSourceText reconstructs the literal source text spanned by a block
// node, descending into container blocks (lists, blockquotes) to collect
// the raw lines of their leaf blocks.
func blockSourceText(n ast.Node, source []byte) string {
	var sb strings.Builder
	var walk func(ast.Node)
	walk = func(node ast.Node) {
		if bl, ok := node.(blockLiner); ok {
			lines := bl.Lines()
			if lines != nil && lines.Len() > 0 {
				for i := 0; i < lines.Len(); i++ {
					sb.Write(lines.At(i).Value(source))
				}
				return
			}
		}
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}

// fencedCodeText reconstructs a fenced code block verbatim, including its
// info string and surrounding backtick fences.
func fencedCodeText(n *ast.FencedCodeBlock, source []byte) string {
	info := ""
	if n.Info != nil {
		info = string(n.Info.Segment.Value(source))
	}

	var body strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		body.Write(lines.At(i).Value(source))
	}

	return "```" + info + "\n" + body.String() + "```"
}
