package chunk

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownChunker_HeaderBasedSplitting(t *testing.T) {
	// The sections are shorter than the default minimum, so lower it.
	chunker := NewMarkdownChunkerWithOptions(Options{MaxChunkChars: 2000, MinChunkChars: 1})

	content := `# Title

Welcome to the project.

## Section 1

Content for section 1.

## Section 2

Content for section 2.
`

	file := &FileInput{Path: "README.md", Content: []byte(content)}

	chunks, err := chunker.Chunk(context.Background(), file)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Contains(t, chunks[0].Content, "Welcome to the project")
	assert.Equal(t, "Title", chunks[0].HeadingPath)

	assert.Contains(t, chunks[1].Content, "Content for section 1")
	assert.Equal(t, "Title > Section 1", chunks[1].HeadingPath)

	assert.Contains(t, chunks[2].Content, "Content for section 2")
	assert.Equal(t, "Title > Section 2", chunks[2].HeadingPath)
}

func TestMarkdownChunker_PreservesCodeBlockVerbatim(t *testing.T) {
	chunker := NewMarkdownChunkerWithOptions(Options{MaxChunkChars: 2000, MinChunkChars: 1})

	content := "# Installation\n\nInstall using:\n\n```bash\nbrew install myapp\napt-get install myapp\n```\n"

	file := &FileInput{Path: "INSTALL.md", Content: []byte(content)}

	chunks, err := chunker.Chunk(context.Background(), file)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Contains(t, chunks[0].Content, "```bash")
	assert.Contains(t, chunks[0].Content, "brew install myapp")
	assert.Contains(t, chunks[0].Content, "apt-get install myapp")
	assert.Contains(t, chunks[0].Content, "```")
}

func TestMarkdownChunker_NestedHeadingPruning(t *testing.T) {
	chunker := NewMarkdownChunkerWithOptions(Options{MaxChunkChars: 2000, MinChunkChars: 1})

	content := `# Top Level

## Subsection A

### Deep in A

some content here that is long enough to clear the minimum threshold easily.

## Subsection B

This should be under Top Level > Subsection B, not under Subsection A, long enough to pass the minimum chunk size.
`

	file := &FileInput{Path: "nested.md", Content: []byte(content)}

	chunks, err := chunker.Chunk(context.Background(), file)
	require.NoError(t, err)

	var subsectionB *Chunk
	for _, c := range chunks {
		if strings.Contains(c.Content, "Subsection B") {
			subsectionB = c
		}
	}
	require.NotNil(t, subsectionB)
	assert.Equal(t, "Top Level > Subsection B", subsectionB.HeadingPath)
}

func TestMarkdownChunker_DropsChunksBelowMinimum(t *testing.T) {
	chunker := NewMarkdownChunkerWithOptions(Options{MaxChunkChars: 2000, MinChunkChars: 120})

	content := `# Header

## Empty

## Has Content

` + strings.Repeat("word ", 40) + `
`

	file := &FileInput{Path: "empty.md", Content: []byte(content)}

	chunks, err := chunker.Chunk(context.Background(), file)
	require.NoError(t, err)

	for _, c := range chunks {
		assert.NotEqual(t, "Header > Empty", c.HeadingPath, "empty section below min chars should be dropped")
	}

	found := false
	for _, c := range chunks {
		if c.HeadingPath == "Header > Has Content" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestMarkdownChunker_SplitsLargeSectionAtCharThreshold(t *testing.T) {
	chunker := NewMarkdownChunkerWithOptions(Options{MaxChunkChars: 200, MinChunkChars: 20})

	var sb strings.Builder
	sb.WriteString("# Large Section\n\n")
	for i := 0; i < 20; i++ {
		sb.WriteString("This is paragraph number with some filler words to take up space.\n\n")
	}

	file := &FileInput{Path: "large.md", Content: []byte(sb.String())}

	chunks, err := chunker.Chunk(context.Background(), file)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.Equal(t, "Large Section", c.HeadingPath)
		assert.LessOrEqual(t, len(c.Content), 200+len("This is paragraph number with some filler words to take up space."))
	}
}

func TestMarkdownChunker_NoHeadingsDocument(t *testing.T) {
	chunker := NewMarkdownChunker()

	content := `First paragraph with enough content to pass the minimum chunk size threshold easily.

Second paragraph with more content, also long enough on its own to pass the threshold.
`

	file := &FileInput{Path: "plain.md", Content: []byte(content)}

	chunks, err := chunker.Chunk(context.Background(), file)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 1)
	assert.Equal(t, "", chunks[0].HeadingPath)
}

func TestMarkdownChunker_EmptyFile(t *testing.T) {
	chunker := NewMarkdownChunker()

	chunks, err := chunker.Chunk(context.Background(), &FileInput{Path: "empty.md", Content: []byte("")})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestMarkdownChunker_WhitespaceOnlyFile(t *testing.T) {
	chunker := NewMarkdownChunker()

	chunks, err := chunker.Chunk(context.Background(), &FileInput{Path: "ws.md", Content: []byte("   \n\n\t\t\n   ")})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestMarkdownChunker_TablePreservedAsUnit(t *testing.T) {
	chunker := NewMarkdownChunker()

	content := `# Data

| Column A | Column B |
|----------|----------|
| Value 1  | Value 2  |
| Value 3  | Value 4  |

After the table, some more words to make sure this passes the minimum chunk size.
`

	file := &FileInput{Path: "table.md", Content: []byte(content)}

	chunks, err := chunker.Chunk(context.Background(), file)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "Column A")
	assert.Contains(t, chunks[0].Content, "Value 3")
}

func TestMarkdownChunker_DeeplyNestedHeadings(t *testing.T) {
	chunker := NewMarkdownChunkerWithOptions(Options{MaxChunkChars: 2000, MinChunkChars: 1})

	content := `# L1

## L2

### L3

#### L4

##### L5

###### L6

Content at level six, long enough to survive the minimum chunk size threshold for sure.
`

	file := &FileInput{Path: "deep.md", Content: []byte(content)}

	chunks, err := chunker.Chunk(context.Background(), file)
	require.NoError(t, err)

	var deepest *Chunk
	for _, c := range chunks {
		if strings.Contains(c.Content, "Content at level six") {
			deepest = c
		}
	}
	require.NotNil(t, deepest)
	assert.Equal(t, "L1 > L2 > L3 > L4 > L5 > L6", deepest.HeadingPath)
}

func TestMarkdownChunker_ChunkIDsAreStableAndUnique(t *testing.T) {
	chunker := NewMarkdownChunker()

	content := `# Section 1

` + strings.Repeat("content one ", 20) + `

# Section 2

` + strings.Repeat("content two ", 20) + `
`

	file := &FileInput{Path: "unique.md", Content: []byte(content)}

	chunks1, err := chunker.Chunk(context.Background(), file)
	require.NoError(t, err)
	chunks2, err := chunker.Chunk(context.Background(), file)
	require.NoError(t, err)

	require.Equal(t, len(chunks1), len(chunks2))
	ids := make(map[string]bool)
	for i, c := range chunks1 {
		assert.NotEmpty(t, c.ChunkID)
		assert.Len(t, c.ChunkID, 16)
		assert.False(t, ids[c.ChunkID], "duplicate chunk id: %s", c.ChunkID)
		ids[c.ChunkID] = true
		assert.Equal(t, c.ChunkID, chunks2[i].ChunkID, "chunk id must be stable across runs")
	}
}

func TestMakeChunkID_DeterministicAcrossPathForms(t *testing.T) {
	id1 := MakeChunkID("docs/readme.md", 0)
	id2 := MakeChunkID("docs\\readme.md", 0)
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 16)

	id3 := MakeChunkID("docs/readme.md", 1)
	assert.NotEqual(t, id1, id3)
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "a/b/c.md", NormalizePath("a/b/c.md"))
	assert.Equal(t, "a/b/c.md", NormalizePath("/a/b/c.md"))
	assert.Equal(t, "a/b/c.md", NormalizePath("a\\b\\c.md"))
}

func TestMarkdownChunker_ChunkIndexIsDenseAndMonotone(t *testing.T) {
	chunker := NewMarkdownChunkerWithOptions(Options{MaxChunkChars: 2000, MinChunkChars: 1})

	content := `# A

content a

# B

content b

# C

content c
`

	file := &FileInput{Path: "dense.md", Content: []byte(content)}

	chunks, err := chunker.Chunk(context.Background(), file)
	require.NoError(t, err)

	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
	}
}

func TestMarkdownChunker_SupportedExtensions(t *testing.T) {
	chunker := NewMarkdownChunker()
	exts := chunker.SupportedExtensions()

	assert.Contains(t, exts, ".md")
	assert.Contains(t, exts, ".markdown")
}

func BenchmarkMarkdownChunker_Chunk_10Sections(b *testing.B) {
	chunker := NewMarkdownChunker()

	var sb strings.Builder
	for i := 0; i < 10; i++ {
		sb.WriteString("# Section ")
		sb.WriteString(string(rune('A' + i)))
		sb.WriteString("\n\n")
		sb.WriteString(strings.Repeat("Content paragraph with some text. ", 10))
		sb.WriteString("\n\n")
	}

	file := &FileInput{Path: "bench.md", Content: []byte(sb.String())}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = chunker.Chunk(context.Background(), file)
	}
}
