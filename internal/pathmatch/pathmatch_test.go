package pathmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncludeExclude_MatchesIncludeAndExclude(t *testing.T) {
	assert.True(t, IncludeExclude("docs/one.md", []string{"*.md"}, nil))
	assert.False(t, IncludeExclude("docs/one.md", []string{"*.md"}, []string{"docs/*"}))
	assert.False(t, IncludeExclude("docs/one.txt", []string{"*.md"}, nil))
}

func TestIncludeExcludeCached_AgreesWithUncached(t *testing.T) {
	// Given: a bounded cache
	cache, err := NewCache(8)
	require.NoError(t, err)

	includes := []string{"**/*.md"}
	excludes := []string{".venv/*"}

	// When/Then: the cached path returns the same decision as the
	// uncached path, on both a first lookup (miss) and a repeat (hit)
	for _, path := range []string{"docs/one.md", ".venv/pkg/skip.md", "README.md"} {
		want := IncludeExclude(path, includes, excludes)
		assert.Equal(t, want, IncludeExcludeCached(cache, path, includes, excludes), "miss: %s", path)
		assert.Equal(t, want, IncludeExcludeCached(cache, path, includes, excludes), "hit: %s", path)
	}
}

func TestIncludeExcludeCached_NilCacheNeverPanics(t *testing.T) {
	assert.True(t, IncludeExcludeCached(nil, "a.md", []string{"*.md"}, nil))
}

func TestCache_PurgeDropsEntries(t *testing.T) {
	cache, err := NewCache(8)
	require.NoError(t, err)

	IncludeExcludeCached(cache, "a.md", []string{"*.md"}, nil)
	cache.Purge()

	// A different pattern set for the same path must not reuse a stale
	// decision after purge.
	assert.False(t, IncludeExcludeCached(cache, "a.md", []string{"*.txt"}, nil))
}
