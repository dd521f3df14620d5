// Package pathmatch is the shared glob-matching surface for the indexer
// and file watcher: both decide include/exclude membership against the
// same style of doublestar patterns, but the watcher needs the more
// forgiving multi-candidate matching of a raw filesystem event path.
package pathmatch

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds a Cache's entry count; sized after the teacher's
// gitignoreCacheSize (internal/scanner/scanner.go), which caches a
// comparable per-path matcher decision.
const DefaultCacheSize = 4096

// Cache memoizes IncludeExcludeCached decisions across repeated indexer
// passes over the same tree, keyed by the exact path and pattern set.
// Re-running doublestar.Match against the same (pattern, path) pair on
// every incremental reindex is pure waste once a decision is known; only
// the boolean outcome is cached, not a compiled pattern, since doublestar
// exposes no reusable compiled form.
type Cache struct {
	mu  sync.RWMutex
	lru *lru.Cache[string, bool]
}

// NewCache builds a bounded LRU decision cache holding up to size entries.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, bool](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

// Purge drops every cached decision, e.g. after the configured
// include/exclude globs change underneath a long-lived Cache.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

func cacheKey(relPath string, includes, excludes []string) string {
	var b strings.Builder
	b.WriteString(relPath)
	b.WriteByte(0)
	b.WriteString(strings.Join(includes, ","))
	b.WriteByte(0)
	b.WriteString(strings.Join(excludes, ","))
	return b.String()
}

// Normalize converts path to forward slashes with no leading separator,
// matching the convention chunk.NormalizePath uses for stored paths.
func Normalize(path string) string {
	p := strings.ReplaceAll(path, "\\", "/")
	return strings.TrimLeft(p, "/")
}

// MatchAny reports whether path matches any of patterns. A single pattern
// that fails to compile (invalid glob syntax) is treated as a non-match
// rather than propagating an error — config-supplied globs are trusted
// but not infallible, and one bad pattern shouldn't abort indexing. A
// pattern with no "/" is also matched against the path's last element, so
// "*.md" matches "docs/one.md".
func MatchAny(path string, patterns []string) bool {
	base := path[strings.LastIndex(path, "/")+1:]
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, path); ok {
			return true
		}
		if !strings.Contains(pat, "/") {
			if ok, _ := doublestar.Match(pat, base); ok {
				return true
			}
		}
	}
	return false
}

// IncludeExclude applies the indexer's single-form gate: relPath (already
// normalized) must match at least one include pattern and no exclude
// pattern. It never caches; use IncludeExcludeCached for the indexer's
// hot path across repeated reindex passes.
func IncludeExclude(relPath string, includes, excludes []string) bool {
	return IncludeExcludeCached(nil, relPath, includes, excludes)
}

// IncludeExcludeCached is IncludeExclude backed by an optional bounded LRU
// decision cache. A nil cache disables caching entirely (the watcher's
// one-off filter checks and tests that don't care about reuse pass nil).
func IncludeExcludeCached(cache *Cache, relPath string, includes, excludes []string) bool {
	if cache == nil {
		return includeExclude(relPath, includes, excludes)
	}

	key := cacheKey(relPath, includes, excludes)

	cache.mu.RLock()
	if decision, ok := cache.lru.Get(key); ok {
		cache.mu.RUnlock()
		return decision
	}
	cache.mu.RUnlock()

	decision := includeExclude(relPath, includes, excludes)

	cache.mu.Lock()
	cache.lru.Add(key, decision)
	cache.mu.Unlock()

	return decision
}

func includeExclude(relPath string, includes, excludes []string) bool {
	if MatchAny(relPath, excludes) {
		return false
	}
	if len(includes) == 0 {
		return true
	}
	return MatchAny(relPath, includes)
}

// Candidates builds the watcher's four match forms for a raw event path
// against a set of watch roots: basename, the raw string as received,
// the normalized absolute posix form, and the path normalized relative to
// each root in turn. Globs like "**/node_modules/*" match regardless of
// which form the caller's filesystem backend happened to hand back.
func Candidates(rawPath string, roots []string) []string {
	forms := []string{filepath.Base(rawPath), rawPath}

	abs := rawPath
	if a, err := filepath.Abs(rawPath); err == nil {
		abs = a
	}
	forms = append(forms, Normalize(abs))

	for _, root := range roots {
		rel, err := filepath.Rel(root, rawPath)
		if err != nil {
			continue
		}
		forms = append(forms, Normalize(rel))
	}

	return forms
}

// MatchCandidates reports whether any of candidates matches any pattern in
// patterns.
func MatchCandidates(candidates []string, patterns []string) bool {
	for _, c := range candidates {
		if MatchAny(c, patterns) {
			return true
		}
	}
	return false
}
