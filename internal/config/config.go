// Package config loads riftindex configuration from defaults, a YAML file,
// and environment variable overrides, in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete riftindex configuration. There is deliberately no
// nesting beyond what the store/indexer/watcher each need.
type Config struct {
	DBPath string `yaml:"db_path" json:"db_path"`

	MaxChunkChars int `yaml:"max_chunk_chars" json:"max_chunk_chars"`
	MinChunkChars int `yaml:"min_chunk_chars" json:"min_chunk_chars"`

	RRFK int `yaml:"rrf_k" json:"rrf_k"`

	EmbeddingBackend string `yaml:"embedding_backend" json:"embedding_backend"` // auto | hash | onnx
	EmbeddingDim     int    `yaml:"embedding_dim" json:"embedding_dim"`
	EmbeddingModel   string `yaml:"embedding_model" json:"embedding_model"`
	EmbeddingURL     string `yaml:"embedding_url" json:"embedding_url"` // onnx backend HTTP endpoint

	IndexIncludeGlobs []string `yaml:"index_include_globs" json:"index_include_globs"`
	IndexExcludeGlobs []string `yaml:"index_exclude_globs" json:"index_exclude_globs"`

	AutoReindexOnSearch            bool     `yaml:"auto_reindex_on_search" json:"auto_reindex_on_search"`
	AutoReindexPaths                []string `yaml:"auto_reindex_paths" json:"auto_reindex_paths"`
	AutoReindexMinIntervalSeconds   int      `yaml:"auto_reindex_min_interval_seconds" json:"auto_reindex_min_interval_seconds"`

	FileWatcherEnabled     bool     `yaml:"file_watcher_enabled" json:"file_watcher_enabled"`
	FileWatcherPaths       []string `yaml:"file_watcher_paths" json:"file_watcher_paths"`
	FileWatcherDebounceMS  int      `yaml:"file_watcher_debounce_ms" json:"file_watcher_debounce_ms"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogPath   string `yaml:"log_path" json:"log_path"`
}

// defaultExcludeGlobs are the default exclude list: VCS, virtualenv, and
// cache directories that never contain corpus Markdown. A config file's
// excludes are appended to them; RIFTINDEX_INDEX_EXCLUDE_GLOBS replaces them.
var defaultExcludeGlobs = []string{
	"**/.git/**",
	"**/.venv/**",
	"**/venv/**",
	"**/node_modules/**",
	"**/__pycache__/**",
	"**/.riftindex/**",
}

// NewConfig returns a Config populated with its defaults.
func NewConfig() *Config {
	return &Config{
		DBPath:        ".riftindex/index.db",
		MaxChunkChars: 2000,
		MinChunkChars: 120,
		RRFK:          60,

		EmbeddingBackend: "auto",
		EmbeddingDim:     384,
		EmbeddingModel:   "hash-v1",

		IndexIncludeGlobs: []string{"*.md"},
		IndexExcludeGlobs: append([]string(nil), defaultExcludeGlobs...),

		AutoReindexOnSearch:           false,
		AutoReindexMinIntervalSeconds: 60,

		FileWatcherEnabled:    false,
		FileWatcherDebounceMS: 500,

		LogLevel: "info",
	}
}

// Load builds a Config for dir: defaults, then `.riftindex.yaml`/`.yml` in
// dir (if present), then RIFTINDEX_* environment overrides.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".riftindex.yaml", ".riftindex.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays non-zero fields of other onto c, except that other's
// exclude globs are appended to c's rather than replacing them.
func (c *Config) mergeWith(other *Config) {
	if other.DBPath != "" {
		c.DBPath = other.DBPath
	}
	if other.MaxChunkChars != 0 {
		c.MaxChunkChars = other.MaxChunkChars
	}
	if other.MinChunkChars != 0 {
		c.MinChunkChars = other.MinChunkChars
	}
	if other.RRFK != 0 {
		c.RRFK = other.RRFK
	}
	if other.EmbeddingBackend != "" {
		c.EmbeddingBackend = other.EmbeddingBackend
	}
	if other.EmbeddingDim != 0 {
		c.EmbeddingDim = other.EmbeddingDim
	}
	if other.EmbeddingModel != "" {
		c.EmbeddingModel = other.EmbeddingModel
	}
	if other.EmbeddingURL != "" {
		c.EmbeddingURL = other.EmbeddingURL
	}
	if len(other.IndexIncludeGlobs) > 0 {
		c.IndexIncludeGlobs = other.IndexIncludeGlobs
	}
	if len(other.IndexExcludeGlobs) > 0 {
		c.IndexExcludeGlobs = append(c.IndexExcludeGlobs, other.IndexExcludeGlobs...)
	}
	if other.AutoReindexOnSearch {
		c.AutoReindexOnSearch = other.AutoReindexOnSearch
	}
	if len(other.AutoReindexPaths) > 0 {
		c.AutoReindexPaths = other.AutoReindexPaths
	}
	if other.AutoReindexMinIntervalSeconds != 0 {
		c.AutoReindexMinIntervalSeconds = other.AutoReindexMinIntervalSeconds
	}
	if other.FileWatcherEnabled {
		c.FileWatcherEnabled = other.FileWatcherEnabled
	}
	if len(other.FileWatcherPaths) > 0 {
		c.FileWatcherPaths = other.FileWatcherPaths
	}
	if other.FileWatcherDebounceMS != 0 {
		c.FileWatcherDebounceMS = other.FileWatcherDebounceMS
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogPath != "" {
		c.LogPath = other.LogPath
	}
}

// applyEnvOverrides applies RIFTINDEX_* environment variable overrides, the
// highest-precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RIFTINDEX_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("RIFTINDEX_MAX_CHUNK_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxChunkChars = n
		}
	}
	if v := os.Getenv("RIFTINDEX_MIN_CHUNK_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MinChunkChars = n
		}
	}
	if v := os.Getenv("RIFTINDEX_RRF_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.RRFK = n
		}
	}
	if v := os.Getenv("RIFTINDEX_EMBEDDING_BACKEND"); v != "" {
		c.EmbeddingBackend = v
	}
	if v := os.Getenv("RIFTINDEX_EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.EmbeddingDim = n
		}
	}
	if v := os.Getenv("RIFTINDEX_EMBEDDING_MODEL"); v != "" {
		c.EmbeddingModel = v
	}
	if v := os.Getenv("RIFTINDEX_EMBEDDING_URL"); v != "" {
		c.EmbeddingURL = v
	}
	if v := os.Getenv("RIFTINDEX_INDEX_INCLUDE_GLOBS"); v != "" {
		c.IndexIncludeGlobs = strings.Split(v, ",")
	}
	if v := os.Getenv("RIFTINDEX_INDEX_EXCLUDE_GLOBS"); v != "" {
		c.IndexExcludeGlobs = strings.Split(v, ",")
	}
	if v := os.Getenv("RIFTINDEX_AUTO_REINDEX_ON_SEARCH"); v != "" {
		c.AutoReindexOnSearch = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("RIFTINDEX_AUTO_REINDEX_MIN_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.AutoReindexMinIntervalSeconds = n
		}
	}
	if v := os.Getenv("RIFTINDEX_FILE_WATCHER_ENABLED"); v != "" {
		c.FileWatcherEnabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("RIFTINDEX_FILE_WATCHER_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.FileWatcherDebounceMS = n
		}
	}
	if v := os.Getenv("RIFTINDEX_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("RIFTINDEX_LOG_PATH"); v != "" {
		c.LogPath = v
	}
}

// Validate checks the configuration for internally-inconsistent values.
func (c *Config) Validate() error {
	if c.MaxChunkChars <= 0 {
		return fmt.Errorf("max_chunk_chars must be positive, got %d", c.MaxChunkChars)
	}
	if c.MinChunkChars <= 0 || c.MinChunkChars > c.MaxChunkChars {
		return fmt.Errorf("min_chunk_chars must be positive and <= max_chunk_chars, got %d", c.MinChunkChars)
	}
	if c.RRFK <= 0 {
		return fmt.Errorf("rrf_k must be positive, got %d", c.RRFK)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("embedding_dim must be positive, got %d", c.EmbeddingDim)
	}
	validBackends := map[string]bool{"auto": true, "hash": true, "onnx": true}
	if !validBackends[strings.ToLower(c.EmbeddingBackend)] {
		return fmt.Errorf("embedding_backend must be 'auto', 'hash', or 'onnx', got %s", c.EmbeddingBackend)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel)
	}
	if c.AutoReindexMinIntervalSeconds < 0 {
		return fmt.Errorf("auto_reindex_min_interval_seconds must be non-negative, got %d", c.AutoReindexMinIntervalSeconds)
	}
	return nil
}

// WriteYAML writes the configuration to path as YAML.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// FindProjectRoot walks up from startDir looking for a .git directory or a
// .riftindex.yaml/.yml file, returning startDir itself if neither is found.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		if fileExists(filepath.Join(currentDir, ".riftindex.yaml")) ||
			fileExists(filepath.Join(currentDir, ".riftindex.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
