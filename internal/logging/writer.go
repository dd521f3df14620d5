package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// RotatingWriter is an io.Writer over a single active log file that stamps
// the current file aside once it crosses maxSize and keeps at most
// maxFiles stamped segments on disk, oldest pruned first.
//
// Unlike a rename-chain scheme (server.log.1 -> .2 -> .3 -> ...), each
// rotation gets its own timestamp suffix and pruning is a directory scan
// sorted lexicographically (which matches chronological order for the
// fixed-width suffix), so a rotation never touches more than one file
// besides the active one.
type RotatingWriter struct {
	path     string
	maxBytes int64
	maxFiles int

	mu      sync.Mutex
	active  *os.File
	size    int64
	syncAll bool // fsync after every Write, for live-tail visibility
}

// NewRotatingWriter opens (creating if needed) path as the active log file.
// maxSizeMB is the size threshold that triggers rotation; maxFiles bounds
// how many stamped segments are retained once rotation has fired.
func NewRotatingWriter(path string, maxSizeMB, maxFiles int) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	w := &RotatingWriter{
		path:     path,
		maxBytes: int64(maxSizeMB) * 1024 * 1024,
		maxFiles: maxFiles,
		syncAll:  true,
	}
	if err := w.openActive(); err != nil {
		return nil, err
	}
	return w, nil
}

// SetImmediateSync toggles whether every Write is followed by an fsync.
// Disabling it trades live-tail visibility for write throughput.
func (w *RotatingWriter) SetImmediateSync(enabled bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.syncAll = enabled
}

// Write appends p to the active file, rotating first if p would push the
// file past maxBytes. A rotation failure is logged to stderr and writing
// continues against the existing file rather than dropping the log line.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size > 0 && w.size+int64(len(p)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "riftindex: log rotation failed, continuing on current file: %v\n", err)
		}
	}

	n, err := w.active.Write(p)
	w.size += int64(n)
	if err == nil && w.syncAll {
		_ = w.active.Sync()
	}
	return n, err
}

// Sync flushes the active file to disk.
func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active == nil {
		return nil
	}
	return w.active.Sync()
}

// Close closes the active file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active == nil {
		return nil
	}
	return w.active.Close()
}

func (w *RotatingWriter) openActive() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.active = f
	w.size = info.Size()
	return nil
}

// rotate stamps the current active file aside with a timestamp suffix,
// opens a fresh active file at w.path, and prunes stamped segments beyond
// maxFiles.
func (w *RotatingWriter) rotate() error {
	if w.active != nil {
		if err := w.active.Close(); err != nil {
			return fmt.Errorf("close active log file: %w", err)
		}
		w.active = nil
	}

	if _, err := os.Stat(w.path); err == nil {
		stamped := fmt.Sprintf("%s.%s", w.path, time.Now().UTC().Format("20060102T150405.000000000"))
		if err := os.Rename(w.path, stamped); err != nil {
			return fmt.Errorf("stamp aside log segment: %w", err)
		}
	}

	if err := w.pruneSegments(); err != nil {
		fmt.Fprintf(os.Stderr, "riftindex: log segment pruning failed: %v\n", err)
	}

	w.size = 0
	return w.openActive()
}

// pruneSegments deletes stamped segments beyond maxFiles, oldest first.
func (w *RotatingWriter) pruneSegments() error {
	segments, err := filepath.Glob(w.path + ".*")
	if err != nil {
		return fmt.Errorf("list log segments: %w", err)
	}
	if len(segments) <= w.maxFiles {
		return nil
	}

	// Lexicographic order matches chronological order for the fixed-width
	// timestamp suffix used by rotate, so no mtime stat is needed.
	sort.Strings(segments)

	excess := len(segments) - w.maxFiles
	for _, stale := range segments[:excess] {
		_ = os.Remove(stale)
	}
	return nil
}
