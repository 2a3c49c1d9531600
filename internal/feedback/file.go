package feedback

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileMirror appends items to a JSON Lines file.
type FileMirror struct {
	path string
	mu   sync.Mutex
}

// NewFileMirror creates a mirror writing to path. Parent directories are
// created on first write.
func NewFileMirror(path string) *FileMirror {
	return &FileMirror{path: path}
}

// Name returns the mirror identifier.
func (m *FileMirror) Name() string { return "file" }

// Path returns the log file path.
func (m *FileMirror) Path() string { return m.path }

// Write appends item as a single line.
func (m *FileMirror) Write(_ context.Context, item Item) error {
	line, err := encodeRecord(item)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	m.mu.Lock()
	defer m.mu.Unlock()

	if dir := filepath.Dir(m.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating feedback dir: %w", err)
		}
	}
	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening feedback log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing feedback log: %w", err)
	}
	return f.Close()
}

// LoadFile reads a JSON Lines log written by FileMirror, oldest first.
// A missing file yields no items. Malformed lines are skipped.
func LoadFile(path string) ([]Item, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening feedback log: %w", err)
	}
	defer f.Close()

	var items []Item
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var it Item
		if err := json.Unmarshal(sc.Bytes(), &it); err != nil {
			slog.Warn("skipping malformed feedback record", "path", path, "line", lineNo, "error", err)
			continue
		}
		items = append(items, it)
	}
	if err := sc.Err(); err != nil {
		return items, fmt.Errorf("reading feedback log: %w", err)
	}
	return items, nil
}
