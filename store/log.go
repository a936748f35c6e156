package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// WrittenLog tracks which input shards have already been folded into a
// compacted batch. It is backed by an append-only file with one key per line,
// so re-running the compactor skips everything it has seen before.
//
// On startup the file is read into memory for fast lookups; on success the
// key is appended and fsynced. Partial trailing lines from a crash are simply
// ignored on the next load. This is a dedupe list, not a general-purpose WAL.
type WrittenLog struct {
	mu      sync.RWMutex
	path    string
	file    *os.File
	written map[string]struct{}
}

func OpenWrittenLog(path string) (*WrittenLog, error) {
	if path == "" {
		return nil, fmt.Errorf("log path is required")
	}

	written := make(map[string]struct{})

	// Best-effort load of existing keys.
	if f, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			key := strings.TrimSpace(scanner.Text())
			if key == "" {
				continue
			}
			written[key] = struct{}{}
		}
		_ = f.Close()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &WrittenLog{
		path:    path,
		file:    file,
		written: written,
	}, nil
}

func (l *WrittenLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *WrittenLog) Has(key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.written[key]
	return ok
}

func (l *WrittenLog) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.written)
}

func (l *WrittenLog) Add(key string) error {
	if key == "" {
		return fmt.Errorf("key is empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.written[key]; ok {
		return nil
	}

	if l.file == nil {
		return fmt.Errorf("log file is closed")
	}

	if _, err := l.file.WriteString(key + "\n"); err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log: %w", err)
	}

	l.written[key] = struct{}{}
	return nil
}

// AddMany appends multiple keys and syncs once. Keys already present are
// ignored.
func (l *WrittenLog) AddMany(keys []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("log file is closed")
	}

	added := 0
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := l.written[key]; ok {
			continue
		}
		if _, err := l.file.WriteString(key + "\n"); err != nil {
			return fmt.Errorf("append log: %w", err)
		}
		l.written[key] = struct{}{}
		added++
	}

	if added == 0 {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log: %w", err)
	}
	return nil
}
