package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileStore persists each snapshot as one JSON file in a directory. File
// names embed the capture time in nanoseconds so lexical order is
// chronological order; eviction removes the oldest files.
type FileStore struct {
	mu    sync.Mutex
	dir   string
	limit int
}

// NewFileStore creates a file-backed store in dir, bounded by limit.
// The directory is created if it does not exist.
func NewFileStore(dir string, limit int) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &FileStore{dir: dir, limit: limit}, nil
}

// Append writes the snapshot to its own file and prunes beyond the limit.
func (f *FileStore) Append(ctx context.Context, s Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	name := fmt.Sprintf("%020d-%s.json", s.Time.UnixNano(), s.ID)
	if err := os.WriteFile(filepath.Join(f.dir, name), data, 0o644); err != nil {
		return err
	}
	return f.prune()
}

// List reads all snapshot files, oldest first.
func (f *FileStore) List(ctx context.Context) ([]Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	names, err := f.names()
	if err != nil {
		return nil, err
	}

	snaps := make([]Snapshot, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(f.dir, name))
		if err != nil {
			return nil, err
		}
		var s Snapshot
		if err := json.Unmarshal(data, &s); err != nil {
			// A corrupt entry is skipped rather than poisoning the whole
			// history.
			continue
		}
		snaps = append(snaps, s)
	}
	return snaps, nil
}

// Close does nothing for the file store.
func (f *FileStore) Close() error { return nil }

func (f *FileStore) names() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (f *FileStore) prune() error {
	names, err := f.names()
	if err != nil {
		return err
	}
	for len(names) > f.limit {
		if err := os.Remove(filepath.Join(f.dir, names[0])); err != nil {
			return err
		}
		names = names[1:]
	}
	return nil
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)
