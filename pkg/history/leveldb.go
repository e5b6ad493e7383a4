package history

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBStore persists snapshots in a local leveldb database. Keys are the
// capture time in big-endian nanoseconds followed by the snapshot id, so the
// natural key order is chronological.
type LevelDBStore struct {
	mu    sync.Mutex
	db    *leveldb.DB
	limit int
}

var levelPrefix = []byte("snapshot:")

// NewLevelDBStore opens (or creates) a leveldb database at path.
func NewLevelDBStore(path string, limit int) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &LevelDBStore{db: db, limit: limit}, nil
}

// Append writes the snapshot and prunes the oldest entries beyond the limit.
func (l *LevelDBStore) Append(ctx context.Context, s Snapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := l.db.Put(levelKey(s), data, nil); err != nil {
		return fmt.Errorf("leveldb put: %w", err)
	}
	return l.prune()
}

// List returns the retained snapshots, oldest first.
func (l *LevelDBStore) List(ctx context.Context) ([]Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var snaps []Snapshot
	iter := l.db.NewIterator(util.BytesPrefix(levelPrefix), nil)
	defer iter.Release()
	for iter.Next() {
		var s Snapshot
		if err := json.Unmarshal(iter.Value(), &s); err != nil {
			continue
		}
		snaps = append(snaps, s)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("leveldb iterate: %w", err)
	}
	return snaps, nil
}

// Close closes the database.
func (l *LevelDBStore) Close() error { return l.db.Close() }

func levelKey(s Snapshot) []byte {
	key := make([]byte, 0, len(levelPrefix)+8+len(s.ID))
	key = append(key, levelPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(s.Time.UnixNano()))
	return append(key, s.ID...)
}

func (l *LevelDBStore) prune() error {
	iter := l.db.NewIterator(util.BytesPrefix(levelPrefix), nil)
	defer iter.Release()

	var keys [][]byte
	for iter.Next() {
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		keys = append(keys, key)
	}
	if err := iter.Error(); err != nil {
		return err
	}

	for len(keys) > l.limit {
		if err := l.db.Delete(keys[0], nil); err != nil {
			return err
		}
		keys = keys[1:]
	}
	return nil
}

// Ensure LevelDBStore implements Store.
var _ Store = (*LevelDBStore)(nil)
