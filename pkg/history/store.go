package history

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by [Get] when no snapshot has the requested id.
	ErrNotFound = errors.New("snapshot not found")
)

// Store persists a bounded snapshot history. Backends enforce the same FIFO
/// contract as [History]: appending past the limit evicts the oldest entry.
//
// Implementations must be safe for concurrent use; the poller appends while
// the API and CLI read.
type Store interface {
	// Append adds a snapshot, evicting the oldest when the store is full.
	Append(ctx context.Context, s Snapshot) error

	// List returns all retained snapshots, oldest first.
	List(ctx context.Context) ([]Snapshot, error)

	// Close releases backend resources.
	Close() error
}

// Get returns the snapshot with the given id from the store, or ErrNotFound.
// The id "latest" selects the newest snapshot.
func Get(ctx context.Context, st Store, id string) (Snapshot, error) {
	snaps, err := st.List(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if id == "latest" {
		if len(snaps) == 0 {
			return Snapshot{}, ErrNotFound
		}
		return snaps[len(snaps)-1], nil
	}
	for _, s := range snaps {
		if s.ID == id {
			return s, nil
		}
	}
	return Snapshot{}, ErrNotFound
}

// Load rebuilds an in-memory History from a store's contents.
func Load(ctx context.Context, st Store, limit int) (*History, error) {
	snaps, err := st.List(ctx)
	if err != nil {
		return nil, err
	}
	h := New(limit)
	for _, s := range snaps {
		h.Append(s)
	}
	return h, nil
}
