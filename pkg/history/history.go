// Package history keeps an ordered, bounded record of fork-choice snapshots.
//
// Snapshots carry the raw dump bytes exactly as fetched or imported;
// canonical records and trees are recomputed from them on demand, never
// persisted. The in-memory [History] is a simple FIFO ring bounded by a
// configurable limit, and the [Store] interface offers the same contract
// over several persistence backends (memory, file, redis, leveldb, mongo).
//
// Histories are append-only: reconstruction reads one immutable snapshot at
// a time and never mutates entries, so no locking is needed beyond what the
// individual stores do internally.
package history

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultLimit bounds a history when no explicit limit is configured.
const DefaultLimit = 128

// Snapshot is one fork-choice dump: the raw record array plus the moment it
// was captured. Data stays opaque here; pkg/source interprets it.
type Snapshot struct {
	ID   string          `json:"id"`
	Time time.Time       `json:"timestamp"`
	Data json.RawMessage `json:"data"`
}

// NewSnapshot wraps raw dump bytes in a snapshot captured now.
func NewSnapshot(data []byte) Snapshot {
	return Snapshot{
		ID:   uuid.NewString(),
		Time: time.Now().UTC(),
		Data: data,
	}
}

// History is a bounded FIFO of snapshots, oldest first. Appending past the
// limit evicts the oldest entry. History is not safe for concurrent use.
type History struct {
	limit int
	snaps []Snapshot
}

// New creates an empty history bounded by limit. A non-positive limit falls
// back to DefaultLimit.
func New(limit int) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &History{limit: limit}
}

// Limit returns the maximum number of snapshots retained.
func (h *History) Limit() int { return h.limit }

// Len returns the number of snapshots currently held.
func (h *History) Len() int { return len(h.snaps) }

// Append adds a snapshot, evicting the oldest when the history is full.
func (h *History) Append(s Snapshot) {
	h.snaps = append(h.snaps, s)
	if len(h.snaps) > h.limit {
		h.snaps = h.snaps[len(h.snaps)-h.limit:]
	}
}

// At returns the snapshot at index i (0 = oldest) and true, or false when
// out of range.
func (h *History) At(i int) (Snapshot, bool) {
	if i < 0 || i >= len(h.snaps) {
		return Snapshot{}, false
	}
	return h.snaps[i], true
}

// Latest returns the newest snapshot and true, or false when empty.
func (h *History) Latest() (Snapshot, bool) {
	if len(h.snaps) == 0 {
		return Snapshot{}, false
	}
	return h.snaps[len(h.snaps)-1], true
}

// Find returns the snapshot with the given id and true, or false when absent.
func (h *History) Find(id string) (Snapshot, bool) {
	for _, s := range h.snaps {
		if s.ID == id {
			return s, true
		}
	}
	return Snapshot{}, false
}

// Snapshots returns a copy of the held snapshots, oldest first.
func (h *History) Snapshots() []Snapshot {
	out := make([]Snapshot, len(h.snaps))
	copy(out, h.snaps)
	return out
}
