package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tbenr/protovis/pkg/source"
)

var (
	// ErrNotADump is returned when an input document is neither a flat record
	// array nor a history envelope array. The caller's history must be left
	// untouched when this is returned.
	ErrNotADump = errors.New("not a valid fork-choice dump")
)

// envelopeTime accepts RFC 3339 strings or millisecond epoch numbers;
// exports write RFC 3339 and older captures used epoch milliseconds.
type envelopeTime time.Time

func (t *envelopeTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		*t = envelopeTime(parsed)
		return nil
	}
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	*t = envelopeTime(time.UnixMilli(ms).UTC())
	return nil
}

// ParseDump interprets an uploaded document for the given client format.
//
// Two shapes are accepted, distinguished by whether the first array element
// carries a timestamp field:
//
//   - a flat array of raw client records: one snapshot, captured now;
//   - an array of {timestamp, <records field>} envelopes: one snapshot per
//     envelope, keeping the recorded timestamps (history replay).
//
// Each resulting snapshot's data is validated by normalizing it once, so a
// malformed document is rejected as a whole and no partial history can ever
// be appended. The normalized records are discarded; snapshots keep raw
// bytes only.
func ParseDump(data []byte, f source.Format) ([]Snapshot, error) {
	adapter, err := source.ForFormat(f)
	if err != nil {
		return nil, err
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotADump, err)
	}

	if len(elements) == 0 || !hasTimestamp(elements[0]) {
		if _, err := source.Normalize(data, f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotADump, err)
		}
		return []Snapshot{NewSnapshot(data)}, nil
	}

	snaps := make([]Snapshot, 0, len(elements))
	for i, el := range elements {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(el, &fields); err != nil {
			return nil, fmt.Errorf("%w: envelope %d: %v", ErrNotADump, i, err)
		}

		var ts envelopeTime
		if err := json.Unmarshal(fields["timestamp"], &ts); err != nil {
			return nil, fmt.Errorf("%w: envelope %d: %v", ErrNotADump, i, err)
		}
		records, ok := fields[adapter.RecordsField()]
		if !ok {
			return nil, fmt.Errorf("%w: envelope %d: missing %q", ErrNotADump, i, adapter.RecordsField())
		}
		if _, err := source.Normalize(records, f); err != nil {
			return nil, fmt.Errorf("%w: envelope %d: %v", ErrNotADump, i, err)
		}

		snaps = append(snaps, Snapshot{
			ID:   uuid.NewString(),
			Time: time.Time(ts),
			Data: records,
		})
	}
	return snaps, nil
}

func hasTimestamp(el json.RawMessage) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(el, &fields); err != nil {
		return false
	}
	_, ok := fields["timestamp"]
	return ok
}

// export is the on-disk shape of a serialized history.
type export struct {
	Snapshots []Snapshot `json:"snapshots"`
}

// WriteJSON serializes the history as indented JSON to w. The output can be
// re-imported with [ReadJSON].
func WriteJSON(h *History, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(export{Snapshots: h.Snapshots()}); err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return nil
}

// ExportJSON writes the history to a JSON file at path.
func ExportJSON(h *History, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(h, f)
}

// ReadJSON decodes a serialized history from r into a fresh History bounded
// by limit. Timestamps are re-parsed into time values; canonical records are
// not persisted and are recomputed on demand. A decode failure yields an
// error and no history, so the caller's current history stays intact.
func ReadJSON(r io.Reader, limit int) (*History, error) {
	var data export
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotADump, err)
	}

	h := New(limit)
	for _, s := range data.Snapshots {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		h.Append(s)
	}
	return h, nil
}

// ImportJSON reads a serialized history from the file at path.
func ImportJSON(path string, limit int) (*History, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f, limit)
}
