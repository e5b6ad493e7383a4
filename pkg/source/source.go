// Package source normalizes client-specific fork-choice dumps into canonical
// records.
//
// Every consensus client exposes its fork-choice store through a debug
// endpoint, but each uses its own field names and its own way of encoding
// validation state. This package hides those differences behind the [Adapter]
// interface, with one implementation per supported client format. Adapters
// are selected by explicit configuration, never by sniffing the payload.
//
// All adapters agree on three conventions:
//
//   - weights are decimal strings (or bare numbers) of arbitrary precision;
//   - a slot equal to the far-future sentinel marks a record that has not
//     been assigned yet and is dropped before tree building;
//   - a block is past the proof-of-stake transition when its execution block
//     hash is present and not the all-zero hash.
//
// Parse failures are ordinary errors. Callers treat them as "no data
// available", never as fatal conditions.
package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/tbenr/protovis/pkg/forkchoice"
)

// Format identifies which client produced a fork-choice dump.
type Format string

// Supported client formats.
const (
	FormatTeku       Format = "teku"
	FormatLighthouse Format = "lighthouse"
	FormatPrysm      Format = "prysm"
)

var (
	// ErrUnknownFormat is returned by [ParseFormat] and [ForFormat] for an
	// unsupported client format name.
	ErrUnknownFormat = errors.New("unknown client format")

	// ErrMalformedDump is returned by [Normalize] when the payload is not the
	// structured shape the selected format expects.
	ErrMalformedDump = errors.New("malformed fork-choice dump")
)

// farFutureSlot is the sentinel slot value clients use for records that are
// tracked but not yet assigned to a slot.
const farFutureSlot = math.MaxUint64

// zeroHash is the 32-byte all-zero execution block hash, as clients encode
// it: 66 characters including the 0x prefix. A block whose execution hash
// equals it (or is absent) is still pre-merge.
const zeroHash = "0x0000000000000000000000000000000000000000000000000000000000000000"

// Adapter converts one client's raw fork-choice records into canonical form.
type Adapter interface {
	// Format returns the client format this adapter handles.
	Format() Format

	// RecordsField returns the JSON field under which this client nests its
	// record array in history envelopes.
	RecordsField() string

	// Normalize converts one raw record. The second result is false when the
	// record is a sentinel/placeholder that must be dropped entirely.
	Normalize(raw json.RawMessage) (forkchoice.Record, bool, error)
}

// ParseFormat validates a client format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTeku, FormatLighthouse, FormatPrysm:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q (must be one of: teku, lighthouse, prysm)", ErrUnknownFormat, s)
	}
}

// Formats lists the supported client format names.
func Formats() []string {
	return []string{string(FormatTeku), string(FormatLighthouse), string(FormatPrysm)}
}

// ForFormat returns the adapter for the given client format.
func ForFormat(f Format) (Adapter, error) {
	switch f {
	case FormatTeku:
		return tekuAdapter{}, nil
	case FormatLighthouse:
		return lighthouseAdapter{}, nil
	case FormatPrysm:
		return prysmAdapter{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// Normalize parses a flat JSON array of raw client records into canonical
// records, dropping sentinel entries. The input must be a JSON array; any
// other shape yields ErrMalformedDump.
func Normalize(data []byte, f Format) ([]forkchoice.Record, error) {
	adapter, err := ForFormat(f)
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDump, err)
	}

	records := make([]forkchoice.Record, 0, len(raw))
	for i, r := range raw {
		rec, ok, err := adapter.Normalize(r)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrMalformedDump, i, err)
		}
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// slotValue decodes a slot from a JSON number or quoted decimal string.
// Clients disagree on which of the two they emit.
type slotValue uint64

func (s *slotValue) UnmarshalJSON(b []byte) error {
	v, err := strconv.ParseUint(unquote(b), 10, 64)
	if err != nil {
		return fmt.Errorf("slot: %w", err)
	}
	*s = slotValue(v)
	return nil
}

// weightValue decodes an arbitrary-precision unsigned decimal weight from a
// JSON number or quoted string.
type weightValue struct {
	big.Int
}

func (w *weightValue) UnmarshalJSON(b []byte) error {
	s := unquote(b)
	if _, ok := w.SetString(s, 10); !ok || w.Sign() < 0 {
		return fmt.Errorf("weight: invalid unsigned decimal %q", s)
	}
	return nil
}

// value returns a fresh big integer; records must not alias decoder state.
func (w *weightValue) value() *big.Int {
	return new(big.Int).Set(&w.Int)
}

func unquote(b []byte) string {
	return strings.Trim(string(b), `"`)
}

// postMerge reports whether an execution block hash marks a post-transition
// block.
func postMerge(executionHash string) bool {
	return executionHash != "" && !strings.EqualFold(executionHash, zeroHash)
}
