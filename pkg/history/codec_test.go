package history

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tbenr/protovis/pkg/source"
)

const tekuDump = `[
  {"slot": "1", "blockRoot": "0xaa", "parentRoot": "0x00", "weight": "10",
   "validationStatus": "VALID", "executionBlockHash": ""},
  {"slot": "2", "blockRoot": "0xbb", "parentRoot": "0xaa", "weight": "4",
   "validationStatus": "OPTIMISTIC", "executionBlockHash": ""}
]`

func TestParseDumpFlat(t *testing.T) {
	snaps, err := ParseDump([]byte(tekuDump), source.FormatTeku)
	if err != nil {
		t.Fatalf("ParseDump: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}
	if snaps[0].ID == "" {
		t.Error("snapshot id is empty")
	}
	if !bytes.Equal(snaps[0].Data, []byte(tekuDump)) {
		t.Error("snapshot data does not round-trip the input")
	}
}

func TestParseDumpEnvelopes(t *testing.T) {
	doc := `[
	  {"timestamp": "2024-03-01T10:00:00Z", "protoArray": ` + tekuDump + `},
	  {"timestamp": 1709287260000, "protoArray": ` + tekuDump + `}
	]`
	snaps, err := ParseDump([]byte(doc), source.FormatTeku)
	if err != nil {
		t.Fatalf("ParseDump: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(snaps))
	}

	want0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if !snaps[0].Time.Equal(want0) {
		t.Errorf("snapshot 0 time = %v, want %v", snaps[0].Time, want0)
	}
	want1 := time.UnixMilli(1709287260000).UTC()
	if !snaps[1].Time.Equal(want1) {
		t.Errorf("snapshot 1 time = %v, want %v", snaps[1].Time, want1)
	}
}

func TestParseDumpRejectsWhole(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"NotJSON", `nope`},
		{"NotArray", `{"protoArray": []}`},
		{"BadRecord", `[{"slot": "1", "blockRoot": "0xaa", "parentRoot": "0x00",
			"weight": "-3", "validationStatus": "VALID", "executionBlockHash": ""}]`},
		{"EnvelopeMissingRecords", `[{"timestamp": "2024-03-01T10:00:00Z"}]`},
		{"EnvelopeBadTimestamp", `[{"timestamp": "yesterday", "protoArray": ` + tekuDump + `}]`},
		{"EnvelopeBadRecords", `[{"timestamp": "2024-03-01T10:00:00Z", "protoArray": [{"slot": "x"}]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snaps, err := ParseDump([]byte(tt.doc), source.FormatTeku)
			if !errors.Is(err, ErrNotADump) {
				t.Fatalf("err = %v, want ErrNotADump", err)
			}
			if snaps != nil {
				t.Errorf("got %d snapshots on error, want none", len(snaps))
			}
		})
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	h := New(8)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	h.Append(Snapshot{ID: "one", Time: base, Data: []byte(tekuDump)})
	h.Append(Snapshot{ID: "two", Time: base.Add(12 * time.Second), Data: []byte(`[]`)})

	path := filepath.Join(t.TempDir(), "history.json")
	if err := ExportJSON(h, path); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	got, err := ImportJSON(path, 8)
	if err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("imported %d snapshots, want 2", got.Len())
	}
	first, _ := got.At(0)
	if first.ID != "one" || !first.Time.Equal(base) {
		t.Errorf("first snapshot = %q at %v", first.ID, first.Time)
	}
	if !bytes.Equal(first.Data, []byte(tekuDump)) {
		t.Error("first snapshot data does not round-trip")
	}
}

func TestImportRespectsLimit(t *testing.T) {
	h := New(8)
	for i := 0; i < 5; i++ {
		h.Append(NewSnapshot([]byte(`[]`)))
	}
	var buf bytes.Buffer
	if err := WriteJSON(h, &buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	got, err := ReadJSON(&buf, 2)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("imported %d snapshots with limit 2", got.Len())
	}
	// The two newest entries survive.
	last, _ := h.Latest()
	gotLast, _ := got.Latest()
	if gotLast.ID != last.ID {
		t.Errorf("latest after import = %q, want %q", gotLast.ID, last.ID)
	}
}

func TestReadJSONErrorLeavesNothing(t *testing.T) {
	if _, err := ReadJSON(bytes.NewReader([]byte(`{broken`)), 4); !errors.Is(err, ErrNotADump) {
		t.Fatalf("err = %v, want ErrNotADump", err)
	}
}

func TestReadJSONAssignsMissingIDs(t *testing.T) {
	doc := `{"snapshots": [{"timestamp": "2024-05-01T12:00:00Z", "data": []}]}`
	got, err := ReadJSON(bytes.NewReader([]byte(doc)), 4)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	s, ok := got.At(0)
	if !ok || s.ID == "" {
		t.Fatalf("imported snapshot id = %q, ok = %v, want generated id", s.ID, ok)
	}
}
