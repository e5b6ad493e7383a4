package history

import (
	"fmt"
	"testing"
	"time"
)

func snap(id string, t time.Time) Snapshot {
	return Snapshot{ID: id, Time: t, Data: []byte(`[]`)}
}

func TestAppendEvictsOldest(t *testing.T) {
	h := New(3)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		h.Append(snap(fmt.Sprintf("s%d", i), base.Add(time.Duration(i)*time.Second)))
	}

	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}
	want := []string{"s2", "s3", "s4"}
	for i, id := range want {
		got, ok := h.At(i)
		if !ok || got.ID != id {
			t.Errorf("At(%d) = %q, %v, want %q", i, got.ID, ok, id)
		}
	}
}

func TestAtOutOfRange(t *testing.T) {
	h := New(2)
	h.Append(snap("a", time.Now()))

	for _, i := range []int{-1, 1, 10} {
		if _, ok := h.At(i); ok {
			t.Errorf("At(%d) ok = true, want false", i)
		}
	}
}

func TestLatest(t *testing.T) {
	h := New(4)
	if _, ok := h.Latest(); ok {
		t.Fatal("Latest() on empty history ok = true, want false")
	}

	h.Append(snap("a", time.Now()))
	h.Append(snap("b", time.Now()))
	got, ok := h.Latest()
	if !ok || got.ID != "b" {
		t.Fatalf("Latest() = %q, %v, want %q", got.ID, ok, "b")
	}
}

func TestFind(t *testing.T) {
	h := New(4)
	h.Append(snap("a", time.Now()))
	h.Append(snap("b", time.Now()))

	if got, ok := h.Find("a"); !ok || got.ID != "a" {
		t.Errorf("Find(a) = %q, %v", got.ID, ok)
	}
	if _, ok := h.Find("missing"); ok {
		t.Error("Find(missing) ok = true, want false")
	}
}

func TestSnapshotsReturnsCopy(t *testing.T) {
	h := New(4)
	h.Append(snap("a", time.Now()))

	snaps := h.Snapshots()
	snaps[0].ID = "mutated"
	if got, _ := h.At(0); got.ID != "a" {
		t.Fatalf("history mutated through Snapshots() copy: %q", got.ID)
	}
}

func TestNewDefaultsLimit(t *testing.T) {
	for _, limit := range []int{0, -5} {
		if got := New(limit).Limit(); got != DefaultLimit {
			t.Errorf("New(%d).Limit() = %d, want %d", limit, got, DefaultLimit)
		}
	}
}
