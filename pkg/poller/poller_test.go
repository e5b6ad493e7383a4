package poller

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tbenr/protovis/pkg/history"
	"github.com/tbenr/protovis/pkg/source"
)

const tekuDump = `[
  {"slot": "1", "blockRoot": "0xaa", "parentRoot": "0x00", "weight": "10",
   "validationStatus": "VALID", "executionBlockHash": ""}
]`

func serve(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, source.FormatTeku)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestFetchFlat(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(tekuDump))
	})

	got, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(got, []byte(tekuDump)) {
		t.Errorf("Fetch returned %s", got)
	}
}

func TestFetchWrapped(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"protoArray": ` + tekuDump + `}`))
	})

	got, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(got, []byte(tekuDump)) {
		t.Errorf("Fetch returned %s", got)
	}
}

func TestFetchWrappedMissingField(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"something_else": []}`))
	})

	if _, err := c.Fetch(context.Background()); !errors.Is(err, ErrBadDump) {
		t.Fatalf("err = %v, want ErrBadDump", err)
	}
}

func TestFetchBadDump(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"slot": "x"}]`))
	})

	if _, err := c.Fetch(context.Background()); !errors.Is(err, ErrBadDump) {
		t.Fatalf("err = %v, want ErrBadDump", err)
	}
}

func TestFetchClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	if _, err := c.Fetch(context.Background()); !errors.Is(err, ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("endpoint called %d times, want 1", n)
	}
}

func TestNewClientUnknownFormat(t *testing.T) {
	if _, err := NewClient("http://localhost", source.Format("nimbus")); err == nil {
		t.Fatal("NewClient accepted unknown format")
	}
}

func TestDefaultPath(t *testing.T) {
	tests := []struct {
		format source.Format
		want   string
	}{
		{source.FormatTeku, "/teku/v1/debug/beacon/protoarray"},
		{source.FormatLighthouse, "/lighthouse/proto_array"},
		{source.FormatPrysm, "/eth/v1alpha1/debug/forkchoice"},
		{source.Format("nimbus"), ""},
	}
	for _, tt := range tests {
		if got := DefaultPath(tt.format); got != tt.want {
			t.Errorf("DefaultPath(%s) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestPollerCaptures(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(tekuDump))
	})
	st := history.NewMemoryStore(8)

	var captured atomic.Int32
	p := New(c, st, 10*time.Millisecond, nil)
	p.OnSnapshot = func(history.Snapshot) { captured.Add(1) }

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	if err := p.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned %v", err)
	}

	snaps, err := st.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snaps) == 0 {
		t.Fatal("no snapshots captured")
	}
	if int(captured.Load()) != len(snaps) {
		t.Errorf("OnSnapshot called %d times for %d snapshots", captured.Load(), len(snaps))
	}
	if !bytes.Equal(snaps[0].Data, []byte(tekuDump)) {
		t.Errorf("snapshot data = %s", snaps[0].Data)
	}
}

func TestPollerSkipsFailedPolls(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	})
	st := history.NewMemoryStore(8)
	p := New(c, st, 10*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	if err := p.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned %v", err)
	}

	snaps, err := st.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snaps) != 0 {
		t.Fatalf("captured %d snapshots from a failing endpoint", len(snaps))
	}
}

func TestNewDefaults(t *testing.T) {
	c, _ := NewClient("http://localhost", source.FormatTeku)
	p := New(c, history.NewMemoryStore(1), 0, nil)
	if p.Interval() != DefaultInterval {
		t.Errorf("Interval() = %v, want %v", p.Interval(), DefaultInterval)
	}
}
