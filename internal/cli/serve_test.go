package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/tbenr/protovis/pkg/graph"
	"github.com/tbenr/protovis/pkg/history"
	"github.com/tbenr/protovis/pkg/httputil"
	"github.com/tbenr/protovis/pkg/source"
)

const tekuDump = `[
  {"slot": "1", "blockRoot": "0xaa", "parentRoot": "0x00", "weight": "10",
   "validationStatus": "VALID", "executionBlockHash": ""},
  {"slot": "2", "blockRoot": "0xbb", "parentRoot": "0xaa", "weight": "4",
   "validationStatus": "OPTIMISTIC", "executionBlockHash": ""}
]`

func newTestServer(t *testing.T) (*server, *history.MemoryStore) {
	t.Helper()
	store := history.NewMemoryStore(8)
	cache, err := httputil.NewCache(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	return &server{
		store:        store,
		format:       source.FormatTeku,
		placeholders: true,
		limit:        8,
		graphs:       cache.Namespace("graph:"),
		logger:       newLogger(io.Discard, charmlog.InfoLevel),
	}, store
}

func seed(t *testing.T, store *history.MemoryStore) history.Snapshot {
	t.Helper()
	s := history.Snapshot{ID: "seed", Time: time.Now().UTC(), Data: []byte(tekuDump)}
	if err := store.Append(context.Background(), s); err != nil {
		t.Fatalf("Append: %v", err)
	}
	return s
}

func doRequest(t *testing.T, srv *server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	srv.router().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestListSnapshots(t *testing.T) {
	srv, store := newTestServer(t)
	seed(t, store)

	w := doRequest(t, srv, http.MethodGet, "/api/v1/snapshots", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var infos []snapshotInfo
	if err := json.NewDecoder(w.Body).Decode(&infos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != "seed" {
		t.Fatalf("infos = %+v", infos)
	}
	if infos[0].Size != len(tekuDump) {
		t.Errorf("Size = %d, want %d", infos[0].Size, len(tekuDump))
	}
}

func TestGraphByID(t *testing.T) {
	srv, store := newTestServer(t)
	seed(t, store)

	for _, target := range []string{
		"/api/v1/snapshots/seed/graph",
		"/api/v1/snapshots/latest/graph",
	} {
		w := doRequest(t, srv, http.MethodGet, target, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d: %s", target, w.Code, w.Body)
		}
		var g graph.Graph
		if err := json.NewDecoder(w.Body).Decode(&g); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(g.Nodes) != 2 {
			t.Errorf("GET %s returned %d nodes", target, len(g.Nodes))
		}
		if len(g.Heads) != 1 || g.Heads[0] != "0xbb" {
			t.Errorf("GET %s heads = %v", target, g.Heads)
		}
	}
}

func TestGraphServedFromCache(t *testing.T) {
	srv, store := newTestServer(t)
	seed(t, store)

	first := doRequest(t, srv, http.MethodGet, "/api/v1/snapshots/seed/graph", nil)
	second := doRequest(t, srv, http.MethodGet, "/api/v1/snapshots/seed/graph", nil)
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("status = %d, %d", first.Code, second.Code)
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Error("cached response differs from computed one")
	}
}

func TestGraphNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, http.MethodGet, "/api/v1/snapshots/nope/graph", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGraphBadQuery(t *testing.T) {
	srv, store := newTestServer(t)
	seed(t, store)

	tests := []string{
		"/api/v1/snapshots/seed/graph?placeholders=maybe",
		"/api/v1/snapshots/seed/graph?format=nimbus",
	}
	for _, target := range tests {
		if w := doRequest(t, srv, http.MethodGet, target, nil); w.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", target, w.Code)
		}
	}
}

func TestUploadDump(t *testing.T) {
	srv, store := newTestServer(t)

	w := doRequest(t, srv, http.MethodPost, "/api/v1/snapshots", []byte(tekuDump))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var resp struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.IDs) != 1 {
		t.Fatalf("ids = %v", resp.IDs)
	}

	snaps, _ := store.List(context.Background())
	if len(snaps) != 1 {
		t.Fatalf("store holds %d snapshots", len(snaps))
	}
}

func TestUploadRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	if w := doRequest(t, srv, http.MethodPost, "/api/v1/snapshots", []byte(`{broken`)); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("malformed dump status = %d, want 422", w.Code)
	}
	if w := doRequest(t, srv, http.MethodPost, "/api/v1/snapshots", nil); w.Code != http.StatusBadRequest {
		t.Errorf("empty body status = %d, want 400", w.Code)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	srv, store := newTestServer(t)
	seed(t, store)

	w := doRequest(t, srv, http.MethodGet, "/api/v1/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "protovis-history.json") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	srv2, store2 := newTestServer(t)
	w2 := doRequest(t, srv2, http.MethodPost, "/api/v1/import", w.Body.Bytes())
	if w2.Code != http.StatusCreated {
		t.Fatalf("import status = %d: %s", w2.Code, w2.Body)
	}
	snaps, _ := store2.List(context.Background())
	if len(snaps) != 1 || snaps[0].ID != "seed" {
		t.Fatalf("imported snapshots = %+v", snaps)
	}
}
