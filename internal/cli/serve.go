package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/tbenr/protovis/pkg/graph"
	"github.com/tbenr/protovis/pkg/history"
	"github.com/tbenr/protovis/pkg/httputil"
	"github.com/tbenr/protovis/pkg/poller"
	"github.com/tbenr/protovis/pkg/source"
)

const shutdownGrace = 5 * time.Second

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	configPath string
	listen     string
	poll       bool
}

// newServeCmd creates the serve command, which runs the HTTP API and
// optionally keeps polling the beacon node in the background.
func newServeCmd() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the fork-choice API",
		Long: `Serve the snapshot and graph API over HTTP.

With --poll the server also captures snapshots from the configured beacon
node in the background, so the API always has fresh data to serve.

Examples:
  protovis serve --config protovis.toml --poll
  protovis serve --listen :9090`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runServe(c, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "config file")
	cmd.Flags().StringVar(&opts.listen, "listen", "", "bind address (overrides config)")
	cmd.Flags().BoolVar(&opts.poll, "poll", false, "poll the beacon node in the background")

	return cmd
}

func runServe(c *cobra.Command, opts *serveOpts) error {
	ctx := c.Context()
	logger := loggerFromContext(ctx)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.listen != "" {
		cfg.Listen = opts.listen
	}

	f, err := cfg.SourceFormat()
	if err != nil {
		return err
	}
	store, err := cfg.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	cache, err := httputil.NewCache(cfg.Cache.Dir, time.Duration(cfg.Cache.TTL))
	if err != nil {
		return err
	}

	srv := &server{
		store:        store,
		format:       f,
		placeholders: cfg.Placeholders,
		limit:        cfg.HistoryLimit,
		graphs:       cache.Namespace("graph:"),
		logger:       logger,
	}

	if opts.poll {
		endpoint, err := cfg.EndpointURL()
		if err != nil {
			return err
		}
		client, err := poller.NewClient(endpoint, f)
		if err != nil {
			return err
		}
		p := poller.New(client, store, time.Duration(cfg.Interval), logger)
		go func() { _ = p.Run(ctx) }()
	}

	httpSrv := &http.Server{Addr: cfg.Listen, Handler: srv.router()}
	errc := make(chan error, 1)
	go func() {
		logger.Info("serving fork-choice API", "addr", cfg.Listen, "format", f)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

// server holds the API's dependencies: the snapshot store, the dump format
// it interprets, and a cache of assembled graphs keyed by snapshot.
type server struct {
	store        history.Store
	format       source.Format
	placeholders bool
	limit        int
	graphs       *httputil.Cache
	logger       *charmlog.Logger
}

func (s *server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/snapshots", s.handleListSnapshots)
		r.Post("/snapshots", s.handleUploadDump)
		r.Get("/snapshots/{id}/graph", s.handleGraph)
		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)
	})
	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "took", time.Since(start).Round(time.Millisecond))
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// snapshotInfo is the list representation of a snapshot: metadata only, the
// dump itself is reachable through the graph endpoint.
type snapshotInfo struct {
	ID   string    `json:"id"`
	Time time.Time `json:"timestamp"`
	Size int       `json:"size_bytes"`
}

func (s *server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.store.List(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	infos := make([]snapshotInfo, 0, len(snaps))
	for _, snap := range snaps {
		infos = append(infos, snapshotInfo{ID: snap.ID, Time: snap.Time, Size: len(snap.Data)})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *server) handleUploadDump(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	f, err := s.requestFormat(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}

	snaps, err := history.ParseDump(body, f)
	if err != nil {
		s.fail(w, http.StatusUnprocessableEntity, err)
		return
	}
	ids := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		if err := s.store.Append(r.Context(), snap); err != nil {
			s.fail(w, http.StatusInternalServerError, err)
			return
		}
		ids = append(ids, snap.ID)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ids": ids})
}

func (s *server) handleGraph(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f, err := s.requestFormat(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	placeholders := s.placeholders
	if v := r.URL.Query().Get("placeholders"); v != "" {
		placeholders, err = strconv.ParseBool(v)
		if err != nil {
			s.fail(w, http.StatusBadRequest, fmt.Errorf("placeholders: %w", err))
			return
		}
	}

	snap, err := history.Get(r.Context(), s.store, id)
	if errors.Is(err, history.ErrNotFound) {
		s.fail(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}

	// Snapshots are immutable, so a cached graph never goes stale.
	key := fmt.Sprintf("%s:%s:%t", snap.ID, f, placeholders)
	var g graph.Graph
	if ok, _ := s.graphs.Get(key, &g); !ok {
		g, err = assemble(snap.Data, f, placeholders)
		if err != nil {
			s.fail(w, http.StatusUnprocessableEntity, err)
			return
		}
		if err := s.graphs.Set(key, g); err != nil {
			s.logger.Warn("caching graph failed", "key", key, "err", err)
		}
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	h, err := history.Load(r.Context(), s.store, s.limit)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="protovis-history.json"`)
	if err := history.WriteJSON(h, w); err != nil {
		s.logger.Error("export failed", "err", err)
	}
}

func (s *server) handleImport(w http.ResponseWriter, r *http.Request) {
	h, err := history.ReadJSON(r.Body, s.limit)
	if err != nil {
		s.fail(w, http.StatusUnprocessableEntity, err)
		return
	}
	for _, snap := range h.Snapshots() {
		if err := s.store.Append(r.Context(), snap); err != nil {
			s.fail(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, map[string]int{"imported": h.Len()})
}

// requestFormat resolves the dump format for one request: the ?format=
// override when present, the server default otherwise.
func (s *server) requestFormat(r *http.Request) (source.Format, error) {
	if v := r.URL.Query().Get("format"); v != "" {
		return source.ParseFormat(v)
	}
	return s.format, nil
}

func (s *server) fail(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}
	return body, nil
}
