// Package server exposes the published dataset over an HTTP API:
// filter options, cached filtered sessions, aggregate views, and the
// optional narrative endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/campaignlens/campaignlens/internal/config"
	"github.com/campaignlens/campaignlens/internal/insights"
	"github.com/campaignlens/campaignlens/internal/metrics"
	"github.com/campaignlens/campaignlens/internal/query"
	"github.com/campaignlens/campaignlens/internal/storage"
	"github.com/campaignlens/campaignlens/internal/watcher"
)

// Server serves the published dataset. The in-memory dataset is
// swapped atomically on reload; open sessions keep the snapshot they
// were created against.
type Server struct {
	addr       string
	corsOrigin string
	store      storage.DatasetStore
	ref        storage.DatasetRef
	narrative  insights.Client
	sessions   *SessionCache
	watch      *watcher.Watcher
	dataset    atomic.Pointer[query.Dataset]
	log        *slog.Logger
}

// New loads the published dataset and assembles the server. A missing
// dataset is fatal: there is nothing to serve until ingest has run.
func New(ctx context.Context, cfg config.Config, store storage.DatasetStore, narrative insights.Client) (*Server, error) {
	ref := storage.DatasetRef{Name: cfg.Output.Dataset, Version: cfg.Output.Version}

	d, err := query.Load(ctx, store, ref)
	if err != nil {
		return nil, fmt.Errorf("load published dataset (run ingest first): %w", err)
	}

	s := &Server{
		addr:       cfg.Server.Addr,
		corsOrigin: cfg.Server.CORSOrigin,
		store:      store,
		ref:        ref,
		narrative:  narrative,
		sessions:   NewSessionCache(time.Duration(cfg.Server.SessionTTLSeconds) * time.Second),
		log:        slog.With("component", "server"),
	}
	s.dataset.Store(d)

	interval := time.Duration(cfg.Server.ReloadIntervalSeconds) * time.Second
	s.watch = watcher.New(store, ref, interval, s.reload)
	s.watch.Prime(d.Manifest.Dataset.Checksum)

	s.log.Info("dataset loaded",
		"dataset", ref.Name,
		"version", ref.Version,
		"rows", len(d.Records),
		"checksum", d.Manifest.Dataset.Checksum,
	)
	return s, nil
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.watch.Run(ctx)
	go s.sessions.Janitor(ctx, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// routes builds the mux with the middleware chain.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/dataset", s.handleDataset)
	mux.HandleFunc("GET /api/v1/filters", s.handleFilters)
	mux.HandleFunc("POST /api/v1/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}/{view}", s.handleView)
	mux.HandleFunc("POST /api/v1/sessions/{id}/insights", s.handleInsights)

	return withLogging(withRecovery(withCORS(s.corsOrigin, mux)))
}

// reload swaps in the latest published dataset. Called by the watcher
// when the manifest checksum moves.
func (s *Server) reload(ctx context.Context) error {
	d, err := query.Load(ctx, s.store, s.ref)
	if err != nil {
		return err
	}
	s.dataset.Store(d)
	s.log.Info("dataset reloaded", "rows", len(d.Records), "checksum", d.Manifest.Dataset.Checksum)
	return nil
}
