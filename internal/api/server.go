// Package api exposes the object store over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/geocached/internal/cache"
	"github.com/mohammed-shakir/geocached/internal/core/health"
	"github.com/mohammed-shakir/geocached/internal/core/middleware"
	"github.com/mohammed-shakir/geocached/internal/geo"
	"github.com/mohammed-shakir/geocached/internal/hotness"
	"github.com/mohammed-shakir/geocached/internal/objectid"
)

// ObjectStore is what the handlers need from the cache.
type ObjectStore interface {
	Insert(id string, payload json.RawMessage, loc geo.Location) bool
	Retrieve(id string) (json.RawMessage, bool)
	Locate(id string) (cache.Entry, bool)
	Remove(id string) bool
	UpdateLocation(id string, loc geo.Location) bool
	Query(c geo.Circle) []cache.Match[json.RawMessage]
	Size() int
	Cells() int
	Precision() uint
}

type Options struct {
	Logger *slog.Logger
	Store  ObjectStore
	IDs    objectid.Generator
	// Hot is optional; /stats lists the HotTopN hottest cells when set.
	Hot     hotness.Ranker
	HotTopN int
	// Metrics is mounted at MetricsPath when non-nil.
	Metrics     http.Handler
	MetricsPath string
	Ready       health.ReadinessReporter
}

func NewRouter(o Options) http.Handler {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.IDs == nil {
		o.IDs = objectid.UUID{}
	}
	h := &handlers{
		log:     o.Logger,
		store:   o.Store,
		ids:     o.IDs,
		hot:     o.Hot,
		hotTopN: o.HotTopN,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recover(o.Logger))
	r.Use(middleware.Logging(o.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(o.Ready))
	if o.Metrics != nil {
		path := o.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, o.Metrics)
	}

	r.Post("/objects", h.createObject)
	r.Get("/objects/{id}", h.getObject)
	r.Delete("/objects/{id}", h.deleteObject)
	r.Put("/objects/{id}/location", h.moveObject)
	r.Get("/query", h.query)
	r.Get("/stats", h.stats)
	return r
}

// Run serves h on addr until ctx is done.
func Run(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
