package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prettylog/blogpipe/internal/gid"
	"github.com/prettylog/blogpipe/internal/store"
	"github.com/prettylog/blogpipe/middleware"
)

type idSource interface {
	Generate() (uint64, error)
}

type resetter interface {
	Reset(ctx context.Context) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type apiConfig struct {
	platform   string
	signingKey string
	contentDir string
	uploadDir  string

	gidGen     idSource
	shards     *gid.Pool // generators for the machine ids in owned
	owned      map[int]bool
	posts      postStore
	categories categoryStore
	resetter   resetter
	db         pinger
	runs       runStarter
	gatherer   prometheus.Gatherer
	logger     *slog.Logger

	// idRate caps POST /ids per client IP per minute; zero disables it.
	idRate int
}

func newRouter(cfg *apiConfig) http.Handler {
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Metrics)
	r.Use(chimw.Recoverer)

	r.Get("/", homeHandler)
	r.Get("/health", cfg.handlerHealth)
	if cfg.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.gatherer, promhttp.HandlerOpts{}))
	}

	if cfg.uploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.uploadDir))))
	}

	r.Route("/ids", func(r chi.Router) {
		if cfg.idRate > 0 {
			r.With(httprate.LimitByIP(cfg.idRate, time.Minute)).Post("/", cfg.handlerIDsCreate)
		} else {
			r.Post("/", cfg.handlerIDsCreate)
		}
		// gid:// strings carry slashes, so take the whole remainder
		r.Get("/*", cfg.handlerIDsParse)
	})

	r.Route("/posts", func(r chi.Router) {
		r.Use(cfg.requirePosts)
		r.Get("/", cfg.handlerPostsList)
		r.Get("/{postID}", cfg.handlerPostsGet)
		r.With(cfg.requireAuth).Delete("/{postID}", cfg.handlerPostsDelete)
	})

	r.Route("/categories", func(r chi.Router) {
		r.Use(cfg.requireCategories)
		r.Get("/", cfg.handlerCategoryRoots)
		r.Get("/{categoryID}", cfg.handlerCategoryGet)
		r.Get("/{categoryID}/children", cfg.handlerCategoryChildren)
		r.Get("/{categoryID}/descendants", cfg.handlerCategoryDescendants)
	})

	r.With(cfg.requireAuth).Post("/runs", cfg.handlerRunsCreate)

	r.Post("/admin/reset", cfg.handlerReset)

	return r
}

func (cfg *apiConfig) requirePosts(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.posts == nil {
			respondWithError(w, http.StatusServiceUnavailable, "No database configured", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func homeHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("You've hit our application"))
}

func (cfg *apiConfig) handlerHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "text/plain")
	if cfg.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := cfg.db.Ping(ctx); err != nil {
			slog.WarnContext(r.Context(), "health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

var (
	_ postStore     = (*store.Store)(nil)
	_ categoryStore = (*store.Store)(nil)
)
