package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/prettylog/blogpipe/internal/cache"
	"github.com/prettylog/blogpipe/internal/gid"
	"github.com/prettylog/blogpipe/internal/pipeline"
	"github.com/prettylog/blogpipe/middleware"
)

type runStarter interface {
	Run(ctx context.Context, dir string, force bool) (pipeline.Report, error)
}

// runnerTemplate starts runs from a copy of a configured Runner so that
// concurrent requests can pick their own Force flag.
type runnerTemplate struct {
	base pipeline.Runner
}

func (t runnerTemplate) Run(ctx context.Context, dir string, force bool) (pipeline.Report, error) {
	r := t.base
	r.Force = force
	return r.Run(ctx, dir)
}

func (cfg *apiConfig) handlerRunsCreate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	subject, _ := subjectFromContext(r.Context())

	if cfg.runs == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Pipeline is not configured", nil)
		return
	}

	type parameters struct {
		// Path is relative to the configured content directory.
		Path  string `json:"path"`
		Force bool   `json:"force"`
	}
	var params parameters
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			respondWithError(w, http.StatusBadRequest, "Please provide a valid request body", err)
			return
		}
	}
	if cfg.contentDir == "" {
		respondWithError(w, http.StatusServiceUnavailable, "No content directory configured", nil)
		return
	}
	dir := filepath.Join(cfg.contentDir, filepath.Clean("/"+params.Path))

	slog.InfoContext(r.Context(), "pipeline run requested",
		"request_id", reqID,
		"subject", subject,
		"dir", dir,
		"force", params.Force,
	)
	report, err := cfg.runs.Run(r.Context(), dir, params.Force)
	switch {
	case errors.Is(err, cache.ErrRunInProgress):
		respondWithError(w, http.StatusConflict, "Another run is in progress", nil)
		return
	case errors.Is(err, gid.ErrClockRegression):
		respondWithError(w, http.StatusServiceUnavailable, "Clock moved backwards, retry later", err)
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondWithError(w, http.StatusServiceUnavailable, "Run cancelled", err)
		return
	case err != nil:
		respondWithError(w, http.StatusInternalServerError, "Run failed", err)
		return
	}

	code := http.StatusOK
	if report.Failed > 0 {
		code = http.StatusMultiStatus
	}
	respondWithJSON(w, code, report)
}
