package main

import (
	"log/slog"
	"net/http"
)

func (cfg *apiConfig) handlerReset(w http.ResponseWriter, r *http.Request) {
	if cfg.platform != "dev" {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("Reset is only allowed in dev environment."))
		return
	}
	if cfg.resetter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("No database configured."))
		return
	}

	err := cfg.resetter.Reset(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Failed to reset the database: " + err.Error()))
		return
	}
	slog.WarnContext(r.Context(), "database reset")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Database reset to initial state."))
}
