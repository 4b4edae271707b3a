package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prettylog/blogpipe/internal/auth"
	"github.com/prettylog/blogpipe/middleware"
)

type ctxKey int

const subjectKey ctxKey = iota

func subjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey).(string)
	return s, ok
}

func (cfg *apiConfig) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearerToken, err := auth.GetBearerToken(r.Header)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "Authentication credentials are missing or invalid", nil)
			return
		}
		subject, err := auth.ValidateJWT(bearerToken, cfg.signingKey)
		if err != nil {
			slog.DebugContext(r.Context(), "rejected token",
				"request_id", middleware.GetRequestID(r.Context()),
				"error", err,
			)
			respondWithError(w, http.StatusUnauthorized, "Authentication credentials are invalid.", nil)
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
