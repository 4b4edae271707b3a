package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type ctxKey int

const requestIDKey ctxKey = iota

const HeaderRequestID = "X-Request-Id"

const maxRequestIDLen = 128

func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// RequestID accepts a client supplied X-Request-Id after stripping control
// characters and whitespace, and mints a UUID otherwise. The id is echoed in
// the response and stored on the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := sanitizeReqID(r.Header.Get(HeaderRequestID))
		if rid == "" {
			rid = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, rid)
		w.Header().Set(HeaderRequestID, rid)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sanitizeReqID(s string) string {
	s = strings.Map(func(r rune) rune {
		if r <= ' ' || r == 127 {
			return -1
		}
		return r
	}, s)
	if len(s) > maxRequestIDLen {
		s = s[:maxRequestIDLen]
	}
	return s
}
