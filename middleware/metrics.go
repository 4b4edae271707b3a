package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prettylog/blogpipe/internal/metrics"
)

// unmatchedRoute labels requests no route claimed, so probing random paths
// cannot blow up label cardinality.
const unmatchedRoute = "unmatched"

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		metrics.HTTPInFlight.Inc()
		defer metrics.HTTPInFlight.Dec()

		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		labels := []string{r.Method, routePattern(r), strconv.Itoa(status)}

		metrics.HTTPRequestsTotal.WithLabelValues(labels...).Inc()
		metrics.HTTPDurationSeconds.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		metrics.HTTPResponseSizeBytes.WithLabelValues(labels...).Observe(float64(rec.bytes))
	})
}

// routePattern returns the matched chi pattern, e.g. "/posts/{postID}".
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatchedRoute
}
