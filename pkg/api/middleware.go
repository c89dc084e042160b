package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"topology-impact-engine/pkg/common"
)

// CorrelationMiddleware assigns or propagates X-Correlation-Id and logs one
// line per request with method, path, status, and duration.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		r = r.WithContext(common.WithCorrelationID(r.Context(), correlationID))
		w.Header().Set("X-Correlation-Id", correlationID)

		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		slog.Info("request",
			"correlationId", correlationID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"durationMs", time.Since(start).Milliseconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wrote {
		w.status = code
		w.wrote = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
