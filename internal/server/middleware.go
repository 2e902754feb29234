// ABOUTME: HTTP middleware: correlation IDs, request logging, and feature guards.
// ABOUTME: Sync and narrative routes answer 503 when their collaborator is not configured.
package server

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/harperreed/ringhealth/internal/logging"
)

// correlationID ties log lines of one request together. An incoming
// X-Correlation-ID is kept so callers can trace their own runs.
func correlationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-ID")
		if id == "" {
			id = logging.NewCorrelationID()
		}
		w.Header().Set("X-Correlation-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.WithCorrelationID(r.Context(), id)))
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.Ctx(r.Context()).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) requireSyncer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.syncer == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "sync is not configured"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireNarrative(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.narrative == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "narratives are not configured"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
