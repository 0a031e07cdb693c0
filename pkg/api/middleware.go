package api

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/smartpc/smartpc/pkg/errors"
)

// statusRecorder remembers the status written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		route := r.Pattern
		if route == "" || route == "/" {
			route = "unmatched"
		}
		s.metrics.RecordRequest(route, rec.status, elapsed)
		s.logger.Info("API request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", elapsed)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w, s.config.AllowedOrigin)
		next.ServeHTTP(w, r)
	})
}

func setCORSHeaders(w http.ResponseWriter, origin string) {
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

// recoverMiddleware turns a panic into a 500 carrying the panic text.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("Panic recovered",
					"path", r.URL.Path,
					"panic", p,
					"stack", string(debug.Stack()))
				err := errors.NewError(errors.ErrCodePanicRecovered, "Internal server error").
					WithCause(fmt.Errorf("%v", p))
				s.respondError(w, r, err)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// handlePreflight answers OPTIONS /instance with the static CORS envelope,
// whether or not the CORS middleware is enabled.
func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w, s.config.AllowedOrigin)
	respondJSON(w, http.StatusOK, map[string]string{"message": "CORS preflight OK"})
}

func (s *Server) handleUnknown(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, r, errors.NewError(errors.ErrCodeInvalidRoute, "Invalid HTTP method or path"))
}
