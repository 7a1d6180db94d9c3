package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tectiv3/gemini-web/types"
	"github.com/tectiv3/gemini-web/uploads"
)

func (s *Server) setupWebServer() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/chat", s.logMiddleware(s.recoverMiddleware(s.handleChat)))
	mux.HandleFunc(uploads.URLPrefix, s.logMiddleware(s.recoverMiddleware(s.serveUpload)))

	return mux
}

// statusRecorder remembers the status written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r)

		Log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("request")
	}
}

// Recover middleware turns handler panics into a JSON 500
func (s *Server) recoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				Log.WithField("path", r.URL.Path).WithField("panic", err).Error(string(debug.Stack()))
				s.writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()

		next(w, r)
	}
}

// Helper functions for JSON responses
func (s *Server) writeJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, types.ErrorResponse{Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		Log.WithField("error", err).Warn("failed to write response")
	}
}

// Extract path parameter from URL (e.g., /static/uploads/abc_x.png -> abc_x.png)
func extractPathParam(path, prefix string) string {
	if strings.HasPrefix(path, prefix) {
		param := strings.TrimPrefix(path, prefix)
		param = strings.TrimPrefix(param, "/")
		// Remove any trailing path segments
		if idx := strings.Index(param, "/"); idx != -1 {
			param = param[:idx]
		}
		return param
	}
	return ""
}

func (s *Server) serveUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	name := extractPathParam(r.URL.Path, uploads.URLPrefix)
	if name == "" || strings.TrimPrefix(r.URL.Path, uploads.URLPrefix) != name {
		http.NotFound(w, r)
		return
	}

	path, err := s.store.Path(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && info.IsDir()) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}

	http.ServeFile(w, r, path)
}
