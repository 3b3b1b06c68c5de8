// Package api serves a recorded document over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/coattosintetico/termux-gps-tracker/pkg/storage"
	"github.com/coattosintetico/termux-gps-tracker/pkg/track"
	"github.com/coattosintetico/termux-gps-tracker/pkg/types"
)

const (
	contentTypeGeoJSON = "application/geo+json"
	contentTypeZstd    = "application/zstd"

	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 60 * time.Second
	serverIdleTimeout  = 60 * time.Second
)

// DocumentReader reads a feature collection
type DocumentReader interface {
	Read(path string) (*types.FeatureCollection, error)
}

// Server serves one document, its compressed form and a summary of it
type Server struct {
	path   string
	name   string
	reader DocumentReader
	cache  *storage.DocumentCache
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server for the document at path
func NewServer(addr, path string, reader DocumentReader, cache *storage.DocumentCache, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		path:   path,
		name:   filepath.Base(path),
		reader: reader,
		cache:  cache,
		logger: logger,
	}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}
	return s
}

// Name returns the URL path element of the served document
func (s *Server) Name() string {
	return s.name
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Get("/summary", s.handleSummary)
	r.Get("/{name}", s.handleDocument)

	return r
}

// Start starts the HTTP server and blocks until it stops. It returns
// http.ErrServerClosed after Stop.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server. A server stopped before Start never listens.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleDocument serves the document or its compressed form. Any other name
// is not found, the records directory is never listed.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "name") {
	case s.name:
		s.logger.Info("File download requested", zap.String("file", s.name))
		w.Header().Set("Content-Type", contentTypeGeoJSON)
		http.ServeFile(w, r, s.path)

	case s.name + storage.CompressedExt:
		s.logger.Info("File download requested", zap.String("file", s.name+storage.CompressedExt))
		data, err := s.cache.Compressed(s.path)
		if err != nil {
			s.logger.Error("Failed to compress document", zap.Error(err))
			http.Error(w, fmt.Sprintf("Compression failed: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentTypeZstd)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.name+storage.CompressedExt))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		_, _ = w.Write(data)

	default:
		http.NotFound(w, r)
	}
}

// handleSummary reports the track statistics of the document
func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	doc, err := s.reader.Read(s.path)
	if err != nil {
		s.logger.Error("Failed to read document", zap.Error(err))
		http.Error(w, fmt.Sprintf("Read failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(track.Summarize(doc))
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
