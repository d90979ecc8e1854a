package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/semmidev/s3cleaner/internal/config"
	"github.com/semmidev/s3cleaner/internal/domain"
	"github.com/semmidev/s3cleaner/internal/infrastructure/logger"
	"github.com/semmidev/s3cleaner/internal/infrastructure/metrics"
)

const (
	indexMessage     = "S3 Cleaner Service is running."
	internalError    = "Internal server error"
	maxRequestBody   = 1 << 20
	invalidJSONError = "Invalid JSON body"
)

type ObjectLister interface {
	Execute(ctx context.Context, bucket string) ([]string, error)
}

type ObjectDeleter interface {
	Execute(ctx context.Context, bucket, key string) error
}

type BucketCleaner interface {
	Execute(ctx context.Context, req domain.CleanRequest) (domain.CleanResult, error)
}

// Server exposes the list, delete and clean operations over HTTP.
type Server struct {
	cfg        config.ServerConfig
	lister     ObjectLister
	deleter    ObjectDeleter
	cleaner    BucketCleaner
	metrics    *metrics.Metrics
	logger     *logger.Logger
	httpServer *http.Server
}

func NewServer(
	cfg config.ServerConfig,
	lister ObjectLister,
	deleter ObjectDeleter,
	cleaner BucketCleaner,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Server {
	return &Server{
		cfg:     cfg,
		lister:  lister,
		deleter: deleter,
		cleaner: cleaner,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, "GET /{$}", s.handleIndex)
	s.route(mux, "GET /api/list", s.handleList)
	s.route(mux, "POST /api/delete", s.handleDelete)
	s.route(mux, "POST /api/clean", s.handleClean)
	mux.Handle("GET /metrics", s.metrics.Handler())

	return mux
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		s.metrics.ObserveRequest(pattern, rec.status, time.Since(start))
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, indexMessage)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	bucket := r.URL.Query().Get("bucket")

	keys, err := s.lister.Execute(r.Context(), bucket)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"objects": keys})
}

type deleteRequest struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.deleter.Execute(r.Context(), req.Bucket, req.Key); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Deleted %s from %s", req.Key, req.Bucket),
	})
}

func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	var req domain.CleanRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// A clean runs to completion even if the client goes away.
	ctx := context.WithoutCancel(r.Context())

	result, err := s.cleaner.Execute(ctx, req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Cleaned %d objects from %s", result.Deleted, req.Bucket),
	})
}

// writeError maps use case errors to responses. Causes are logged by the
// use cases and never echoed to the client.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if domain.IsValidation(err) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": internalError})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": invalidJSONError})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ErrorLog:          s.logger.StdLog(),
	}

	go func() {
		s.logger.Infof("HTTP server listening on %s", ln.Addr())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("HTTP server error: %v", err)
		}
	}()

	return nil
}

// Shutdown waits for in-flight requests, including running cleans.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	s.logger.Infof("HTTP server stopped")
	return nil
}
