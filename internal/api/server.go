// Package api exposes crawling over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cametumbling/sitecrawl/internal/crawler"
	"github.com/cametumbling/sitecrawl/internal/database"
	"github.com/cametumbling/sitecrawl/internal/logging"
	"github.com/cametumbling/sitecrawl/internal/report"
)

// Crawler runs one crawl session. *crawler.Session implements it.
type Crawler interface {
	Crawl(ctx context.Context, rootURL string) (*crawler.Result, error)
}

// Archive stores and reads finished crawls. *database.ResultDB implements it.
type Archive interface {
	SaveCrawl(ctx context.Context, result *crawler.Result) error
	ListCrawls(ctx context.Context, limit int) ([]database.CrawlSummary, error)
	LoadCrawl(ctx context.Context, id string) (*crawler.Result, error)
}

// CrawlRequest is the body of POST /api/v1/crawl.
type CrawlRequest struct {
	Domain string `json:"domain" validate:"required,url"`
}

// CrawlDetail is the body of GET /api/v1/crawls/{id}.
type CrawlDetail struct {
	ID         string        `json:"id"`
	Root       string        `json:"root"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Seen       int           `json:"seen"`
	Stats      crawler.Stats `json:"stats"`
	Partial    bool          `json:"partial"`
	TimedOut   bool          `json:"timedOut"`
	report.Response
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server exposes the HTTP API for running and reading crawls.
type Server struct {
	crawler  Crawler
	archive  Archive
	output   *logging.OutputLog
	metrics  http.Handler
	logger   *slog.Logger
	validate *validator.Validate
	mux      *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithArchive stores every crawl and enables the /api/v1/crawls endpoints.
func WithArchive(archive Archive) Option {
	return func(s *Server) {
		s.archive = archive
	}
}

// WithOutputLog records every crawl response.
func WithOutputLog(output *logging.OutputLog) Option {
	return func(s *Server) {
		s.output = output
	}
}

// WithMetrics serves h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer wires handlers onto an HTTP mux.
func NewServer(c Crawler, opts ...Option) *Server {
	s := &Server{
		crawler:  c,
		output:   logging.NewOutputLog(nil),
		logger:   slog.Default(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP satisfies the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.logger.Info("request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(start),
	)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/v1/crawl", s.handleCrawl)
	s.mux.HandleFunc("GET /api/v1/crawls", s.handleListCrawls)
	s.mux.HandleFunc("GET /api/v1/crawls/{id}", s.handleGetCrawl)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var req CrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json payload: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "domain must be an absolute http or https URL")
		return
	}

	result, err := s.crawler.Crawl(r.Context(), req.Domain)
	if errors.Is(err, crawler.ErrInvalidRoot) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("crawl failed", "domain", req.Domain, "error", err)
		writeError(w, http.StatusInternalServerError, "crawl failed")
		return
	}

	resp := report.NewResponse(result)
	if err := s.output.Write(resp); err != nil {
		s.logger.Warn("failed to write output log", "session", result.ID, "error", err)
	}
	if s.archive != nil {
		// Archive even if the client has gone away.
		if err := s.archive.SaveCrawl(context.WithoutCancel(r.Context()), result); err != nil {
			s.logger.Error("failed to archive crawl", "session", result.ID, "error", err)
		}
	}

	w.Header().Set("X-Crawl-Session", result.ID)
	if result.Partial {
		w.Header().Set("X-Crawl-Partial", "true")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListCrawls(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotImplemented, "crawl archive is disabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	summaries, err := s.archive.ListCrawls(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list crawls", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list crawls")
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetCrawl(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotImplemented, "crawl archive is disabled")
		return
	}

	id := r.PathValue("id")
	result, err := s.archive.LoadCrawl(r.Context(), id)
	if errors.Is(err, database.ErrCrawlNotFound) {
		writeError(w, http.StatusNotFound, "crawl not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load crawl", "session", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load crawl")
		return
	}

	writeJSON(w, http.StatusOK, CrawlDetail{
		ID:         result.ID,
		Root:       result.Root.String(),
		StartedAt:  result.StartedAt.UTC(),
		FinishedAt: result.FinishedAt.UTC(),
		Seen:       result.Seen,
		Stats:      result.Stats,
		Partial:    result.Partial,
		TimedOut:   result.TimedOut,
		Response:   report.NewResponse(result),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
