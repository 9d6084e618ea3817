// Package server exposes a segbloom.Service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/segbloom"
)

// Service is the part of segbloom.Service the HTTP layer needs.
type Service interface {
	CreateSegment(ctx context.Context) (segbloom.SegmentID, error)
	CreateSegmentAsync(ctx context.Context) (segbloom.SegmentID, <-chan error, error)
	QuerySegment(id segbloom.SegmentID, term []byte) (segbloom.QueryResult, error)
	Status(id segbloom.SegmentID) segbloom.SegmentStatus
	Segment(id segbloom.SegmentID) (segbloom.SegmentInfo, bool)
	Segments() []segbloom.SegmentInfo
	Stats() segbloom.Stats
}

var _ Service = (*segbloom.Service)(nil)

// Server routes HTTP requests to a Service.
type Server struct {
	svc      Service
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	router   *chi.Mux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for request and error logs.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithGatherer serves /metrics from g instead of prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// New builds the router for svc.
func New(svc Service, optFns ...Option) *Server {
	s := &Server{
		svc:      svc,
		logger:   slog.New(slog.DiscardHandler),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, fn := range optFns {
		fn(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Post("/create_segment", s.handleCreateSegment)
	r.Get("/query_segment", s.handleQuerySegment)
	r.Get("/segments", s.handleSegments)
	r.Get("/segments/{id}", s.handleSegment)
	r.Get("/stats", s.handleStats)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleCreateSegment(w http.ResponseWriter, r *http.Request) {
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		id, _, err := s.svc.CreateSegmentAsync(r.Context())
		if err != nil {
			s.createFailed(w, r, id, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]segbloom.SegmentID{"segment_number": id})
		return
	}

	id, err := s.svc.CreateSegment(r.Context())
	if err != nil {
		s.createFailed(w, r, id, err)
		return
	}

	writeText(w, http.StatusOK, fmt.Sprintf("Segment summary %d created", id))
}

func (s *Server) createFailed(w http.ResponseWriter, r *http.Request, id segbloom.SegmentID, err error) {
	s.logger.ErrorContext(r.Context(), "create segment failed",
		"segment_number", id,
		"request_id", middleware.GetReqID(r.Context()),
		"error", err,
	)

	status := http.StatusInternalServerError
	if errors.Is(err, segbloom.ErrResourceExhausted) {
		status = http.StatusServiceUnavailable
	}
	writeText(w, status, "Failed to create segment summary")
}

func (s *Server) handleQuerySegment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	id, err := parseID(q.Get("id"))
	if err != nil {
		writeText(w, http.StatusBadRequest, "Invalid query string: "+err.Error())
		return
	}
	// An empty term is a valid term; only a missing one is rejected.
	if !q.Has("term") {
		writeText(w, http.StatusBadRequest, "Invalid query string: missing term")
		return
	}

	res, err := s.svc.QuerySegment(id, []byte(q.Get("term")))
	if err != nil {
		if errors.Is(err, segbloom.ErrSegmentNotFound) {
			writeText(w, http.StatusNotFound, fmt.Sprintf("Segment %d not found", id))
			return
		}
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}

type segmentResponse struct {
	segbloom.SegmentStatus
	Segment *segbloom.SegmentInfo `json:"segment,omitempty"`
}

func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeText(w, http.StatusBadRequest, "Invalid segment number: "+err.Error())
		return
	}

	resp := segmentResponse{SegmentStatus: s.svc.Status(id)}
	if resp.State == segbloom.StateUnknown {
		writeText(w, http.StatusNotFound, fmt.Sprintf("Segment %d not found", id))
		return
	}
	if info, ok := s.svc.Segment(id); ok {
		resp.Segment = &info
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSegments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Segments())
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func parseID(raw string) (segbloom.SegmentID, error) {
	if raw == "" {
		return 0, errors.New("missing id")
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return segbloom.SegmentID(id), nil
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
