package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ogulcanaydogan/powermon/internal/monitor"
	"github.com/ogulcanaydogan/powermon/pkg/model"
	"github.com/ogulcanaydogan/powermon/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Readings is the read side of storage.Storage.
type Readings interface {
	LatestReading(ctx context.Context) (*model.Reading, error)
	ListReadings(ctx context.Context, filter model.ReadingFilter) ([]model.Reading, error)
}

// StatusSource reports the live monitor state.
type StatusSource interface {
	Status() monitor.Status
}

// Server provides health, readings, status and metrics endpoints.
type Server struct {
	readings Readings
	status   StatusSource
	gatherer prometheus.Gatherer
	mux      *http.ServeMux
	logger   *slog.Logger
	now      func() time.Time
}

// NewServer creates an API server.
func NewServer(readings Readings, status StatusSource, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	s := &Server{
		readings: readings,
		status:   status,
		gatherer: gatherer,
		mux:      http.NewServeMux(),
		logger:   logger,
		now:      time.Now,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/readings", s.handleReadings)
	s.mux.HandleFunc("GET /api/v1/readings/latest", s.handleLatest)
	s.mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	if s.gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	filter, err := s.parseFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	readings, err := s.readings.ListReadings(ctx, filter)
	if err != nil {
		s.logger.Error("list readings", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if readings == nil {
		readings = []model.Reading{}
	}
	writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	reading, err := s.readings.LatestReading(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no readings yet"})
		return
	}
	if err != nil {
		s.logger.Error("latest reading", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "monitor not running"})
		return
	}
	writeJSON(w, http.StatusOK, s.status.Status())
}

// parseFilter reads ?limit=N&since=<RFC3339 time or duration>&room=ID.
func (s *Server) parseFilter(r *http.Request) (model.ReadingFilter, error) {
	q := r.URL.Query()
	filter := model.ReadingFilter{Limit: defaultLimit, RoomID: q.Get("room")}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return filter, errors.New("limit must be a positive integer")
		}
		filter.Limit = min(n, maxLimit)
	}

	if raw := q.Get("since"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			filter.StartTime = s.now().Add(-d)
		} else if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.StartTime = t
		} else {
			return filter, errors.New("since must be an RFC 3339 time or a duration such as 24h")
		}
	}
	return filter, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
