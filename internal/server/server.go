// Package server exposes the read-only monitoring API: run history,
// quality reports, and lineage queries. It never mutates pipeline state.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/draftscope/prospect-etl/internal/etl"
	"github.com/draftscope/prospect-etl/internal/lineage"
	"github.com/draftscope/prospect-etl/internal/model"
)

// Server is the HTTP monitoring surface.
type Server struct {
	runs     *etl.RunStore
	recorder *lineage.Recorder
	history  *etl.History
	srv      *http.Server
}

// New builds the server on the given port.
func New(port int, runs *etl.RunStore, recorder *lineage.Recorder, history *etl.History) *Server {
	s := &Server{
		runs:     runs,
		recorder: recorder,
		history:  history,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/runs", s.handleRuns)
		r.Get("/runs/latest", s.handleLatestRun)
		r.Get("/runs/{runID}", s.handleRun)
		r.Get("/runs/{runID}/quality", s.handleQuality)
		r.Get("/quality/latest", s.handleLatestQuality)
		r.Get("/lineage/{entityType}/{entityID}", s.handleLineage)
		r.Get("/conflicts/{entityType}/{field}", s.handleConflicts)
	})

	s.srv = &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	zap.L().Info("monitoring server listening", zap.String("addr", s.srv.Addr))
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	// Serve from the in-memory history when available; the database is
	// the fallback for a fresh process.
	if rec := s.history.Latest(); rec != nil {
		writeJSON(w, http.StatusOK, rec)
		return
	}
	run, err := s.runs.LatestRun(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if run == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no runs recorded"})
		return
	}
	s.writeRunRecord(w, r, run)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	s.writeRunRecord(w, r, run)
}

func (s *Server) writeRunRecord(w http.ResponseWriter, r *http.Request, run *model.ExtractionRun) {
	phases, err := s.runs.GetPhases(r.Context(), run.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	report, err := s.runs.GetQualityReport(r.Context(), run.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.ExecutionRecord{
		Run:     *run,
		Phases:  phases,
		Quality: report,
	})
}

func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	report, err := s.runs.GetQualityReport(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if report == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no quality report for run"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleLatestQuality(w http.ResponseWriter, r *http.Request) {
	if rec := s.history.Latest(); rec != nil && rec.Quality != nil {
		writeJSON(w, http.StatusOK, rec.Quality)
		return
	}
	run, err := s.runs.LatestRun(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if run == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no runs recorded"})
		return
	}
	report, err := s.runs.GetQualityReport(r.Context(), run.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if report == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no quality report for run"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleLineage(w http.ResponseWriter, r *http.Request) {
	entityType := model.EntityType(chi.URLParam(r, "entityType"))
	entityID := chi.URLParam(r, "entityID")
	field := r.URL.Query().Get("field")

	entries, err := s.recorder.QueryByEntity(r.Context(), entityType, entityID, field)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	entityType := model.EntityType(chi.URLParam(r, "entityType"))
	field := chi.URLParam(r, "field")

	entries, err := s.recorder.QueryConflicts(r.Context(), entityType, field)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
