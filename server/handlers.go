package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"transcriptSummarize/core"
	"transcriptSummarize/processors"
	"transcriptSummarize/storage"
)

// Server wires the batch processor, job manager and summary store behind the
// HTTP API.
type Server struct {
	batch *processors.BatchProcessor
	jobs  *core.JobManager
	store storage.SummaryStore
	log   *logrus.Logger
}

// NewServer creates the HTTP surface over the engine components.
func NewServer(batch *processors.BatchProcessor, jobs *core.JobManager, store storage.SummaryStore, log *logrus.Logger) *Server {
	return &Server{batch: batch, jobs: jobs, store: store, log: log}
}

// Routes registers all endpoints on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/analyze", s.analyzeHandler)
	mux.HandleFunc("/api/jobs", s.jobStatsHandler)
	mux.HandleFunc("/api/jobs/", s.jobHandler)
	mux.HandleFunc("/api/search", s.searchHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// AnalyzeRequest is the body of POST /api/analyze.
type AnalyzeRequest struct {
	RequestID string           `json:"request_id,omitempty"`
	Items     []core.ItemInput `json:"items"`
	Languages []string         `json:"languages"`
	Async     bool             `json:"async,omitempty"`
}

func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"error": "method not allowed", "message": "only POST is supported",
		})
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body", "message": err.Error(),
		})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "no items specified", "message": "at least one item must be provided",
		})
		return
	}
	if len(req.Languages) == 0 {
		req.Languages = []string{"en"}
	}

	if req.Async {
		jobID := s.jobs.Submit(func(ctx context.Context, jobID string) (*core.BatchResult, error) {
			result := s.batch.Run(ctx, req.RequestID, req.Items, req.Languages)
			return &result, nil
		})
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"job_id": jobID,
			"state":  string(core.JobQueued),
		})
		return
	}

	result := s.batch.Run(r.Context(), req.RequestID, req.Items, req.Languages)
	writeJSON(w, http.StatusOK, result)
}

// jobHandler serves GET (status) and DELETE (cancel) for /api/jobs/{id}.
func (s *Server) jobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if jobID == "" || strings.Contains(jobID, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "invalid job id",
		})
		return
	}

	switch r.Method {
	case http.MethodGet:
		job, err := s.jobs.GetStatus(jobID)
		if err != nil {
			s.writeJobError(w, jobID, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	case http.MethodDelete:
		if err := s.jobs.Cancel(jobID); err != nil {
			s.writeJobError(w, jobID, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"job_id": jobID, "message": "cancellation requested",
		})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"error": "method not allowed", "message": "only GET and DELETE are supported",
		})
	}
}

func (s *Server) writeJobError(w http.ResponseWriter, jobID string, err error) {
	if errors.Is(err, core.ErrJobNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": core.CodeJobNotFound, "message": "job " + jobID + " not found",
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"error": core.CodeProcessingError, "message": err.Error(),
	})
}

func (s *Server) jobStatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"error": "method not allowed", "message": "only GET is supported",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": s.jobs.Stats(),
	})
}

func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"error": "method not allowed", "message": "only GET is supported",
		})
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "missing query", "message": "q parameter is required",
		})
		return
	}
	topK := 5
	if v := r.URL.Query().Get("top_k"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			topK = n
		}
	}

	hits, err := s.store.Search(r.Context(), query, topK)
	if err != nil {
		s.log.WithError(err).Error("insight search failed")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": core.CodeProcessingError, "message": err.Error(),
		})
		return
	}
	if hits == nil {
		hits = []storage.InsightHit{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query": query, "hits": hits,
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"jobs":   s.jobs.Stats(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
