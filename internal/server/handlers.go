package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"civicbriefs/internal/pipeline"
)

const maxBodyBytes = 1 << 20

// HealthResponse is the /health payload
type HealthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks"`
}

// IngestResponse reports an ingestion run
type IngestResponse struct {
	Fetched int    `json:"fetched"`
	Saved   int    `json:"saved"`
	Error   string `json:"error,omitempty"`
}

// MappingResponse reports a mapping run
type MappingResponse struct {
	Created int    `json:"created"`
	Error   string `json:"error,omitempty"`
}

type runRequest struct {
	SkipIngest bool `json:"skip_ingest"`
	SkipEmail  bool `json:"skip_email"`
}

type resummarizeRequest struct {
	Limit        int  `json:"limit"`
	ForceExtract bool `json:"force_extract"`
}

var serverStartTime = time.Now()

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}
	resp := HealthResponse{Status: "ok", Uptime: time.Since(serverStartTime).Round(time.Second).String(), Checks: checks}

	if err := s.services.DB.Ping(r.Context()); err != nil {
		s.log.Warn("Health check failed", "error", err)
		checks["database"] = "error"
		resp.Status = "unhealthy"
		s.respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleRunPipeline handles POST /api/pipeline/run
func (s *Server) handleRunPipeline(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.runMu.TryLock() {
		s.respondError(w, http.StatusConflict, "A pipeline run is already in progress")
		return
	}
	defer s.runMu.Unlock()

	res, err := s.services.Pipeline(nil).Run(r.Context(), pipeline.RunOptions{
		SkipIngest: req.SkipIngest,
		SkipEmail:  req.SkipEmail,
	})
	if err != nil {
		s.log.Error("Pipeline run failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Pipeline run failed")
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

// handleIngest handles POST /api/ingest
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if !s.runMu.TryLock() {
		s.respondError(w, http.StatusConflict, "A pipeline run is already in progress")
		return
	}
	defer s.runMu.Unlock()

	report, err := s.services.Ingest.Run(r.Context())
	var resp IngestResponse
	if report != nil {
		resp.Fetched, resp.Saved = report.Fetched, len(report.Saved)
	}
	if err != nil {
		// per-source failures still leave the other sources stored
		s.log.Warn("Ingestion finished with errors", "error", err)
		resp.Error = err.Error()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleResummarize handles POST /api/ingest/resummarize
func (s *Server) handleResummarize(w http.ResponseWriter, r *http.Request) {
	req := resummarizeRequest{Limit: 20}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := s.services.Ingest.Resummarize(r.Context(), req.Limit, req.ForceExtract)
	if err != nil {
		s.log.Error("Resummarize failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to resummarize news")
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

// handleMapping handles POST /api/mapping
func (s *Server) handleMapping(w http.ResponseWriter, r *http.Request) {
	if !s.runMu.TryLock() {
		s.respondError(w, http.StatusConflict, "A pipeline run is already in progress")
		return
	}
	defer s.runMu.Unlock()

	n, err := s.services.Mapper.MapNewsToSyllabus(r.Context())
	resp := MappingResponse{Created: n}
	if err != nil {
		s.log.Warn("Mapping finished with errors", "error", err)
		resp.Error = err.Error()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]any{
		"error": map[string]any{
			"status":  status,
			"message": message,
		},
	})
}

// respondMarkdown writes a rendered markdown document
func (s *Server) respondMarkdown(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, content); err != nil {
		s.log.Error("Failed to write markdown response", "error", err)
	}
}

// decodeJSON reads an optional JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// queryInt parses an integer query parameter, returning def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func wantsMarkdown(r *http.Request) bool {
	return r.URL.Query().Get("format") == "markdown"
}
