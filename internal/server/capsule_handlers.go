package server

import (
	"net/http"
	"strings"

	"civicbriefs/internal/core"
	"civicbriefs/internal/render"
)

const maxRelatedPyqs = 20

// RelatedPyqsResponse is the payload of /api/pyqs/related
type RelatedPyqsResponse struct {
	Query   string            `json:"query"`
	Results []core.RelatedPyq `json:"results"`
}

// handleTodayCapsule handles GET /api/capsule/today
func (s *Server) handleTodayCapsule(w http.ResponseWriter, r *http.Request) {
	capsule, err := s.services.Capsules.BuildDaily(r.Context())
	if err != nil {
		s.log.Error("Failed to build capsule", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to build today's capsule")
		return
	}
	s.respondCapsule(w, r, capsule)
}

// handleRebuildCapsule handles POST /api/capsule/rebuild
func (s *Server) handleRebuildCapsule(w http.ResponseWriter, r *http.Request) {
	capsule, err := s.services.Capsules.Rebuild(r.Context())
	if err != nil {
		s.log.Error("Failed to rebuild capsule", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to rebuild today's capsule")
		return
	}
	s.respondCapsule(w, r, capsule)
}

func (s *Server) respondCapsule(w http.ResponseWriter, r *http.Request, capsule *core.Capsule) {
	if wantsMarkdown(r) {
		s.respondMarkdown(w, render.CapsuleMarkdown(capsule))
		return
	}
	s.respondJSON(w, http.StatusOK, capsule)
}

// handleRelatedPyqs handles GET /api/pyqs/related?q=&k=
func (s *Server) handleRelatedPyqs(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "Query parameter q is required")
		return
	}
	k, err := queryInt(r, "k", 3)
	if err != nil || k < 1 || k > maxRelatedPyqs {
		s.respondError(w, http.StatusBadRequest, "k must be between 1 and 20")
		return
	}

	results, err := s.services.Retriever.FindRelated(r.Context(), q, k)
	if err != nil {
		s.log.Error("Failed to find related questions", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to find related questions")
		return
	}
	if results == nil {
		results = []core.RelatedPyq{}
	}
	s.respondJSON(w, http.StatusOK, RelatedPyqsResponse{Query: q, Results: results})
}

// handleWeeklyReport handles GET /api/report/weekly
func (s *Server) handleWeeklyReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.services.Trends.WeeklyReport(r.Context(), s.services.Now().In(s.services.Config.App.Location()))
	if err != nil {
		s.log.Error("Failed to build weekly report", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to build weekly report")
		return
	}
	if wantsMarkdown(r) {
		s.respondMarkdown(w, render.WeeklyReportMarkdown(report))
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}
