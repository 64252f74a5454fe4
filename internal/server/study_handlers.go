package server

import (
	"errors"
	"net/http"
	"strings"

	"civicbriefs/internal/core"
	"civicbriefs/internal/quiz"
	"civicbriefs/internal/render"

	"github.com/go-chi/chi/v5"
)

type testResultRequest struct {
	TestName string   `json:"test_name"`
	Score    *float64 `json:"score"`
	Date     string   `json:"date"`
}

type quizSubmitRequest struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Answers []int  `json:"answers"`
}

type chatRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// handleGetPlan handles GET /api/plan/{userID}
func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	plan, err := s.services.DB.Plans().Get(r.Context(), userID)
	if err != nil {
		s.log.Error("Failed to load plan", "user_id", userID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to load plan")
		return
	}
	if plan == nil {
		s.respondError(w, http.StatusNotFound, "No plan for this user; generate one first")
		return
	}
	s.respondPlan(w, r, plan)
}

// handleGeneratePlan handles POST /api/plan/{userID}/generate
func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	plan, err := s.services.Planner.GeneratePlan(r.Context(), userID)
	if err != nil {
		s.log.Error("Failed to generate plan", "user_id", userID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to generate plan")
		return
	}
	s.respondPlan(w, r, plan)
}

// handleTestResult handles POST /api/plan/{userID}/test-result
func (s *Server) handleTestResult(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req testResultRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Score == nil || *req.Score < 0 || *req.Score > 100 {
		s.respondError(w, http.StatusBadRequest, "score must be between 0 and 100")
		return
	}

	plan, err := s.services.Planner.RecordTestResult(r.Context(), &core.TestResult{
		UserID:   userID,
		TestName: req.TestName,
		Score:    *req.Score,
		Date:     req.Date,
	})
	if err != nil {
		s.log.Error("Failed to record test result", "user_id", userID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to record test result")
		return
	}
	s.respondPlan(w, r, plan)
}

// handleRecomputePlan handles POST /api/plan/{userID}/recompute
func (s *Server) handleRecomputePlan(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	plan, err := s.services.Planner.AdaptPlan(r.Context(), userID)
	if err != nil {
		s.log.Error("Failed to adapt plan", "user_id", userID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to adapt plan")
		return
	}
	s.respondPlan(w, r, plan)
}

// handleProgress handles GET /api/plan/{userID}/progress
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	progress, err := s.services.Planner.Progress(r.Context(), userID)
	if err != nil {
		s.log.Error("Failed to load progress", "user_id", userID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to load progress")
		return
	}
	s.respondJSON(w, http.StatusOK, progress)
}

// handleHistory handles GET /api/plan/{userID}/history?limit=
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	results, err := s.services.Planner.History(r.Context(), userID, limit)
	if err != nil {
		s.log.Error("Failed to load history", "user_id", userID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	if results == nil {
		results = []core.TestResult{}
	}
	s.respondJSON(w, http.StatusOK, results)
}

func (s *Server) respondPlan(w http.ResponseWriter, r *http.Request, plan *core.StudyPlan) {
	if wantsMarkdown(r) {
		s.respondMarkdown(w, render.PlanMarkdown(plan))
		return
	}
	s.respondJSON(w, http.StatusOK, plan)
}

// handleTodayQuiz handles GET /api/quiz/today?force=true
func (s *Server) handleTodayQuiz(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	q, err := s.services.Quiz.GenerateDaily(r.Context(), force)
	if err != nil {
		s.log.Error("Failed to generate quiz", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to generate today's quiz")
		return
	}
	s.respondJSON(w, http.StatusOK, q)
}

// handleSubmitQuiz handles POST /api/quiz/submit
func (s *Server) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizSubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Name == "" {
		req.Name = quiz.DailyName(s.services.Capsules.Today())
	}

	res, err := s.services.Quiz.Submit(r.Context(), req.UserID, req.Name, req.Answers)
	if errors.Is(err, quiz.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "Quiz not found for today")
		return
	}
	if err != nil {
		s.log.Error("Failed to grade quiz", "user_id", req.UserID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to grade quiz")
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

// handleChat handles POST /api/chat
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp, err := s.services.Chat.Ask(r.Context(), req.UserID, req.SessionID, req.Message)
	if err != nil {
		s.log.Error("Chat failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to answer")
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}
