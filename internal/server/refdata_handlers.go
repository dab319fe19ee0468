package server

import (
	"errors"
	"net/http"
	"slices"

	"github.com/growcoach/coachd/internal/coach"
	"github.com/growcoach/coachd/internal/httputil"
	"github.com/growcoach/coachd/internal/middleware"
	"github.com/growcoach/coachd/internal/store"
)

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := s.store.GetActiveGoal(r.Context(), middleware.GetUserID(r.Context()))
	if errors.Is(err, store.ErrNotFound) {
		httputil.NotFound(w, "no active goal")
		return
	}
	if err != nil {
		httputil.InternalError(w, "")
		return
	}
	httputil.OkJSON(w, goal)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var g store.Goal
	if err := httputil.Parse(r, &g); err != nil {
		httputil.Error(w, err)
		return
	}
	if g.Category == "" {
		httputil.ErrorWithCode(w, http.StatusBadRequest, "category is required")
		return
	}
	g.UserID = middleware.GetUserID(r.Context())
	created, err := s.store.CreateGoal(r.Context(), g)
	if err != nil {
		httputil.InternalError(w, "")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListPerformance(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ListPerformance(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		httputil.InternalError(w, "")
		return
	}
	if rows == nil {
		rows = []store.PerformanceRow{}
	}
	httputil.OkJSON(w, map[string]any{"skills": rows})
}

func (s *Server) handleCreatePerformance(w http.ResponseWriter, r *http.Request) {
	var p store.PerformanceRow
	if err := httputil.Parse(r, &p); err != nil {
		httputil.Error(w, err)
		return
	}
	if p.Category == "" {
		httputil.ErrorWithCode(w, http.StatusBadRequest, "category is required")
		return
	}
	p.UserID = middleware.GetUserID(r.Context())
	created, err := s.store.CreatePerformance(r.Context(), p)
	if err != nil {
		httputil.InternalError(w, "")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	calls, err := s.store.ListCallStatements(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		httputil.InternalError(w, "")
		return
	}
	if calls == nil {
		calls = []store.CallStatement{}
	}
	httputil.OkJSON(w, map[string]any{"last_call": calls})
}

func (s *Server) handleCreateCall(w http.ResponseWriter, r *http.Request) {
	var c store.CallStatement
	if err := httputil.Parse(r, &c); err != nil {
		httputil.Error(w, err)
		return
	}
	if c.Statement == "" {
		httputil.ErrorWithCode(w, http.StatusBadRequest, "statement is required")
		return
	}
	c.UserID = middleware.GetUserID(r.Context())
	created, err := s.store.CreateCallStatement(r.Context(), c)
	if err != nil {
		httputil.InternalError(w, "")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.store.ListCategories(r.Context())
	if err != nil {
		httputil.InternalError(w, "")
		return
	}
	if cats == nil {
		cats = []store.Category{}
	}
	httputil.OkJSON(w, map[string]any{"categories": cats})
}

func (s *Server) handleUpsertCategory(w http.ResponseWriter, r *http.Request) {
	var c store.Category
	if err := httputil.Parse(r, &c); err != nil {
		httputil.Error(w, err)
		return
	}
	if c.Name == "" {
		httputil.ErrorWithCode(w, http.StatusBadRequest, "category name is required")
		return
	}
	if err := s.store.UpsertCategory(r.Context(), c); err != nil {
		httputil.InternalError(w, "")
		return
	}
	httputil.OkJSON(w, map[string]string{"status": "ok"})
}

type levelsRequest struct {
	Category string `path:"category"`
}

func (s *Server) handleListLevels(w http.ResponseWriter, r *http.Request) {
	var req levelsRequest
	if err := httputil.Parse(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	levels, err := s.store.GetCategoryLevels(r.Context(), req.Category)
	if err != nil {
		httputil.InternalError(w, "")
		return
	}
	if levels == nil {
		levels = []store.CategoryLevel{}
	}
	httputil.OkJSON(w, map[string]any{"levels": levels})
}

type upsertLevelRequest struct {
	Category string `path:"category"`
	store.CategoryLevel
}

func (s *Server) handleUpsertLevel(w http.ResponseWriter, r *http.Request) {
	var req upsertLevelRequest
	if err := httputil.Parse(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if req.Level < 1 {
		httputil.ErrorWithCode(w, http.StatusBadRequest, "level must be >= 1")
		return
	}
	req.CategoryLevel.Category = req.Category
	if err := s.store.UpsertCategoryLevel(r.Context(), req.CategoryLevel); err != nil {
		httputil.InternalError(w, "")
		return
	}
	httputil.OkJSON(w, map[string]string{"status": "ok"})
}

type promptRequest struct {
	Stage  string `path:"stage"`
	Prompt string `json:"prompt"`
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := httputil.Parse(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	prompt, err := s.store.GetStagePrompt(r.Context(), req.Stage)
	if errors.Is(err, store.ErrNotFound) {
		httputil.NotFound(w, "no active prompt for stage")
		return
	}
	if err != nil {
		httputil.InternalError(w, "")
		return
	}
	httputil.OkJSON(w, map[string]string{"stage": req.Stage, "prompt": prompt})
}

func (s *Server) handleSetPrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := httputil.Parse(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if !slices.Contains(coach.StageNames(), req.Stage) {
		httputil.ErrorWithCode(w, http.StatusBadRequest, "unknown stage")
		return
	}
	if req.Prompt == "" {
		httputil.ErrorWithCode(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if err := s.store.SetStagePrompt(r.Context(), req.Stage, req.Prompt); err != nil {
		httputil.InternalError(w, "")
		return
	}
	httputil.OkJSON(w, map[string]string{"status": "ok"})
}
