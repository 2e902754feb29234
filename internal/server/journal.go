// ABOUTME: HTTP handlers for notes, goals, and meals.
// ABOUTME: Request bodies are validated before anything is written.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/harperreed/ringhealth/internal/models"
)

type noteRequest struct {
	Content  string `json:"content" validate:"required"`
	Date     string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	NoteType string `json:"note_type" validate:"omitempty,oneof=general reflection symptom training"`
}

type goalRequest struct {
	Title       string `json:"title" validate:"required"`
	GoalType    string `json:"goal_type" validate:"required"`
	Description string `json:"description"`
	TargetValue string `json:"target_value"`
	TargetDate  string `json:"target_date" validate:"omitempty,datetime=2006-01-02"`
	StartDate   string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
}

type goalUpdateRequest struct {
	Status       string  `json:"status" validate:"required,oneof=active completed abandoned"`
	CurrentValue *string `json:"current_value"`
}

type mealRequest struct {
	Description string `json:"description" validate:"required"`
	Date        string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Time        string `json:"time" validate:"omitempty,datetime=15:04"`
	Portion     string `json:"portion"`
	Notes       string `json:"notes"`
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	notes, err := s.repo.ListNotes(r.Context(), r.URL.Query().Get("since"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if notes == nil {
		notes = []*models.Note{}
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n := models.NewNote(req.Content)
	if req.Date != "" {
		n.WithDate(req.Date)
	}
	if req.NoteType != "" {
		n.WithType(models.NoteType(req.NoteType))
	}
	if err := s.repo.CreateNote(r.Context(), n); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteNote(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	var status *models.GoalStatus
	if v := r.URL.Query().Get("status"); v != "" {
		if !models.IsValidGoalStatus(v) {
			writeError(w, r, &apiError{status: http.StatusBadRequest, msg: "unknown goal status: " + v})
			return
		}
		st := models.GoalStatus(v)
		status = &st
	}
	goals, err := s.repo.ListGoals(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if goals == nil {
		goals = []*models.Goal{}
	}
	writeJSON(w, http.StatusOK, goals)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	g := models.NewGoal(req.Title, req.GoalType).WithTarget(req.TargetValue, req.TargetDate)
	if req.Description != "" {
		g.WithDescription(req.Description)
	}
	if req.StartDate != "" {
		g.WithStartDate(req.StartDate)
	}
	if err := s.repo.CreateGoal(r.Context(), g); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.repo.GetGoal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalUpdateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.repo.UpdateGoalStatus(r.Context(), id, models.GoalStatus(req.Status), req.CurrentValue); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.repo.GetGoal(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteGoal(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMeals(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	meals, err := s.repo.ListMeals(r.Context(), r.URL.Query().Get("since"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if meals == nil {
		meals = []*models.Meal{}
	}
	writeJSON(w, http.StatusOK, meals)
}

func (s *Server) handleCreateMeal(w http.ResponseWriter, r *http.Request) {
	var req mealRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m := models.NewMeal(req.Description)
	if req.Date != "" {
		m.Date = req.Date
	}
	if req.Time != "" {
		m.Time = &req.Time
	}
	if req.Portion != "" {
		m.WithPortion(req.Portion)
	}
	if req.Notes != "" {
		m.WithNotes(req.Notes)
	}
	if err := s.repo.CreateMeal(r.Context(), m); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleDeleteMeal(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteMeal(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
