package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"foodplanner/internal/history"
)

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", history.DefaultLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	page, err := s.history.List(r.Context(), limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, page)
}

type markCookedRequest struct {
	RecipeID string `json:"recipeId"`
	Servings *int   `json:"servings"`
	Notes    string `json:"notes"`
}

func (s *Server) handleMarkCooked(w http.ResponseWriter, r *http.Request) {
	var req markCookedRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	entry, err := s.history.MarkCooked(r.Context(), req.RecipeID, req.Servings, req.Notes)
	if err != nil {
		s.fail(w, r, notFound("Recipe", err))
		return
	}
	s.respond(w, http.StatusCreated, entry)
}

func (s *Server) handleHistoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.history.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, stats)
}

func (s *Server) handleRecipeHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.history.ForRecipe(r.Context(), chi.URLParam(r, "recipeId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, entries)
}

func (s *Server) handleNotCookedRecently(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", history.DefaultRecentDays)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cutoff := s.now().UTC().AddDate(0, 0, -days)
	recipes, err := s.history.NotCookedSince(r.Context(), cutoff)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, recipes)
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.history.Delete(r.Context(), id); err != nil {
		s.fail(w, r, notFound("History entry", err))
		return
	}
	s.respond(w, http.StatusOK, messageResponse{Message: "History entry deleted successfully"})
}
