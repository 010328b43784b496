package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"foodplanner/internal/recipe"
)

func (s *Server) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", recipe.DefaultListLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	query := r.URL.Query().Get("q")
	recipes, err := s.recipes.List(r.Context(), recipe.ListOptions{
		Limit:  limit,
		Offset: offset,
		Query:  query,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// Pagination total, only meaningful for the unfiltered collection.
	if query == "" {
		total, err := s.recipes.Count(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		w.Header().Set("X-Total-Count", strconv.Itoa(total))
	}
	s.respond(w, http.StatusOK, recipes)
}

func (s *Server) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	rec, err := s.recipes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, notFound("Recipe", err))
		return
	}
	s.respond(w, http.StatusOK, rec)
}

func (s *Server) decodeRecipe(w http.ResponseWriter, r *http.Request) (*recipe.Recipe, error) {
	var rec recipe.Recipe
	if err := decode(w, r, &rec); err != nil {
		return nil, err
	}
	rec.Normalize()
	if err := validate.Struct(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Server) handleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	rec, err := s.decodeRecipe(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.recipes.Create(r.Context(), rec); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, rec)
}

func (s *Server) handleUpdateRecipe(w http.ResponseWriter, r *http.Request) {
	rec, err := s.decodeRecipe(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rec.ID = chi.URLParam(r, "id")
	if err := s.recipes.Update(r.Context(), rec); err != nil {
		s.fail(w, r, notFound("Recipe", err))
		return
	}
	s.respond(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	if err := s.recipes.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, notFound("Recipe", err))
		return
	}
	s.respond(w, http.StatusOK, messageResponse{Message: "Recipe deleted successfully"})
}

func (s *Server) handleDuplicateRecipe(w http.ResponseWriter, r *http.Request) {
	dup, err := s.recipes.Duplicate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, notFound("Recipe", err))
		return
	}
	s.respond(w, http.StatusCreated, dup)
}
