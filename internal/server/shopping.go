package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"foodplanner/internal/assistant"
	"foodplanner/internal/database"
	"foodplanner/internal/shopping"
)

func (s *Server) handleShoppingList(w http.ResponseWriter, r *http.Request) {
	date, err := s.date(dateRequest{Date: r.URL.Query().Get("date")})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	list, err := s.shopping.List(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, list)
}

func (s *Server) handleListManualItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.manual.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, items)
}

func (s *Server) handleAddManualItem(w http.ResponseWriter, r *http.Request) {
	var item shopping.ManualItem
	if err := decode(w, r, &item); err != nil {
		s.fail(w, r, err)
		return
	}
	item.Name = strings.TrimSpace(item.Name)
	item.Amount = item.Amount.Trim()
	item.Unit = strings.TrimSpace(item.Unit)
	if err := validate.Struct(&item); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.manual.Add(r.Context(), &item); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, item)
}

func (s *Server) handleDeleteManualItem(w http.ResponseWriter, r *http.Request) {
	if err := s.manual.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, notFound("Item", err))
		return
	}
	s.respond(w, http.StatusOK, messageResponse{Message: "Manual shopping item deleted successfully"})
}

func (s *Server) handleDeleteAllManualItems(w http.ResponseWriter, r *http.Request) {
	if _, err := s.manual.DeleteAll(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, messageResponse{Message: "All manual shopping items deleted successfully"})
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := s.budgets.Get(r.Context(), chi.URLParam(r, "weekStart"))
	if errors.Is(err, database.ErrNotFound) {
		s.respond(w, http.StatusOK, nil)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, b)
}

func (s *Server) handleSaveBudget(w http.ResponseWriter, r *http.Request) {
	var b shopping.Budget
	if err := decode(w, r, &b); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := validate.Struct(&b); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.budgets.Upsert(r.Context(), &b); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, b)
}

func (s *Server) handleListSubstitutions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.substitutions.ListActive(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, subs)
}

func (s *Server) handleCreateSubstitution(w http.ResponseWriter, r *http.Request) {
	var sub shopping.Substitution
	if err := decode(w, r, &sub); err != nil {
		s.fail(w, r, err)
		return
	}
	sub.OriginalIngredient = strings.TrimSpace(sub.OriginalIngredient)
	sub.SubstituteIngredient = strings.TrimSpace(sub.SubstituteIngredient)
	if err := validate.Struct(&sub); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.substitutions.Create(r.Context(), &sub); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, sub)
}

func (s *Server) handleDeleteSubstitution(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.substitutions.Deactivate(r.Context(), id); err != nil {
		s.fail(w, r, notFound("Substitution", err))
		return
	}
	s.respond(w, http.StatusOK, messageResponse{Message: "Substitution deleted successfully"})
}

func (s *Server) handleOptimizeShopping(w http.ResponseWriter, r *http.Request) {
	var req assistant.OptimizeRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	opt, err := s.assistant.OptimizeShoppingList(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, opt)
}
