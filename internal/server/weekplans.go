package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"foodplanner/internal/database"
	"foodplanner/internal/weekplan"
)

type dateRequest struct {
	Date string `json:"date"`
}

// date parses req.Date, defaulting to today.
func (s *Server) date(req dateRequest) (time.Time, error) {
	if strings.TrimSpace(req.Date) == "" {
		return s.now().UTC(), nil
	}
	return weekplan.ParseDate(req.Date)
}

func (s *Server) handleCurrentWeekPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.plans.Current(r.Context())
	if errors.Is(err, database.ErrNotFound) {
		s.respond(w, http.StatusOK, nil)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, plan)
}

func (s *Server) handleGetWeekPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.plans.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, notFound("Week plan", err))
		return
	}
	s.respond(w, http.StatusOK, plan)
}

func (s *Server) handleWeekPlanByDate(w http.ResponseWriter, r *http.Request) {
	date, err := weekplan.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	plan, err := s.plans.ByDate(r.Context(), date)
	if err != nil {
		s.fail(w, r, notFound("Week plan", err))
		return
	}
	s.respond(w, http.StatusOK, plan)
}

func (s *Server) handleInitWeekPlan(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	date, err := s.date(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	plan, created, err := s.plans.Init(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.respond(w, status, plan)
}

func (s *Server) handleSaveWeekPlan(w http.ResponseWriter, r *http.Request) {
	var plan weekplan.WeekPlan
	if err := decode(w, r, &plan); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.plans.Save(r.Context(), &plan); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, plan)
}

func (s *Server) handleDeleteAllWeekPlans(w http.ResponseWriter, r *http.Request) {
	if _, err := s.plans.DeleteAll(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, messageResponse{Message: "Week plan deleted successfully"})
}

func (s *Server) handleDeleteWeekPlan(w http.ResponseWriter, r *http.Request) {
	if err := s.plans.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, notFound("Week plan", err))
		return
	}
	s.respond(w, http.StatusOK, messageResponse{Message: "Week plan deleted successfully"})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.templates.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, templates)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, notFound("Template", err))
		return
	}
	s.respond(w, http.StatusOK, t)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var t weekplan.Template
	if err := decode(w, r, &t); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.templates.Create(r.Context(), &t); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var t weekplan.Template
	if err := decode(w, r, &t); err != nil {
		s.fail(w, r, err)
		return
	}
	t.ID = chi.URLParam(r, "id")
	if err := s.templates.Update(r.Context(), &t); err != nil {
		s.fail(w, r, notFound("Template", err))
		return
	}
	s.respond(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.templates.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, notFound("Template", err))
		return
	}
	s.respond(w, http.StatusOK, messageResponse{Message: "Template deleted successfully"})
}

func (s *Server) handleApplyTemplate(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	date, err := s.date(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	t, err := s.templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, notFound("Template", err))
		return
	}

	plan := t.Apply(date)
	if err := s.plans.Save(r.Context(), &plan); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, plan)
}
