package server

import (
	"net/http"

	"foodplanner/internal/assistant"
	"foodplanner/internal/metrics"
	"foodplanner/internal/recipe"
)

const defaultUsageDays = 7

func (s *Server) handleGenerateRecipes(w http.ResponseWriter, r *http.Request) {
	var req assistant.GenerateRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	recipes, err := s.assistant.GenerateRecipes(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string][]recipe.Recipe{"recipes": recipes})
}

type parseRecipeResponse struct {
	Recipe *recipe.Recipe `json:"recipe"`
	Source string         `json:"source"`
}

func (s *Server) handleParseRecipe(w http.ResponseWriter, r *http.Request) {
	var req assistant.ParseRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	rec, err := s.assistant.ParseRecipe(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, parseRecipeResponse{Recipe: rec, Source: "ai-parsed"})
}

func (s *Server) handleScalePortions(w http.ResponseWriter, r *http.Request) {
	var req assistant.ScaleRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	ingredients, err := s.assistant.ScalePortions(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string][]recipe.Ingredient{"ingredients": ingredients})
}

type categorizeRequest struct {
	IngredientName string `json:"ingredientName"`
}

func (s *Server) handleCategorizeIngredient(w http.ResponseWriter, r *http.Request) {
	var req categorizeRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	result, err := s.assistant.CategorizeIngredient(r.Context(), req.IngredientName)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, result)
}

type usageResponse struct {
	Days  int                  `json:"days"`
	Usage []metrics.DailyUsage `json:"usage"`
}

func (s *Server) handleAIUsage(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", defaultUsageDays)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := usageResponse{Days: days, Usage: []metrics.DailyUsage{}}
	if s.usage != nil {
		if resp.Usage, err = s.usage.GetDailyUsage(r.Context(), days); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	s.respond(w, http.StatusOK, resp)
}
