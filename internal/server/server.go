// Package server exposes the planner over a JSON REST API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"foodplanner/internal/assistant"
	"foodplanner/internal/config"
	"foodplanner/internal/database"
	"foodplanner/internal/history"
	"foodplanner/internal/metrics"
	"foodplanner/internal/ratelimit"
	"foodplanner/internal/recipe"
	"foodplanner/internal/shopping"
	"foodplanner/internal/weekplan"
)

// Options carries the dependencies of a Server. Collector and RateLimitStore
// may be nil; a memory store is used when no rate limit store is given.
type Options struct {
	Config         *config.Config
	DB             *database.DB
	Assistant      *assistant.Assistant
	Usage          *metrics.Store
	Collector      *metrics.Collector
	RateLimitStore ratelimit.Store
	Logger         *zap.Logger
}

// Server handles HTTP requests.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *database.DB
	http   *http.Server

	recipes       *recipe.Repository
	plans         *weekplan.Repository
	templates     *weekplan.TemplateRepository
	manual        *shopping.ManualRepository
	budgets       *shopping.BudgetRepository
	substitutions *shopping.SubstitutionRepository
	shopping      *shopping.Service
	history       *history.Repository
	assistant     *assistant.Assistant
	usage         *metrics.Store
	collector     *metrics.Collector

	generalLimiter *ratelimit.Limiter
	aiLimiter      *ratelimit.Limiter

	now func() time.Time
}

// New wires the repositories and builds the router.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := opts.RateLimitStore
	if store == nil {
		store = ratelimit.NewMemoryStore()
	}
	collector := opts.Collector
	if collector == nil {
		collector = metrics.NewCollector()
	}
	ai := opts.Assistant
	if ai == nil {
		ai = assistant.New(nil, nil, nil, nil, logger)
	}

	db := opts.DB
	s := &Server{
		cfg:           opts.Config,
		logger:        logger,
		db:            db,
		recipes:       recipe.NewRepository(db),
		plans:         weekplan.NewRepository(db),
		templates:     weekplan.NewTemplateRepository(db),
		manual:        shopping.NewManualRepository(db),
		budgets:       shopping.NewBudgetRepository(db),
		substitutions: shopping.NewSubstitutionRepository(db),
		history:       history.NewRepository(db),
		assistant:     ai,
		usage:         opts.Usage,
		collector:     collector,
		now:           time.Now,

		generalLimiter: ratelimit.New("general", store, opts.Config.RateLimitGeneral, opts.Config.RateLimitWindow),
		aiLimiter:      ratelimit.New("ai", store, opts.Config.RateLimitAI, opts.Config.RateLimitWindow),
	}
	s.shopping = shopping.NewService(s.plans, s.recipes, s.manual)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Config.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Model calls can take a while.
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.cors)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.collector.Handler())

	limitOpts := ratelimit.MiddlewareOptions{
		TrustProxy: s.cfg.TrustProxy,
		Logger:     s.logger,
		OnLimited:  s.collector.ObserveRateLimited,
	}
	aiLimit := s.aiLimiter.Middleware(limitOpts)

	r.Group(func(r chi.Router) {
		r.Use(s.generalLimiter.Middleware(limitOpts))

		r.Route("/recipes", func(r chi.Router) {
			r.Get("/", s.handleListRecipes)
			r.Post("/", s.handleCreateRecipe)
			r.Get("/{id}", s.handleGetRecipe)
			r.Put("/{id}", s.handleUpdateRecipe)
			r.Delete("/{id}", s.handleDeleteRecipe)
			r.Post("/{id}/duplicate", s.handleDuplicateRecipe)
		})

		r.Route("/weekplan", func(r chi.Router) {
			r.Get("/", s.handleCurrentWeekPlan)
			r.Post("/", s.handleSaveWeekPlan)
			r.Delete("/", s.handleDeleteAllWeekPlans)
			r.Post("/init", s.handleInitWeekPlan)
			r.Get("/by-date/{date}", s.handleWeekPlanByDate)

			r.Route("/templates", func(r chi.Router) {
				r.Get("/", s.handleListTemplates)
				r.Post("/", s.handleCreateTemplate)
				r.Get("/{id}", s.handleGetTemplate)
				r.Put("/{id}", s.handleUpdateTemplate)
				r.Delete("/{id}", s.handleDeleteTemplate)
				r.Post("/{id}/apply", s.handleApplyTemplate)
			})

			r.Get("/{id}", s.handleGetWeekPlan)
			r.Delete("/{id}", s.handleDeleteWeekPlan)
		})

		r.Route("/shopping", func(r chi.Router) {
			r.Get("/list", s.handleShoppingList)

			r.Get("/manual", s.handleListManualItems)
			r.Post("/manual", s.handleAddManualItem)
			r.Delete("/manual", s.handleDeleteAllManualItems)
			r.Delete("/manual/{id}", s.handleDeleteManualItem)

			r.Get("/budget/{weekStart}", s.handleGetBudget)
			r.Post("/budget", s.handleSaveBudget)

			r.Get("/substitutions", s.handleListSubstitutions)
			r.Post("/substitutions", s.handleCreateSubstitution)
			r.Delete("/substitutions/{id}", s.handleDeleteSubstitution)

			r.With(aiLimit).Post("/optimize", s.handleOptimizeShopping)
		})

		r.Route("/cooking-history", func(r chi.Router) {
			r.Get("/", s.handleListHistory)
			r.Post("/", s.handleMarkCooked)
			r.Get("/stats", s.handleHistoryStats)
			r.Get("/recipe/{recipeId}", s.handleRecipeHistory)
			r.Get("/not-cooked-recently", s.handleNotCookedRecently)
			r.Delete("/{id}", s.handleDeleteHistory)
		})

		r.Route("/ai", func(r chi.Router) {
			r.Get("/usage", s.handleAIUsage)

			r.Group(func(r chi.Router) {
				r.Use(aiLimit)
				r.Post("/generate-recipes", s.handleGenerateRecipes)
				r.Post("/parse-recipe", s.handleParseRecipe)
				r.Post("/scale-portions", s.handleScalePortions)
				r.Post("/categorize-ingredient", s.handleCategorizeIngredient)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, http.StatusNotFound, errorResponse{Error: "Route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dataPath := ""
	if s.db.Dialect == database.SQLite && s.cfg.DBPath != "" {
		dataPath = filepath.Dir(s.cfg.DBPath)
	}
	health, ok := metrics.CheckHealth(r.Context(), s.db, dataPath)
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	s.respond(w, status, health)
}
