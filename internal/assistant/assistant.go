// Package assistant turns model calls into recipe, portion, category and
// shopping suggestions. Every call renders a German prompt, sends it to the
// configured model and decodes the JSON answer.
package assistant

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"foodplanner/internal/clipper"
	"foodplanner/internal/llm"
	"foodplanner/internal/recipe"
	"foodplanner/internal/shared"
	"foodplanner/internal/shopping"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.New("prompts").
	Funcs(template.FuncMap{"join": strings.Join}).
	ParseFS(promptFS, "prompts/*.tmpl"))

// Agent names recorded with AI usage.
const (
	AgentRecipeGenerator = "RecipeGenerator"
	AgentRecipeParser    = "RecipeParser"
	AgentPortionScaler   = "PortionScaler"
	AgentCategorizer     = "IngredientCategorizer"
	AgentShoppingAdvisor = "ShoppingOptimizer"
)

// URLFetcher downloads a recipe page as plain text.
type URLFetcher interface {
	FetchText(ctx context.Context, rawURL string) (string, error)
}

// UsageRecorder stores token usage of model calls.
type UsageRecorder interface {
	RecordMeta(ctx context.Context, meta shared.AgentMeta) error
}

// SubstitutionSource lists the household's accepted substitutions.
type SubstitutionSource interface {
	ListActive(ctx context.Context) ([]shopping.Substitution, error)
}

// Assistant runs the AI operations. A nil generator leaves the assistant
// unconfigured: model-backed operations return llm.ErrNotConfigured and
// categorization uses the keyword rules.
type Assistant struct {
	gen           llm.TextGenerator
	fetcher       URLFetcher
	usage         UsageRecorder
	substitutions SubstitutionSource
	logger        *zap.Logger
	now           func() time.Time
}

// New creates an Assistant. fetcher, usage and substitutions may be nil.
func New(gen llm.TextGenerator, fetcher URLFetcher, usage UsageRecorder, substitutions SubstitutionSource, logger *zap.Logger) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{
		gen:           gen,
		fetcher:       fetcher,
		usage:         usage,
		substitutions: substitutions,
		logger:        logger,
		now:           time.Now,
	}
}

// Configured reports whether a model is available.
func (a *Assistant) Configured() bool {
	return a.gen != nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}

// generate sends the prompt and records usage of successful calls.
func (a *Assistant) generate(ctx context.Context, agent, prompt string) (string, error) {
	if a.gen == nil {
		return "", llm.ErrNotConfigured
	}

	start := time.Now()
	resp, err := a.gen.GenerateContent(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to get LLM response: %w", err)
	}

	if a.usage != nil {
		meta := shared.AgentMeta{AgentName: agent, Usage: resp.Usage, Latency: time.Since(start)}
		if err := a.usage.RecordMeta(ctx, meta); err != nil {
			a.logger.Warn("failed to record AI usage", zap.String("agent", agent), zap.Error(err))
		}
	}
	return resp.Content, nil
}

func decode(agent, raw string, out any) error {
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), out); err != nil {
		return &MalformedResponseError{Agent: agent, Raw: raw, Err: err}
	}
	return nil
}

// Preferences narrow down generated recipes.
type Preferences struct {
	Dietary     string `json:"dietary"`
	CookingTime int    `json:"cookingTime"`
	Difficulty  string `json:"difficulty"`
}

// GenerateRequest asks for recipe ideas from available ingredients.
type GenerateRequest struct {
	Ingredients []string    `json:"ingredients"`
	Preferences Preferences `json:"preferences"`
}

// GenerateRecipes suggests three recipes using the given ingredients.
func (a *Assistant) GenerateRecipes(ctx context.Context, req GenerateRequest) ([]recipe.Recipe, error) {
	var ingredients []string
	for _, ing := range req.Ingredients {
		if ing = strings.TrimSpace(ing); ing != "" {
			ingredients = append(ingredients, ing)
		}
	}
	if len(ingredients) == 0 {
		return nil, invalid("Please provide at least one ingredient")
	}
	switch req.Preferences.Difficulty {
	case "", "einfach", "mittel", "schwer":
	default:
		return nil, invalid("difficulty must be one of einfach, mittel, schwer")
	}

	prompt, err := render("generate_recipes.tmpl", map[string]any{
		"Ingredients": ingredients,
		"Preferences": req.Preferences,
		"Categories":  recipe.Categories,
	})
	if err != nil {
		return nil, err
	}

	raw, err := a.generate(ctx, AgentRecipeGenerator, prompt)
	if err != nil {
		return nil, err
	}

	var recipes []recipe.Recipe
	if err := decode(AgentRecipeGenerator, raw, &recipes); err != nil {
		return nil, err
	}
	for i := range recipes {
		recipes[i].Normalize()
	}
	return recipes, nil
}

// Parse input types.
const (
	InputText = "text"
	InputURL  = "url"
)

// ParseRequest carries recipe text or a recipe page URL.
type ParseRequest struct {
	Input string `json:"input"`
	Type  string `json:"type"`
}

// DetectInputType returns InputURL for http(s) links and InputText otherwise.
func DetectInputType(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return InputURL
	}
	return InputText
}

// ParseRecipe extracts a structured recipe from free text or an allowlisted URL.
func (a *Assistant) ParseRecipe(ctx context.Context, req ParseRequest) (*recipe.Recipe, error) {
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return nil, invalid("Please provide recipe text or URL")
	}
	kind := req.Type
	if kind == "" {
		kind = DetectInputType(input)
	}
	if kind != InputText && kind != InputURL {
		return nil, invalid("type must be %q or %q", InputText, InputURL)
	}
	if !a.Configured() {
		return nil, llm.ErrNotConfigured
	}

	text := input
	if kind == InputURL {
		if a.fetcher == nil {
			return nil, invalid("URL import is not available")
		}
		fetched, err := a.fetcher.FetchText(ctx, input)
		if err != nil {
			return nil, invalid("Could not load recipe from URL: %v", err)
		}
		if strings.TrimSpace(fetched) == "" {
			return nil, invalid("The page at %s contains no readable text", input)
		}
		text = fetched
	}

	prompt, err := render("parse_recipe.tmpl", map[string]any{
		"FromURL":    kind == InputURL,
		"Source":     input,
		"Text":       truncateRunes(text, clipper.DefaultMaxChars),
		"Categories": recipe.Categories,
	})
	if err != nil {
		return nil, err
	}

	raw, err := a.generate(ctx, AgentRecipeParser, prompt)
	if err != nil {
		return nil, err
	}

	var rec recipe.Recipe
	if err := decode(AgentRecipeParser, raw, &rec); err != nil {
		return nil, err
	}
	rec.Normalize()
	if rec.Name == "" {
		return nil, &MalformedResponseError{Agent: AgentRecipeParser, Raw: raw, Err: fmt.Errorf("recipe has no name")}
	}
	return &rec, nil
}

// ScaleRequest asks to convert ingredient amounts to a new number of servings.
type ScaleRequest struct {
	Ingredients      []recipe.Ingredient `json:"ingredients"`
	OriginalServings int                 `json:"originalServings"`
	NewServings      int                 `json:"newServings"`
}

// ScalePortions converts ingredient amounts from OriginalServings to NewServings.
func (a *Assistant) ScalePortions(ctx context.Context, req ScaleRequest) ([]recipe.Ingredient, error) {
	if len(req.Ingredients) == 0 {
		return nil, invalid("Please provide ingredients to scale")
	}
	if req.OriginalServings <= 0 || req.NewServings <= 0 {
		return nil, invalid("originalServings and newServings must be positive")
	}

	prompt, err := render("scale_portions.tmpl", req)
	if err != nil {
		return nil, err
	}
	raw, err := a.generate(ctx, AgentPortionScaler, prompt)
	if err != nil {
		return nil, err
	}

	var scaled []recipe.Ingredient
	if err := decode(AgentPortionScaler, raw, &scaled); err != nil {
		return nil, err
	}
	out := make([]recipe.Ingredient, 0, len(scaled))
	for _, ing := range scaled {
		ing.Name = strings.TrimSpace(ing.Name)
		if ing.Name == "" {
			continue
		}
		ing.Category = recipe.NormalizeCategory(ing.Category)
		out = append(out, ing)
	}
	return out, nil
}

// Categorization is the category chosen for an ingredient and how it was found.
type Categorization struct {
	Category string `json:"category"`
	Source   string `json:"source"`
}

// CategorizeIngredient asks the model for the ingredient's category. Without a
// model, on model errors or on answers outside the fixed categories the
// keyword rules decide.
func (a *Assistant) CategorizeIngredient(ctx context.Context, name string) (Categorization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Categorization{}, invalid("ingredientName is required")
	}
	if !a.Configured() {
		return Categorization{Category: CategorizeRuleBased(name), Source: SourceRuleBased}, nil
	}

	fallback := Categorization{Category: CategorizeRuleBased(name), Source: SourceRuleBasedFallback}

	prompt, err := render("categorize_ingredient.tmpl", map[string]any{
		"Name":       name,
		"Categories": recipe.Categories,
	})
	if err != nil {
		return Categorization{}, err
	}

	raw, err := a.generate(ctx, AgentCategorizer, prompt)
	if err != nil {
		a.logger.Warn("categorization failed, using rules", zap.String("ingredient", name), zap.Error(err))
		return fallback, nil
	}

	if category := parseCategory(raw); recipe.IsCategory(category) {
		return Categorization{Category: category, Source: SourceAI}, nil
	}
	a.logger.Info("model returned unknown category, using rules",
		zap.String("ingredient", name), zap.String("answer", raw))
	return fallback, nil
}

// parseCategory accepts a bare category name, optionally quoted or fenced,
// or a JSON object with a "category" field.
func parseCategory(raw string) string {
	s := llm.ExtractJSON(raw)
	if strings.HasPrefix(s, "{") {
		var obj struct {
			Category string `json:"category"`
		}
		if err := json.Unmarshal([]byte(s), &obj); err == nil {
			return strings.TrimSpace(obj.Category)
		}
	}
	return strings.Trim(s, " \t\r\n\"'`.")
}

// OptimizePreferences steer shopping list suggestions.
type OptimizePreferences struct {
	PrioritizeSeasonal bool `json:"prioritizeSeasonal"`
	PrioritizeOrganic  bool `json:"prioritizeOrganic"`
	AvoidBrands        bool `json:"avoidBrands"`
}

// OptimizeRequest carries the list to optimize.
type OptimizeRequest struct {
	ShoppingList []recipe.Ingredient `json:"shoppingList"`
	Budget       *float64            `json:"budget"`
	Preferences  OptimizePreferences `json:"preferences"`
}

// SuggestedSubstitution proposes a cheaper replacement.
type SuggestedSubstitution struct {
	Original       string  `json:"original"`
	Substitute     string  `json:"substitute"`
	Reason         string  `json:"reason"`
	SavingsPercent float64 `json:"savingsPercent"`
	Category       string  `json:"category"`
}

// Tip is advice about one ingredient.
type Tip struct {
	Ingredient string `json:"ingredient"`
	Tip        string `json:"tip"`
}

// Optimization is the model's cost analysis of a shopping list.
type Optimization struct {
	OriginalEstimate  float64                 `json:"originalEstimate"`
	OptimizedEstimate float64                 `json:"optimizedEstimate"`
	SavingsPercent    float64                 `json:"savingsPercent"`
	Substitutions     []SuggestedSubstitution `json:"substitutions"`
	SeasonalTips      []Tip                   `json:"seasonalTips"`
	QuantityTips      []Tip                   `json:"quantityTips"`
	GeneralTips       []string                `json:"generalTips"`
}

var germanMonths = [...]string{
	"Januar", "Februar", "März", "April", "Mai", "Juni",
	"Juli", "August", "September", "Oktober", "November", "Dezember",
}

// OptimizeShoppingList estimates costs and suggests savings for a shopping
// list, taking the household's saved substitutions into account.
func (a *Assistant) OptimizeShoppingList(ctx context.Context, req OptimizeRequest) (*Optimization, error) {
	if len(req.ShoppingList) == 0 {
		return nil, invalid("Shopping list is empty")
	}
	var budget float64
	if req.Budget != nil {
		if *req.Budget < 0 {
			return nil, invalid("budget must not be negative")
		}
		budget = *req.Budget
	}
	if !a.Configured() {
		return nil, llm.ErrNotConfigured
	}

	var subs []shopping.Substitution
	if a.substitutions != nil {
		var err error
		if subs, err = a.substitutions.ListActive(ctx); err != nil {
			a.logger.Warn("failed to load substitution preferences", zap.Error(err))
		}
	}

	prompt, err := render("optimize_shopping.tmpl", map[string]any{
		"ShoppingList":  req.ShoppingList,
		"Budget":        budget,
		"Preferences":   req.Preferences,
		"Substitutions": subs,
		"Month":         germanMonths[a.now().Month()-1],
	})
	if err != nil {
		return nil, err
	}

	raw, err := a.generate(ctx, AgentShoppingAdvisor, prompt)
	if err != nil {
		return nil, err
	}

	var opt Optimization
	if err := decode(AgentShoppingAdvisor, raw, &opt); err != nil {
		return nil, err
	}
	if opt.Substitutions == nil {
		opt.Substitutions = []SuggestedSubstitution{}
	}
	if opt.SeasonalTips == nil {
		opt.SeasonalTips = []Tip{}
	}
	if opt.QuantityTips == nil {
		opt.QuantityTips = []Tip{}
	}
	if opt.GeneralTips == nil {
		opt.GeneralTips = []string{}
	}
	return &opt, nil
}

func truncateRunes(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
