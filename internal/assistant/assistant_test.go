package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodplanner/internal/clipper"
	"foodplanner/internal/llm"
	"foodplanner/internal/recipe"
	"foodplanner/internal/shared"
	"foodplanner/internal/shopping"
)

type fakeGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeGenerator) GenerateContent(_ context.Context, prompt string) (llm.ContentResponse, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return llm.ContentResponse{}, f.err
	}
	return llm.ContentResponse{
		Content: f.reply,
		Usage:   shared.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, Model: "fake"},
	}, nil
}

type fakeUsage struct {
	metas []shared.AgentMeta
	err   error
}

func (f *fakeUsage) RecordMeta(_ context.Context, meta shared.AgentMeta) error {
	f.metas = append(f.metas, meta)
	return f.err
}

type fakeFetcher struct {
	text string
	err  error
	urls []string
}

func (f *fakeFetcher) FetchText(_ context.Context, rawURL string) (string, error) {
	f.urls = append(f.urls, rawURL)
	return f.text, f.err
}

type fakeSubstitutions []shopping.Substitution

func (f fakeSubstitutions) ListActive(context.Context) ([]shopping.Substitution, error) {
	return f, nil
}

func TestPromptsRender(t *testing.T) {
	for _, name := range []string{
		"generate_recipes.tmpl", "parse_recipe.tmpl", "scale_portions.tmpl",
		"categorize_ingredient.tmpl", "optimize_shopping.tmpl",
	} {
		require.NotNil(t, prompts.Lookup(name), name)
	}
}

func TestGenerateRecipes(t *testing.T) {
	ctx := context.Background()

	t.Run("FencedJSON", func(t *testing.T) {
		gen := &fakeGenerator{reply: "```json\n" + `[{"name":" Nudelauflauf ","servings":4,
			"ingredients":[{"name":"Nudeln","amount":500,"unit":"g","category":"Trockenwaren"},
			{"name":"Käse","amount":"200","unit":"g","category":"cheese"}],
			"instructions":"Backen.","tags":["schnell","schnell"]}]` + "\n```"}
		usage := &fakeUsage{}
		a := New(gen, nil, usage, nil, nil)

		recipes, err := a.GenerateRecipes(ctx, GenerateRequest{
			Ingredients: []string{"Nudeln", " ", "Käse"},
			Preferences: Preferences{Dietary: "vegetarisch", CookingTime: 30, Difficulty: "einfach"},
		})
		require.NoError(t, err)
		require.Len(t, recipes, 1)

		r := recipes[0]
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, "Nudelauflauf", r.Name)
		assert.Equal(t, recipe.Amount("500"), r.Ingredients[0].Amount)
		assert.Equal(t, recipe.CategoryOther, r.Ingredients[1].Category)
		assert.Equal(t, []string{"schnell"}, r.Tags)

		require.Len(t, gen.prompts, 1)
		assert.Contains(t, gen.prompts[0], "Verfügbare Zutaten: Nudeln, Käse")
		assert.Contains(t, gen.prompts[0], "Maximale Kochzeit: 30 Minuten")
		assert.Contains(t, gen.prompts[0], "vegetarisch")

		require.Len(t, usage.metas, 1)
		assert.Equal(t, AgentRecipeGenerator, usage.metas[0].AgentName)
		assert.Equal(t, 15, usage.metas[0].Usage.TotalTokens)
	})

	t.Run("NoIngredients", func(t *testing.T) {
		gen := &fakeGenerator{}
		_, err := New(gen, nil, nil, nil, nil).GenerateRecipes(ctx, GenerateRequest{Ingredients: []string{"  "}})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Empty(t, gen.prompts)
	})

	t.Run("BadDifficulty", func(t *testing.T) {
		_, err := New(&fakeGenerator{}, nil, nil, nil, nil).GenerateRecipes(ctx, GenerateRequest{
			Ingredients: []string{"Reis"},
			Preferences: Preferences{Difficulty: "extrem"},
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("NotConfigured", func(t *testing.T) {
		_, err := New(nil, nil, nil, nil, nil).GenerateRecipes(ctx, GenerateRequest{Ingredients: []string{"Reis"}})
		require.ErrorIs(t, err, llm.ErrNotConfigured)
	})

	t.Run("Malformed", func(t *testing.T) {
		gen := &fakeGenerator{reply: "Hier sind drei Rezepte: ..."}
		_, err := New(gen, nil, nil, nil, nil).GenerateRecipes(ctx, GenerateRequest{Ingredients: []string{"Reis"}})

		var merr *MalformedResponseError
		require.ErrorAs(t, err, &merr)
		assert.Equal(t, "Hier sind drei Rezepte: ...", merr.Raw)
		assert.Equal(t, AgentRecipeGenerator, merr.Agent)
	})

	t.Run("ModelError", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("quota exceeded")}
		usage := &fakeUsage{}
		_, err := New(gen, nil, usage, nil, nil).GenerateRecipes(ctx, GenerateRequest{Ingredients: []string{"Reis"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
		assert.Empty(t, usage.metas)
	})

	t.Run("UsageFailureIgnored", func(t *testing.T) {
		gen := &fakeGenerator{reply: "[]"}
		usage := &fakeUsage{err: errors.New("disk full")}
		recipes, err := New(gen, nil, usage, nil, nil).GenerateRecipes(ctx, GenerateRequest{Ingredients: []string{"Reis"}})
		require.NoError(t, err)
		assert.Empty(t, recipes)
		assert.Len(t, usage.metas, 1)
	})
}

func TestDetectInputType(t *testing.T) {
	assert.Equal(t, InputURL, DetectInputType(" https://www.chefkoch.de/rezepte/1"))
	assert.Equal(t, InputURL, DetectInputType("HTTP://example.com"))
	assert.Equal(t, InputText, DetectInputType("200 g Mehl, 2 Eier"))
}

func TestParseRecipe(t *testing.T) {
	ctx := context.Background()
	reply := `{"name":"Pfannkuchen","servings":2,"ingredients":[{"name":"Mehl","amount":"200","unit":"g"}],"instructions":"Verrühren."}`

	t.Run("Text", func(t *testing.T) {
		gen := &fakeGenerator{reply: reply}
		fetcher := &fakeFetcher{}
		rec, err := New(gen, fetcher, nil, nil, nil).ParseRecipe(ctx, ParseRequest{Input: "200 g Mehl verrühren"})
		require.NoError(t, err)
		assert.Equal(t, "Pfannkuchen", rec.Name)
		assert.NotEmpty(t, rec.ID)
		assert.Empty(t, fetcher.urls)
		assert.Contains(t, gen.prompts[0], "200 g Mehl verrühren")
	})

	t.Run("URL", func(t *testing.T) {
		gen := &fakeGenerator{reply: reply}
		fetcher := &fakeFetcher{text: "Pfannkuchen Rezept Mehl Milch Eier"}
		rec, err := New(gen, fetcher, nil, nil, nil).ParseRecipe(ctx, ParseRequest{Input: "https://www.chefkoch.de/rezepte/1"})
		require.NoError(t, err)
		assert.Equal(t, "Pfannkuchen", rec.Name)
		assert.Equal(t, []string{"https://www.chefkoch.de/rezepte/1"}, fetcher.urls)
		assert.Contains(t, gen.prompts[0], "Pfannkuchen Rezept Mehl Milch Eier")
	})

	t.Run("DisallowedDomain", func(t *testing.T) {
		gen := &fakeGenerator{reply: reply}
		fetcher := clipper.NewClipper([]string{"chefkoch.de"})
		_, err := New(gen, fetcher, nil, nil, nil).ParseRecipe(ctx, ParseRequest{Input: "https://evil.example.com/x", Type: InputURL})

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Message, "domain not allowed")
		assert.Empty(t, gen.prompts)
	})

	t.Run("EmptyInput", func(t *testing.T) {
		_, err := New(&fakeGenerator{}, nil, nil, nil, nil).ParseRecipe(ctx, ParseRequest{Input: "   "})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := New(&fakeGenerator{}, nil, nil, nil, nil).ParseRecipe(ctx, ParseRequest{Input: "x", Type: "video"})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("NotConfigured", func(t *testing.T) {
		_, err := New(nil, nil, nil, nil, nil).ParseRecipe(ctx, ParseRequest{Input: "Mehl"})
		require.ErrorIs(t, err, llm.ErrNotConfigured)
	})

	t.Run("Nameless", func(t *testing.T) {
		gen := &fakeGenerator{reply: `{"servings":2}`}
		_, err := New(gen, nil, nil, nil, nil).ParseRecipe(ctx, ParseRequest{Input: "Mehl"})
		var merr *MalformedResponseError
		require.ErrorAs(t, err, &merr)
	})
}

func TestScalePortions(t *testing.T) {
	ctx := context.Background()
	ingredients := []recipe.Ingredient{
		{Name: "Mehl", Amount: "200", Unit: "g", Category: recipe.CategoryPantry},
		{Name: "Eier", Amount: "2", Unit: "Stück", Category: recipe.CategoryDairy},
	}

	t.Run("Scales", func(t *testing.T) {
		gen := &fakeGenerator{reply: `[{"name":"Mehl","amount":"400","unit":"g","category":"Trockenwaren"},
			{"name":"Eier","amount":4,"unit":"Stück","category":"Milchprodukte"},{"name":""}]`}
		scaled, err := New(gen, nil, nil, nil, nil).ScalePortions(ctx, ScaleRequest{
			Ingredients: ingredients, OriginalServings: 2, NewServings: 4,
		})
		require.NoError(t, err)
		require.Len(t, scaled, 2)
		assert.Equal(t, recipe.Amount("400"), scaled[0].Amount)
		assert.Equal(t, recipe.Amount("4"), scaled[1].Amount)
		assert.Contains(t, gen.prompts[0], "200 g Mehl")
	})

	for _, req := range []ScaleRequest{
		{OriginalServings: 2, NewServings: 4},
		{Ingredients: ingredients, OriginalServings: 0, NewServings: 4},
		{Ingredients: ingredients, OriginalServings: 2, NewServings: -1},
	} {
		t.Run(fmt.Sprintf("Invalid/%d-%d", req.OriginalServings, req.NewServings), func(t *testing.T) {
			_, err := New(&fakeGenerator{}, nil, nil, nil, nil).ScalePortions(ctx, req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestCategorizeRuleBased(t *testing.T) {
	tests := map[string]string{
		"Parmesan":          recipe.CategoryDairy,
		"Frische Vollmilch": recipe.CategoryDairy,
		"Hähnchenbrust":     recipe.CategoryMeat,
		"TK-Erbsen":         recipe.CategoryFrozen,
		"Fischstäbchen":     recipe.CategoryFrozen,
		"Rote Zwiebeln":     recipe.CategoryProduce,
		"Spaghetti":         recipe.CategoryPantry,
		"Olivenöl":          recipe.CategoryOther,
		"Drachenfrucht":     recipe.CategoryOther,
		"":                  recipe.CategoryOther,
	}
	for name, want := range tests {
		assert.Equal(t, want, CategorizeRuleBased(name), name)
	}
}

func TestCategorizeIngredient(t *testing.T) {
	ctx := context.Background()

	t.Run("AI", func(t *testing.T) {
		gen := &fakeGenerator{reply: " Milchprodukte.\n"}
		got, err := New(gen, nil, nil, nil, nil).CategorizeIngredient(ctx, "Parmesan")
		require.NoError(t, err)
		assert.Equal(t, Categorization{Category: recipe.CategoryDairy, Source: SourceAI}, got)
		assert.Contains(t, gen.prompts[0], `"Parmesan"`)
	})

	t.Run("AIObject", func(t *testing.T) {
		gen := &fakeGenerator{reply: "```json\n{\"category\": \"Tiefkühl\"}\n```"}
		got, err := New(gen, nil, nil, nil, nil).CategorizeIngredient(ctx, "Erbsen")
		require.NoError(t, err)
		assert.Equal(t, Categorization{Category: recipe.CategoryFrozen, Source: SourceAI}, got)
	})

	t.Run("RuleBased", func(t *testing.T) {
		got, err := New(nil, nil, nil, nil, nil).CategorizeIngredient(ctx, "Parmesan")
		require.NoError(t, err)
		assert.Equal(t, Categorization{Category: recipe.CategoryDairy, Source: SourceRuleBased}, got)

		got, err = New(nil, nil, nil, nil, nil).CategorizeIngredient(ctx, "Xyzzy")
		require.NoError(t, err)
		assert.Equal(t, recipe.CategoryOther, got.Category)
	})

	t.Run("FallbackOnError", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("timeout")}
		got, err := New(gen, nil, nil, nil, nil).CategorizeIngredient(ctx, "Parmesan")
		require.NoError(t, err)
		assert.Equal(t, Categorization{Category: recipe.CategoryDairy, Source: SourceRuleBasedFallback}, got)
	})

	t.Run("FallbackOnUnknownAnswer", func(t *testing.T) {
		gen := &fakeGenerator{reply: "Käseprodukte"}
		got, err := New(gen, nil, nil, nil, nil).CategorizeIngredient(ctx, "Gouda")
		require.NoError(t, err)
		assert.Equal(t, Categorization{Category: recipe.CategoryDairy, Source: SourceRuleBasedFallback}, got)
	})

	t.Run("MissingName", func(t *testing.T) {
		_, err := New(nil, nil, nil, nil, nil).CategorizeIngredient(ctx, " ")
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

func TestOptimizeShoppingList(t *testing.T) {
	ctx := context.Background()
	list := []recipe.Ingredient{{Name: "Parmesan", Amount: "100", Unit: "g", Category: recipe.CategoryDairy}}

	t.Run("Optimizes", func(t *testing.T) {
		gen := &fakeGenerator{reply: `{"originalEstimate":12.5,"optimizedEstimate":10,"savingsPercent":20,
			"substitutions":[{"original":"Parmesan","substitute":"Grana Padano","reason":"günstiger","savingsPercent":30,"category":"Milchprodukte"}],
			"generalTips":["Eigenmarken kaufen"]}`}
		subs := fakeSubstitutions{{OriginalIngredient: "Butter", SubstituteIngredient: "Margarine", Reason: "Preis"}}
		a := New(gen, nil, nil, subs, nil)
		a.now = func() time.Time { return time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC) }

		budget := 25.0
		opt, err := a.OptimizeShoppingList(ctx, OptimizeRequest{
			ShoppingList: list,
			Budget:       &budget,
			Preferences:  OptimizePreferences{PrioritizeSeasonal: true},
		})
		require.NoError(t, err)
		assert.Equal(t, 12.5, opt.OriginalEstimate)
		require.Len(t, opt.Substitutions, 1)
		assert.Equal(t, "Grana Padano", opt.Substitutions[0].Substitute)
		assert.NotNil(t, opt.SeasonalTips)
		assert.NotNil(t, opt.QuantityTips)

		prompt := gen.prompts[0]
		assert.Contains(t, prompt, "März")
		assert.Contains(t, prompt, "Budget: 25.00 EUR")
		assert.Contains(t, prompt, "Butter durch Margarine (Preis)")
		assert.Contains(t, prompt, "saisonale")
		assert.False(t, strings.Contains(prompt, "Bio-Produkte"))
	})

	t.Run("EmptyList", func(t *testing.T) {
		_, err := New(&fakeGenerator{}, nil, nil, nil, nil).OptimizeShoppingList(ctx, OptimizeRequest{})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("NegativeBudget", func(t *testing.T) {
		budget := -1.0
		_, err := New(&fakeGenerator{}, nil, nil, nil, nil).OptimizeShoppingList(ctx, OptimizeRequest{ShoppingList: list, Budget: &budget})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("NotConfigured", func(t *testing.T) {
		_, err := New(nil, nil, nil, nil, nil).OptimizeShoppingList(ctx, OptimizeRequest{ShoppingList: list})
		require.ErrorIs(t, err, llm.ErrNotConfigured)
	})
}
