package assistant

import (
	"strings"

	"foodplanner/internal/recipe"
)

// Source values reported by CategorizeIngredient.
const (
	SourceAI                = "ai"
	SourceRuleBased         = "rule-based"
	SourceRuleBasedFallback = "rule-based-fallback"
)

type categoryKeywords struct {
	category string
	keywords []string
}

// Checked in order; the first list containing a matching keyword wins.
// Frozen goods come first so "TK-Erbsen" or "Fischstäbchen" do not land in
// produce or meat. Keywords are matched as substrings, so very short words
// like "eis" or "ei" are left out.
var categoryRules = []categoryKeywords{
	{recipe.CategoryFrozen, []string{
		"tiefkühl", "tk-", "tk ", "tiefgefroren", "gefroren", "eiscreme", "speiseeis",
		"pommes", "fischstäbchen", "kroketten",
	}},
	{recipe.CategoryDairy, []string{
		"milch", "käse", "kaese", "joghurt", "quark", "sahne", "butter", "parmesan",
		"mozzarella", "gouda", "feta", "ricotta", "mascarpone", "schmand", "crème fraîche",
		"creme fraiche", "emmentaler", "pecorino", "halloumi", "kefir", "skyr", "eier",
	}},
	{recipe.CategoryMeat, []string{
		"fleisch", "hähnchen", "hühnchen", "huhn", "pute", "rind", "schwein", "hack",
		"speck", "schinken", "wurst", "salami", "bacon", "chorizo", "lamm", "kalb", "ente",
		"steak", "filet", "lachs", "thunfisch", "fisch", "forelle", "kabeljau", "garnele",
		"shrimp", "muschel", "tintenfisch",
	}},
	{recipe.CategoryProduce, []string{
		"apfel", "äpfel", "birne", "banane", "zitrone", "limette", "orange", "beere",
		"traube", "kirsche", "mango", "ananas", "tomate", "gurke", "paprika", "zwiebel",
		"knoblauch", "karotte", "möhre", "kartoffel", "salat", "spinat", "brokkoli",
		"blumenkohl", "zucchini", "aubergine", "pilz", "champignon", "lauch", "porree",
		"sellerie", "kohl", "kürbis", "avocado", "ingwer", "petersilie", "basilikum",
		"schnittlauch", "koriander", "rucola", "radieschen", "spargel", "fenchel",
		"rote bete", "erbse", "bohne", "mais",
	}},
	{recipe.CategoryPantry, []string{
		"mehl", "zucker", "reis", "nudel", "pasta", "spaghetti", "penne", "fusilli",
		"linsen", "haferflocken", "müsli", "couscous", "bulgur", "quinoa", "brot",
		"brötchen", "semmelbrösel", "paniermehl", "salz", "pfeffer", "gewürz", "zimt",
		"backpulver", "hefe", "stärke", "nüsse", "mandel", "walnuss", "haselnuss",
		"rosinen", "kakao", "schokolade", "kaffee", "tee", "konserve", "dose",
	}},
	{recipe.CategoryOther, []string{
		"öl", "essig", "senf", "ketchup", "mayonnaise", "brühe", "fond", "sojasauce",
		"honig", "sirup", "wasser", "wein",
	}},
}

// CategorizeRuleBased assigns an ingredient to a category by keyword match
// against its lowercase name. Unknown ingredients are CategoryOther.
func CategorizeRuleBased(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return recipe.CategoryOther
	}
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(n, kw) {
				return rule.category
			}
		}
	}
	return recipe.CategoryOther
}
