package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultRecipeDomains are the recipe sites the URL parser may fetch from.
var DefaultRecipeDomains = []string{
	"chefkoch.de",
	"eatsmarter.de",
	"lecker.de",
	"essen-und-trinken.de",
	"kitchenstories.com",
	"springlane.de",
	"einfachbacken.de",
	"gutekueche.de",
	"allrecipes.com",
	"bbcgoodfood.com",
	"seriouseats.com",
	"bonappetit.com",
}

// Config holds the configuration for the application.
type Config struct {
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string

	// Storage. DatabaseURL selects Postgres and wins over DBPath.
	DatabaseURL string
	DBPath      string

	// AI providers, both optional.
	GeminiAPIKey string
	GeminiModel  string
	GroqAPIKey   string
	GroqModel    string

	AllowedRecipeDomains []string

	// Rate limiting
	RedisURL         string
	RateLimitGeneral int
	RateLimitAI      int
	RateLimitWindow  time.Duration
	TrustProxy       bool

	CORSOrigins []string
}

// UsesPostgres reports whether the Postgres backend is configured.
func (c *Config) UsesPostgres() bool {
	return c.DatabaseURL != ""
}

// Development reports whether the app runs in development mode.
func (c *Config) Development() bool {
	return c.Environment == "development"
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", 3000)
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DB_PATH", "data/foodplanner.db")
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	v.SetDefault("GROQ_MODEL", "llama-3.3-70b-versatile")
	v.SetDefault("RATE_LIMIT_GENERAL", 100)
	v.SetDefault("RATE_LIMIT_AI", 20)
	v.SetDefault("RATE_LIMIT_WINDOW", "15m")
	v.SetDefault("TRUST_PROXY", false)
	v.SetDefault("CORS_ORIGINS", "*")

	port := v.GetInt("PORT")
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("PORT environment variable is invalid: %q", v.GetString("PORT"))
	}

	dbPath := v.GetString("DB_PATH")
	databaseURL := v.GetString("DATABASE_URL")
	if databaseURL == "" && dbPath == "" {
		return nil, fmt.Errorf("DATABASE_URL or DB_PATH environment variable not set")
	}

	generalLimit := v.GetInt("RATE_LIMIT_GENERAL")
	if generalLimit <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_GENERAL must be positive, got %d", generalLimit)
	}
	aiLimit := v.GetInt("RATE_LIMIT_AI")
	if aiLimit <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_AI must be positive, got %d", aiLimit)
	}
	window, err := time.ParseDuration(v.GetString("RATE_LIMIT_WINDOW"))
	if err != nil || window <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW environment variable is invalid: %q", v.GetString("RATE_LIMIT_WINDOW"))
	}

	domains := splitList(v.GetString("ALLOWED_RECIPE_DOMAINS"))
	if len(domains) == 0 {
		domains = append([]string(nil), DefaultRecipeDomains...)
	}

	return &Config{
		Port:                 port,
		Environment:          v.GetString("APP_ENV"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		LogFormat:            v.GetString("LOG_FORMAT"),
		DatabaseURL:          databaseURL,
		DBPath:               dbPath,
		GeminiAPIKey:         v.GetString("GEMINI_API_KEY"),
		GeminiModel:          v.GetString("GEMINI_MODEL"),
		GroqAPIKey:           v.GetString("GROQ_API_KEY"),
		GroqModel:            v.GetString("GROQ_MODEL"),
		AllowedRecipeDomains: domains,
		RedisURL:             v.GetString("REDIS_URL"),
		RateLimitGeneral:     generalLimit,
		RateLimitAI:          aiLimit,
		RateLimitWindow:      window,
		TrustProxy:           v.GetBool("TRUST_PROXY"),
		CORSOrigins:          splitList(v.GetString("CORS_ORIGINS")),
	}, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
