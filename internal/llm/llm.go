package llm

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"foodplanner/internal/config"
	"foodplanner/internal/shared"
)

// ErrNotConfigured is returned when no model provider has credentials.
var ErrNotConfigured = errors.New("AI service not configured. Please set GEMINI_API_KEY or GROQ_API_KEY environment variable")

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// TextGenerator is an interface for generating text from a prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (ContentResponse, error)
}

// Client is a TextGenerator owning resources that must be released.
type Client interface {
	TextGenerator
	Provider() string
	Close() error
}

// NewFromConfig returns the Gemini client when GEMINI_API_KEY is set, else
// the Groq client when GROQ_API_KEY is set, else ErrNotConfigured.
func NewFromConfig(ctx context.Context, cfg *config.Config) (Client, error) {
	switch {
	case cfg.GeminiAPIKey != "":
		return NewGeminiClient(ctx, cfg)
	case cfg.GroqAPIKey != "":
		return NewGroqClient(cfg), nil
	default:
		return nil, ErrNotConfigured
	}
}

// ExtractJSON strips surrounding whitespace and a Markdown code fence
// (``` or ```json) from a model response.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")

	if i := strings.IndexByte(s, '\n'); i >= 0 {
		if isFenceTag(strings.TrimSpace(s[:i])) {
			s = s[i+1:]
		}
	} else {
		s = strings.TrimLeftFunc(s, unicode.IsLetter)
	}

	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isFenceTag(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
