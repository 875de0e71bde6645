// Package llm abstracts the text-completion capability consumed by the
// reflexion and proactive engines. The concrete provider is swappable;
// nothing in aide depends on a specific vendor beyond construction.
package llm

import (
	"context"
	"errors"
	"fmt"

	"aide/internal/config"
)

// Client defines the interface for text-completion calls.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ErrEmptyResponse is returned when the provider produced no text.
var ErrEmptyResponse = errors.New("llm returned empty response")

// New constructs a Client from config.
func New(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "", "gemini":
		return NewGeminiClient(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
