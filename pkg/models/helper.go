package models

import (
	"context"
	"fmt"
	"strings"
)

// NewLLMProvider builds the streaming adapter for a provider name.
func NewLLMProvider(ctx context.Context, provider string, model string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		return NewOpenAILLM(model), nil
	case "gemini", "google":
		m, err := NewGeminiLLM(ctx, model)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "ollama":
		m, err := NewOllamaLLM(model)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "anthropic", "claude":
		return NewAnthropicLLM(model), nil
	case "dummy":
		return NewDummyLLM(""), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
}

// Providers lists the provider names NewLLMProvider accepts.
func Providers() []string {
	return []string{"ollama", "openai", "anthropic", "gemini", "dummy"}
}
