// Package ai provides model gateway implementations for the coaching
// orchestrator. A Gateway is a black-box text completion service: one
// prompt in, one raw reply out. Streaming is intentionally not part of
// the contract.
package ai

import (
	"context"
	"fmt"
)

// Gateway is the model invocation collaborator consumed by the orchestrator.
type Gateway interface {
	// ID returns the provider identifier (e.g., "openai", "anthropic")
	ID() string

	// Complete sends a single prompt and returns the raw reply text.
	Complete(ctx context.Context, prompt string) (string, error)
}

// New creates a gateway by provider name. Model should come from config;
// each provider falls back to its own default when empty.
func New(name, apiKey, model, baseURL string) (Gateway, error) {
	switch name {
	case "openai":
		return NewOpenAIGateway(apiKey, model), nil
	case "anthropic":
		return NewAnthropicGateway(apiKey, model), nil
	case "gemini":
		return NewGeminiGateway(apiKey, model)
	case "ollama":
		return NewOllamaGateway(baseURL, model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
