package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/growcoach/coachd/internal/logging"
)

// OllamaGateway implements the Gateway interface for Ollama (local models)
// using the official SDK
type OllamaGateway struct {
	client *api.Client
	model  string
}

// NewOllamaGateway creates a new Ollama gateway
func NewOllamaGateway(baseURL, model string) *OllamaGateway {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "qwen3:4b"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		parsedURL, _ = url.Parse("http://localhost:11434")
	}

	httpClient := &http.Client{
		Timeout: 5 * time.Minute, // Longer timeout for local inference
	}

	return &OllamaGateway{
		client: api.NewClient(parsedURL, httpClient),
		model:  model,
	}
}

// ID returns the provider identifier
func (g *OllamaGateway) ID() string {
	return "ollama"
}

// Complete sends a single prompt and returns the reply text
func (g *OllamaGateway) Complete(ctx context.Context, prompt string) (string, error) {
	logging.Debugf("[Ollama] Sending request: model=%s prompt_chars=%d", g.model, len(prompt))

	stream := false
	req := &api.GenerateRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: &stream,
	}

	var sb strings.Builder
	err := g.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama completion failed: %w", err)
	}
	return sb.String(), nil
}
