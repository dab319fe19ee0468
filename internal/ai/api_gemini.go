package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/growcoach/coachd/internal/logging"
)

// GeminiGateway implements the Gateway interface for Google Gemini
type GeminiGateway struct {
	client *genai.Client
	model  string
}

// NewGeminiGateway creates a new Gemini gateway
func NewGeminiGateway(apiKey, model string) (*GeminiGateway, error) {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiGateway{
		client: client,
		model:  model,
	}, nil
}

// ID returns the provider identifier
func (g *GeminiGateway) ID() string {
	return "gemini"
}

// Complete sends a single prompt and returns the reply text
func (g *GeminiGateway) Complete(ctx context.Context, prompt string) (string, error) {
	logging.Debugf("[Gemini] Sending request: model=%s prompt_chars=%d", g.model, len(prompt))

	resp, err := g.client.GenerativeModel(g.model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini returned no text content")
	}
	return sb.String(), nil
}
