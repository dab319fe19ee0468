package ai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/growcoach/coachd/internal/logging"
)

// OpenAIGateway implements the OpenAI API using the official SDK
type OpenAIGateway struct {
	client openai.Client
	model  string
}

// NewOpenAIGateway creates a new OpenAI gateway
func NewOpenAIGateway(apiKey, model string) *OpenAIGateway {
	if model == "" {
		model = "gpt-4o-mini"
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIGateway{
		client: client,
		model:  model,
	}
}

// ID returns the provider identifier
func (g *OpenAIGateway) ID() string {
	return "openai"
}

// Complete sends a single prompt and returns the reply text
func (g *OpenAIGateway) Complete(ctx context.Context, prompt string) (string, error) {
	logging.Debugf("[OpenAI] Sending request: model=%s prompt_chars=%d", g.model, len(prompt))

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
