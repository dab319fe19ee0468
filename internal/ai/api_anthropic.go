package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/growcoach/coachd/internal/logging"
)

const anthropicMaxTokens = 4096

// AnthropicGateway implements the Anthropic Claude API using the official SDK
type AnthropicGateway struct {
	client anthropic.Client
	model  string
}

// NewAnthropicGateway creates a new Anthropic gateway
func NewAnthropicGateway(apiKey, model string) *AnthropicGateway {
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicGateway{
		client: client,
		model:  model,
	}
}

// ID returns the provider identifier
func (g *AnthropicGateway) ID() string {
	return "anthropic"
}

// Complete sends a single prompt and returns the reply text
func (g *AnthropicGateway) Complete(ctx context.Context, prompt string) (string, error) {
	logging.Debugf("[Anthropic] Sending request: model=%s prompt_chars=%d", g.model, len(prompt))

	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: int64(anthropicMaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic returned no text content")
	}
	return sb.String(), nil
}
