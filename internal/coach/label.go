package coach

import (
	"context"
	"fmt"
	"time"

	"github.com/growcoach/coachd/internal/ai"
	"github.com/growcoach/coachd/internal/store"
)

const labelPromptTemplate = `Create a short title for the coaching conversation below.
Rules: at most 8 words, start with the date %s, name the topic or goal.
Respond with a JSON object: {"chatLabel": "<title>"}

Goal:
%s

Conversation:
%s`

// GenerateLabel asks the model for a short human-readable session title.
// Returns "" when the reply carries no label field; the session stays
// unlabeled and a later turn retries.
func GenerateLabel(ctx context.Context, gw ai.Gateway, turns []store.Turn, goal *store.Goal, now time.Time) (string, error) {
	prompt := fmt.Sprintf(labelPromptTemplate, now.Format("Jan 2"), goalJSON(goal), renderTranscript(turns))
	raw, err := gw.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("label generation failed: %w", err)
	}
	return ParseLabel(raw), nil
}
