package coach

import (
	"context"
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"

	"github.com/growcoach/coachd/internal/ai"
	"github.com/growcoach/coachd/internal/logging"
	"github.com/growcoach/coachd/internal/store"
)

// DefaultHistoryWindow is the number of recent turns rendered into prompts.
const DefaultHistoryWindow = 10

// DefaultSummaryTokens is the token budget for the rolling summary.
const DefaultSummaryTokens = 1000

// Window returns the most recent n turns, oldest first. The full turn
// sequence is kept for persistence and compaction; only this slice reaches
// the prompt.
func Window(turns []store.Turn, n int) []store.Turn {
	if n <= 0 {
		n = DefaultHistoryWindow
	}
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

// Compactor folds completed turns into a token-bounded rolling summary.
// The summary accumulates across turns; it is never recomputed from the
// full transcript. Compression discards older detail once the budget is
// exceeded — an accepted loss of fidelity.
type Compactor struct {
	gateway ai.Gateway
	budget  int
	enc     tokenizer.Codec
}

// NewCompactor creates a compactor with the given token budget. The model
// gateway is used only when the summary outgrows the budget.
func NewCompactor(gw ai.Gateway, budgetTokens int) *Compactor {
	if budgetTokens <= 0 {
		budgetTokens = DefaultSummaryTokens
	}
	enc, err := tokenizer.Get(tokenizer.O200kBase)
	if err != nil {
		logging.Warnf("[Memory] Tokenizer unavailable, using character estimate: %v", err)
		enc = nil
	}
	return &Compactor{gateway: gw, budget: budgetTokens, enc: enc}
}

// CountTokens returns the token count for text, estimating at four
// characters per token when no codec is available.
func (c *Compactor) CountTokens(text string) int {
	if c.enc != nil {
		if ids, _, err := c.enc.Encode(text); err == nil {
			return len(ids)
		}
	}
	return len(text) / 4
}

const summarizePromptTemplate = `Condense the coaching conversation notes below into one running summary of at most %d words. Preserve concrete facts: the user's goal, current situation, options discussed, commitments, and decisions. Drop pleasantries. Reply with the summary text only.

Notes so far:
%s

New exchanges:
%s`

// Refresh folds turns recorded since the last refresh into the rolling
// summary, returning the updated summary and the number of turns it now
// covers. New turns append verbatim while the result fits the token budget;
// over budget, one compression call rewrites the whole summary. On gateway
// failure the prior summary and count are returned unchanged so the same
// turns fold in on the next refresh.
func (c *Compactor) Refresh(ctx context.Context, summary string, turns []store.Turn, summarized int) (string, int, error) {
	if summarized < 0 {
		summarized = 0
	}
	if summarized >= len(turns) {
		return summary, summarized, nil
	}

	fresh := renderTranscript(turns[summarized:])
	candidate := fresh
	if summary != "" {
		candidate = summary + "\n" + fresh
	}
	if c.CountTokens(candidate) <= c.budget || c.gateway == nil {
		return candidate, len(turns), nil
	}

	prompt := fmt.Sprintf(summarizePromptTemplate, c.budget*3/4, summary, fresh)
	raw, err := c.gateway.Complete(ctx, prompt)
	if err != nil {
		return summary, summarized, fmt.Errorf("summary compression failed: %w", err)
	}
	compressed := strings.TrimSpace(stripFences(raw))
	if compressed == "" {
		return summary, summarized, nil
	}
	return compressed, len(turns), nil
}
