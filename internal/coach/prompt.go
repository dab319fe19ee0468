package coach

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/growcoach/coachd/internal/store"
)

// ErrMissingVariable is returned when a stage template references a
// substitution variable the compositor does not provide. This is a
// configuration error in the installed template, not a runtime condition.
var ErrMissingVariable = errors.New("coach: unresolved prompt variable")

// StageContext is the read-only per-turn input assembled for the active
// stage. The orchestrator never mutates any of it.
type StageContext struct {
	UserName       string
	Goal           *store.Goal
	Performance    []store.PerformanceRow
	CallStatements []store.CallStatement
	CategoryLevels []store.CategoryLevel
}

var placeholderRe = regexp.MustCompile(`\{([a-z][a-z0-9_]*)\}`)

// BuildPrompt renders the full prompt for one turn: the stage template with
// named substitutions, the rolling summary, the recent-turn transcript, a
// directive against fabricating user messages, and the current utterance.
// Pure function of its inputs.
func BuildPrompt(template string, sctx StageContext, summary string, window []store.Turn, userText string) (string, error) {
	vars := map[string]string{
		"user_name":           sctx.UserName,
		"goal":                goalJSON(sctx.Goal),
		"performance_data":    jsonBlob(map[string]any{"skills": sctx.Performance, "last_call": sctx.CallStatements}),
		"category_level_data": jsonBlob(sctx.CategoryLevels),
		"format_instructions": FormatInstructions(),
		"current_date":        time.Now().Format("2006-01-02"),
	}

	var missing []string
	instruction := placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingVariable, strings.Join(missing, ", "))
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(instruction))
	b.WriteString("\n\n")
	if summary != "" {
		b.WriteString("Summary of the conversation so far:\n")
		b.WriteString(summary)
		b.WriteString("\n\n")
	}
	if len(window) > 0 {
		b.WriteString("Recent conversation:\n")
		b.WriteString(renderTranscript(window))
		b.WriteString("\n\n")
	}
	b.WriteString("Do not add any message on behalf of the user. If the user message is empty, keep it empty.\n\n")
	b.WriteString("User: ")
	b.WriteString(userText)
	b.WriteString("\nCoach:")
	return b.String(), nil
}

// renderTranscript formats turns as alternating User/Coach lines, oldest
// first, omitting the User line for coach-only turns.
func renderTranscript(turns []store.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		if t.User != "" {
			b.WriteString("User: ")
			b.WriteString(t.User)
			b.WriteString("\n")
		}
		b.WriteString("Coach: ")
		b.WriteString(t.Coach)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func goalJSON(g *store.Goal) string {
	if g == nil {
		return "{}"
	}
	return jsonBlob(g)
}

func jsonBlob(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
