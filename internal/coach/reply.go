package coach

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/growcoach/coachd/internal/store"
)

// Reply is the structured result extracted from a raw model response.
// Structured is false when the model did not produce parseable JSON; the
// raw text is then carried in Message with every flag false.
type Reply struct {
	Message    string
	Flags      store.StageFlags
	Structured bool
}

var (
	jsonFenceRe = regexp.MustCompile("(?s)```json\\s*(.+?)\\s*```")
	anyFenceRe  = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")
)

// ParseReply extracts a Reply from raw model output. Priority order: a
// ```json fenced block, then any fenced block, then the whole trimmed text
// as JSON. A reply that fails every parse is returned verbatim as Message —
// a malformed model response must never abort the turn.
func ParseReply(raw string) Reply {
	if m := jsonFenceRe.FindStringSubmatch(raw); m != nil {
		if r, ok := parseStructured(m[1]); ok {
			return r
		}
	}
	if m := anyFenceRe.FindStringSubmatch(raw); m != nil {
		inner := strings.TrimSpace(m[1])
		if r, ok := parseStructured(inner); ok {
			return r
		}
		return Reply{Message: inner}
	}
	if r, ok := parseStructured(strings.TrimSpace(raw)); ok {
		return r
	}
	return Reply{Message: raw}
}

func parseStructured(blob string) (Reply, bool) {
	if !gjson.Valid(blob) {
		return Reply{}, false
	}
	msg := gjson.Get(blob, "message")
	if !msg.Exists() {
		return Reply{}, false
	}
	return Reply{
		Message:    msg.String(),
		Structured: true,
		Flags: store.StageFlags{
			Goal:              flagField(blob, "isGoalStepCompleted", "goal"),
			Reality:           flagField(blob, "isRealityStepCompleted", "reality"),
			Options:           flagField(blob, "isOptionStepCompleted", "options"),
			OptionImprovement: flagField(blob, "isOptionImprovementStepCompleted", "option_improvement"),
			Will:              flagField(blob, "isWillStepCompleted", "will"),
		},
	}, true
}

// flagField reads a completion boolean, accepting the short stage name as
// an alias since models drift on key naming. Absent means false.
func flagField(blob, key, alias string) bool {
	if v := gjson.Get(blob, key); v.Exists() {
		return v.Bool()
	}
	return gjson.Get(blob, alias).Bool()
}

// ParseLabel extracts a session label from raw model output, using the same
// fence-then-JSON chain as ParseReply. Returns "" when no label field is
// found, leaving the session unlabeled for a later attempt.
func ParseLabel(raw string) string {
	blob := strings.TrimSpace(raw)
	if m := jsonFenceRe.FindStringSubmatch(raw); m != nil {
		blob = strings.TrimSpace(m[1])
	} else if m := anyFenceRe.FindStringSubmatch(raw); m != nil {
		blob = strings.TrimSpace(m[1])
	}
	if !gjson.Valid(blob) {
		return ""
	}
	if v := gjson.Get(blob, "chatLabel"); v.Exists() {
		return strings.TrimSpace(v.String())
	}
	if v := gjson.Get(blob, "label"); v.Exists() {
		return strings.TrimSpace(v.String())
	}
	return ""
}

// stripFences returns the inner text of the first fenced block, or the
// trimmed input when there is none.
func stripFences(raw string) string {
	if m := anyFenceRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// FormatInstructions is the reply-shape contract substituted into every
// stage template as {format_instructions}.
func FormatInstructions() string {
	return "Respond with a single JSON object inside a ```json fenced block:\n" +
		"```json\n" +
		"{\n" +
		"  \"message\": \"<your reply to the user>\",\n" +
		"  \"isGoalStepCompleted\": false,\n" +
		"  \"isRealityStepCompleted\": false,\n" +
		"  \"isOptionStepCompleted\": false,\n" +
		"  \"isOptionImprovementStepCompleted\": false,\n" +
		"  \"isWillStepCompleted\": false\n" +
		"}\n" +
		"```\n" +
		"Set a step's flag to true only once that step is genuinely complete."
}
