// Package coach implements the coaching session orchestrator: a stage-gated
// GROW dialogue (Goal, Reality, Options, Option-Improvement, Will) between an
// end user and an AI coach persona. The orchestrator decides which stage is
// active, assembles stage-aware context for a model call, interprets the
// model's structured reply, advances session state, and defers the durable
// write so the caller never waits on persistence.
package coach

import "github.com/growcoach/coachd/internal/store"

// Stage names, in the fixed GROW order.
const (
	StageGoal              = "goal"
	StageReality           = "reality"
	StageOptions           = "options"
	StageOptionImprovement = "option_improvement"
	StageWill              = "will"
)

// StageSpec describes one stage of the coaching dialogue. The whole stage
// machine is this table plus first-incomplete selection; all stages share
// one handler parameterized by their descriptor.
type StageSpec struct {
	Name                string
	NeedsCategoryLevels bool

	done func(store.StageFlags) bool
}

var stageTable = []StageSpec{
	{Name: StageGoal, done: func(f store.StageFlags) bool { return f.Goal }},
	{Name: StageReality, done: func(f store.StageFlags) bool { return f.Reality }},
	{Name: StageOptions, NeedsCategoryLevels: true, done: func(f store.StageFlags) bool { return f.Options }},
	{Name: StageOptionImprovement, NeedsCategoryLevels: true, done: func(f store.StageFlags) bool { return f.OptionImprovement }},
	{Name: StageWill, done: func(f store.StageFlags) bool { return f.Will }},
}

// ActiveStage returns the first stage, in order, whose flag is still false,
// or nil when every stage has completed. Flags for later stages never pull
// selection forward: an earlier incomplete stage always wins.
func ActiveStage(f store.StageFlags) *StageSpec {
	for i := range stageTable {
		if !stageTable[i].done(f) {
			return &stageTable[i]
		}
	}
	return nil
}

// StageNames returns the stage names in canonical order.
func StageNames() []string {
	names := make([]string, len(stageTable))
	for i, s := range stageTable {
		names[i] = s.Name
	}
	return names
}
