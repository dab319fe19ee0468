package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("store: not found")

// Turn is one exchange in a coaching conversation. User is empty when the
// coach spoke without a preceding user message (e.g. the opening turn).
type Turn struct {
	User  string `json:"user,omitempty"`
	Coach string `json:"coach"`
}

// StageFlags records which GROW stages a session has completed.
// Flags are monotonic: once true they never go back to false.
type StageFlags struct {
	Goal              bool `json:"isGoalStepCompleted"`
	Reality           bool `json:"isRealityStepCompleted"`
	Options           bool `json:"isOptionStepCompleted"`
	OptionImprovement bool `json:"isOptionImprovementStepCompleted"`
	Will              bool `json:"isWillStepCompleted"`
}

// Merge returns the monotonic OR of two flag sets.
func (f StageFlags) Merge(other StageFlags) StageFlags {
	return StageFlags{
		Goal:              f.Goal || other.Goal,
		Reality:           f.Reality || other.Reality,
		Options:           f.Options || other.Options,
		OptionImprovement: f.OptionImprovement || other.OptionImprovement,
		Will:              f.Will || other.Will,
	}
}

// AllDone reports whether every stage has completed.
func (f StageFlags) AllDone() bool {
	return f.Goal && f.Reality && f.Options && f.OptionImprovement && f.Will
}

// Conversation is the durable record of one coaching session.
type Conversation struct {
	ID              string     `json:"id"`
	SessionID       string     `json:"session_id"`
	UserID          string     `json:"user_id"`
	Turns           []Turn     `json:"messages"`
	Summary         string     `json:"summary"`
	SummarizedCount int        `json:"summarized_count"`
	Label           string     `json:"label"`
	Flags           StageFlags `json:"flags"`
	Active          bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// User is an end user of the coaching service.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// DisplayName returns the name the coach addresses the user by.
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Email
}

// Goal is a user's active coaching goal within a skill category.
type Goal struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Category     string    `json:"category"`
	InitialLevel string    `json:"initial_level"`
	CurrentLevel string    `json:"current_level"`
	GoalLevel    string    `json:"goal_level"`
	Confirmed    bool      `json:"goal_confirmation"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// PerformanceRow is one aggregated skill measurement for a user.
type PerformanceRow struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Category     string    `json:"category"`
	Date         string    `json:"date"`
	NotObserved  float64   `json:"not_observed"`
	Foundational float64   `json:"foundational"`
	Developing   float64   `json:"developing"`
	Accomplished float64   `json:"accomplished"`
	CombinedDA   float64   `json:"combined_da"`
	CreatedAt    time.Time `json:"created_at"`
}

// CallStatement is one scored statement from a user's recent call.
type CallStatement struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Statement  string    `json:"statement"`
	Category   string    `json:"category"`
	Level      string    `json:"level"`
	Reason     string    `json:"reason"`
	Confidence float64   `json:"confidence_score"`
	CreatedAt  time.Time `json:"created_at"`
}

// Category is a coaching skill category (OPENING, QUESTIONING, ...).
type Category struct {
	ID              string    `json:"id"`
	Name            string    `json:"category"`
	Definition      string    `json:"definition"`
	Instruction     string    `json:"instruction"`
	Examples        string    `json:"examples"`
	InvalidExamples string    `json:"invalid_examples"`
	Active          bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// CategoryLevel describes one proficiency level within a category.
// Levels 1-4 per category, rendered into the Options-stage prompts.
type CategoryLevel struct {
	ID              string    `json:"id"`
	Category        string    `json:"category"`
	Level           int       `json:"level"`
	Description     string    `json:"description"`
	Examples        string    `json:"examples"`
	InvalidExamples string    `json:"invalid_examples"`
	Active          bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}
