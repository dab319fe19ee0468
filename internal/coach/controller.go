package coach

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/growcoach/coachd/internal/ai"
	"github.com/growcoach/coachd/internal/config"
	"github.com/growcoach/coachd/internal/logging"
	"github.com/growcoach/coachd/internal/queue"
	"github.com/growcoach/coachd/internal/store"
)

var (
	// ErrUserNotFound is returned for turns submitted for an unknown user.
	ErrUserNotFound = errors.New("coach: user not found")

	// ErrNoTemplate is returned when the active stage has no instruction
	// template installed. A deployment error, not a user error.
	ErrNoTemplate = errors.New("coach: no active stage template")
)

const sessionCompleteMessage = "Congratulations on completing this coaching session! Start a new session whenever you're ready to work on your next goal."

// Store is the persistence collaborator consumed by the orchestrator.
type Store interface {
	GetConversation(ctx context.Context, sessionID string) (*store.Conversation, error)
	UpsertConversation(ctx context.Context, up store.ConversationUpdate) error
	GetStagePrompt(ctx context.Context, stage string) (string, error)
	GetUser(ctx context.Context, id string) (*store.User, error)
	GetActiveGoal(ctx context.Context, userID string) (*store.Goal, error)
	ListPerformance(ctx context.Context, userID string) ([]store.PerformanceRow, error)
	ListCallStatements(ctx context.Context, userID string) ([]store.CallStatement, error)
	GetCategoryLevels(ctx context.Context, category string) ([]store.CategoryLevel, error)
}

// TaskQueue is the background work collaborator. Jobs for the same key run
// one at a time in submission order.
type TaskQueue interface {
	Enqueue(key string, fn queue.Job)
}

// Coach orchestrates the stage-gated coaching dialogue. Construct one per
// process and share it across requests; it holds no per-session state.
type Coach struct {
	store          Store
	gateway        ai.Gateway
	queue          TaskQueue
	compactor      *Compactor
	historyWindow  int
	timeout        time.Duration
	labelEveryTurn bool
}

// New creates a coaching orchestrator.
func New(st Store, gw ai.Gateway, q TaskQueue, cfg config.SessionConfig) *Coach {
	window := cfg.HistoryWindow
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	timeout := cfg.GatewayTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Coach{
		store:          st,
		gateway:        gw,
		queue:          q,
		compactor:      NewCompactor(gw, cfg.SummaryTokens),
		historyWindow:  window,
		timeout:        timeout,
		labelEveryTurn: cfg.LabelEveryTurn,
	}
}

// TurnResult is what the caller receives from one processed turn.
type TurnResult struct {
	SessionID string           `json:"chat_id"`
	Message   string           `json:"message"`
	Flags     store.StageFlags `json:"flags"`
}

// ProcessTurn runs one turn of the coaching dialogue and returns the
// coach's reply synchronously. The durable save is scheduled on the task
// queue and not awaited. A model failure leaves the session untouched, so
// retrying the identical turn is safe.
func (c *Coach) ProcessTurn(ctx context.Context, sessionID, userID, userText string) (*TurnResult, error) {
	userText = strings.TrimSpace(userText)
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	user, err := c.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}

	// Snapshot as of turn dispatch. The save merges against this, not a
	// re-read, so the merge is deterministic relative to submission order.
	conv, err := c.store.GetConversation(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		conv = &store.Conversation{SessionID: sessionID, UserID: userID, Active: true}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	stage := ActiveStage(conv.Flags)
	if stage == nil {
		logging.Infof("[Coach] Session %s already complete", sessionID)
		return &TurnResult{SessionID: sessionID, Message: sessionCompleteMessage, Flags: conv.Flags}, nil
	}

	template, err := c.store.GetStagePrompt(ctx, stage.Name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoTemplate, stage.Name)
	} else if err != nil {
		return nil, fmt.Errorf("failed to load template for stage %s: %w", stage.Name, err)
	}

	sctx, err := c.stageContext(ctx, user, stage)
	if err != nil {
		return nil, err
	}

	prompt, err := BuildPrompt(template, sctx, conv.Summary, Window(conv.Turns, c.historyWindow), userText)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	raw, err := c.gateway.Complete(cctx, prompt)
	cancel()
	if err != nil {
		// Nothing appended, nothing scheduled.
		return nil, fmt.Errorf("model call failed for stage %s: %w", stage.Name, err)
	}

	reply := ParseReply(raw)
	logging.Debugf("[Coach] Session %s stage %s: structured=%v", sessionID, stage.Name, reply.Structured)

	turn := store.Turn{Coach: reply.Message}
	if userText != "" {
		turn.User = userText
	}
	turns := make([]store.Turn, 0, len(conv.Turns)+1)
	turns = append(turns, conv.Turns...)
	turns = append(turns, turn)

	c.scheduleSave(SaveJob{
		SessionID:       sessionID,
		UserID:          userID,
		Turns:           turns,
		ReplyFlags:      reply.Flags,
		PrevFlags:       conv.Flags,
		PrevLabel:       conv.Label,
		PrevSummary:     conv.Summary,
		SummarizedCount: conv.SummarizedCount,
		Goal:            sctx.Goal,
	})

	return &TurnResult{
		SessionID: sessionID,
		Message:   reply.Message,
		Flags:     reply.Flags.Merge(conv.Flags),
	}, nil
}

// stageContext assembles the read-only inputs for the active stage.
// Category-level reference rows are loaded only for the stages that render
// them and only when the user has an active goal.
func (c *Coach) stageContext(ctx context.Context, user *store.User, stage *StageSpec) (StageContext, error) {
	sctx := StageContext{UserName: user.DisplayName()}

	goal, err := c.store.GetActiveGoal(ctx, user.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return sctx, fmt.Errorf("failed to load goal for user %s: %w", user.ID, err)
	}
	sctx.Goal = goal

	if sctx.Performance, err = c.store.ListPerformance(ctx, user.ID); err != nil {
		return sctx, fmt.Errorf("failed to load performance data: %w", err)
	}
	if sctx.CallStatements, err = c.store.ListCallStatements(ctx, user.ID); err != nil {
		return sctx, fmt.Errorf("failed to load call statements: %w", err)
	}
	if stage.NeedsCategoryLevels && goal != nil {
		if sctx.CategoryLevels, err = c.store.GetCategoryLevels(ctx, goal.Category); err != nil {
			return sctx, fmt.Errorf("failed to load category levels: %w", err)
		}
	}
	return sctx, nil
}
