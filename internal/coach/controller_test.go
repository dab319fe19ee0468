package coach

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/growcoach/coachd/internal/config"
	"github.com/growcoach/coachd/internal/queue"
	"github.com/growcoach/coachd/internal/store"
)

type fakeGateway struct {
	mu      sync.Mutex
	replies []string
	prompts []string
	err     error
}

func (g *fakeGateway) ID() string { return "fake" }

func (g *fakeGateway) Complete(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if len(g.replies) == 0 {
		return `{"message":"ok"}`, nil
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	return r, nil
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *fakeGateway) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

type fakeStore struct {
	user      *store.User
	conv      *store.Conversation
	templates map[string]string
	goal      *store.Goal
	perf      []store.PerformanceRow
	calls     []store.CallStatement
	levels    map[string][]store.CategoryLevel

	stagesRequested []string
	levelLookups    int
	upserts         []store.ConversationUpdate
}

func newFakeStore() *fakeStore {
	templates := map[string]string{}
	for _, name := range StageNames() {
		templates[name] = "Stage " + name + " for {user_name}: {goal} {performance_data} {format_instructions}"
	}
	templates[StageOptions] += " Levels: {category_level_data}"
	templates[StageOptionImprovement] += " Levels: {category_level_data}"
	return &fakeStore{
		user:      &store.User{ID: "u1", Email: "amy@example.com", FirstName: "Amy", Active: true},
		templates: templates,
		goal:      &store.Goal{UserID: "u1", Category: "QUESTIONING", GoalLevel: "3", Active: true},
		levels: map[string][]store.CategoryLevel{
			"QUESTIONING": {{Category: "QUESTIONING", Level: 1, Description: "mostly closed questions"}},
		},
	}
}

func (f *fakeStore) GetConversation(_ context.Context, sessionID string) (*store.Conversation, error) {
	if f.conv == nil || f.conv.SessionID != sessionID {
		return nil, store.ErrNotFound
	}
	c := *f.conv
	return &c, nil
}

func (f *fakeStore) UpsertConversation(_ context.Context, up store.ConversationUpdate) error {
	f.upserts = append(f.upserts, up)
	return nil
}

func (f *fakeStore) GetStagePrompt(_ context.Context, stage string) (string, error) {
	f.stagesRequested = append(f.stagesRequested, stage)
	tpl, ok := f.templates[stage]
	if !ok {
		return "", store.ErrNotFound
	}
	return tpl, nil
}

func (f *fakeStore) GetUser(_ context.Context, id string) (*store.User, error) {
	if f.user != nil && f.user.ID == id {
		return f.user, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetActiveGoal(_ context.Context, userID string) (*store.Goal, error) {
	if f.goal == nil {
		return nil, store.ErrNotFound
	}
	return f.goal, nil
}

func (f *fakeStore) ListPerformance(_ context.Context, userID string) ([]store.PerformanceRow, error) {
	return f.perf, nil
}

func (f *fakeStore) ListCallStatements(_ context.Context, userID string) ([]store.CallStatement, error) {
	return f.calls, nil
}

func (f *fakeStore) GetCategoryLevels(_ context.Context, category string) ([]store.CategoryLevel, error) {
	f.levelLookups++
	return f.levels[category], nil
}

// syncQueue runs jobs inline so tests observe saves deterministically.
type syncQueue struct {
	keys []string
}

func (q *syncQueue) Enqueue(key string, fn queue.Job) {
	q.keys = append(q.keys, key)
	fn(context.Background())
}

func testCoach(fs *fakeStore, gw *fakeGateway, labelEveryTurn bool) (*Coach, *syncQueue) {
	q := &syncQueue{}
	c := New(fs, gw, q, config.SessionConfig{
		HistoryWindow:  10,
		SummaryTokens:  4000,
		GatewayTimeout: 5 * time.Second,
		LabelEveryTurn: labelEveryTurn,
	})
	return c, q
}

func TestFreshSessionOpensGoalStage(t *testing.T) {
	fs := newFakeStore()
	gw := &fakeGateway{replies: []string{"```json\n{\"message\": \"Hi!\", \"isGoalStepCompleted\": false}\n```"}}
	c, q := testCoach(fs, gw, false)

	res, err := c.ProcessTurn(context.Background(), "s1", "u1", "")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if res.Message != "Hi!" {
		t.Fatalf("message = %q", res.Message)
	}
	if res.Flags != (store.StageFlags{}) {
		t.Fatalf("flags = %+v, want all false", res.Flags)
	}
	if len(fs.stagesRequested) != 1 || fs.stagesRequested[0] != StageGoal {
		t.Fatalf("stages requested = %v, want [goal]", fs.stagesRequested)
	}

	if len(q.keys) != 1 || q.keys[0] != "s1" {
		t.Fatalf("save queue keys = %v", q.keys)
	}
	if len(fs.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(fs.upserts))
	}
	up := fs.upserts[0]
	if len(up.Turns) != 1 || up.Turns[0].User != "" || up.Turns[0].Coach != "Hi!" {
		t.Fatalf("turns = %+v, want one coach-only turn", up.Turns)
	}
	if up.Label != "" {
		t.Fatalf("label = %q, want empty (no stage completed)", up.Label)
	}
	if up.SummarizedCount != 1 || !strings.Contains(up.Summary, "Hi!") {
		t.Fatalf("summary not refreshed: count=%d summary=%q", up.SummarizedCount, up.Summary)
	}
	if gw.calls() != 1 {
		t.Fatalf("gateway calls = %d, want 1", gw.calls())
	}
}

func TestUserTextTrimmedAndRecorded(t *testing.T) {
	fs := newFakeStore()
	gw := &fakeGateway{replies: []string{`{"message":"Noted"}`}}
	c, _ := testCoach(fs, gw, false)

	_, err := c.ProcessTurn(context.Background(), "s1", "u1", "  Yes let's continue  ")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	up := fs.upserts[0]
	if up.Turns[0].User != "Yes let's continue" {
		t.Fatalf("user text = %q", up.Turns[0].User)
	}
}

func TestGoalDoneResolvesRealityStage(t *testing.T) {
	fs := newFakeStore()
	fs.conv = &store.Conversation{
		SessionID: "s1", UserID: "u1", Active: true,
		Flags: store.StageFlags{Goal: true},
		Turns: []store.Turn{{Coach: "Welcome"}},
	}
	gw := &fakeGateway{}
	c, _ := testCoach(fs, gw, false)

	_, err := c.ProcessTurn(context.Background(), "s1", "u1", "Yes let's continue")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if fs.stagesRequested[0] != StageReality {
		t.Fatalf("stage = %s, want reality", fs.stagesRequested[0])
	}
}

func TestPrematureLaterFlagIsPassthroughOnly(t *testing.T) {
	fs := newFakeStore()
	gw := &fakeGateway{replies: []string{"```json {\"message\":\"ok\",\"will\":true} ```"}}
	c, _ := testCoach(fs, gw, false)

	res, err := c.ProcessTurn(context.Background(), "s1", "u1", "hello")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if !res.Flags.Will || res.Flags.Goal {
		t.Fatalf("flags = %+v, want will passthrough with goal still false", res.Flags)
	}
	if fs.stagesRequested[0] != StageGoal {
		t.Fatalf("stage = %s, want goal", fs.stagesRequested[0])
	}
	if !fs.upserts[0].Flags.Will {
		t.Fatal("will flag should be retained in storage")
	}

	// With will=true stored, the next turn still works the goal stage.
	stored := fs.upserts[0]
	fs.conv = &store.Conversation{
		SessionID: "s1", UserID: "u1", Active: true,
		Turns: stored.Turns, Flags: stored.Flags,
	}
	if _, err := c.ProcessTurn(context.Background(), "s1", "u1", "next"); err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if fs.stagesRequested[1] != StageGoal {
		t.Fatalf("stage = %s, want goal (no skipping)", fs.stagesRequested[1])
	}
}

func TestCompletedSessionReturnsCourtesyReply(t *testing.T) {
	fs := newFakeStore()
	fs.conv = &store.Conversation{
		SessionID: "s1", UserID: "u1", Active: true,
		Flags: store.StageFlags{Goal: true, Reality: true, Options: true, OptionImprovement: true, Will: true},
	}
	gw := &fakeGateway{}
	c, q := testCoach(fs, gw, true)

	res, err := c.ProcessTurn(context.Background(), "s1", "u1", "anything else?")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if res.Message != sessionCompleteMessage {
		t.Fatalf("message = %q", res.Message)
	}
	if gw.calls() != 0 || len(fs.upserts) != 0 || len(q.keys) != 0 {
		t.Fatal("terminal turn must not call the model or mutate state")
	}
}

func TestGatewayErrorLeavesStateUntouched(t *testing.T) {
	fs := newFakeStore()
	gw := &fakeGateway{err: errors.New("model down")}
	c, q := testCoach(fs, gw, false)

	_, err := c.ProcessTurn(context.Background(), "s1", "u1", "hello")
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(fs.upserts) != 0 || len(q.keys) != 0 {
		t.Fatal("failed turn must not append or schedule anything")
	}
}

func TestMissingTemplateFailsTurn(t *testing.T) {
	fs := newFakeStore()
	delete(fs.templates, StageGoal)
	c, _ := testCoach(fs, &fakeGateway{}, false)

	_, err := c.ProcessTurn(context.Background(), "s1", "u1", "hello")
	if !errors.Is(err, ErrNoTemplate) {
		t.Fatalf("got %v, want ErrNoTemplate", err)
	}
}

func TestUnknownUser(t *testing.T) {
	fs := newFakeStore()
	c, _ := testCoach(fs, &fakeGateway{}, false)

	_, err := c.ProcessTurn(context.Background(), "s1", "nobody", "hello")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("got %v, want ErrUserNotFound", err)
	}
}

func TestEmptySessionIDGeneratesOne(t *testing.T) {
	fs := newFakeStore()
	c, q := testCoach(fs, &fakeGateway{}, false)

	res, err := c.ProcessTurn(context.Background(), "", "u1", "hello")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if res.SessionID == "" {
		t.Fatal("expected a generated session id")
	}
	if q.keys[0] != res.SessionID {
		t.Fatalf("save keyed by %q, want %q", q.keys[0], res.SessionID)
	}
}

func TestSaveMergesSnapshotFlags(t *testing.T) {
	fs := newFakeStore()
	fs.conv = &store.Conversation{
		SessionID: "s1", UserID: "u1", Active: true,
		Flags: store.StageFlags{Goal: true},
	}
	gw := &fakeGateway{replies: []string{`{"message":"done","isRealityStepCompleted":true}`}}
	c, _ := testCoach(fs, gw, false)

	res, err := c.ProcessTurn(context.Background(), "s1", "u1", "that's my situation")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if !res.Flags.Goal || !res.Flags.Reality {
		t.Fatalf("flags = %+v, want goal and reality true", res.Flags)
	}
	up := fs.upserts[0]
	if !up.Flags.Goal || !up.Flags.Reality {
		t.Fatalf("durable flags = %+v, want snapshot merged in", up.Flags)
	}
}

func TestLabelGeneratedOnceWhileEmpty(t *testing.T) {
	fs := newFakeStore()
	gw := &fakeGateway{replies: []string{
		`{"message":"Hi!"}`,
		`{"chatLabel":"Aug 31: Sharpen questioning"}`,
	}}
	c, _ := testCoach(fs, gw, true)

	if _, err := c.ProcessTurn(context.Background(), "s1", "u1", "hello"); err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if gw.calls() != 2 {
		t.Fatalf("gateway calls = %d, want reply + label", gw.calls())
	}
	if fs.upserts[0].Label != "Aug 31: Sharpen questioning" {
		t.Fatalf("label = %q", fs.upserts[0].Label)
	}

	// A labeled snapshot must never trigger regeneration.
	fs.conv = &store.Conversation{
		SessionID: "s1", UserID: "u1", Active: true,
		Label: "Aug 31: Sharpen questioning",
		Turns: fs.upserts[0].Turns,
	}
	gw.replies = []string{`{"message":"Welcome back"}`}
	if _, err := c.ProcessTurn(context.Background(), "s1", "u1", "I'm back"); err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if gw.calls() != 3 {
		t.Fatalf("gateway calls = %d, want exactly one more", gw.calls())
	}
	if fs.upserts[1].Label != "Aug 31: Sharpen questioning" {
		t.Fatalf("label changed to %q", fs.upserts[1].Label)
	}
}

func TestCategoryLevelsOnlyForOptionsStages(t *testing.T) {
	fs := newFakeStore()
	c, _ := testCoach(fs, &fakeGateway{}, false)

	if _, err := c.ProcessTurn(context.Background(), "s1", "u1", "hi"); err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if fs.levelLookups != 0 {
		t.Fatalf("goal stage fetched category levels %d times", fs.levelLookups)
	}

	fs.conv = &store.Conversation{
		SessionID: "s1", UserID: "u1", Active: true,
		Flags: store.StageFlags{Goal: true, Reality: true},
	}
	gw := &fakeGateway{}
	c2, _ := testCoach(fs, gw, false)
	if _, err := c2.ProcessTurn(context.Background(), "s1", "u1", "what are my options?"); err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if fs.levelLookups != 1 {
		t.Fatalf("options stage fetched category levels %d times, want 1", fs.levelLookups)
	}
	if !strings.Contains(gw.lastPrompt(), "mostly closed questions") {
		t.Fatal("level descriptions missing from the options prompt")
	}
}
