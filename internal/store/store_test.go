package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growcoach/coachd/internal/store/migrations"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	migrations.QuietMode = true
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seedUser(t *testing.T, st *Store) *User {
	t.Helper()
	u, err := st.CreateUser(context.Background(), "amy@example.com", "hash", "Amy", "Lee")
	require.NoError(t, err)
	return u
}

func TestUpsertAndGetConversation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, st)

	err := st.UpsertConversation(ctx, ConversationUpdate{
		SessionID: "s1",
		UserID:    u.ID,
		Turns:     []Turn{{Coach: "Hi!"}, {User: "Hello", Coach: "Welcome back"}},
		Summary:   "intro",
		Label:     "Aug 31: First session",
		Flags:     StageFlags{Goal: true},
		Active:    true,
	})
	require.NoError(t, err)

	c, err := st.GetConversation(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, c.UserID)
	require.Len(t, c.Turns, 2)
	assert.Empty(t, c.Turns[0].User)
	assert.Equal(t, "Hello", c.Turns[1].User)
	assert.Equal(t, "intro", c.Summary)
	assert.Equal(t, "Aug 31: First session", c.Label)
	assert.True(t, c.Flags.Goal)
	assert.False(t, c.Flags.Reality)
}

func TestGetConversationNotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetConversation(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFlagsNeverRegress(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, st)

	require.NoError(t, st.UpsertConversation(ctx, ConversationUpdate{
		SessionID: "s1", UserID: u.ID, Flags: StageFlags{Goal: true, Reality: true}, Active: true,
	}))
	// A stale writer reporting false must not clear durable flags.
	require.NoError(t, st.UpsertConversation(ctx, ConversationUpdate{
		SessionID: "s1", UserID: u.ID, Flags: StageFlags{Options: true}, Active: true,
	}))

	c, err := st.GetConversation(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, c.Flags.Goal)
	assert.True(t, c.Flags.Reality)
	assert.True(t, c.Flags.Options)
	assert.False(t, c.Flags.Will)
}

func TestLabelWrittenOnce(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, st)

	require.NoError(t, st.UpsertConversation(ctx, ConversationUpdate{
		SessionID: "s1", UserID: u.ID, Active: true,
	}))
	require.NoError(t, st.UpsertConversation(ctx, ConversationUpdate{
		SessionID: "s1", UserID: u.ID, Label: "first", Active: true,
	}))
	require.NoError(t, st.UpsertConversation(ctx, ConversationUpdate{
		SessionID: "s1", UserID: u.ID, Label: "second", Active: true,
	}))

	c, err := st.GetConversation(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "first", c.Label)
}

func TestSummarizedCountMonotonic(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, st)

	require.NoError(t, st.UpsertConversation(ctx, ConversationUpdate{
		SessionID: "s1", UserID: u.ID, SummarizedCount: 5, Active: true,
	}))
	require.NoError(t, st.UpsertConversation(ctx, ConversationUpdate{
		SessionID: "s1", UserID: u.ID, SummarizedCount: 3, Active: true,
	}))

	c, err := st.GetConversation(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 5, c.SummarizedCount)
}

func TestDeactivateConversation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, st)

	require.NoError(t, st.UpsertConversation(ctx, ConversationUpdate{
		SessionID: "s1", UserID: u.ID, Active: true,
	}))
	require.NoError(t, st.DeactivateConversation(ctx, "s1"))

	_, err := st.GetConversation(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, st.DeactivateConversation(ctx, "missing"), ErrNotFound)
}

func TestSessionIDReuseAfterDeactivate(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, st)

	require.NoError(t, st.UpsertConversation(ctx, ConversationUpdate{
		SessionID: "s1", UserID: u.ID,
		Turns: []Turn{{User: "a", Coach: "b"}, {User: "c", Coach: "d"}},
		Label: "old session",
		Flags: StageFlags{Goal: true, Reality: true, Options: true, OptionImprovement: true, Will: true},
		Active: true,
	}))
	require.NoError(t, st.DeactivateConversation(ctx, "s1"))
	_, err := st.GetConversation(ctx, "s1")
	require.ErrorIs(t, err, ErrNotFound)

	// A turn under the same session id starts over; the dead record must
	// not leak its flags, label, or transcript into the restarted session.
	require.NoError(t, st.UpsertConversation(ctx, ConversationUpdate{
		SessionID: "s1", UserID: u.ID,
		Turns:  []Turn{{User: "hi again", Coach: "welcome back"}},
		Active: true,
	}))

	c, err := st.GetConversation(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StageFlags{}, c.Flags)
	assert.Empty(t, c.Label)
	require.Len(t, c.Turns, 1)
	assert.Equal(t, "hi again", c.Turns[0].User)

	// The deactivated record survives alongside the fresh one.
	all, err := st.ListConversations(ctx, u.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListConversations(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, st)

	for _, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, st.UpsertConversation(ctx, ConversationUpdate{
			SessionID: id, UserID: u.ID, Active: true,
		}))
	}
	require.NoError(t, st.DeactivateConversation(ctx, "s2"))

	active, err := st.ListConversations(ctx, u.ID, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	all, err := st.ListConversations(ctx, u.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeactivateIdle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, st)

	require.NoError(t, st.UpsertConversation(ctx, ConversationUpdate{
		SessionID: "s1", UserID: u.ID, Active: true,
	}))

	n, err := st.DeactivateIdle(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	n, err = st.DeactivateIdle(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestUsers(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	u, err := st.CreateUser(ctx, "Amy@Example.COM", "hash", "Amy", "Lee")
	require.NoError(t, err)
	assert.Equal(t, "amy@example.com", u.Email)
	assert.Equal(t, "Amy", u.DisplayName())

	got, err := st.GetUserByEmail(ctx, "amy@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = st.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.CreateUser(ctx, "amy@example.com", "hash2", "", "")
	assert.Error(t, err)
}

func TestStagePrompts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.GetStagePrompt(ctx, "goal")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.SetStagePrompt(ctx, "goal", "first version"))
	require.NoError(t, st.SetStagePrompt(ctx, "goal", "second version"))

	p, err := st.GetStagePrompt(ctx, "goal")
	require.NoError(t, err)
	assert.Equal(t, "second version", p)
}

func TestGoals(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, st)

	_, err := st.GetActiveGoal(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.CreateGoal(ctx, Goal{UserID: u.ID, Category: "QUESTIONING", InitialLevel: "2", GoalLevel: "3"})
	require.NoError(t, err)

	g, err := st.GetActiveGoal(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "QUESTIONING", g.Category)
	assert.True(t, g.Active)

	// A new goal retires the previous one.
	_, err = st.CreateGoal(ctx, Goal{UserID: u.ID, Category: "LISTENING", InitialLevel: "1", GoalLevel: "2"})
	require.NoError(t, err)

	g, err = st.GetActiveGoal(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "LISTENING", g.Category)

	var active int
	require.NoError(t, st.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_goals WHERE user_id = ? AND is_active = 1`, u.ID,
	).Scan(&active))
	assert.Equal(t, 1, active)
}

func TestCategoryLevelsOrdered(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertCategory(ctx, Category{Name: "LISTENING", Definition: "listening"}))
	for _, lvl := range []int{3, 1, 2} {
		require.NoError(t, st.UpsertCategoryLevel(ctx, CategoryLevel{Category: "LISTENING", Level: lvl, Description: "d"}))
	}

	levels, err := st.GetCategoryLevels(ctx, "LISTENING")
	require.NoError(t, err)
	require.Len(t, levels, 3)
	for i, l := range levels {
		assert.Equal(t, i+1, l.Level)
	}

	// Re-upserting a level refreshes, not duplicates.
	require.NoError(t, st.UpsertCategoryLevel(ctx, CategoryLevel{Category: "LISTENING", Level: 2, Description: "updated"}))
	levels, err = st.GetCategoryLevels(ctx, "LISTENING")
	require.NoError(t, err)
	assert.Len(t, levels, 3)
	assert.Equal(t, "updated", levels[1].Description)
}

func TestPerformanceAndCalls(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, st)

	_, err := st.CreatePerformance(ctx, PerformanceRow{UserID: u.ID, Category: "OPENING", Date: "2026-08-01", Developing: 0.4})
	require.NoError(t, err)
	rows, err := st.ListPerformance(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 0.4, rows[0].Developing, 1e-9)

	_, err = st.CreateCallStatement(ctx, CallStatement{UserID: u.ID, Statement: "So what would success look like?", Category: "QUESTIONING", Level: "3", Confidence: 0.9})
	require.NoError(t, err)
	calls, err := st.ListCallStatements(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "QUESTIONING", calls[0].Category)
}
