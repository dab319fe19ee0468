package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetConversation returns the active conversation for a session id, or
// ErrNotFound when the session has no active record.
func (s *Store) GetConversation(ctx context.Context, sessionID string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, user_id, messages, summary, summarized_count, label,
		       goal_done, reality_done, options_done, option_improvement_done, will_done,
		       is_active, created_at, updated_at
		FROM conversations
		WHERE session_id = ? AND is_active = 1
	`, sessionID)
	return scanConversation(row)
}

func scanConversation(row *sql.Row) (*Conversation, error) {
	var c Conversation
	var messages string
	var createdAt, updatedAt int64
	err := row.Scan(
		&c.ID, &c.SessionID, &c.UserID, &messages, &c.Summary, &c.SummarizedCount, &c.Label,
		&c.Flags.Goal, &c.Flags.Reality, &c.Flags.Options, &c.Flags.OptionImprovement, &c.Flags.Will,
		&c.Active, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(messages), &c.Turns); err != nil {
		return nil, fmt.Errorf("corrupt messages for session %s: %w", c.SessionID, err)
	}
	c.CreatedAt = time.Unix(createdAt, 0)
	c.UpdatedAt = time.Unix(updatedAt, 0)
	return &c, nil
}

// ConversationUpdate carries the fields written by one durable save.
type ConversationUpdate struct {
	SessionID       string
	UserID          string
	Turns           []Turn
	Summary         string
	SummarizedCount int
	Label           string
	Flags           StageFlags
	Active          bool
}

// UpsertConversation writes a conversation atomically. The flag columns are
// merged monotonically against whatever is already durable (OR semantics),
// and an existing non-empty label is never overwritten, so a stale writer
// cannot regress a completed stage or rename a session. The conflict target
// matches only the active row for the session id: deactivated rows are left
// alone, and a save for a reused session id creates a fresh record.
func (s *Store) UpsertConversation(ctx context.Context, up ConversationUpdate) error {
	messages, err := json.Marshal(up.Turns)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}

	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (
			id, session_id, user_id, messages, summary, summarized_count, label,
			goal_done, reality_done, options_done, option_improvement_done, will_done,
			is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) WHERE is_active = 1 DO UPDATE SET
			messages = excluded.messages,
			summary = excluded.summary,
			summarized_count = MAX(conversations.summarized_count, excluded.summarized_count),
			label = CASE WHEN conversations.label = '' THEN excluded.label ELSE conversations.label END,
			goal_done = MAX(conversations.goal_done, excluded.goal_done),
			reality_done = MAX(conversations.reality_done, excluded.reality_done),
			options_done = MAX(conversations.options_done, excluded.options_done),
			option_improvement_done = MAX(conversations.option_improvement_done, excluded.option_improvement_done),
			will_done = MAX(conversations.will_done, excluded.will_done),
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`,
		uuid.New().String(), up.SessionID, up.UserID, string(messages), up.Summary, up.SummarizedCount, up.Label,
		up.Flags.Goal, up.Flags.Reality, up.Flags.Options, up.Flags.OptionImprovement, up.Flags.Will,
		up.Active, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert conversation %s: %w", up.SessionID, err)
	}
	return nil
}

// ListConversations returns a user's conversations, newest first.
func (s *Store) ListConversations(ctx context.Context, userID string, activeOnly bool) ([]Conversation, error) {
	query := `
		SELECT id, session_id, user_id, messages, summary, summarized_count, label,
		       goal_done, reality_done, options_done, option_improvement_done, will_done,
		       is_active, created_at, updated_at
		FROM conversations
		WHERE user_id = ?
	`
	if activeOnly {
		query += " AND is_active = 1"
	}
	query += " ORDER BY updated_at DESC"

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		var messages string
		var createdAt, updatedAt int64
		if err := rows.Scan(
			&c.ID, &c.SessionID, &c.UserID, &messages, &c.Summary, &c.SummarizedCount, &c.Label,
			&c.Flags.Goal, &c.Flags.Reality, &c.Flags.Options, &c.Flags.OptionImprovement, &c.Flags.Will,
			&c.Active, &createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(messages), &c.Turns); err != nil {
			return nil, fmt.Errorf("corrupt messages for session %s: %w", c.SessionID, err)
		}
		c.CreatedAt = time.Unix(createdAt, 0)
		c.UpdatedAt = time.Unix(updatedAt, 0)
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeactivateConversation soft-deletes the active conversation for a
// session id. Already-deactivated sessions report ErrNotFound.
func (s *Store) DeactivateConversation(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET is_active = 0, updated_at = ? WHERE session_id = ? AND is_active = 1`,
		time.Now().Unix(), sessionID,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateIdle soft-deletes active conversations not updated since the
// cutoff. Returns the number of sessions swept.
func (s *Store) DeactivateIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET is_active = 0, updated_at = ? WHERE is_active = 1 AND updated_at < ?`,
		time.Now().Unix(), cutoff.Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
