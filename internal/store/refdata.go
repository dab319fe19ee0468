package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// --- Users ---

// CreateUser inserts a new user record. Email must be unique.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash, firstName, lastName string) (*User, error) {
	now := time.Now()
	u := &User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		Active:       true,
		CreatedAt:    now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
	`, u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// GetUser returns a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, "id", id)
}

// GetUserByEmail returns a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (s *Store) getUser(ctx context.Context, column, value string) (*User, error) {
	var u User
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, first_name, last_name, is_active, created_at
		FROM users WHERE `+column+` = ?
	`, value).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Active, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = time.Unix(createdAt, 0)
	return &u, nil
}

// --- Coaching prompts ---

// GetStagePrompt returns the active instruction template for a stage.
func (s *Store) GetStagePrompt(ctx context.Context, stage string) (string, error) {
	var prompt string
	err := s.db.QueryRowContext(ctx, `
		SELECT prompt FROM coaching_prompts
		WHERE stage = ? AND is_active = 1
		ORDER BY updated_at DESC LIMIT 1
	`, stage).Scan(&prompt)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return prompt, nil
}

// SetStagePrompt installs a template for a stage, deactivating prior ones.
func (s *Store) SetStagePrompt(ctx context.Context, stage, prompt string) error {
	now := time.Now().Unix()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE coaching_prompts SET is_active = 0, updated_at = ? WHERE stage = ?`, now, stage,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO coaching_prompts (id, stage, prompt, is_active, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
	`, uuid.New().String(), stage, prompt, now, now); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Goals ---

// GetActiveGoal returns the user's active coaching goal, or ErrNotFound.
func (s *Store) GetActiveGoal(ctx context.Context, userID string) (*Goal, error) {
	var g Goal
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, category, initial_level, current_level, goal_level, goal_confirmation, is_active, created_at
		FROM user_goals
		WHERE user_id = ? AND is_active = 1
		ORDER BY created_at DESC LIMIT 1
	`, userID).Scan(&g.ID, &g.UserID, &g.Category, &g.InitialLevel, &g.CurrentLevel, &g.GoalLevel, &g.Confirmed, &g.Active, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	g.CreatedAt = time.Unix(createdAt, 0)
	return &g, nil
}

// CreateGoal inserts a coaching goal for a user, deactivating prior ones
// so the user holds a single active goal.
func (s *Store) CreateGoal(ctx context.Context, g Goal) (*Goal, error) {
	g.ID = uuid.New().String()
	g.Active = true
	g.CreatedAt = time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE user_goals SET is_active = 0, updated_at = ? WHERE user_id = ? AND is_active = 1`,
		g.CreatedAt.Unix(), g.UserID,
	); err != nil {
		return nil, fmt.Errorf("failed to retire prior goals: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_goals (id, user_id, category, initial_level, current_level, goal_level, goal_confirmation, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`, g.ID, g.UserID, g.Category, g.InitialLevel, g.CurrentLevel, g.GoalLevel, g.Confirmed, g.CreatedAt.Unix(), g.CreatedAt.Unix()); err != nil {
		return nil, fmt.Errorf("failed to create goal: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &g, nil
}

// --- Performance ---

// ListPerformance returns the user's active performance rows, oldest first.
func (s *Store) ListPerformance(ctx context.Context, userID string) ([]PerformanceRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, category, date, not_observed, foundational, developing, accomplished, combined_da, created_at
		FROM user_performance
		WHERE user_id = ? AND is_active = 1
		ORDER BY date ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PerformanceRow
	for rows.Next() {
		var p PerformanceRow
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.UserID, &p.Category, &p.Date, &p.NotObserved, &p.Foundational, &p.Developing, &p.Accomplished, &p.CombinedDA, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreatePerformance inserts one performance row.
func (s *Store) CreatePerformance(ctx context.Context, p PerformanceRow) (*PerformanceRow, error) {
	p.ID = uuid.New().String()
	p.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_performance (id, user_id, category, date, not_observed, foundational, developing, accomplished, combined_da, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`, p.ID, p.UserID, p.Category, p.Date, p.NotObserved, p.Foundational, p.Developing, p.Accomplished, p.CombinedDA, p.CreatedAt.Unix(), p.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create performance row: %w", err)
	}
	return &p, nil
}

// --- Call statements ---

// ListCallStatements returns the user's active call statements, oldest first.
func (s *Store) ListCallStatements(ctx context.Context, userID string) ([]CallStatement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, statement, category, level, reason, confidence_score, created_at
		FROM call_statements
		WHERE user_id = ? AND is_active = 1
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallStatement
	for rows.Next() {
		var c CallStatement
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.UserID, &c.Statement, &c.Category, &c.Level, &c.Reason, &c.Confidence, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCallStatement inserts one scored call statement.
func (s *Store) CreateCallStatement(ctx context.Context, c CallStatement) (*CallStatement, error) {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_statements (id, user_id, statement, category, level, reason, confidence_score, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`, c.ID, c.UserID, c.Statement, c.Category, c.Level, c.Reason, c.Confidence, c.CreatedAt.Unix(), c.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create call statement: %w", err)
	}
	return &c, nil
}

// --- Categories ---

// ListCategories returns all active categories.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, definition, instruction, examples, invalid_examples, is_active, created_at
		FROM categories WHERE is_active = 1 ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.Name, &c.Definition, &c.Instruction, &c.Examples, &c.InvalidExamples, &c.Active, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertCategory inserts or refreshes a category by name.
func (s *Store) UpsertCategory(ctx context.Context, c Category) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, definition, instruction, examples, invalid_examples, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			definition = excluded.definition,
			instruction = excluded.instruction,
			examples = excluded.examples,
			invalid_examples = excluded.invalid_examples,
			is_active = 1,
			updated_at = excluded.updated_at
	`, uuid.New().String(), c.Name, c.Definition, c.Instruction, c.Examples, c.InvalidExamples, now, now)
	return err
}

// GetCategoryLevels returns the active levels for a category, lowest first.
func (s *Store) GetCategoryLevels(ctx context.Context, category string) ([]CategoryLevel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, level, description, examples, invalid_examples, is_active, created_at
		FROM category_levels
		WHERE category = ? AND is_active = 1
		ORDER BY level ASC
	`, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CategoryLevel
	for rows.Next() {
		var l CategoryLevel
		var createdAt int64
		if err := rows.Scan(&l.ID, &l.Category, &l.Level, &l.Description, &l.Examples, &l.InvalidExamples, &l.Active, &createdAt); err != nil {
			return nil, err
		}
		l.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, l)
	}
	return out, rows.Err()
}

// UpsertCategoryLevel inserts or refreshes a level within a category.
func (s *Store) UpsertCategoryLevel(ctx context.Context, l CategoryLevel) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO category_levels (id, category, level, description, examples, invalid_examples, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (category, level) DO UPDATE SET
			description = excluded.description,
			examples = excluded.examples,
			invalid_examples = excluded.invalid_examples,
			is_active = 1,
			updated_at = excluded.updated_at
	`, uuid.New().String(), l.Category, l.Level, l.Description, l.Examples, l.InvalidExamples, now, now)
	return err
}
