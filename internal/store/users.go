package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// User maps a Slack user id onto profile data gathered during onboarding.
type User struct {
	ID          int64             `json:"id"`
	SlackUserID string            `json:"slack_user_id"`
	Name        string            `json:"name"`
	Email       string            `json:"email,omitempty"`
	Metadata    map[string]string `json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// UpsertUser creates or refreshes a user record keyed by Slack user id.
func (s *Store) UpsertUser(ctx context.Context, slackUserID, name, email string, metadata map[string]string) (*User, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (slack_user_id, name, email, metadata)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (slack_user_id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			metadata = users.metadata || EXCLUDED.metadata,
			updated_at = now()
		 RETURNING id, slack_user_id, name, COALESCE(email, ''), metadata, created_at, updated_at`,
		slackUserID, name, email, metadata)

	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

// GetUser returns the record for a Slack user id or ErrNotFound.
func (s *Store) GetUser(ctx context.Context, slackUserID string) (*User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, slack_user_id, name, COALESCE(email, ''), metadata, created_at, updated_at
		 FROM users WHERE slack_user_id = $1`,
		slackUserID)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.SlackUserID, &u.Name, &u.Email, &u.Metadata,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
